/*
Package commitlog exposes the committer's output as a gap-free, chain-
linked sequence and replays it to execution in commit-index order.

Log wraps a pkg/blockstore.Store's commit buckets with the append-time
invariant checks the store itself does not enforce: no skipped indices,
no broken digest chain. CommitConsumer and Producer model the one-way
channel a downstream execution pipeline reads committed sub-DAGs from.
*/
package commitlog
