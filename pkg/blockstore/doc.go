/*
Package blockstore persists verified blocks and trusted commits, keyed for
the two access patterns the committer and commit log need: random access
by BlockRef and ordered scans by round or commit index.

BoltBlockStore is the production implementation, bucket-per-entity over a
single bbolt database shared with pkg/storage and pkg/commitlog.
MapBlockStore is an in-memory fake for committer unit tests.
*/
package blockstore
