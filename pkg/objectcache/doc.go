/*
Package objectcache implements a two-tier write-back cache over
pkg/storage's authoritative ObjectStore.

# Tiers

The pending tier holds one TransactionOutputs per (epoch, transaction
digest), written speculatively before consensus has assigned it a commit
index, and never evicted. The committed tier holds, per object id, a
short ring of recently committed versions resolved against the backing
store, consulted before falling through to disk.

# Ordering

CommitTransactionOutputs enforces that commit indices arrive in the
gap-free sequence the committer assigns them in; an out-of-order commit
is a protocol violation, not a retryable condition.

# Concurrency

Cache is safe for concurrent readers and writers. A single sync.RWMutex
guards both tiers; the only I/O done while holding it is a commit's
flush to the backing store, under the write lock. Reads that miss both
tiers release the lock before reading the backing store.
*/
package objectcache
