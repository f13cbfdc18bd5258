package objectcache

import (
	"fmt"
	"sync"

	"github.com/cuemby/mysticonsensus/pkg/cerrors"
	"github.com/cuemby/mysticonsensus/pkg/metrics"
	"github.com/cuemby/mysticonsensus/pkg/storage"
	"github.com/cuemby/mysticonsensus/pkg/types"
)

type pendingKey struct {
	epoch  uint64
	digest types.TransactionDigest
}

type markerKey struct {
	id      types.ObjectID
	version types.Version
	epoch   uint64
}

type pendingEntry struct {
	outputs   *TransactionOutputs
	committed bool
}

// Cache is the write-back object cache described in package doc.go.
type Cache struct {
	mu      sync.RWMutex
	backing storage.ObjectStore

	pending         map[pendingKey]*pendingEntry
	pendingByObject map[types.ObjectID]map[types.Version]*types.Object

	committed map[types.ObjectID]*versionChain
	markers   map[markerKey]bool

	lastCommittedSeq uint64
}

// NewCache wraps backing with a pending/committed write-back cache.
func NewCache(backing storage.ObjectStore) *Cache {
	return &Cache{
		backing:         backing,
		pending:         make(map[pendingKey]*pendingEntry),
		pendingByObject: make(map[types.ObjectID]map[types.Version]*types.Object),
		committed:       make(map[types.ObjectID]*versionChain),
		markers:         make(map[markerKey]bool),
	}
}

// WriteTransactionOutputs records outputs in the pending tier, keyed by
// (epoch, outputs.TransactionDigest). Idempotent: a second write for the
// same key is a no-op.
func (c *Cache) WriteTransactionOutputs(epoch uint64, outputs *TransactionOutputs) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := pendingKey{epoch: epoch, digest: outputs.TransactionDigest}
	if _, exists := c.pending[key]; exists {
		return nil
	}
	c.pending[key] = &pendingEntry{outputs: outputs}
	metrics.CacheObjectsPending.Set(float64(len(c.pending)))

	for _, obj := range outputs.WrittenObjects {
		versions := c.pendingByObject[obj.ID]
		if versions == nil {
			versions = make(map[types.Version]*types.Object)
			c.pendingByObject[obj.ID] = versions
		}
		versions[obj.Version] = obj
	}
	for _, m := range outputs.Markers {
		c.markers[markerKey{id: m.ObjectID, version: m.Version, epoch: m.Epoch}] = true
	}
	return nil
}

// CommitTransactionOutputs promotes the pending entry for (epoch, digest)
// into the committed tier and flushes it to the backing store. Commit
// indices must arrive in the gap-free sequence the committer assigned
// them; committing a digest that was never written, or out of sequence,
// fails with cerrors.ErrProtocolViolation.
func (c *Cache) CommitTransactionOutputs(epoch uint64, digest types.TransactionDigest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := pendingKey{epoch: epoch, digest: digest}
	entry, ok := c.pending[key]
	if !ok {
		return fmt.Errorf("commit unknown transaction outputs %x: %w", digest, cerrors.ErrProtocolViolation)
	}
	if entry.committed {
		return nil
	}
	if entry.outputs.CommitIndex != c.lastCommittedSeq+1 {
		return fmt.Errorf("commit index %d out of sequence, expected %d: %w",
			entry.outputs.CommitIndex, c.lastCommittedSeq+1, cerrors.ErrProtocolViolation)
	}

	outputs := entry.outputs
	for _, obj := range outputs.WrittenObjects {
		chain := c.committed[obj.ID]
		if chain == nil {
			chain = &versionChain{}
			c.committed[obj.ID] = chain
		}
		chain.insert(obj)
	}

	if err := c.backing.WriteBatch(outputs.WrittenObjects, nil, outputs.Markers); err != nil {
		return fmt.Errorf("flush transaction outputs %x: %w", digest, err)
	}

	entry.committed = true
	c.lastCommittedSeq = outputs.CommitIndex
	metrics.CacheCommitsTotal.Inc()
	return nil
}

// GetObject resolves id against the pending tier, then the committed
// tier, then the backing store.
func (c *Cache) GetObject(id types.ObjectID) (*types.Object, bool, error) {
	c.mu.RLock()
	if obj := latestPending(c.pendingByObject[id]); obj != nil {
		pendingLatest := obj
		if chain, ok := c.committed[id]; ok {
			if committedLatest := chain.latest(); committedLatest != nil && committedLatest.Version > pendingLatest.Version {
				c.mu.RUnlock()
				return committedLatest, true, nil
			}
		}
		c.mu.RUnlock()
		return pendingLatest, true, nil
	}
	if chain, ok := c.committed[id]; ok {
		if obj := chain.latest(); obj != nil {
			c.mu.RUnlock()
			return obj, true, nil
		}
	}
	c.mu.RUnlock()
	return c.backing.ReadObject(id)
}

// GetObjectByKey resolves the exact (id, version) pair against the
// pending tier, then the committed tier, then the backing store.
func (c *Cache) GetObjectByKey(id types.ObjectID, version types.Version) (*types.Object, bool, error) {
	c.mu.RLock()
	if versions, ok := c.pendingByObject[id]; ok {
		if obj, ok := versions[version]; ok {
			c.mu.RUnlock()
			return obj, true, nil
		}
	}
	if chain, ok := c.committed[id]; ok {
		if obj := chain.at(version); obj != nil {
			c.mu.RUnlock()
			return obj, true, nil
		}
	}
	c.mu.RUnlock()
	return c.backing.ReadObjectByKey(id, version)
}

// FindObjectLtOrEqVersion returns the highest known version of id not
// exceeding v, across the pending tier, the committed tier, and the
// backing store.
func (c *Cache) FindObjectLtOrEqVersion(id types.ObjectID, v types.Version) (*types.Object, bool, error) {
	c.mu.RLock()
	var best *types.Object
	if versions, ok := c.pendingByObject[id]; ok {
		for version, obj := range versions {
			if version <= v && (best == nil || version > best.Version) {
				best = obj
			}
		}
	}
	if chain, ok := c.committed[id]; ok {
		if obj := chain.ltOrEq(v); obj != nil && (best == nil || obj.Version > best.Version) {
			best = obj
		}
	}
	c.mu.RUnlock()

	if best != nil {
		return best, true, nil
	}
	return c.backing.FindObjectLtOrEqVersion(id, v)
}

// HaveReceivedObjectAtVersion reports whether a received marker for
// (id, version, epoch) has been recorded, directly or via a pending
// transaction's outputs.
func (c *Cache) HaveReceivedObjectAtVersion(id types.ObjectID, v types.Version, epoch uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.markers[markerKey{id: id, version: v, epoch: epoch}]
}

// ClearCaches drops the committed tier; subsequent reads reload from the
// backing store. The pending tier is never evicted.
func (c *Cache) ClearCaches() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = make(map[types.ObjectID]*versionChain)
	metrics.CacheEvictionsTotal.Inc()
}

// PendingCount returns the number of transaction outputs currently held
// in the pending tier, committed or not.
func (c *Cache) PendingCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

func latestPending(versions map[types.Version]*types.Object) *types.Object {
	var best *types.Object
	for _, obj := range versions {
		if best == nil || obj.Version > best.Version {
			best = obj
		}
	}
	return best
}
