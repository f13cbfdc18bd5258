package storage

import (
	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/cuemby/mysticonsensus/pkg/types"
)

// ObjectStore is the authoritative, durable backing tier behind
// pkg/objectcache: object versions, Move packages, and received-object
// markers, plus the block/commit lookups the cache's backing chain needs
// when it falls through past the cache entirely.
type ObjectStore interface {
	ReadObject(id types.ObjectID) (*types.Object, bool, error)
	ReadObjectByKey(id types.ObjectID, version types.Version) (*types.Object, bool, error)
	FindObjectLtOrEqVersion(id types.ObjectID, version types.Version) (*types.Object, bool, error)
	ReadBlocks(refs []block.BlockRef) ([]*block.VerifiedBlock, error)
	GetPackage(id types.ObjectID) (*types.MovePackage, bool, error)

	// WriteBatch durably writes every object version, commit, and
	// received marker produced by one commit's execution.
	// BoltObjectStore writes objects and markers in one bbolt
	// transaction and commits in a second one, so the batch as a whole
	// is not atomic.
	WriteBatch(objects []*types.Object, commits []*block.TrustedCommit, markers []types.ReceivedMarker) error

	Close() error
}
