package objectcache

import "github.com/cuemby/mysticonsensus/pkg/types"

// TransactionOutputs is the full result of executing one transaction,
// written into the cache's pending tier ahead of consensus commit and
// flushed to the backing store once CommitTransactionOutputs promotes it.
type TransactionOutputs struct {
	TransactionDigest types.TransactionDigest

	// CommitIndex is the consensus-assigned sequence number this
	// transaction's commit must be processed at. Zero means "not yet
	// assigned"; CommitTransactionOutputs requires it be set.
	CommitIndex uint64

	WrittenObjects []*types.Object
	Markers        []types.ReceivedMarker
	Deleted        []types.ObjectRef
	Wrapped        []types.ObjectRef
	Events         []types.Event
}
