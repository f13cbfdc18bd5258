package objectcache

import (
	"testing"

	"github.com/cuemby/mysticonsensus/pkg/cerrors"
	"github.com/cuemby/mysticonsensus/pkg/storage"
	"github.com/cuemby/mysticonsensus/pkg/types"
	"github.com/stretchr/testify/require"
)

func outputsFor(digest byte, commitIndex uint64, objs ...*types.Object) *TransactionOutputs {
	var d types.TransactionDigest
	d[0] = digest
	return &TransactionOutputs{
		TransactionDigest: d,
		CommitIndex:       commitIndex,
		WrittenObjects:    objs,
	}
}

func obj(id byte, version types.Version) *types.Object {
	var oid types.ObjectID
	oid[0] = id
	return &types.Object{ID: oid, Version: version}
}

func TestWriteTransactionOutputsIsIdempotent(t *testing.T) {
	c := NewCache(storage.NewMapObjectStore())
	out := outputsFor(1, 1, obj(1, 1))

	require.NoError(t, c.WriteTransactionOutputs(0, out))
	require.NoError(t, c.WriteTransactionOutputs(0, out))
	require.Len(t, c.pending, 1)
}

func TestGetObjectResolvesFromPendingBeforeCommit(t *testing.T) {
	c := NewCache(storage.NewMapObjectStore())
	out := outputsFor(1, 1, obj(1, 1))
	require.NoError(t, c.WriteTransactionOutputs(0, out))

	got, ok, err := c.GetObject(out.WrittenObjects[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.Version(1), got.Version)
}

func TestCommitTransactionOutputsUnknownDigestFails(t *testing.T) {
	c := NewCache(storage.NewMapObjectStore())
	var digest types.TransactionDigest
	err := c.CommitTransactionOutputs(0, digest)
	require.ErrorIs(t, err, cerrors.ErrProtocolViolation)
}

func TestCommitTransactionOutputsEnforcesSequence(t *testing.T) {
	c := NewCache(storage.NewMapObjectStore())
	first := outputsFor(1, 1, obj(1, 1))
	second := outputsFor(2, 3, obj(2, 1)) // skips index 2

	require.NoError(t, c.WriteTransactionOutputs(0, first))
	require.NoError(t, c.WriteTransactionOutputs(0, second))

	require.NoError(t, c.CommitTransactionOutputs(0, first.TransactionDigest))
	err := c.CommitTransactionOutputs(0, second.TransactionDigest)
	require.ErrorIs(t, err, cerrors.ErrProtocolViolation)
}

func TestCommitTransactionOutputsFlushesToBackingStore(t *testing.T) {
	backing := storage.NewMapObjectStore()
	c := NewCache(backing)
	out := outputsFor(1, 1, obj(1, 1))

	require.NoError(t, c.WriteTransactionOutputs(0, out))
	require.NoError(t, c.CommitTransactionOutputs(0, out.TransactionDigest))

	got, ok, err := backing.ReadObject(out.WrittenObjects[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.Version(1), got.Version)
}

func TestCommitTransactionOutputsIsIdempotent(t *testing.T) {
	c := NewCache(storage.NewMapObjectStore())
	out := outputsFor(1, 1, obj(1, 1))
	require.NoError(t, c.WriteTransactionOutputs(0, out))
	require.NoError(t, c.CommitTransactionOutputs(0, out.TransactionDigest))
	require.NoError(t, c.CommitTransactionOutputs(0, out.TransactionDigest))
}

func TestFindObjectLtOrEqVersionMergesTiers(t *testing.T) {
	backing := storage.NewMapObjectStore()
	c := NewCache(backing)

	v1 := outputsFor(1, 1, obj(1, 1))
	require.NoError(t, c.WriteTransactionOutputs(0, v1))
	require.NoError(t, c.CommitTransactionOutputs(0, v1.TransactionDigest))

	v3 := outputsFor(2, 2, obj(1, 3))
	require.NoError(t, c.WriteTransactionOutputs(0, v3))

	id := v1.WrittenObjects[0].ID
	got, ok, err := c.FindObjectLtOrEqVersion(id, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.Version(1), got.Version, "version 3 is pending and exceeds the requested ceiling")

	got, ok, err = c.FindObjectLtOrEqVersion(id, 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.Version(3), got.Version)
}

func TestHaveReceivedObjectAtVersion(t *testing.T) {
	c := NewCache(storage.NewMapObjectStore())
	out := outputsFor(1, 1, obj(1, 1))
	out.Markers = []types.ReceivedMarker{{ObjectID: out.WrittenObjects[0].ID, Version: 1, Epoch: 0}}
	require.NoError(t, c.WriteTransactionOutputs(0, out))

	require.True(t, c.HaveReceivedObjectAtVersion(out.WrittenObjects[0].ID, 1, 0))
	require.False(t, c.HaveReceivedObjectAtVersion(out.WrittenObjects[0].ID, 2, 0))
}

func TestClearCachesDropsCommittedTierOnly(t *testing.T) {
	backing := storage.NewMapObjectStore()
	c := NewCache(backing)
	out := outputsFor(1, 1, obj(1, 1))
	require.NoError(t, c.WriteTransactionOutputs(0, out))
	require.NoError(t, c.CommitTransactionOutputs(0, out.TransactionDigest))

	c.ClearCaches()
	require.Empty(t, c.committed)

	id := out.WrittenObjects[0].ID
	got, ok, err := c.GetObject(id)
	require.NoError(t, err)
	require.True(t, ok, "falls through to the backing store after eviction")
	require.Equal(t, types.Version(1), got.Version)
}
