package execution

import (
	"testing"

	"github.com/cuemby/mysticonsensus/pkg/cerrors"
	"github.com/cuemby/mysticonsensus/pkg/types"
	"github.com/stretchr/testify/require"
)

func objectID(b byte) types.ObjectID {
	var id types.ObjectID
	id[0] = b
	return id
}

func TestReadObjectPrefersPendingWrite(t *testing.T) {
	id := objectID(1)
	snapshot := map[types.ObjectID]*types.Object{id: {ID: id, Version: 1}}
	store := NewTemporaryStore(types.TransactionDigest{}, snapshot, nil, true)

	updated := &types.Object{ID: id, Version: 2}
	require.NoError(t, store.WriteObject(updated))

	got, ok := store.ReadObject(id)
	require.True(t, ok)
	require.Equal(t, types.Version(2), got.Version)
}

func TestDeleteObjectHidesSnapshot(t *testing.T) {
	id := objectID(1)
	snapshot := map[types.ObjectID]*types.Object{id: {ID: id, Version: 1}}
	store := NewTemporaryStore(types.TransactionDigest{}, snapshot, nil, true)

	require.NoError(t, store.DeleteObject(id, types.DeleteNormal))
	_, ok := store.ReadObject(id)
	require.False(t, ok)
}

func TestEnsureActiveInputsMutatedBumpsUntouchedInputs(t *testing.T) {
	gasID := objectID(1)
	otherID := objectID(2)
	snapshot := map[types.ObjectID]*types.Object{
		gasID:   {ID: gasID, Version: 5},
		otherID: {ID: otherID, Version: 3},
	}
	mutable := map[types.ObjectID]bool{gasID: true, otherID: true}
	store := NewTemporaryStore(types.TransactionDigest{}, snapshot, mutable, true)

	store.EnsureActiveInputsMutated(gasID)

	_, gasWritten := store.writes[gasID]
	require.False(t, gasWritten, "gas object is exempted; the gas charger writes it back itself")

	other, ok := store.writes[otherID]
	require.True(t, ok)
	require.Equal(t, types.Version(4), other.Version)
}

func TestResetClearsWritesDeletesAndEvents(t *testing.T) {
	id := objectID(1)
	store := NewTemporaryStore(types.TransactionDigest{}, nil, nil, true)
	require.NoError(t, store.WriteObject(&types.Object{ID: id}))
	store.LogEvent(types.Event{})

	store.Reset()

	_, ok := store.ReadObject(id)
	require.False(t, ok)
	require.Empty(t, store.events)
}

func TestToEffectsPartitionsCreatedMutatedUnwrapped(t *testing.T) {
	createdID := objectID(1)
	mutatedID := objectID(2)
	unwrappedID := objectID(3)

	snapshot := map[types.ObjectID]*types.Object{
		mutatedID: {ID: mutatedID, Version: 1},
	}
	mutable := map[types.ObjectID]bool{mutatedID: true}
	store := NewTemporaryStore(types.TransactionDigest{4}, snapshot, mutable, true)

	store.SetCreatedIDs([]types.ObjectID{createdID})
	require.NoError(t, store.WriteObject(&types.Object{ID: createdID, Version: 1}))
	require.NoError(t, store.WriteObject(&types.Object{ID: mutatedID, Version: 2}))
	require.NoError(t, store.WriteObject(&types.Object{ID: unwrappedID, Version: 2}))

	effects, err := store.ToEffects(types.OK(), types.GasCostSummary{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, effects.Created, 1)
	require.Len(t, effects.Mutated, 1)
	require.Len(t, effects.Unwrapped, 1)
	require.Equal(t, createdID, effects.Created[0].Ref.ID)
	require.Equal(t, mutatedID, effects.Mutated[0].Ref.ID)
	require.Equal(t, unwrappedID, effects.Unwrapped[0].Ref.ID)
}

func TestToEffectsStampsDeletedAndWrappedSentinels(t *testing.T) {
	deletedID := objectID(1)
	wrappedID := objectID(2)
	snapshot := map[types.ObjectID]*types.Object{
		deletedID: {ID: deletedID, Version: 1},
		wrappedID: {ID: wrappedID, Version: 1},
	}
	store := NewTemporaryStore(types.TransactionDigest{}, snapshot, nil, true)

	require.NoError(t, store.DeleteObject(deletedID, types.DeleteNormal))
	require.NoError(t, store.DeleteObject(wrappedID, types.DeleteWrap))

	effects, err := store.ToEffects(types.OK(), types.GasCostSummary{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, effects.Deleted, 1)
	require.Len(t, effects.Wrapped, 1)
	require.Equal(t, types.ObjectDigestDeleted, effects.Deleted[0].Digest)
	require.Equal(t, types.ObjectDigestWrapped, effects.Wrapped[0].Digest)
}

func TestWriteObjectRejectsWriteAfterDelete(t *testing.T) {
	id := objectID(1)
	snapshot := map[types.ObjectID]*types.Object{id: {ID: id, Version: 1}}
	store := NewTemporaryStore(types.TransactionDigest{}, snapshot, map[types.ObjectID]bool{id: true}, true)

	require.NoError(t, store.DeleteObject(id, types.DeleteNormal))
	err := store.WriteObject(&types.Object{ID: id, Version: 2})
	require.ErrorIs(t, err, cerrors.ErrProtocolViolation)
}

func TestDeleteObjectRejectsDeleteAfterWrite(t *testing.T) {
	id := objectID(1)
	store := NewTemporaryStore(types.TransactionDigest{}, nil, nil, true)

	require.NoError(t, store.WriteObject(&types.Object{ID: id, Version: 1}))
	err := store.DeleteObject(id, types.DeleteNormal)
	require.ErrorIs(t, err, cerrors.ErrProtocolViolation)
}

func TestWriteObjectRejectsMutatingImmutableObject(t *testing.T) {
	id := objectID(1)
	snapshot := map[types.ObjectID]*types.Object{id: {ID: id, Version: 1, Owner: types.ImmutableOwner()}}
	store := NewTemporaryStore(types.TransactionDigest{}, snapshot, map[types.ObjectID]bool{id: true}, true)

	err := store.WriteObject(&types.Object{ID: id, Version: 2})
	require.ErrorIs(t, err, cerrors.ErrProtocolViolation)
}

func TestDeleteObjectRejectsDeletingImmutableObject(t *testing.T) {
	id := objectID(1)
	snapshot := map[types.ObjectID]*types.Object{id: {ID: id, Version: 1, Owner: types.ImmutableOwner()}}
	store := NewTemporaryStore(types.TransactionDigest{}, snapshot, map[types.ObjectID]bool{id: true}, true)

	err := store.DeleteObject(id, types.DeleteNormal)
	require.ErrorIs(t, err, cerrors.ErrProtocolViolation)
}

func TestEnforceOutputLimitRejectsTooManyWrites(t *testing.T) {
	store := NewTemporaryStore(types.TransactionDigest{}, nil, nil, true)
	require.NoError(t, store.WriteObject(&types.Object{ID: objectID(1)}))
	require.NoError(t, store.WriteObject(&types.Object{ID: objectID(2)}))

	require.NoError(t, store.EnforceOutputLimit(2))
	err := store.EnforceOutputLimit(1)
	require.ErrorIs(t, err, cerrors.ErrInvalidInput)
}

func TestAssertInvariantsCatchesUncoveredMutableInput(t *testing.T) {
	id := objectID(1)
	snapshot := map[types.ObjectID]*types.Object{id: {ID: id, Version: 1}}
	mutable := map[types.ObjectID]bool{id: true}
	store := NewTemporaryStore(types.TransactionDigest{}, snapshot, mutable, true)

	_, err := store.ToEffects(types.OK(), types.GasCostSummary{}, nil, nil)
	require.Error(t, err)
}
