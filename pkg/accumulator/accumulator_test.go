package accumulator

import (
	"testing"

	"github.com/cuemby/mysticonsensus/pkg/types"
	"github.com/stretchr/testify/require"
)

func digest(b byte) [32]byte {
	var d [32]byte
	d[0] = b
	return d
}

func TestInsertRemoveIsCommutative(t *testing.T) {
	a := New()
	a.Insert(digest(1))
	a.Insert(digest(2))
	a.Remove(digest(1))

	b := New()
	b.Insert(digest(2))
	b.Insert(digest(1))
	b.Remove(digest(1))

	require.Equal(t, a.Digest(), b.Digest())
}

func TestInsertThenRemoveReturnsToIdentity(t *testing.T) {
	a := New()
	a.Insert(digest(7))
	a.Remove(digest(7))

	require.Equal(t, New().Digest(), a.Digest())
}

func TestAccumulateCheckpointInsertsCreatedAndMutatedRemovesDeleted(t *testing.T) {
	created := []types.ObjectRef{{Digest: digest(1)}}
	mutated := []types.ObjectRef{{Digest: digest(2)}}
	deleted := []types.ObjectRef{{Digest: digest(3)}}

	acc := AccumulateCheckpoint(created, mutated, deleted)

	want := New()
	want.Insert(digest(1))
	want.Insert(digest(2))
	want.Remove(digest(3))

	require.Equal(t, want.Digest(), acc.Digest())
}

func TestUnionEpochSumsCheckpointsInSequence(t *testing.T) {
	cp1 := AccumulateCheckpoint([]types.ObjectRef{{Digest: digest(1)}}, nil, nil)
	cp2 := AccumulateCheckpoint([]types.ObjectRef{{Digest: digest(2)}}, nil, nil)

	root := UnionEpoch([]*Accumulator{cp1, cp2}, nil)

	want := New()
	want.Insert(digest(1))
	want.Insert(digest(2))
	require.Equal(t, want.Digest(), root.Digest())
}

func TestUnionEpochReturnsStoredRootWithoutReaccumulating(t *testing.T) {
	stored := New()
	stored.Insert(digest(9))

	called := false
	root := UnionEpoch([]*Accumulator{AccumulateCheckpoint([]types.ObjectRef{{Digest: digest(1)}}, nil, nil)}, func() (*Accumulator, bool) {
		called = true
		return stored, true
	})

	require.True(t, called)
	require.Equal(t, stored.Digest(), root.Digest())
}

func TestCloneIsIndependent(t *testing.T) {
	a := New()
	a.Insert(digest(1))
	clone := a.Clone()
	a.Insert(digest(2))

	require.NotEqual(t, a.Digest(), clone.Digest())
}
