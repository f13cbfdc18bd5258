package leader

import (
	"testing"

	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/stretchr/testify/assert"
)

func TestRoundRobinScheduleWrapsAround(t *testing.T) {
	s := RoundRobinSchedule{NumAuthorities: 4}
	assert.Equal(t, block.AuthorityIndex(0), s.ElectLeader(0, 0))
	assert.Equal(t, block.AuthorityIndex(1), s.ElectLeader(1, 0))
	assert.Equal(t, block.AuthorityIndex(0), s.ElectLeader(4, 0))
	assert.Equal(t, block.AuthorityIndex(2), s.ElectLeader(1, 1))
}

func TestStakeWeightedScheduleDeterministic(t *testing.T) {
	committee := block.NewCommittee([]block.Authority{{Stake: 25}, {Stake: 25}, {Stake: 25}, {Stake: 25}})
	a := NewStakeWeightedSchedule(committee)
	b := NewStakeWeightedSchedule(committee)

	for round := block.Round(0); round < 20; round++ {
		assert.Equal(t, a.ElectLeader(round, 0), b.ElectLeader(round, 0), "same round must elect same leader across instances")
	}
}

func TestStakeWeightedScheduleOffsetAvoidsRepeats(t *testing.T) {
	committee := block.NewCommittee([]block.Authority{{Stake: 25}, {Stake: 25}, {Stake: 25}, {Stake: 25}})
	s := NewStakeWeightedSchedule(committee)

	seen := make(map[block.AuthorityIndex]bool)
	for offset := 0; offset < 4; offset++ {
		leader := s.ElectLeader(7, offset)
		assert.False(t, seen[leader], "offset %d repeated a previously excluded leader", offset)
		seen[leader] = true
	}
	assert.Len(t, seen, 4)
}

func TestBuildSwapTableTieBreakAscending(t *testing.T) {
	committee := block.NewCommittee([]block.Authority{{Stake: 25}, {Stake: 25}, {Stake: 25}, {Stake: 25}})
	scores := ReputationScores{Scores: []uint64{0, 0, 0, 0}, CommitRange: [2]block.CommitIndex{1, 100}}

	// a 30% cap admits exactly one 25-stake authority, so the tie decides which
	table := BuildSwapTable(committee, scores, 30)
	assert.True(t, table.GoodNodes[0], "lowest AuthorityIndex should win the tie for good_nodes")
}

func TestBuildSwapTableRespectsThreshold(t *testing.T) {
	committee := block.NewCommittee([]block.Authority{{Stake: 25}, {Stake: 25}, {Stake: 25}, {Stake: 25}})
	scores := ReputationScores{Scores: []uint64{10, 5, 3, 1}}

	table := BuildSwapTable(committee, scores, 0)
	assert.Empty(t, table.GoodNodes)
	assert.Empty(t, table.BadNodes)
}

func TestAtomicSwapTableSwapsOnlyBadNodes(t *testing.T) {
	var swap AtomicSwapTable
	leader, ok := swap.Swap(0, 1)
	assert.False(t, ok, "no table published yet")
	_ = leader

	table := &LeaderSwapTable{
		GoodNodes: map[block.AuthorityIndex]bool{0: true, 1: true},
		BadNodes:  map[block.AuthorityIndex]bool{2: true},
	}
	swap.Store(table)

	replacement, swapped := swap.Swap(2, 5)
	assert.True(t, swapped)
	assert.True(t, table.GoodNodes[replacement])

	_, swapped = swap.Swap(0, 5)
	assert.False(t, swapped, "good node should not be swapped")
}
