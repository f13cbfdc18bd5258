package committer

import (
	"testing"

	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/stretchr/testify/require"
)

func fourAuthorityCommittee() block.Committee {
	return block.NewCommittee([]block.Authority{{Stake: 25}, {Stake: 25}, {Stake: 25}, {Stake: 25}})
}

func mustBlock(t *testing.T, round block.Round, author block.AuthorityIndex, ancestors []block.BlockRef) *block.VerifiedBlock {
	t.Helper()
	vb, err := block.NewVerifiedBlock(block.BlockData{Round: round, Author: author, Ancestors: ancestors})
	require.NoError(t, err)
	return vb
}

// fullyConnectedDAG builds rounds 0..upToRound where every block at round
// r>0 references every block from round r-1, for a 4-authority committee.
func fullyConnectedDAG(t *testing.T, upToRound block.Round) (*DAGState, map[block.Round][]*block.VerifiedBlock) {
	t.Helper()
	dag := NewDAGState()
	byRound := make(map[block.Round][]*block.VerifiedBlock)

	genesis, err := block.GenesisBlocks(4)
	require.NoError(t, err)
	dag.AddBlocks(genesis)
	byRound[0] = genesis

	prevRefs := func(round block.Round) []block.BlockRef {
		refs := make([]block.BlockRef, 0, 4)
		for _, vb := range byRound[round] {
			refs = append(refs, vb.Reference())
		}
		return refs
	}

	for round := block.Round(1); round <= upToRound; round++ {
		ancestors := prevRefs(round - 1)
		var blocks []*block.VerifiedBlock
		for author := block.AuthorityIndex(0); author < 4; author++ {
			blocks = append(blocks, mustBlock(t, round, author, ancestors))
		}
		dag.AddBlocks(blocks)
		byRound[round] = blocks
	}
	return dag, byRound
}

func TestTryDirectDecideCommitsWhenFullyConnected(t *testing.T) {
	dag, byRound := fullyConnectedDAG(t, 2)
	committee := fourAuthorityCommittee()

	status := TryDirectDecide(dag, committee, 0, 0, 3)
	require.Equal(t, StatusCommit, status.Kind)
	require.Equal(t, byRound[0][0].Reference(), status.Block.Reference())
}

func TestTryDirectDecideUndecidedWithoutDecisionRound(t *testing.T) {
	dag, _ := fullyConnectedDAG(t, 1)
	committee := fourAuthorityCommittee()

	status := TryDirectDecide(dag, committee, 0, 0, 3)
	require.Equal(t, StatusUndecided, status.Kind)
}

func TestTryDirectDecideCommitsNonZeroAuthorLeader(t *testing.T) {
	dag, byRound := fullyConnectedDAG(t, 2)
	committee := fourAuthorityCommittee()

	// In a fully connected DAG every round-1 block references every
	// genesis block, so a leader at round 0 authored by 1 (not just by 0)
	// is committed too.
	status := TryDirectDecide(dag, committee, 0, 1, 3)
	require.Equal(t, StatusCommit, status.Kind)
	require.Equal(t, byRound[0][1].Reference(), status.Block.Reference())
}

func TestCausalHistoryContainsFindsAncestor(t *testing.T) {
	dag, byRound := fullyConnectedDAG(t, 2)
	target := block.Slot{Round: 0, Author: 2}

	ref, found := dag.CausalHistoryContains(byRound[2][0].Reference(), target)
	require.True(t, found)
	require.Equal(t, byRound[0][2].Reference(), ref)
}

func TestCausalHistoryContainsMissesUnrelatedSlot(t *testing.T) {
	dag, byRound := fullyConnectedDAG(t, 2)
	target := block.Slot{Round: 1, Author: 9}

	_, found := dag.CausalHistoryContains(byRound[2][0].Reference(), target)
	require.False(t, found)
}
