package committer

import (
	"testing"

	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/cuemby/mysticonsensus/pkg/leader"
	"github.com/stretchr/testify/require"
)

func TestCommitterTryCommitEmitsSingleLeaderCommit(t *testing.T) {
	dag, byRound := fullyConnectedDAG(t, 2)
	committee := fourAuthorityCommittee()
	schedule := leader.RoundRobinSchedule{NumAuthorities: 4}

	c := NewCommitter(3, committee, dag, schedule, nil)
	commits, err := c.TryCommit(-1)
	require.NoError(t, err)
	require.Len(t, commits, 1)

	commit := commits[0]
	require.Equal(t, block.CommitIndex(1), commit.Commit().Index())
	require.Equal(t, byRound[0][0].Reference(), commit.Commit().Leader())
	require.Equal(t, block.CommitDigest{}, commit.Commit().PreviousDigest())
	require.ElementsMatch(t, []block.BlockRef{byRound[0][0].Reference()}, commit.Commit().Blocks())
}

func TestCommitterChainsSecondCommitToFirst(t *testing.T) {
	dag, byRound := fullyConnectedDAG(t, 2)
	committee := fourAuthorityCommittee()
	schedule := leader.RoundRobinSchedule{NumAuthorities: 4}

	c := NewCommitter(3, committee, dag, schedule, nil)
	first, err := c.TryCommit(-1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Extend the DAG through wave 1's decision round only after wave 0 has
	// been committed, so the second call is the one that decides wave 1.
	for round := block.Round(3); round <= 5; round++ {
		var ancestors []block.BlockRef
		for _, vb := range byRound[round-1] {
			ancestors = append(ancestors, vb.Reference())
		}
		var blocks []*block.VerifiedBlock
		for author := block.AuthorityIndex(0); author < 4; author++ {
			blocks = append(blocks, mustBlock(t, round, author, ancestors))
		}
		dag.AddBlocks(blocks)
		byRound[round] = blocks
	}

	second, err := c.TryCommit(0)
	require.NoError(t, err)
	require.NotEmpty(t, second)
	require.Equal(t, first[0].Digest(), second[0].Commit().PreviousDigest())
	require.Equal(t, byRound[3][3].Reference(), second[0].Commit().Leader())
}

func TestCommitterStopsAtFirstUndecidedWave(t *testing.T) {
	dag, _ := fullyConnectedDAG(t, 2)
	committee := fourAuthorityCommittee()
	schedule := leader.RoundRobinSchedule{NumAuthorities: 4}

	c := NewCommitter(3, committee, dag, schedule, nil)
	commits, err := c.TryCommit(-1)
	require.NoError(t, err)
	require.Len(t, commits, 1, "wave 1 has no decision round yet and must not be decided")
}
