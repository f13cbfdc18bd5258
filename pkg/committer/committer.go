package committer

import (
	"fmt"
	"sort"

	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/cuemby/mysticonsensus/pkg/cerrors"
	"github.com/cuemby/mysticonsensus/pkg/leader"
	"github.com/cuemby/mysticonsensus/pkg/metrics"
)

// Committer decides waves in order and turns each newly-committed leader
// into a TrustedCommit chained to the previous one.
type Committer struct {
	waveLength int
	committee  block.Committee
	dag        *DAGState
	schedule   leader.ElectionStrategy
	swap       *leader.AtomicSwapTable

	committed      map[block.BlockRef]bool
	lastCommit     *block.TrustedCommit
	lastCommitted  block.CommitDigest
	nextCommitIdx  block.CommitIndex
	lastWave       int
}

// NewCommitter builds a Committer over dag, deciding leaders via schedule
// and overriding bad leaders via swap.
func NewCommitter(waveLength int, committee block.Committee, dag *DAGState, schedule leader.ElectionStrategy, swap *leader.AtomicSwapTable) *Committer {
	return &Committer{
		waveLength:    waveLength,
		committee:     committee,
		dag:           dag,
		schedule:      schedule,
		swap:          swap,
		committed:     make(map[block.BlockRef]bool),
		nextCommitIdx: 1,
		lastWave:      lastDecidedWaveUnset,
	}
}

// lastDecidedWaveUnset is LastDecidedWave's value before any TryCommit
// call has decided a wave.
const lastDecidedWaveUnset = -1

// LastDecidedWave returns the highest wave this Committer has decided
// (committed or skipped) across every TryCommit call so far, or
// lastDecidedWaveUnset if none has been decided yet. Callers that drive
// TryCommit in a loop should pass this back in rather than tracking
// their own copy, since skipped waves never appear in TryCommit's
// returned commits.
func (c *Committer) LastDecidedWave() int {
	return c.lastWave
}

// leaderRoundOf returns the leader round for wave.
func (c *Committer) leaderRoundOf(wave int) block.Round {
	return block.Round(wave * c.waveLength)
}

// leaderFor resolves wave's leader authority: the base schedule's pick,
// overridden by the current swap table if that authority is in bad_nodes.
func (c *Committer) leaderFor(wave int) block.AuthorityIndex {
	round := c.leaderRoundOf(wave)
	base := c.schedule.ElectLeader(round, 0)
	if c.swap != nil {
		if replacement, swapped := c.swap.Swap(base, round); swapped {
			metrics.LeaderSwapsTotal.Inc()
			return replacement
		}
	}
	return base
}

// TryCommit walks waves in increasing order starting at lastDecidedWave+1,
// direct-deciding each and stopping at the first wave that cannot be
// direct-decided. The indirect fallback only consults waves already in
// this call's decided set, and those are all lower than the wave being
// tried, so it never decides a wave: a wave the direct rule leaves
// undecided stays undecided, and no later wave is decided past it. Every
// newly decided Commit status is linearized into a TrustedCommit chained
// to the previous commit's digest.
func (c *Committer) TryCommit(lastDecidedWave int) ([]*block.TrustedCommit, error) {
	decided := make(map[int]LeaderStatus)
	wave := lastDecidedWave + 1

	for {
		leaderRound := c.leaderRoundOf(wave)
		leaderAuthor := c.leaderFor(wave)
		status := TryDirectDecide(c.dag, c.committee, leaderRound, leaderAuthor, c.waveLength)

		if !status.IsDecided() {
			status = c.tryIndirectFromHigher(wave, leaderRound, leaderAuthor, decided)
		}
		if !status.IsDecided() {
			break
		}
		decided[wave] = status
		wave++
	}

	var commits []*block.TrustedCommit
	waves := make([]int, 0, len(decided))
	for w := range decided {
		waves = append(waves, w)
	}
	sort.Ints(waves)

	for _, w := range waves {
		status := decided[w]
		if status.Kind != StatusCommit {
			metrics.LeadersSkippedTotal.Inc()
			continue
		}
		tc, err := c.commitLeader(status.Block)
		if err != nil {
			return nil, err
		}
		commits = append(commits, tc)
	}
	if len(waves) > 0 {
		c.lastWave = waves[len(waves)-1]
	}
	return commits, nil
}

// tryIndirectFromHigher looks for any wave strictly above wave that has
// already been decided (within this call's batch) and attempts to
// inherit a decision for wave from it.
func (c *Committer) tryIndirectFromHigher(wave int, leaderRound block.Round, leaderAuthor block.AuthorityIndex, decided map[int]LeaderStatus) LeaderStatus {
	higherWaves := make([]int, 0, len(decided))
	for w := range decided {
		if w > wave {
			higherWaves = append(higherWaves, w)
		}
	}
	sort.Ints(higherWaves)

	for _, w := range higherWaves {
		status := TryIndirectDecide(c.dag, leaderRound, leaderAuthor, decided[w])
		if status.IsDecided() {
			return status
		}
	}
	return Undecided(block.Slot{Round: leaderRound, Author: leaderAuthor})
}

// commitLeader linearizes leader's causal history not already claimed by
// an earlier commit, and builds the CommitV1 chained to the previous
// commit's digest.
func (c *Committer) commitLeader(leaderBlock *block.VerifiedBlock) (*block.TrustedCommit, error) {
	blocks, err := c.linearizeSubDag(leaderBlock)
	if err != nil {
		return nil, err
	}

	refs := make([]block.BlockRef, len(blocks))
	for i, b := range blocks {
		refs[i] = b.Reference()
	}

	commit := &block.CommitV1{
		CommitIndex_: c.nextCommitIdx,
		PrevDigest:   c.lastCommitted,
		LeaderRef:    leaderBlock.Reference(),
		BlockRefs:    refs,
	}
	trusted := block.NewTrustedCommit(commit)

	c.nextCommitIdx++
	c.lastCommitted = trusted.Digest()
	c.lastCommit = trusted
	for _, ref := range refs {
		c.committed[ref] = true
	}
	return trusted, nil
}

// linearizeSubDag walks leaderBlock's causal history with an explicit
// worklist (no recursion over the DAG's structure), excluding anything an
// earlier commit has already claimed, and returns the result ordered
// (round ascending, author ascending) so every honest replica linearizes
// an identical sequence from an identical sub-DAG.
func (c *Committer) linearizeSubDag(leaderBlock *block.VerifiedBlock) ([]*block.VerifiedBlock, error) {
	visited := map[block.BlockRef]bool{}
	var collected []*block.VerifiedBlock

	worklist := []block.BlockRef{leaderBlock.Reference()}
	visited[leaderBlock.Reference()] = true

	for len(worklist) > 0 {
		ref := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		if c.committed[ref] {
			continue
		}
		vb, ok := c.dag.Get(ref)
		if !ok {
			return nil, fmt.Errorf("%w: committer cannot find block %s referenced from causal history of leader %s", cerrors.ErrProtocolViolation, ref, leaderBlock.Reference())
		}
		collected = append(collected, vb)

		for _, parent := range vb.Ancestors() {
			if visited[parent] || c.committed[parent] {
				continue
			}
			visited[parent] = true
			worklist = append(worklist, parent)
		}
	}

	sort.Slice(collected, func(i, j int) bool {
		if collected[i].Round() != collected[j].Round() {
			return collected[i].Round() < collected[j].Round()
		}
		return collected[i].Author() < collected[j].Author()
	})
	return collected, nil
}

// LastCommit returns the most recently emitted commit, if any.
func (c *Committer) LastCommit() (*block.TrustedCommit, bool) {
	return c.lastCommit, c.lastCommit != nil
}
