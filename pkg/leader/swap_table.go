package leader

import (
	"math/rand"
	"sort"
	"sync/atomic"

	"github.com/cuemby/mysticonsensus/pkg/block"
)

// ReputationScores accumulates, once per commits_per_schedule commits, how
// many blocks from each authority ended up inside a committed sub-DAG.
// BuildSwapTable consumes the scores to seed the next window's table.
type ReputationScores struct {
	Scores      []uint64
	CommitRange [2]block.CommitIndex
}

// LeaderSwapTable partitions the committee, by reputation, into a
// good_nodes pool (candidates for swap-in when a leader slot is bad) and a
// bad_nodes pool (authorities routed around), plus the commit range the
// partition was computed from.
type LeaderSwapTable struct {
	GoodNodes map[block.AuthorityIndex]bool
	BadNodes  map[block.AuthorityIndex]bool
	LowIndex  block.CommitIndex
	HighIndex block.CommitIndex
}

// BuildSwapTable sorts authorities by score descending, ties broken by
// ascending AuthorityIndex, then grows good_nodes from the front and
// bad_nodes from the back of that same descending-sorted order while
// cumulative stake on each side stays strictly below threshold percent of
// total committee stake.
func BuildSwapTable(committee block.Committee, scores ReputationScores, threshold int) *LeaderSwapTable {
	n := len(committee.Authorities)
	order := make([]block.AuthorityIndex, n)
	for i := range order {
		order[i] = block.AuthorityIndex(i)
	}
	sort.Slice(order, func(i, j int) bool {
		si, sj := scoreOf(scores, order[i]), scoreOf(scores, order[j])
		if si != sj {
			return si > sj
		}
		return order[i] < order[j]
	})

	totalStake := committee.TotalStake()
	stakeCap := uint64(threshold) * totalStake / 100

	good := make(map[block.AuthorityIndex]bool)
	bad := make(map[block.AuthorityIndex]bool)

	var goodStake, badStake uint64
	for i := 0; i < n; i++ {
		a := order[i]
		stake := committee.StakeOf(a)
		if goodStake+stake >= stakeCap {
			break
		}
		good[a] = true
		goodStake += stake
	}
	for i := n - 1; i >= 0; i-- {
		a := order[i]
		if good[a] {
			continue
		}
		stake := committee.StakeOf(a)
		if badStake+stake >= stakeCap {
			break
		}
		bad[a] = true
		badStake += stake
	}

	return &LeaderSwapTable{
		GoodNodes: good,
		BadNodes:  bad,
		LowIndex:  scores.CommitRange[0],
		HighIndex: scores.CommitRange[1],
	}
}

func scoreOf(scores ReputationScores, a block.AuthorityIndex) uint64 {
	if int(a) < 0 || int(a) >= len(scores.Scores) {
		return 0
	}
	return scores.Scores[a]
}

// AtomicSwapTable holds the current LeaderSwapTable behind an
// atomic.Pointer so readers never block on a rebuild in progress: Store
// publishes a new table with a single atomic write, Swap reads it with a
// single atomic load.
type AtomicSwapTable struct {
	table atomic.Pointer[LeaderSwapTable]
}

// Store atomically publishes the next window's swap table.
func (a *AtomicSwapTable) Store(next *LeaderSwapTable) {
	a.table.Store(next)
}

// Load returns the currently published swap table, or nil if none has
// been built yet.
func (a *AtomicSwapTable) Load() *LeaderSwapTable {
	return a.table.Load()
}

// Swap returns (replacement, true) if leader is in the current table's
// bad_nodes pool, picking uniformly among good_nodes using a PRNG seeded
// with round for determinism across replicas. It returns (0, false) when
// no table has been published yet or leader is not in bad_nodes.
func (a *AtomicSwapTable) Swap(leader block.AuthorityIndex, round block.Round) (block.AuthorityIndex, bool) {
	table := a.table.Load()
	if table == nil || !table.BadNodes[leader] {
		return 0, false
	}
	if len(table.GoodNodes) == 0 {
		return 0, false
	}
	candidates := make([]block.AuthorityIndex, 0, len(table.GoodNodes))
	for candidate := range table.GoodNodes {
		candidates = append(candidates, candidate)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	rng := rand.New(rand.NewSource(int64(round)))
	return candidates[rng.Intn(len(candidates))], true
}
