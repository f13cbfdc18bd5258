package leader

import (
	"math/rand"
	"sort"

	"github.com/cuemby/mysticonsensus/pkg/block"
)

// ElectionStrategy picks the base leader for a round, before any swap
// table override is applied. offset selects the 2nd, 3rd, ... candidate
// for a round whose primary leader has already been ruled out.
type ElectionStrategy interface {
	ElectLeader(round block.Round, offset int) block.AuthorityIndex
}

// RoundRobinSchedule is the deterministic, stake-blind schedule used by
// tests: leader(round, offset) = (round+offset) mod N.
type RoundRobinSchedule struct {
	NumAuthorities int
}

func (s RoundRobinSchedule) ElectLeader(round block.Round, offset int) block.AuthorityIndex {
	n := s.NumAuthorities
	if n <= 0 {
		return 0
	}
	return block.AuthorityIndex((int(round) + offset) % n)
}

// StakeWeightedSchedule picks the leader by seeding a PRNG with the round
// number (deterministic across replicas, no cryptographic strength
// required: every honest authority computes the same value from public
// inputs) and walking a stake-weighted permutation built from a one-time
// cumulative-stake prefix-sum table.
type StakeWeightedSchedule struct {
	committee block.Committee
	prefixSum []uint64
}

// NewStakeWeightedSchedule precomputes the committee's cumulative-stake
// table once, so ElectLeader only pays for a binary search per call.
func NewStakeWeightedSchedule(committee block.Committee) *StakeWeightedSchedule {
	prefix := make([]uint64, len(committee.Authorities))
	var running uint64
	for i, a := range committee.Authorities {
		running += a.Stake
		prefix[i] = running
	}
	return &StakeWeightedSchedule{committee: committee, prefixSum: prefix}
}

func (s *StakeWeightedSchedule) ElectLeader(round block.Round, offset int) block.AuthorityIndex {
	n := len(s.committee.Authorities)
	if n == 0 {
		return 0
	}
	rng := rand.New(rand.NewSource(int64(round)))

	excluded := make(map[block.AuthorityIndex]bool, offset)
	leader := block.AuthorityIndex(0)
	for i := 0; i <= offset; i++ {
		leader = s.pick(rng, excluded)
		excluded[leader] = true
	}
	return leader
}

// pick draws one authority from the stake-weighted distribution over
// {authorities} \ excluded, using rejection sampling against the
// precomputed prefix sum (cheap in practice: committees are small and
// offsets rarely exceed a handful of exclusions).
func (s *StakeWeightedSchedule) pick(rng *rand.Rand, excluded map[block.AuthorityIndex]bool) block.AuthorityIndex {
	total := s.prefixSum[len(s.prefixSum)-1]
	for {
		target := uint64(rng.Int63n(int64(total))) + 1
		idx := sort.Search(len(s.prefixSum), func(i int) bool { return s.prefixSum[i] >= target })
		candidate := block.AuthorityIndex(idx)
		if !excluded[candidate] {
			return candidate
		}
	}
}
