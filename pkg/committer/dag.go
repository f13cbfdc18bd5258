package committer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/cuemby/mysticonsensus/pkg/metrics"
)

// DAGState is the content-addressed view of every block the local
// authority has accepted, indexed for the lookups the committer needs:
// random access by BlockRef, enumeration by round, and bounded causal-
// history walks.
type DAGState struct {
	mu      sync.RWMutex
	blocks  map[block.BlockRef]*block.VerifiedBlock
	byRound map[block.Round][]*block.VerifiedBlock
}

// NewDAGState returns an empty DAG, ready to be seeded with genesis
// blocks via AddBlocks.
func NewDAGState() *DAGState {
	return &DAGState{
		blocks:  make(map[block.BlockRef]*block.VerifiedBlock),
		byRound: make(map[block.Round][]*block.VerifiedBlock),
	}
}

// AddBlocks inserts newly-accepted blocks, skipping ones already present
// (idempotent under duplicate delivery).
func (d *DAGState) AddBlocks(blocks []*block.VerifiedBlock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, vb := range blocks {
		ref := vb.Reference()
		if _, ok := d.blocks[ref]; ok {
			continue
		}
		d.blocks[ref] = vb
		d.byRound[ref.Round] = append(d.byRound[ref.Round], vb)
		metrics.BlocksTotal.WithLabelValues(fmt.Sprintf("%d", vb.Author())).Inc()
	}
}

// HighestRound returns the highest round holding at least one known
// block, or 0 for an empty DAG.
func (d *DAGState) HighestRound() block.Round {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var highest block.Round
	for round := range d.byRound {
		if round > highest {
			highest = round
		}
	}
	return highest
}

// AuthorCounts returns, per author, the number of blocks known from
// them across every round.
func (d *DAGState) AuthorCounts() map[block.AuthorityIndex]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	counts := make(map[block.AuthorityIndex]int)
	for _, vb := range d.blocks {
		counts[vb.Author()]++
	}
	return counts
}

// Get returns the block for ref, if known.
func (d *DAGState) Get(ref block.BlockRef) (*block.VerifiedBlock, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	vb, ok := d.blocks[ref]
	return vb, ok
}

// BlocksAtRound returns every known block at round, ordered by author.
func (d *DAGState) BlocksAtRound(round block.Round) []*block.VerifiedBlock {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*block.VerifiedBlock, len(d.byRound[round]))
	copy(out, d.byRound[round])
	sort.Slice(out, func(i, j int) bool { return out[i].Author() < out[j].Author() })
	return out
}

// BlocksAtSlot returns every known block occupying slot. Absent
// equivocation there is at most one.
func (d *DAGState) BlocksAtSlot(slot block.Slot) []*block.VerifiedBlock {
	var out []*block.VerifiedBlock
	for _, vb := range d.BlocksAtRound(slot.Round) {
		if vb.Author() == slot.Author {
			out = append(out, vb)
		}
	}
	return out
}

// VotesFor returns the blocks at votingRound that directly reference ref
// as an ancestor — i.e. that "vote for" the block at ref.
func (d *DAGState) VotesFor(ref block.BlockRef, votingRound block.Round) []*block.VerifiedBlock {
	var votes []*block.VerifiedBlock
	for _, vb := range d.BlocksAtRound(votingRound) {
		for _, a := range vb.Ancestors() {
			if a == ref {
				votes = append(votes, vb)
				break
			}
		}
	}
	return votes
}

// CausalHistoryContains walks back from from's ancestors, round by round,
// looking for any block occupying target. The walk is an explicit
// worklist over BlockRefs bounded below by target.Round — no recursion,
// so a deep or wide DAG cannot blow the stack.
func (d *DAGState) CausalHistoryContains(from block.BlockRef, target block.Slot) (block.BlockRef, bool) {
	visited := map[block.BlockRef]bool{from: true}
	worklist := []block.BlockRef{from}

	for len(worklist) > 0 {
		ref := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		if ref.Round == target.Round && ref.Author == target.Author {
			return ref, true
		}
		if ref.Round <= target.Round {
			continue
		}
		vb, ok := d.Get(ref)
		if !ok {
			continue
		}
		for _, parent := range vb.Ancestors() {
			if parent.Round < target.Round {
				continue
			}
			if visited[parent] {
				continue
			}
			visited[parent] = true
			worklist = append(worklist, parent)
		}
	}
	return block.BlockRef{}, false
}
