package committer

import "github.com/cuemby/mysticonsensus/pkg/block"

// StatusKind discriminates the LeaderStatus sum type.
type StatusKind int

const (
	StatusUndecided StatusKind = iota
	StatusCommit
	StatusSkip
)

// LeaderStatus is a wave's outcome: the leader block committed, the slot
// skipped (no block, or one that could never gather a commit certificate),
// or undecided (not enough of the DAG has arrived yet to tell).
type LeaderStatus struct {
	Kind  StatusKind
	Block *block.VerifiedBlock // set iff Kind == StatusCommit
	Slot  block.Slot           // set iff Kind != StatusCommit
}

// Commit builds a StatusCommit outcome.
func Commit(b *block.VerifiedBlock) LeaderStatus {
	return LeaderStatus{Kind: StatusCommit, Block: b}
}

// Skip builds a StatusSkip outcome.
func Skip(slot block.Slot) LeaderStatus {
	return LeaderStatus{Kind: StatusSkip, Slot: slot}
}

// Undecided builds a StatusUndecided outcome.
func Undecided(slot block.Slot) LeaderStatus {
	return LeaderStatus{Kind: StatusUndecided, Slot: slot}
}

func (s LeaderStatus) IsDecided() bool {
	return s.Kind != StatusUndecided
}

// TryDirectDecide resolves leaderRound's wave purely from the DAG shape:
// a decision-round block certifies commit if a quorum (by stake) of its
// immediate, voting-round ancestors vote for the leader block, and
// certifies skip if a quorum of its ancestors do not. The wave is decided
// once a quorum of decision-round blocks (by stake) agree on the same
// certification; otherwise it is undecided.
func TryDirectDecide(dag *DAGState, committee block.Committee, leaderRound block.Round, leaderAuthority block.AuthorityIndex, waveLength int) LeaderStatus {
	slot := block.Slot{Round: leaderRound, Author: leaderAuthority}
	votingRound := leaderRound + 1
	decisionRound := leaderRound + block.Round(waveLength) - 1

	leaderBlocks := dag.BlocksAtSlot(slot)
	var leaderRef block.BlockRef
	haveLeader := len(leaderBlocks) > 0
	if haveLeader {
		leaderRef = leaderBlocks[0].Reference()
	}

	decisionBlocks := dag.BlocksAtRound(decisionRound)
	if len(decisionBlocks) == 0 {
		return Undecided(slot)
	}

	var commitStake, skipStake uint64
	for _, db := range decisionBlocks {
		votesForLeader, votesAgainst := tallyVotes(dag, db, leaderRef, haveLeader, votingRound, committee)
		if haveLeader && votesForLeader >= committee.QuorumThreshold() {
			commitStake += committee.StakeOf(db.Author())
		} else if votesAgainst >= committee.QuorumThreshold() {
			skipStake += committee.StakeOf(db.Author())
		}
	}

	switch {
	case commitStake >= committee.QuorumThreshold():
		return Commit(leaderBlocks[0])
	case skipStake >= committee.QuorumThreshold():
		return Skip(slot)
	default:
		return Undecided(slot)
	}
}

// tallyVotes sums, over db's immediate ancestors at votingRound, the
// stake of authorities that voted for the leader block versus those that
// did not.
func tallyVotes(dag *DAGState, db *block.VerifiedBlock, leaderRef block.BlockRef, haveLeader bool, votingRound block.Round, committee block.Committee) (forStake, againstStake uint64) {
	for _, ancestor := range db.Ancestors() {
		if ancestor.Round != votingRound {
			continue
		}
		votingBlock, ok := dag.Get(ancestor)
		if !ok {
			continue
		}
		votedForLeader := false
		if haveLeader {
			for _, a := range votingBlock.Ancestors() {
				if a == leaderRef {
					votedForLeader = true
					break
				}
			}
		}
		if votedForLeader {
			forStake += committee.StakeOf(ancestor.Author)
		} else {
			againstStake += committee.StakeOf(ancestor.Author)
		}
	}
	return forStake, againstStake
}

// TryIndirectDecide resolves leaderRound's wave by inheriting from the
// nearest higher round whose wave is already decided: if that decided
// commit's block causally references the leader slot, the slot is
// indirectly committed to the block occupying it; if the decided commit's
// causal history has moved past the slot without referencing it, the slot
// is indirectly skipped. A higher Skip carries no causal history to walk
// and is itself inherited unchanged.
func TryIndirectDecide(dag *DAGState, leaderRound block.Round, leaderAuthority block.AuthorityIndex, higherDecided LeaderStatus) LeaderStatus {
	slot := block.Slot{Round: leaderRound, Author: leaderAuthority}

	switch higherDecided.Kind {
	case StatusSkip:
		return Skip(slot)
	case StatusCommit:
		ref, found := dag.CausalHistoryContains(higherDecided.Block.Reference(), slot)
		if !found {
			return Skip(slot)
		}
		vb, ok := dag.Get(ref)
		if !ok {
			return Undecided(slot)
		}
		return Commit(vb)
	default:
		return Undecided(slot)
	}
}
