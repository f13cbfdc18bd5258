package commitlog

import (
	"fmt"
	"time"

	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/cuemby/mysticonsensus/pkg/blockstore"
	"github.com/cuemby/mysticonsensus/pkg/cerrors"
)

// CommittedSubDag is the wire shape delivered to a consumer: a committed
// leader, its linearized sub-DAG, the leader's wall-clock timestamp, and
// the commit index it was produced at.
type CommittedSubDag struct {
	Leader          block.BlockRef
	Blocks          []*block.VerifiedBlock
	LeaderTimestamp time.Time
	CommitIndex     block.CommitIndex
}

// CommitConsumer is a downstream subscriber's position in the commit log
// and the channel sub-DAGs are streamed to.
type CommitConsumer struct {
	Sender              chan<- *CommittedSubDag
	LastProcessedRound  block.Round
	LastProcessedIndex  block.CommitIndex
}

// Producer replays a Log to CommitConsumers.
type Producer struct {
	log    Log
	blocks blockstore.Store
}

// NewProducer builds a Producer reading commits from log and resolving
// each commit's block refs against blocks.
func NewProducer(log Log, blocks blockstore.Store) *Producer {
	return &Producer{log: log, blocks: blocks}
}

// Replay streams every commit strictly after consumer.LastProcessedIndex,
// in commit-index order, blocking on consumer.Sender as needed (the
// consumer's channel, not an unbounded internal queue, provides back-
// pressure). If LastProcessedIndex is 0 and commit 1 has been pruned from
// the log, Replay refuses to start rather than silently skipping ahead to
// whatever the log's earliest surviving commit happens to be — a silent
// skip would violate the gap-free invariant from the consumer's point of
// view.
func (p *Producer) Replay(consumer *CommitConsumer) error {
	commits, err := p.log.ReadAfter(consumer.LastProcessedIndex)
	if err != nil {
		return fmt.Errorf("read commits after %d: %w", consumer.LastProcessedIndex, err)
	}

	if consumer.LastProcessedIndex == 0 && len(commits) > 0 && commits[0].Commit().Index() != 1 {
		return fmt.Errorf("%w: commit 1 has been pruned and LastProcessedIndex is 0; refusing to start to avoid silently skipping ahead", cerrors.ErrProtocolViolation)
	}

	for _, tc := range commits {
		subDag, err := p.resolve(tc)
		if err != nil {
			return err
		}
		consumer.Sender <- subDag
		consumer.LastProcessedIndex = tc.Commit().Index()
		if len(subDag.Blocks) > 0 {
			consumer.LastProcessedRound = subDag.Blocks[len(subDag.Blocks)-1].Round()
		}
	}
	return nil
}

func (p *Producer) resolve(tc *block.TrustedCommit) (*CommittedSubDag, error) {
	refs := tc.Commit().Blocks()
	resolved := make([]*block.VerifiedBlock, 0, len(refs))
	var leaderTimestamp time.Time
	for _, ref := range refs {
		vb, ok, err := p.blocks.ReadBlock(ref)
		if err != nil {
			return nil, fmt.Errorf("resolve commit %d block %s: %w", tc.Commit().Index(), ref, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: commit %d references block %s which is missing from the block store", cerrors.ErrProtocolViolation, tc.Commit().Index(), ref)
		}
		resolved = append(resolved, vb)
		if ref == tc.Commit().Leader() {
			leaderTimestamp = vb.Timestamp()
		}
	}

	return &CommittedSubDag{
		Leader:          tc.Commit().Leader(),
		Blocks:          resolved,
		LeaderTimestamp: leaderTimestamp,
		CommitIndex:     tc.Commit().Index(),
	}, nil
}
