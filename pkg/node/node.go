package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/mysticonsensus/pkg/accumulator"
	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/cuemby/mysticonsensus/pkg/blockstore"
	"github.com/cuemby/mysticonsensus/pkg/commitlog"
	"github.com/cuemby/mysticonsensus/pkg/committer"
	"github.com/cuemby/mysticonsensus/pkg/config"
	"github.com/cuemby/mysticonsensus/pkg/events"
	"github.com/cuemby/mysticonsensus/pkg/ingestion"
	"github.com/cuemby/mysticonsensus/pkg/leader"
	"github.com/cuemby/mysticonsensus/pkg/log"
	"github.com/cuemby/mysticonsensus/pkg/metrics"
	"github.com/cuemby/mysticonsensus/pkg/objectcache"
	"github.com/cuemby/mysticonsensus/pkg/storage"
	"github.com/cuemby/mysticonsensus/pkg/types"
)

// IngestionSource wires an optional ingestion.Source into a Node. Head
// reports the highest sequence number currently known to exist at the
// source; a Node built without an IngestionSource never starts a
// regulator and exposes no checkpoint stream.
type IngestionSource struct {
	Source   ingestion.Source
	Head     func() uint64
	StartSeq uint64
}

// Node owns one authority's local view of the shared DAG: the bbolt
// database backing its block, commit, and object stores, the DAG
// committer and its leader schedule, the write-back object cache, the
// epoch state accumulator, and (optionally) the ingestion regulator.
//
// Node plays the role the teacher's pkg/manager.Manager plays for a
// raft-backed cluster, minus cluster membership: New opens storage,
// Start launches the background loops, and Stop shuts them down and
// closes the database.
type Node struct {
	cfg       config.Config
	authority block.AuthorityIndex
	committee block.Committee

	objectStore *storage.BoltObjectStore
	blockStore  *blockstore.BoltBlockStore

	dag       *committer.DAGState
	schedule  leader.ElectionStrategy
	swapTable *leader.AtomicSwapTable

	commitLog commitlog.Log
	producer  *commitlog.Producer

	cache *objectcache.Cache
	broker *events.Broker

	regulator  *ingestion.Regulator
	ingestHead func() uint64
	ingestFrom uint64

	consensusMu sync.Mutex
	comm        *committer.Committer

	accMu             sync.Mutex
	epochCheckpoints  map[uint64][]*accumulator.Accumulator
	epochRoots        map[uint64]*accumulator.Accumulator

	cancelIngestion context.CancelFunc
	wg              sync.WaitGroup
	collector       *metrics.Collector
}

// New builds a Node over cfg: it opens (or creates) the bbolt database
// at cfg.DataDir, seeds the DAG with genesis blocks for committee, and
// wires every consensus and execution component against it. authority
// is this process's own index into committee. ingest, if non-nil,
// configures the ingestion regulator.
func New(cfg config.Config, authority block.AuthorityIndex, committee block.Committee, ingest *IngestionSource) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	objectStore, err := storage.NewBoltObjectStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	blockStore := objectStore.BlockStore()

	dag := committer.NewDAGState()
	genesis, err := block.GenesisBlocks(committee.Size())
	if err != nil {
		objectStore.Close()
		return nil, fmt.Errorf("build genesis blocks: %w", err)
	}
	dag.AddBlocks(genesis)

	schedule := leader.NewStakeWeightedSchedule(committee)
	swapTable := &leader.AtomicSwapTable{}
	comm := committer.NewCommitter(cfg.WaveLength, committee, dag, schedule, swapTable)

	commitLog := commitlog.NewLog(blockStore)
	producer := commitlog.NewProducer(commitLog, blockStore)

	cache := objectcache.NewCache(objectStore)
	broker := events.NewBroker()

	n := &Node{
		cfg:              cfg,
		authority:        authority,
		committee:        committee,
		objectStore:      objectStore,
		blockStore:       blockStore,
		dag:              dag,
		schedule:         schedule,
		swapTable:        swapTable,
		comm:             comm,
		commitLog:        commitLog,
		producer:         producer,
		cache:            cache,
		broker:           broker,
		epochCheckpoints: make(map[uint64][]*accumulator.Accumulator),
		epochRoots:       make(map[uint64]*accumulator.Accumulator),
	}

	if ingest != nil && ingest.Source != nil {
		n.regulator = ingestion.NewRegulator(ingest.Source, cfg.CheckpointBufferSize, cfg.IngestConcurrency, time.Duration(cfg.RetryIntervalMS)*time.Millisecond, broker)
		n.ingestHead = ingest.Head
		n.ingestFrom = ingest.StartSeq
	}

	return n, nil
}

// Start registers health components, starts the event broker, and, if
// an ingestion source was configured, launches the regulator in the
// background.
func (n *Node) Start(ctx context.Context) error {
	metrics.RegisterComponent("blockstore", true, "ready")
	metrics.RegisterComponent("commitlog", true, "ready")
	metrics.RegisterComponent("objectcache", true, "ready")

	n.broker.Start()

	var depthReporter interface{ PendingDepth() int }
	if n.regulator != nil {
		depthReporter = n.regulator

		ictx, cancel := context.WithCancel(ctx)
		n.cancelIngestion = cancel
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.regulator.Run(ictx, n.ingestFrom, n.ingestHead); err != nil {
				log.Errorf("ingestion regulator stopped", err)
				metrics.UpdateComponent("ingestion", false, err.Error())
			}
		}()
		metrics.RegisterComponent("ingestion", true, "running")
	}

	n.collector = metrics.NewCollector(n.dag, n.cache, depthReporter)
	n.collector.Start()

	log.Info("node started")
	return nil
}

// Stop cancels the ingestion regulator, waits for its goroutine to
// return, stops the event broker, and closes the backing database.
func (n *Node) Stop() error {
	if n.cancelIngestion != nil {
		n.cancelIngestion()
	}
	n.wg.Wait()
	if n.collector != nil {
		n.collector.Stop()
	}
	n.broker.Stop()
	log.Info("node stopped")
	return n.objectStore.Close()
}

// Cache returns the write-back object cache sitting in front of the
// backing object store.
func (n *Node) Cache() *objectcache.Cache {
	return n.cache
}

// ObjectStore returns the durable backing store under the cache.
func (n *Node) ObjectStore() *storage.BoltObjectStore {
	return n.objectStore
}

// Events returns the broker other components publish consensus and
// ingestion notices to.
func (n *Node) Events() *events.Broker {
	return n.broker
}

// BlockStore returns the block/commit store shared by the commit log
// and the committer's DAG, for inspection tooling.
func (n *Node) BlockStore() *blockstore.BoltBlockStore {
	return n.blockStore
}

// CommitLog returns the append-only commit log.
func (n *Node) CommitLog() commitlog.Log {
	return n.commitLog
}

// DAG returns the in-memory DAG state the committer decides over.
func (n *Node) DAG() *committer.DAGState {
	return n.dag
}

// Regulator returns the ingestion regulator, or nil if this Node was
// built without an ingestion source.
func (n *Node) Regulator() *ingestion.Regulator {
	return n.regulator
}

// AddBlocks admits newly received or locally proposed blocks into the
// DAG, ahead of the next TryCommit call.
func (n *Node) AddBlocks(blocks []*block.VerifiedBlock) {
	n.dag.AddBlocks(blocks)
}

// TryCommit advances the committer as far as the current DAG allows,
// appending every newly decided commit to the commit log in order and
// updating commit/leader metrics. It is safe to call repeatedly as the
// DAG grows; calls are serialized against each other.
func (n *Node) TryCommit() ([]*block.TrustedCommit, error) {
	n.consensusMu.Lock()
	defer n.consensusMu.Unlock()

	commits, err := n.comm.TryCommit(n.comm.LastDecidedWave())
	if err != nil {
		return nil, err
	}
	for _, tc := range commits {
		if err := n.commitLog.Append(tc); err != nil {
			return nil, fmt.Errorf("append commit %d: %w", tc.Commit().Index(), err)
		}
		metrics.CommitIndexGauge.Set(float64(tc.Commit().Index()))
		metrics.LeadersCommittedTotal.Inc()
	}
	return commits, nil
}

// SwapTable exposes the committer's swap table so a reputation-scoring
// loop can publish a freshly built LeaderSwapTable every
// cfg.CommitsPerSchedule commits.
func (n *Node) SwapTable() *leader.AtomicSwapTable {
	return n.swapTable
}

// Replay drives consumer over every commit the log holds past its
// current position, resolving each into a CommittedSubDag.
func (n *Node) Replay(consumer *commitlog.CommitConsumer) error {
	return n.producer.Replay(consumer)
}

// AccumulateCheckpoint folds one checkpoint's object deltas into epoch's
// running set of checkpoint accumulators and returns the checkpoint's
// own accumulator digest.
func (n *Node) AccumulateCheckpoint(epoch uint64, created, mutated, deleted []types.ObjectRef) [32]byte {
	acc := accumulator.AccumulateCheckpoint(created, mutated, deleted)
	n.RecordCheckpointAccumulator(epoch, acc)
	metrics.AccumulatorInsertsTotal.Add(float64(len(created) + len(mutated)))
	metrics.AccumulatorRemovesTotal.Add(float64(len(deleted)))
	return acc.Digest()
}

// EpochRoot unions every checkpoint accumulator recorded for epoch into
// a single root digest, returning a previously computed root unchanged
// rather than re-accumulating.
func (n *Node) EpochRoot(epoch uint64) [32]byte {
	n.accMu.Lock()
	defer n.accMu.Unlock()

	root := accumulator.UnionEpoch(n.epochCheckpoints[epoch], func() (*accumulator.Accumulator, bool) {
		stored, ok := n.epochRoots[epoch]
		return stored, ok
	})
	n.epochRoots[epoch] = root
	return root.Digest()
}

// RecordCheckpointAccumulator appends a checkpoint's already-computed
// accumulator to epoch's running set, invalidating any previously
// computed root for that epoch.
func (n *Node) RecordCheckpointAccumulator(epoch uint64, acc *accumulator.Accumulator) {
	n.accMu.Lock()
	defer n.accMu.Unlock()
	n.epochCheckpoints[epoch] = append(n.epochCheckpoints[epoch], acc)
	delete(n.epochRoots, epoch)
}
