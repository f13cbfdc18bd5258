package node

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/cuemby/mysticonsensus/pkg/config"
	"github.com/cuemby/mysticonsensus/pkg/ingestion"
	"github.com/cuemby/mysticonsensus/pkg/types"
	"github.com/stretchr/testify/require"
)

func testCommittee() block.Committee {
	return block.NewCommittee([]block.Authority{
		{Stake: 1}, {Stake: 1}, {Stake: 1}, {Stake: 1},
	})
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.CommitteeSize = 4
	return cfg
}

func TestNewWiresBackingStoreAndCache(t *testing.T) {
	n, err := New(testConfig(t), 0, testCommittee(), nil)
	require.NoError(t, err)
	require.NotNil(t, n.Cache())
	require.NotNil(t, n.ObjectStore())
	require.NoError(t, n.Stop())
}

func TestTryCommitReturnsNothingBeforeAnyRoundIsDecided(t *testing.T) {
	n, err := New(testConfig(t), 0, testCommittee(), nil)
	require.NoError(t, err)
	defer n.Stop()

	commits, err := n.TryCommit()
	require.NoError(t, err)
	require.Empty(t, commits)
	require.Equal(t, -1, n.comm.LastDecidedWave())
}

func TestAccumulateCheckpointAndEpochRootIsStableAcrossCalls(t *testing.T) {
	n, err := New(testConfig(t), 0, testCommittee(), nil)
	require.NoError(t, err)
	defer n.Stop()

	created := []types.ObjectRef{{ID: types.ObjectID{1}, Version: 1, Digest: types.ObjectDigest{1}}}
	n.AccumulateCheckpoint(1, created, nil, nil)

	first := n.EpochRoot(1)
	second := n.EpochRoot(1)
	require.Equal(t, first, second, "EpochRoot must return the stored root rather than re-accumulating")
}

type staticSource struct {
	head uint64
}

func (s *staticSource) FetchCheckpoint(ctx context.Context, seq uint64) (*ingestion.Checkpoint, error) {
	return &ingestion.Checkpoint{Sequence: seq}, nil
}

func TestStartLaunchesIngestionRegulatorAndStopTerminatesIt(t *testing.T) {
	cfg := testConfig(t)
	cfg.CheckpointBufferSize = 2
	cfg.IngestConcurrency = 2

	src := &staticSource{head: 3}
	n, err := New(cfg, 0, testCommittee(), &IngestionSource{
		Source:   src,
		Head:     func() uint64 { return src.head },
		StartSeq: 1,
	})
	require.NoError(t, err)

	delivered := make(chan *ingestion.Checkpoint, 10)
	n.regulator.Subscribe(&ingestion.Subscriber{Ch: delivered})

	require.NoError(t, n.Start(context.Background()))

	select {
	case cp := <-delivered:
		require.Equal(t, uint64(1), cp.Sequence)
	case <-time.After(time.Second):
		t.Fatal("checkpoint never delivered")
	}

	require.NoError(t, n.Stop())
}
