package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Consensus core metrics
	BlocksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consensus_blocks_total",
			Help: "Total number of blocks accepted into the DAG by author",
		},
		[]string{"author"},
	)

	CurrentRound = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "consensus_current_round",
			Help: "Highest round observed by this node's DAG state",
		},
	)

	CommitIndexGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "consensus_last_commit_index",
			Help: "Index of the last appended commit",
		},
	)

	LeadersCommittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "consensus_leaders_committed_total",
			Help: "Total number of leader slots resolved as Commit",
		},
	)

	LeadersSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "consensus_leaders_skipped_total",
			Help: "Total number of leader slots resolved as Skip",
		},
	)

	LeaderSwapsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "consensus_leader_swaps_total",
			Help: "Total number of times a scheduled leader was replaced by the swap table",
		},
	)

	CommitLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "consensus_commit_latency_seconds",
			Help:    "Time from leader round creation to commit decision",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Execution metrics
	TransactionsExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exec_transactions_total",
			Help: "Total number of transactions executed by status",
		},
		[]string{"status"},
	)

	ExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exec_transaction_duration_seconds",
			Help:    "Time taken to execute a single transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutOfGasTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exec_out_of_gas_total",
			Help: "Total number of transactions that hit the OOG recovery path",
		},
	)

	StorageRebatePaid = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exec_storage_rebate_paid_total",
			Help: "Cumulative storage rebate credited back to senders",
		},
	)

	// Object cache metrics
	CacheObjectsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_pending_outputs",
			Help: "Number of transaction outputs held in the pending tier",
		},
	)

	CacheCommitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_commits_total",
			Help: "Total number of transaction outputs promoted to the committed tier",
		},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of committed-tier eviction sweeps",
		},
	)

	// State accumulator metrics
	AccumulatorInsertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "accumulator_inserts_total",
			Help: "Total number of object digests inserted into the multiset hash",
		},
	)

	AccumulatorRemovesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "accumulator_removes_total",
			Help: "Total number of object digests removed from the multiset hash",
		},
	)

	// Ingestion metrics
	CheckpointsFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_checkpoints_fetched_total",
			Help: "Total number of checkpoints successfully fetched from the source",
		},
	)

	CheckpointsDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_checkpoints_delivered_total",
			Help: "Total number of checkpoints delivered to subscribers",
		},
		[]string{"subscriber"},
	)

	IngestRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_retries_total",
			Help: "Total number of retried checkpoint fetches",
		},
	)

	IngestBufferDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_buffer_depth",
			Help: "Number of fetched checkpoints awaiting in-order delivery",
		},
	)
)

func init() {
	prometheus.MustRegister(BlocksTotal)
	prometheus.MustRegister(CurrentRound)
	prometheus.MustRegister(CommitIndexGauge)
	prometheus.MustRegister(LeadersCommittedTotal)
	prometheus.MustRegister(LeadersSkippedTotal)
	prometheus.MustRegister(LeaderSwapsTotal)
	prometheus.MustRegister(CommitLatency)

	prometheus.MustRegister(TransactionsExecutedTotal)
	prometheus.MustRegister(ExecutionDuration)
	prometheus.MustRegister(OutOfGasTotal)
	prometheus.MustRegister(StorageRebatePaid)

	prometheus.MustRegister(CacheObjectsPending)
	prometheus.MustRegister(CacheCommitsTotal)
	prometheus.MustRegister(CacheEvictionsTotal)

	prometheus.MustRegister(AccumulatorInsertsTotal)
	prometheus.MustRegister(AccumulatorRemovesTotal)

	prometheus.MustRegister(CheckpointsFetchedTotal)
	prometheus.MustRegister(CheckpointsDeliveredTotal)
	prometheus.MustRegister(IngestRetriesTotal)
	prometheus.MustRegister(IngestBufferDepth)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
