/*
Package metrics defines and registers every Prometheus metric exported
by a consensus node, plus the HTTP handlers serving /metrics, /health,
/ready, and /live.

# Architecture

	┌──────────────── METRICS SYSTEM ────────────────┐
	│                                                  │
	│  Consensus: blocks_total, current_round,        │
	│    last_commit_index, leaders_committed_total,  │
	│    leaders_skipped_total, leader_swaps_total,   │
	│    commit_latency_seconds                       │
	│                                                  │
	│  Execution: transactions_total, out_of_gas,     │
	│    storage_rebate_paid, transaction_duration     │
	│                                                  │
	│  Cache: pending_outputs, commits_total,         │
	│    evictions_total                               │
	│                                                  │
	│  Accumulator: inserts_total, removes_total      │
	│                                                  │
	│  Ingestion: checkpoints_fetched_total,          │
	│    checkpoints_delivered_total, retries_total,  │
	│    buffer_depth                                  │
	│                                                  │
	└──────────────────────────────────────────────────┘

Counters are incremented inline at the call site of the event they
count (a block accepted, a leader decided, a checkpoint fetched).
Gauges reflecting aggregate state (current round, cache depth,
ingestion buffer depth) are instead sampled periodically by Collector,
since polling a running node's in-memory structures is cheaper than
threading an increment through every mutation site.

# Health

RegisterComponent and UpdateComponent track named subsystems
(blockstore, commitlog, objectcache, ingestion) independently of the
Prometheus counters; HealthHandler reports each component's status,
ReadyHandler reports overall readiness, and LivenessHandler is a bare
liveness probe that never depends on component state.
*/
package metrics
