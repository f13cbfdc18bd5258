package metrics

import (
	"time"

	"github.com/cuemby/mysticonsensus/pkg/block"
)

// depthReporter is the subset of *ingestion.Regulator the collector
// polls. Declared here instead of importing pkg/ingestion keeps this
// package from depending on the regulator's full surface.
type depthReporter interface {
	PendingDepth() int
}

// roundReporter is the subset of *committer.DAGState the collector
// polls. Declared here instead of importing pkg/committer avoids an
// import cycle, since pkg/committer imports pkg/metrics to report
// counters.
type roundReporter interface {
	HighestRound() block.Round
}

// pendingCounter is the subset of *objectcache.Cache the collector
// polls. Declared here instead of importing pkg/objectcache avoids an
// import cycle, since pkg/objectcache imports pkg/metrics to report
// counters.
type pendingCounter interface {
	PendingCount() int
}

// Collector periodically samples a running node's in-memory state into
// the gauges exported on /metrics. Counters are incremented inline at
// their call sites elsewhere; Collector only owns gauges that reflect
// current state rather than cumulative events.
type Collector struct {
	dag       roundReporter
	cache     pendingCounter
	ingestion depthReporter

	stopCh chan struct{}
}

// NewCollector builds a Collector polling dag, cache, and (if non-nil)
// ingestion every 15 seconds. ingestion may be nil for a node with no
// ingestion source configured.
func NewCollector(dag roundReporter, cache pendingCounter, ingestion depthReporter) *Collector {
	return &Collector{
		dag:       dag,
		cache:     cache,
		ingestion: ingestion,
		stopCh:    make(chan struct{}),
	}
}

// Start begins polling in the background.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop ends the polling loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectConsensusMetrics()
	c.collectCacheMetrics()
	c.collectIngestionMetrics()
}

func (c *Collector) collectConsensusMetrics() {
	if c.dag == nil {
		return
	}
	CurrentRound.Set(float64(c.dag.HighestRound()))
}

func (c *Collector) collectCacheMetrics() {
	if c.cache == nil {
		return
	}
	CacheObjectsPending.Set(float64(c.cache.PendingCount()))
}

func (c *Collector) collectIngestionMetrics() {
	if c.ingestion == nil {
		return
	}
	IngestBufferDepth.Set(float64(c.ingestion.PendingDepth()))
}
