package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/mysticonsensus/pkg/cerrors"
	"github.com/cuemby/mysticonsensus/pkg/events"
	"github.com/cuemby/mysticonsensus/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Subscriber receives delivered checkpoints in sequence order on Ch. An
// optional Watermark channel reports back how far the subscriber has
// processed, capping the regulator's lookahead; a nil Watermark imposes
// no cap beyond Regulator.bufferSize.
type Subscriber struct {
	Ch        chan<- *Checkpoint
	Watermark <-chan uint64
}

// Regulator fetches checkpoints from a Source concurrency-wide, reorders
// them back into sequence, and fans them out to subscribers.
type Regulator struct {
	source        Source
	bufferSize    int
	concurrency   int
	retryInterval time.Duration
	broker        *events.Broker

	mu          sync.RWMutex
	subscribers []*Subscriber
	watermarks  map[*Subscriber]uint64

	depth atomic.Int64
}

// PendingDepth returns the number of checkpoints Run currently holds
// fetched but not yet delivered, for metrics polling.
func (r *Regulator) PendingDepth() int {
	return int(r.depth.Load())
}

// NewRegulator builds a Regulator pulling from source, fetching up to
// concurrency checkpoints at once, never buffering more than bufferSize
// ahead of the slowest subscriber, retrying ErrTransient failures at
// retryInterval, and publishing delivery/shutdown notices on broker.
func NewRegulator(source Source, bufferSize, concurrency int, retryInterval time.Duration, broker *events.Broker) *Regulator {
	return &Regulator{
		source:        source,
		bufferSize:    bufferSize,
		concurrency:   concurrency,
		retryInterval: retryInterval,
		broker:        broker,
		watermarks:    make(map[*Subscriber]uint64),
	}
}

// Subscribe registers sub to receive delivered checkpoints starting from
// the next Run call.
func (r *Regulator) Subscribe(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, sub)
}

type fetchResult struct {
	seq uint64
	cp  *Checkpoint
}

// Run drives ingestion from startSeq until the context is cancelled, a
// subscriber closes its channel, an unrecoverable fetch error occurs, or
// every checkpoint up to sourceHead() has been delivered.
// sourceHead reports the highest sequence number currently known to
// exist at the source. A subscriber-initiated or parent-context
// cancellation returns nil after publishing an ingestion.shutdown event;
// reaching the source head returns nil without publishing one; any other
// failure is returned as-is.
func (r *Regulator) Run(ctx context.Context, startSeq uint64, sourceHead func() uint64) error {
	cctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	nextFetch := startSeq
	nextDeliver := startSeq
	pending := make(map[uint64]*Checkpoint)

	for {
		r.absorbWatermarks()

		limit := r.lookaheadCap(nextDeliver)
		if head := sourceHead(); head < limit {
			limit = head
		}

		if nextFetch > limit {
			if sourceHead() < nextDeliver {
				return nil
			}
			select {
			case <-time.After(r.retryInterval):
				continue
			case <-cctx.Done():
				return r.finish(cctx)
			}
		}

		batchEnd := limit
		if batchEnd-nextFetch+1 > uint64(r.concurrency) {
			batchEnd = nextFetch + uint64(r.concurrency) - 1
		}

		results, err := r.fetchBatch(cctx, nextFetch, batchEnd)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return r.finish(cctx)
			}
			return err
		}
		for _, res := range results {
			pending[res.seq] = res.cp
		}
		nextFetch = batchEnd + 1
		r.depth.Store(int64(len(pending)))

		for {
			cp, ok := pending[nextDeliver]
			if !ok {
				break
			}
			delete(pending, nextDeliver)
			r.depth.Store(int64(len(pending)))
			if closed := r.deliverToSubscribers(cp); closed {
				cancel(cerrors.ErrCancelled)
				return r.finish(cctx)
			}
			r.publishDelivered(cp)
			nextDeliver++
		}
	}
}

// fetchBatch fetches [from, to] concurrency-bounded, re-raising any
// panic recovered from a fetch task after the group is cancelled.
func (r *Regulator) fetchBatch(cctx context.Context, from, to uint64) ([]fetchResult, error) {
	g, gctx := errgroup.WithContext(cctx)
	n := int(to - from + 1)
	resultsCh := make(chan fetchResult, n)
	panicSlot := make(chan any, 1)

	for seq := from; seq <= to; seq++ {
		seq := seq
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					select {
					case panicSlot <- rec:
					default:
					}
					err = fmt.Errorf("fetch checkpoint %d panicked: %v", seq, rec)
				}
			}()
			cp, ferr := r.fetchWithRetry(gctx, seq)
			if ferr != nil {
				return ferr
			}
			resultsCh <- fetchResult{seq: seq, cp: cp}
			return nil
		})
	}

	waitErr := g.Wait()
	close(resultsCh)

	select {
	case rec := <-panicSlot:
		panic(rec)
	default:
	}

	results := make([]fetchResult, 0, n)
	for res := range resultsCh {
		results = append(results, res)
	}
	if waitErr != nil {
		return results, waitErr
	}
	return results, nil
}

func (r *Regulator) fetchWithRetry(ctx context.Context, seq uint64) (*Checkpoint, error) {
	for {
		cp, err := r.source.FetchCheckpoint(ctx, seq)
		if err == nil {
			metrics.CheckpointsFetchedTotal.Inc()
			return cp, nil
		}
		if errors.Is(err, cerrors.ErrTransient) {
			metrics.IngestRetriesTotal.Inc()
			select {
			case <-time.After(r.retryInterval):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return nil, err
	}
}

// deliverToSubscribers sends cp to every subscriber, reporting true if
// any subscriber has closed its channel.
func (r *Regulator) deliverToSubscribers(cp *Checkpoint) bool {
	r.mu.RLock()
	subs := append([]*Subscriber(nil), r.subscribers...)
	r.mu.RUnlock()

	for i, sub := range subs {
		if sendOrDetectClosed(sub.Ch, cp) {
			return true
		}
		metrics.CheckpointsDeliveredTotal.WithLabelValues(fmt.Sprintf("%d", i)).Inc()
	}
	return false
}

func sendOrDetectClosed(ch chan<- *Checkpoint, cp *Checkpoint) (closed bool) {
	defer func() {
		if recover() != nil {
			closed = true
		}
	}()
	ch <- cp
	return false
}

func (r *Regulator) absorbWatermarks() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subscribers {
		if sub.Watermark == nil {
			continue
		}
		r.drainWatermark(sub)
	}
}

func (r *Regulator) drainWatermark(sub *Subscriber) {
	for {
		select {
		case w := <-sub.Watermark:
			r.watermarks[sub] = w
		default:
			return
		}
	}
}

// lookaheadCap returns the highest sequence number the regulator may
// fetch, given the slowest reporting subscriber's watermark plus
// bufferSize. nextDeliver is used as the floor when no subscriber has
// reported a watermark yet.
func (r *Regulator) lookaheadCap(nextDeliver uint64) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var slowest uint64
	haveWatermark := false
	for _, sub := range r.subscribers {
		if sub.Watermark == nil {
			continue
		}
		w, reported := r.watermarks[sub]
		if !reported {
			continue
		}
		if !haveWatermark || w < slowest {
			slowest = w
			haveWatermark = true
		}
	}
	if !haveWatermark {
		slowest = nextDeliver
	}
	return slowest + uint64(r.bufferSize)
}

func (r *Regulator) publishDelivered(cp *Checkpoint) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&events.Event{
		Type:    events.EventCheckpointDelivered,
		Message: fmt.Sprintf("checkpoint %d delivered", cp.Sequence),
		Metadata: map[string]string{
			"sequence": fmt.Sprintf("%d", cp.Sequence),
		},
	})
}

// finish interprets why cctx was cancelled: a subscriber-closed channel
// or parent-context cancellation both end the run gracefully; anything
// else propagates as an error.
func (r *Regulator) finish(cctx context.Context) error {
	cause := context.Cause(cctx)
	if errors.Is(cause, cerrors.ErrCancelled) || errors.Is(cause, context.Canceled) {
		if r.broker != nil {
			r.broker.Publish(&events.Event{Type: events.EventIngestionShutdown, Message: "ingestion stopped"})
		}
		return nil
	}
	return cause
}
