package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/mysticonsensus/pkg/cerrors"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu          sync.Mutex
	delay       map[uint64]chan struct{}
	failUntil   map[uint64]int
	unexpected  map[uint64]bool
	panicOn     map[uint64]bool
	fetchCounts map[uint64]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		delay:       make(map[uint64]chan struct{}),
		failUntil:   make(map[uint64]int),
		unexpected:  make(map[uint64]bool),
		panicOn:     make(map[uint64]bool),
		fetchCounts: make(map[uint64]int),
	}
}

func (f *fakeSource) holdUntilReleased(seq uint64) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.delay[seq] = ch
	return ch
}

func (f *fakeSource) FetchCheckpoint(ctx context.Context, seq uint64) (*Checkpoint, error) {
	f.mu.Lock()
	f.fetchCounts[seq]++
	count := f.fetchCounts[seq]
	wait := f.delay[seq]
	failUntil := f.failUntil[seq]
	unexpected := f.unexpected[seq]
	shouldPanic := f.panicOn[seq]
	f.mu.Unlock()

	if shouldPanic {
		panic("boom")
	}
	if unexpected {
		return nil, errors.New("unexpected source failure")
	}
	if count <= failUntil {
		return nil, fmt.Errorf("not found: %w", cerrors.ErrTransient)
	}
	if wait != nil {
		<-wait
	}
	return &Checkpoint{Sequence: seq}, nil
}

func TestRunDeliversInSequenceOrderDespiteOutOfOrderCompletion(t *testing.T) {
	source := newFakeSource()
	hold := source.holdUntilReleased(1)

	r := NewRegulator(source, 10, 4, time.Millisecond, nil)
	ch := make(chan *Checkpoint, 10)
	r.Subscribe(&Subscriber{Ch: ch})

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(hold)
	}()

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), 1, func() uint64 { return 4 })
	}()

	var delivered []uint64
	for i := 0; i < 4; i++ {
		cp := <-ch
		delivered = append(delivered, cp.Sequence)
	}
	require.Equal(t, []uint64{1, 2, 3, 4}, delivered)

	// the source head is 4, so Run returns nil once checkpoint 4 is delivered
	close(ch)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("regulator did not stop after delivering up to the source head")
	}
}

func TestRunRetriesTransientFailures(t *testing.T) {
	source := newFakeSource()
	source.failUntil[1] = 2 // fails twice, succeeds on third attempt

	r := NewRegulator(source, 4, 2, time.Millisecond, nil)
	ch := make(chan *Checkpoint, 4)
	r.Subscribe(&Subscriber{Ch: ch})

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), 1, func() uint64 { return 1 })
	}()

	select {
	case cp := <-ch:
		require.Equal(t, uint64(1), cp.Sequence)
	case <-time.After(time.Second):
		t.Fatal("checkpoint never delivered")
	}

	close(ch)
	<-done
}

func TestRunPropagatesUnexpectedSourceError(t *testing.T) {
	source := newFakeSource()
	source.unexpected[1] = true

	r := NewRegulator(source, 4, 2, time.Millisecond, nil)
	ch := make(chan *Checkpoint, 4)
	r.Subscribe(&Subscriber{Ch: ch})

	err := r.Run(context.Background(), 1, func() uint64 { return 1 })
	require.Error(t, err)
}

func TestRunRespectsWatermarkLookaheadCap(t *testing.T) {
	source := newFakeSource()
	r := NewRegulator(source, 1, 4, time.Millisecond, nil)

	ch := make(chan *Checkpoint)
	watermark := make(chan uint64, 1)
	r.Subscribe(&Subscriber{Ch: ch, Watermark: watermark})

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), 1, func() uint64 { return 100 })
	}()

	// with bufferSize=1 and no watermark reported yet, the regulator may
	// fetch ahead of nextDeliver by at most 1; drain exactly two
	// checkpoints to prove it makes progress once they're consumed.
	cp1 := <-ch
	require.Equal(t, uint64(1), cp1.Sequence)
	watermark <- 1
	cp2 := <-ch
	require.Equal(t, uint64(2), cp2.Sequence)
	watermark <- 2

	close(ch)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("regulator did not stop")
	}
}

func TestRunRepanicsAfterRecoveringFetchPanic(t *testing.T) {
	source := newFakeSource()
	source.panicOn[1] = true

	r := NewRegulator(source, 4, 1, time.Millisecond, nil)
	ch := make(chan *Checkpoint, 4)
	r.Subscribe(&Subscriber{Ch: ch})

	require.Panics(t, func() {
		_ = r.Run(context.Background(), 1, func() uint64 { return 1 })
	})
}
