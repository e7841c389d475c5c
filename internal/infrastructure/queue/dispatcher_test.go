package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medistore/medistore-api/internal/core/domain"
)

type recordingPublisher struct {
	mu    sync.Mutex
	byID  map[string][]domain.OrderEventType
	count int
	fail  bool
	block chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{byID: make(map[string][]domain.OrderEventType)}
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.OrderEvent) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	if p.fail {
		return errors.New("broker down")
	}
	p.byID[e.OrderID] = append(p.byID[e.OrderID], e.Type)
	return nil
}

func (p *recordingPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func stopWithin(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcher_PreservesPerOrderOrdering(t *testing.T) {
	pub := newRecordingPublisher()
	d := NewDispatcher(4, 64, pub, zerolog.Nop())
	d.Start(context.Background())

	sequence := []domain.OrderEventType{
		domain.EventOrderPlaced,
		domain.EventOrderItemsUpdated,
		domain.EventOrderStatusChanged,
		domain.EventOrderCancelled,
	}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("order-%d", i)
		for _, typ := range sequence {
			d.Enqueue(domain.OrderEvent{Type: typ, OrderID: id})
		}
	}
	stopWithin(t, d)

	for i := 0; i < 10; i++ {
		assert.Equal(t, sequence, pub.byID[fmt.Sprintf("order-%d", i)])
	}
}

func TestDispatcher_StopDrainsQueue(t *testing.T) {
	pub := newRecordingPublisher()
	pub.block = make(chan struct{})
	d := NewDispatcher(1, 16, pub, zerolog.Nop())
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		d.Enqueue(domain.OrderEvent{Type: domain.EventOrderPlaced, OrderID: "o1"})
	}
	close(pub.block)
	stopWithin(t, d)

	assert.Equal(t, 5, pub.total())
}

func TestDispatcher_DropsAfterStop(t *testing.T) {
	pub := newRecordingPublisher()
	d := NewDispatcher(2, 4, pub, zerolog.Nop())
	d.Start(context.Background())
	stopWithin(t, d)

	assert.NotPanics(t, func() {
		d.Enqueue(domain.OrderEvent{Type: domain.EventOrderPlaced, OrderID: "late"})
	})
	assert.Zero(t, pub.total())
	stopWithin(t, d)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	pub := newRecordingPublisher()
	pub.block = make(chan struct{})
	d := NewDispatcher(1, 1, pub, zerolog.Nop())
	d.Start(context.Background())

	// One event held by the blocked publisher, one buffered, the rest dropped.
	for i := 0; i < 10; i++ {
		d.Enqueue(domain.OrderEvent{Type: domain.EventOrderPlaced, OrderID: "o1"})
		time.Sleep(time.Millisecond)
	}
	close(pub.block)
	stopWithin(t, d)

	assert.LessOrEqual(t, pub.total(), 2)
	assert.GreaterOrEqual(t, pub.total(), 1)
}

func TestDispatcher_PublishErrorsDoNotStopWorker(t *testing.T) {
	pub := newRecordingPublisher()
	pub.fail = true
	d := NewDispatcher(1, 8, pub, zerolog.Nop())
	d.Start(context.Background())

	for i := 0; i < 3; i++ {
		d.Enqueue(domain.OrderEvent{Type: domain.EventOrderPlaced, OrderID: "o1"})
	}
	stopWithin(t, d)

	assert.Equal(t, 3, pub.total())
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(8, 1, newRecordingPublisher(), zerolog.Nop())
	for _, id := range []string{"a", "order-1", "b9c1"} {
		first := d.shardIndex(id)
		assert.Equal(t, first, d.shardIndex(id))
		assert.True(t, first >= 0 && first < 8)
	}
}
