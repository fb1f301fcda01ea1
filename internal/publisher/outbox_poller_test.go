package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/metrics"
	"github.com/shopline/storefront/internal/repository"
	"github.com/shopline/storefront/internal/store/memory"
	"github.com/shopline/storefront/internal/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mu       sync.Mutex
	Messages []kafka.Message
	Err      error
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *MockWriter) Close() error { return nil }

func setup(t *testing.T) (*OutboxPoller, *memory.MemoryStore, *MockWriter, *metrics.Metrics) {
	t.Helper()
	store := memory.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	w := &MockWriter{}
	m := metrics.New()
	return NewOutboxPoller(store, store, w, slog.New(slog.DiscardHandler), m), store, w, m
}

func createOrder(t *testing.T, store *memory.MemoryStore) *domain.Order {
	t.Helper()
	lines := []domain.OrderLine{{ProductID: "p1", Quantity: 2, PriceAtPurchase: 750}}
	order, err := store.CreateOrder(context.Background(), "u1", lines, 1500, "usd")
	require.NoError(t, err)
	return order
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	tracing.Setup()
	p, store, w, m := setup(t)
	ctx := context.Background()

	event := &domain.OutboxEvent{ID: "e1", AggregateID: "order-1", EventType: domain.EventTypeOrderCompleted, Payload: []byte(`{"order_id":"order-1"}`)}
	require.NoError(t, store.RecordEvent(ctx, event))

	p.processUnpublishedEvents(ctx)

	require.Len(t, w.Messages, 1)
	msg := w.Messages[0]
	assert.Equal(t, "order-1", string(msg.Key))
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(msg.Value))
	assert.Equal(t, domain.EventTypeOrderCompleted, tracing.HeaderValue(msg.Headers, "event_type"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxPublished.WithLabelValues("ok")))

	pending, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessUnpublishedEvents_WriteFailureKeepsEvent(t *testing.T) {
	p, store, w, m := setup(t)
	ctx := context.Background()
	w.Err = errors.New("broker down")

	require.NoError(t, store.RecordEvent(ctx, &domain.OutboxEvent{ID: "e1", AggregateID: "o1", EventType: domain.EventTypeOrderCompleted}))

	p.processUnpublishedEvents(ctx)

	pending, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxPublished.WithLabelValues("error")))
}

func TestRecoverMissingEvents(t *testing.T) {
	p, store, w, _ := setup(t)
	ctx := context.Background()

	withEvent := createOrder(t, store)
	require.NoError(t, store.RecordEvent(ctx, &domain.OutboxEvent{
		ID:          repository.OrderEventID(withEvent.ID),
		AggregateID: withEvent.ID,
		EventType:   domain.EventTypeOrderCompleted,
	}))
	lost := createOrder(t, store)

	p.recoverMissingEvents(ctx)
	p.recoverMissingEvents(ctx)

	pending, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, lost.ID, pending[1].AggregateID)
	assert.Equal(t, repository.OrderEventID(lost.ID), pending[1].ID)

	p.processUnpublishedEvents(ctx)
	assert.Len(t, w.Messages, 2)
}

func TestRecoverMissingEvents_IgnoresOldOrders(t *testing.T) {
	p, store, _, _ := setup(t)
	ctx := context.Background()
	createOrder(t, store)

	p.now = func() time.Time { return time.Now().Add(2 * recoveryWindow) }
	p.recoverMissingEvents(ctx)

	pending, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRun_StopsOnCancel(t *testing.T) {
	p, store, w, _ := setup(t)
	p.eventTick = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, store.RecordEvent(ctx, &domain.OutboxEvent{ID: "e1", AggregateID: "o1", EventType: domain.EventTypeOrderCompleted}))

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.Messages) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
