package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopline/storefront/internal/checkout"
	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/metrics"
	"github.com/shopline/storefront/internal/repository"
	"github.com/shopline/storefront/internal/tracing"
)

const (
	DefaultTopic   = "order-events"
	batchSize      = 100
	recoveryWindow = time.Hour
)

// MessageWriter is the subset of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // same order id, same partition
		AllowAutoTopicCreation: true,
	}
}

// OutboxPoller relays recorded order events to Kafka. Delivery is
// at-least-once: an event is marked processed only after the write succeeds.
type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	outbox       repository.OutboxRepository
	orders       repository.OrderRepository
	writer       MessageWriter
	log          *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewOutboxPoller(
	outbox repository.OutboxRepository,
	orders repository.OrderRepository,
	writer MessageWriter,
	log *slog.Logger,
	m *metrics.Metrics,
) *OutboxPoller {
	return &OutboxPoller{
		eventTick:    time.Second,
		recoveryTick: time.Second * 30,
		outbox:       outbox,
		orders:       orders,
		writer:       writer,
		log:          log.With(slog.String("component", "outbox")),
		metrics:      m,
		now:          time.Now,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverMissingEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.outbox.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch events", slog.Any("error", err))
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.metrics.OutboxPublished.WithLabelValues("error").Inc()
			p.log.WarnContext(ctx, "failed to publish event", slog.String("event_id", event.ID), slog.Any("error", err))
			continue
		}
		p.metrics.OutboxPublished.WithLabelValues("ok").Inc()

		if err := p.outbox.MarkEventAsProcessed(ctx, event.ID); err != nil {
			// published again next tick; consumers tolerate duplicates
			p.log.WarnContext(ctx, "failed to mark event as processed", slog.String("event_id", event.ID), slog.Any("error", err))
		}
	}
}

// recoverMissingEvents re-records the event of any recent order whose outbox
// insert failed after commit.
func (p *OutboxPoller) recoverMissingEvents(ctx context.Context) {
	orders, err := p.orders.ListOrdersSince(ctx, p.now().Add(-recoveryWindow))
	if err != nil {
		p.log.ErrorContext(ctx, "failed to list recent orders", slog.Any("error", err))
		return
	}
	if len(orders) == 0 {
		return
	}

	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	missing, err := p.outbox.MissingEvents(ctx, ids)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to find missing events", slog.Any("error", err))
		return
	}

	for _, id := range missing {
		event, err := checkout.NewOrderCompletedOutboxEvent(byID[id])
		if err != nil {
			p.log.ErrorContext(ctx, "failed to build order event", slog.String("order_id", id), slog.Any("error", err))
			continue
		}
		if err := p.outbox.RecordEvent(ctx, event); err != nil {
			p.log.ErrorContext(ctx, "failed to record recovered event", slog.String("order_id", id), slog.Any("error", err))
			continue
		}
		p.log.InfoContext(ctx, "order event recovered", slog.String("order_id", id))
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *domain.OutboxEvent) error {
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
	}
	msg := kafka.Message{
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: tracing.InjectKafkaHeaders(ctx, headers),
	}

	return p.writer.WriteMessages(ctx, msg)
}
