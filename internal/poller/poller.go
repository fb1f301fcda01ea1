package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/shopline/storefront/internal/cache"
	"github.com/shopline/storefront/internal/domain"
	"github.com/shopline/storefront/internal/tracing"
)

const consumerGroup = "storefront-cart-cache"

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

func NewKafkaReader(topic string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  consumerGroup,
		MaxBytes: 10e6, // 10MB
	})
}

// Poller drops the cached cart of every buyer whose order completed, so no
// instance serves a pre-commit cart from Redis. The cart itself was already
// cleared by checkout.
type Poller struct {
	reader MessageReader
	cache  cache.CartCache
	log    *slog.Logger
}

func NewPoller(reader MessageReader, cache cache.CartCache, log *slog.Logger) *Poller {
	return &Poller{reader: reader, cache: cache, log: log.With(slog.String("component", "poller"))}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.handleNext(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("error closing reader", slog.Any("error", err))
	}
}

func (p *Poller) handleNext(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.log.WarnContext(ctx, "error reading message", slog.Any("error", err))
		}
		return
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, m.Headers)
	if eventType := tracing.HeaderValue(m.Headers, "event_type"); eventType != domain.EventTypeOrderCompleted {
		p.log.DebugContext(msgCtx, "skipping event", slog.String("event_type", eventType))
		return
	}

	var event domain.OrderCompletedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.WarnContext(msgCtx, "error parsing message", slog.Any("error", err))
		return
	}
	if event.UserID == "" {
		p.log.WarnContext(msgCtx, "missing user_id", slog.String("order_id", event.OrderID))
		return
	}

	if err := p.cache.Delete(msgCtx, event.UserID); err != nil {
		p.log.WarnContext(msgCtx, "failed to delete cache",
			slog.String("user_id", event.UserID),
			slog.Any("error", err))
	}
}
