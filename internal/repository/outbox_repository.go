package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopline/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoOutboxRepository struct {
	collection *mongo.Collection
}

func NewMongoOutboxRepository(db *mongo.Database) OutboxRepository {
	return &mongoOutboxRepository{
		collection: db.Collection(outboxCollection),
	}
}

func (m *mongoOutboxRepository) RecordEvent(ctx context.Context, event *domain.OutboxEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if _, err := m.collection.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to record outbox event: %w", err)
	}
	return nil
}

func (m *mongoOutboxRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := m.collection.Find(ctx, bson.M{"processed_at": bson.M{"$exists": false}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer cursor.Close(ctx)

	events := []*domain.OutboxEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode outbox events: %w", err)
	}
	return events, nil
}

func (m *mongoOutboxRepository) MarkEventAsProcessed(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{"processed_at": time.Now().UTC()}}
	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("failed to mark event %s processed: %w", id, err)
	}
	return nil
}

func (m *mongoOutboxRepository) MissingEvents(ctx context.Context, aggregateIDs []string) ([]string, error) {
	if len(aggregateIDs) == 0 {
		return nil, nil
	}

	found, err := m.collection.Distinct(ctx, "aggregate_id", bson.M{"aggregate_id": bson.M{"$in": aggregateIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox aggregates: %w", err)
	}

	seen := make(map[string]struct{}, len(found))
	for _, v := range found {
		if s, ok := v.(string); ok {
			seen[s] = struct{}{}
		}
	}

	var missing []string
	for _, id := range aggregateIDs {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (m *mongoOutboxRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "processed_at", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "aggregate_id", Value: 1}}},
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create outbox indexes: %w", err)
	}
	return nil
}
