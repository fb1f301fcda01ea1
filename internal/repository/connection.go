package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	cartsCollection     = "carts"
	productsCollection  = "products"
	ordersCollection    = "orders"
	wishlistsCollection = "wishlists"
	outboxCollection    = "outbox"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type indexCreator interface {
	CreateIndexes(ctx context.Context) error
}

// CreateIndexes creates the indexes of every collection this package owns.
// The unique indexes are load-bearing: one cart and one wishlist per buyer,
// one product per slug and sku.
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	creators := []indexCreator{
		&mongoCartRepository{collection: db.Collection(cartsCollection)},
		&mongoProductRepository{collection: db.Collection(productsCollection)},
		&mongoOrderRepository{collection: db.Collection(ordersCollection)},
		&mongoWishlistRepository{collection: db.Collection(wishlistsCollection)},
		&mongoOutboxRepository{collection: db.Collection(outboxCollection)},
	}
	for _, c := range creators {
		if err := c.CreateIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}
