package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopline/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoWishlistRepository struct {
	collection *mongo.Collection
}

func NewMongoWishlistRepository(db *mongo.Database) WishlistRepository {
	return &mongoWishlistRepository{
		collection: db.Collection(wishlistsCollection),
	}
}

func (m *mongoWishlistRepository) GetWishlist(ctx context.Context, userID string) (*domain.Wishlist, error) {
	var wishlist domain.Wishlist

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&wishlist)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrWishlistNotFound
		}
		return nil, fmt.Errorf("failed to get wishlist: %w", err)
	}
	return &wishlist, nil
}

// AddProduct adds productID to the buyer's wishlist, creating the wishlist on
// first use. Adding a product twice keeps a single entry.
func (m *mongoWishlistRepository) AddProduct(ctx context.Context, userID, productID string) (*domain.Wishlist, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$addToSet": bson.M{"product_ids": productID},
		"$set":      bson.M{"updated_at": now},
		"$setOnInsert": bson.M{
			"_id":        uuid.NewString(),
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var wishlist domain.Wishlist
	err := m.collection.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&wishlist)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// Lost a concurrent upsert; the document exists now.
		err = m.collection.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&wishlist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add product to wishlist: %w", err)
	}
	return &wishlist, nil
}

func (m *mongoWishlistRepository) RemoveProduct(ctx context.Context, userID, productID string) (*domain.Wishlist, error) {
	update := bson.M{
		"$pull": bson.M{"product_ids": productID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var wishlist domain.Wishlist
	err := m.collection.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&wishlist)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrWishlistNotFound
		}
		return nil, fmt.Errorf("failed to remove product from wishlist: %w", err)
	}
	return &wishlist, nil
}

func (m *mongoWishlistRepository) HasProduct(ctx context.Context, userID, productID string) (bool, error) {
	n, err := m.collection.CountDocuments(ctx, bson.M{"user_id": userID, "product_ids": productID})
	if err != nil {
		return false, fmt.Errorf("failed to check wishlist: %w", err)
	}
	return n > 0, nil
}

func (m *mongoWishlistRepository) CreateIndexes(ctx context.Context) error {
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := m.collection.Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("failed to create wishlist indexes: %w", err)
	}
	return nil
}
