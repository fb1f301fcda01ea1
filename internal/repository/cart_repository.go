package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopline/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// addLineAttempts bounds the merge/push retry when two adds of the same
// product interleave.
const addLineAttempts = 3

type mongoCartRepository struct {
	collection *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepository{
		collection: db.Collection(cartsCollection),
	}
}

func (m *mongoCartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

// GetOrCreate returns the buyer's cart, inserting an empty one if absent. The
// unique user_id index decides races: the loser re-reads the winner's cart.
func (m *mongoCartRepository) GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := m.GetCart(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	cart = &domain.Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		Items:     []domain.CartLine{}, // $push needs an array, not null
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = m.collection.InsertOne(ctx, cart)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return m.GetCart(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return cart, nil
}

func (m *mongoCartRepository) AddLine(ctx context.Context, userID, productID string, quantity int, unitPrice int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if _, err := m.GetOrCreate(ctx, userID); err != nil {
		return err
	}

	for attempt := 0; attempt < addLineAttempts; attempt++ {
		now := time.Now().UTC()

		// Merge into an existing line; its frozen price is kept. The
		// quantity bound keeps $inc from wrapping.
		res, err := m.collection.UpdateOne(ctx,
			bson.M{"user_id": userID, "items": bson.M{"$elemMatch": bson.M{
				"product_id": productID,
				"quantity":   bson.M{"$lte": math.MaxInt - quantity},
			}}},
			bson.M{
				"$inc": bson.M{"items.$.quantity": quantity},
				"$set": bson.M{"updated_at": now},
			})
		if err != nil {
			return fmt.Errorf("failed to update existing item: %w", err)
		}
		if res.MatchedCount > 0 {
			return nil
		}

		// Append only while the product is still absent.
		line := domain.CartLine{
			ProductID:  productID,
			Quantity:   quantity,
			PriceAtAdd: unitPrice,
			AddedAt:    now,
		}
		res, err = m.collection.UpdateOne(ctx,
			bson.M{"user_id": userID, "items.product_id": bson.M{"$ne": productID}},
			bson.M{
				"$push": bson.M{"items": line},
				"$set":  bson.M{"updated_at": now},
			})
		if err != nil {
			return fmt.Errorf("failed to add new item: %w", err)
		}
		if res.MatchedCount > 0 {
			return nil
		}

		full, err := m.collection.CountDocuments(ctx, bson.M{"user_id": userID, "items": bson.M{"$elemMatch": bson.M{
			"product_id": productID,
			"quantity":   bson.M{"$gt": math.MaxInt - quantity},
		}}})
		if err != nil {
			return fmt.Errorf("failed to check existing item: %w", err)
		}
		if full > 0 {
			return ErrInvalidQuantity
		}
	}

	return fmt.Errorf("failed to add item %s: cart modified concurrently", productID)
}

func (m *mongoCartRepository) SetLineQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}
	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now().UTC(),
		},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (m *mongoCartRepository) RemoveLine(ctx context.Context, userID, productID string) error {
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

// Clear empties the cart but keeps the document. Clearing a missing cart is a
// no-op.
func (m *mongoCartRepository) Clear(ctx context.Context, userID string) error {
	update := bson.M{
		"$set": bson.M{
			"items":      []domain.CartLine{},
			"updated_at": time.Now().UTC(),
		},
	}

	if _, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (m *mongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}

	return nil
}
