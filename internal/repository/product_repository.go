package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopline/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoProductRepository struct {
	collection *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) ProductRepository {
	return &mongoProductRepository{
		collection: db.Collection(productsCollection),
	}
}

// DecrementIfAvailable subtracts quantity in a single conditional update, so
// that the check and the write cannot interleave with another decrement.
func (m *mongoProductRepository) DecrementIfAvailable(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	filter := bson.M{
		"_id":    productID,
		"active": true,
		"stock":  bson.M{"$gte": quantity},
	}
	update := bson.M{
		"$inc": bson.M{"stock": -quantity},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var product domain.Product
	err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&product)
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to decrement stock: %w", err)
	}

	// Nothing matched: tell a missing product from a short one.
	if _, err := m.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return nil, ErrInsufficientStock
}

func (m *mongoProductRepository) Validate(ctx context.Context, productID string, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, ErrInvalidQuantity
	}
	product, err := m.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return false, nil
		}
		return false, err
	}
	return product.Available(quantity), nil
}

func (m *mongoProductRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product

	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

func (m *mongoProductRepository) GetProducts(ctx context.Context, ids []string) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return []*domain.Product{}, nil
	}
	return m.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (m *mongoProductRepository) ListActive(ctx context.Context) ([]*domain.Product, error) {
	return m.find(ctx, bson.M{"active": true}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (m *mongoProductRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*domain.Product, error) {
	cursor, err := m.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []*domain.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

func (m *mongoProductRepository) CreateProduct(ctx context.Context, product *domain.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	now := time.Now().UTC()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.CreatedAt = now
	product.UpdatedAt = now

	if _, err := m.collection.InsertOne(ctx, product); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateProduct
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (m *mongoProductRepository) UpdateProduct(ctx context.Context, id string, update domain.ProductUpdate) (*domain.Product, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Price != nil {
		if *update.Price < 0 {
			return nil, ErrInvalidProduct
		}
		set["price"] = *update.Price
	}
	if update.Stock != nil {
		if *update.Stock < 0 {
			return nil, ErrInvalidProduct
		}
		set["stock"] = *update.Stock
	}
	if update.Active != nil {
		set["active"] = *update.Active
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var product domain.Product
	err := m.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &product, nil
}

// UpsertBySlug inserts the product unless one with the same slug exists; an
// existing product is left untouched.
func (m *mongoProductRepository) UpsertBySlug(ctx context.Context, product *domain.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	now := time.Now().UTC()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        product.ID,
			"name":       product.Name,
			"sku":        product.SKU,
			"price":      product.Price,
			"stock":      product.Stock,
			"active":     product.Active,
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, bson.M{"slug": product.Slug}, update, opts); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateProduct
		}
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (m *mongoProductRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "sku", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "active", Value: 1}, {Key: "name", Value: 1}},
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}
	return nil
}

func validateProduct(p *domain.Product) error {
	if p == nil || strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Slug) == "" || strings.TrimSpace(p.SKU) == "" {
		return ErrInvalidProduct
	}
	if p.Price < 0 || p.Stock < 0 {
		return ErrInvalidProduct
	}
	return nil
}
