package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"swiftdash/internal/models"
)

// ProductStore implements inventory.ProductStore on MongoDB. The decrement is
// a single conditional update (stock >= units), which is what makes two
// concurrent reservations on the same product safe.
type ProductStore struct {
	db *mongo.Database
}

// NewProductStore wraps db.
func NewProductStore(db *mongo.Database) *ProductStore {
	return &ProductStore{db: db}
}

func (s *ProductStore) collection() *mongo.Collection {
	return s.db.Collection("products")
}

func (s *ProductStore) FindProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := s.collection().FindOne(ctx, bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return nil, models.ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return nil, err
	}
	product.InStock = product.Stock > 0
	return &product, nil
}

func (s *ProductStore) DecrementStock(ctx context.Context, id primitive.ObjectID, units int) (int, error) {
	var product models.Product
	err := s.collection().FindOneAndUpdate(
		ctx,
		bson.M{
			"_id":       id,
			"isDeleted": bson.M{"$ne": true},
			"stock":     bson.M{"$gte": units},
		},
		bson.M{"$inc": bson.M{"stock": -units}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&product)
	if err == mongo.ErrNoDocuments {
		current, findErr := s.FindProduct(ctx, id)
		if findErr != nil {
			return 0, findErr
		}
		return 0, models.InsufficientStockError{
			ProductID: id,
			Available: current.Stock,
			Requested: units,
		}
	}
	if err != nil {
		return 0, err
	}
	return product.Stock, nil
}

func (s *ProductStore) IncrementStock(ctx context.Context, id primitive.ObjectID, units int) error {
	res, err := s.collection().UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"stock": units}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ProductNotFoundError{ProductID: id}
	}
	return nil
}
