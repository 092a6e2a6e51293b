package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"swiftdash/internal/models"
)

// Directory implements orders.Directory: find-by-id lookups for the weak
// references an order holds. CRUD for these entities lives elsewhere.
type Directory struct {
	db *mongo.Database
}

// NewDirectory wraps db.
func NewDirectory(db *mongo.Database) *Directory {
	return &Directory{db: db}
}

func (d *Directory) FindCustomer(ctx context.Context, id primitive.ObjectID) (*models.Customer, error) {
	var customer models.Customer
	err := d.db.Collection("customers").FindOne(ctx, bson.M{"_id": id}).Decode(&customer)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (d *Directory) FindDeliveryPartner(ctx context.Context, id primitive.ObjectID) (*models.DeliveryPartner, error) {
	var partner models.DeliveryPartner
	err := d.db.Collection("deliveryPartners").FindOne(ctx, bson.M{"_id": id}).Decode(&partner)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrPartnerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &partner, nil
}

func (d *Directory) FindBranch(ctx context.Context, id primitive.ObjectID) (*models.Branch, error) {
	var branch models.Branch
	err := d.db.Collection("branches").FindOne(ctx, bson.M{"_id": id}).Decode(&branch)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrBranchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &branch, nil
}
