package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureProductIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("products").Indexes()

	barcodeIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "barcode", Value: 1}},
		Options: options.Index().
			SetName("barcode_unique").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"barcode": bson.M{
					"$exists": true,
				},
			}),
	}

	log.Println("EnsureProductIndexes: creating barcode_unique index")
	_, err := indexes.CreateOne(ctx, barcodeIndex)
	if err != nil {
		log.Println("EnsureProductIndexes: barcode index error:", err)
		return err
	}
	return nil
}

func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("orders").Indexes()

	orderCodeIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "orderCode", Value: 1}},
		Options: options.Index().
			SetName("orderCode_unique").
			SetUnique(true),
	}
	branchStatusIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "branchId", Value: 1}, {Key: "status", Value: 1}},
		Options: options.Index().SetName("branchId_status_index"),
	}
	customerIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "customerId", Value: 1}},
		Options: options.Index().SetName("customerId_index"),
	}

	log.Println("EnsureOrderIndexes: creating order indexes")
	_, err := indexes.CreateMany(ctx, []mongo.IndexModel{orderCodeIndex, branchStatusIndex, customerIndex})
	if err != nil {
		log.Println("EnsureOrderIndexes: order index error:", err)
		return err
	}
	return nil
}

func EnsurePartnerIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("deliveryPartners").Indexes()

	branchIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "branchId", Value: 1}},
		Options: options.Index().SetName("branchId_index"),
	}

	log.Println("EnsurePartnerIndexes: creating branchId_index index")
	_, err := indexes.CreateOne(ctx, branchIndex)
	if err != nil {
		log.Println("EnsurePartnerIndexes: branch index error:", err)
		return err
	}
	return nil
}
