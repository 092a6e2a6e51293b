package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"swiftdash/internal/models"
	"swiftdash/internal/orders"
)

// OrderStore implements orders.Store on MongoDB. Status transitions and
// payment confirmation are conditional updates so concurrent actors cannot
// both win the same transition.
type OrderStore struct {
	db *mongo.Database
}

// NewOrderStore wraps db.
func NewOrderStore(db *mongo.Database) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) collection() *mongo.Collection {
	return s.db.Collection("orders")
}

func (s *OrderStore) InsertOrder(ctx context.Context, order *models.Order) error {
	res, err := s.collection().InsertOne(ctx, order)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

func (s *OrderStore) FindOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := s.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *OrderStore) ApplyTransition(ctx context.Context, id primitive.ObjectID, t orders.StatusTransition) (*models.Order, error) {
	now := time.Now().UTC()
	set := bson.M{
		"status":    t.To,
		"updatedAt": now,
	}
	unset := bson.M{}

	if t.DeliveryPartnerID != nil {
		set["deliveryPartnerId"] = *t.DeliveryPartnerID
	}
	if t.ClearDeliveryPartner {
		unset["deliveryPartnerId"] = ""
		unset["reservedAt"] = ""
	}
	if t.DeliveryPersonLocation != nil {
		set["deliveryPersonLocation"] = *t.DeliveryPersonLocation
	}
	if t.CancelReason != "" {
		set["cancelReason"] = t.CancelReason
	}
	if t.MarkReserved {
		set["reservedAt"] = now
	}
	if t.MarkReleased {
		set["releasedAt"] = now
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var order models.Order
	err := s.collection().FindOneAndUpdate(
		ctx,
		bson.M{"_id": id, "status": t.From},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if err == mongo.ErrNoDocuments {
		// Either the order is gone or someone else won the transition.
		if _, findErr := s.FindOrder(ctx, id); findErr != nil {
			return nil, findErr
		}
		return nil, models.ErrTransitionConflict
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *OrderStore) UpdateLocation(ctx context.Context, id primitive.ObjectID, loc models.PartnerLocation, route *models.RouteData) (*models.Order, error) {
	current, err := s.FindOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"deliveryPersonLocation": loc,
		"updatedAt":              time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if route != nil {
		set["routeData"] = *route
		if current.RouteData != nil {
			// Archive the superseded route before overwriting it.
			update["$push"] = bson.M{"routeHistory": *current.RouteData}
		}
	}

	var order models.Order
	err = s.collection().FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *OrderStore) ConfirmPayment(ctx context.Context, id primitive.ObjectID, details models.PaymentDetails) (*models.Order, error) {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	var order models.Order
	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		err := s.collection().FindOneAndUpdate(
			sessCtx,
			bson.M{"_id": id, "paymentStatus": models.PaymentPending},
			bson.M{"$set": bson.M{
				"paymentStatus":  models.PaymentPaid,
				"paymentDetails": details,
				"updatedAt":      time.Now().UTC(),
			}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&order)
		if err == mongo.ErrNoDocuments {
			if _, findErr := s.FindOrder(sessCtx, id); findErr != nil {
				return nil, findErr
			}
			return nil, models.ErrDuplicatePayment
		}
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *OrderStore) DeleteOrder(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.collection().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

// NextOrderCode increments the shared counter document and formats the next
// sequential human-readable code.
func (s *OrderStore) NextOrderCode(ctx context.Context) (string, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection("counters").FindOneAndUpdate(
		ctx,
		bson.M{"_id": "orderCode"},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%06d", counter.Seq), nil
}
