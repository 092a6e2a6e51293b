package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeliveryPartner claims and fulfills orders for exactly one branch.
type DeliveryPartner struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Phone     string             `bson:"phone" json:"phone"`
	BranchID  primitive.ObjectID `bson:"branchId" json:"branchId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
