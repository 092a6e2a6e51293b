package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Customer is the ordering principal. IsSubscribed feeds the wholesale
// eligibility flag at pricing time.
type Customer struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Phone        string             `bson:"phone" json:"phone"`
	IsSubscribed bool               `bson:"isSubscribed" json:"isSubscribed"`
	Address      Address            `bson:"address" json:"address"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}
