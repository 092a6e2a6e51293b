package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Branch is the pickup point orders are placed against.
type Branch struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Address   Address            `bson:"address" json:"address"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
