package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product carries the pricing tiers and the stock count. Stock is mutated
// exclusively through the inventory ledger; no other writer is permitted.
type Product struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string             `bson:"name" json:"name"`
	Brand              string             `bson:"brand,omitempty" json:"brand,omitempty"`
	Barcode            string             `bson:"barcode,omitempty" json:"barcode,omitempty"`
	QuantityDescriptor string             `bson:"quantityDescriptor,omitempty" json:"quantityDescriptor,omitempty"`

	BasePrice           float64 `bson:"basePrice" json:"basePrice"`
	DiscountPrice       float64 `bson:"discountPrice,omitempty" json:"discountPrice,omitempty"`
	SubscriptionPrice   float64 `bson:"subscriptionPrice,omitempty" json:"subscriptionPrice,omitempty"`
	UnitPerSubscription int     `bson:"unitPerSubscription,omitempty" json:"unitPerSubscription,omitempty"`

	Stock             int  `bson:"stock" json:"stock"`
	LowStockThreshold int  `bson:"lowStockThreshold,omitempty" json:"lowStockThreshold,omitempty"`
	InStock           bool `bson:"-" json:"inStock"`

	BranchID  primitive.ObjectID `bson:"branchId,omitempty" json:"branchId,omitempty"`
	IsDeleted bool               `bson:"isDeleted" json:"isDeleted,omitempty"`
	DeletedAt *time.Time         `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// RetailUnitPrice is the per-unit price for non-bundle purchases: the discount
// price when one is set below the base price, the base price otherwise.
func (p *Product) RetailUnitPrice() float64 {
	if p.DiscountPrice > 0 && p.DiscountPrice < p.BasePrice {
		return p.DiscountPrice
	}
	return p.BasePrice
}

// BundleEligible reports whether the product carries a usable wholesale tier.
func (p *Product) BundleEligible() bool {
	return p.UnitPerSubscription > 0 && p.SubscriptionPrice > 0
}
