package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// Address captures a fixed delivery or pickup address at order-creation time.
type Address struct {
	Title    string   `bson:"title" json:"title"`
	Detail   string   `bson:"detail" json:"detail"`
	Note     string   `bson:"note,omitempty" json:"note,omitempty"`
	Location GeoPoint `bson:"location" json:"location"`
}

// OrderItem is a frozen snapshot of one cart line. Pricing fields and the
// source tier values are written once at creation; later product edits never
// alter them.
type OrderItem struct {
	ProductID          primitive.ObjectID `bson:"productId" json:"productId"`
	Name               string             `bson:"name" json:"name"`
	Brand              string             `bson:"brand,omitempty" json:"brand,omitempty"`
	QuantityDescriptor string             `bson:"quantityDescriptor,omitempty" json:"quantityDescriptor,omitempty"`
	PricingMode        string             `bson:"pricingMode" json:"pricingMode"`
	UnitsBought        int                `bson:"unitsBought" json:"unitsBought"`
	BundlesBought      int                `bson:"bundlesBought" json:"bundlesBought"`
	UnitPrice          float64            `bson:"unitPrice" json:"unitPrice"`
	TotalPrice         float64            `bson:"totalPrice" json:"totalPrice"`

	// Source tier values at creation time.
	BasePrice           float64 `bson:"basePrice" json:"basePrice"`
	DiscountPrice       float64 `bson:"discountPrice,omitempty" json:"discountPrice,omitempty"`
	SubscriptionPrice   float64 `bson:"subscriptionPrice,omitempty" json:"subscriptionPrice,omitempty"`
	UnitPerSubscription int     `bson:"unitPerSubscription,omitempty" json:"unitPerSubscription,omitempty"`
}

// PartnerLocation is the last-known position of the delivery partner.
type PartnerLocation struct {
	Latitude        float64   `bson:"latitude" json:"latitude"`
	Longitude       float64   `bson:"longitude" json:"longitude"`
	Accuracy        float64   `bson:"accuracy,omitempty" json:"accuracy,omitempty"`
	Speed           float64   `bson:"speed,omitempty" json:"speed,omitempty"`
	Heading         float64   `bson:"heading,omitempty" json:"heading,omitempty"`
	Timestamp       time.Time `bson:"timestamp" json:"timestamp"`
	IsFinalLocation bool      `bson:"isFinalLocation" json:"isFinalLocation"`
}

// Point returns the location as a plain coordinate pair.
func (l PartnerLocation) Point() GeoPoint {
	return GeoPoint{Latitude: l.Latitude, Longitude: l.Longitude}
}

// RouteData is the current route geometry and ETA between the partner and the
// delivery address.
type RouteData struct {
	DistanceKm  float64    `bson:"distanceKm" json:"distanceKm"`
	EtaMinutes  float64    `bson:"etaMinutes" json:"etaMinutes"`
	Polyline    []GeoPoint `bson:"polyline" json:"polyline"`
	Fallback    bool       `bson:"fallback" json:"fallback"`
	Provider    string     `bson:"provider,omitempty" json:"provider,omitempty"`
	EstimatedAt time.Time  `bson:"estimatedAt" json:"estimatedAt"`
}

// PaymentDetails is the verified outcome supplied by the payment-confirmation
// callback. Signatures are verified upstream, never here.
type PaymentDetails struct {
	GatewayOrderID string    `bson:"gatewayOrderId" json:"gatewayOrderId"`
	PaymentID      string    `bson:"paymentId" json:"paymentId"`
	Signature      string    `bson:"signature" json:"signature"`
	Amount         float64   `bson:"amount" json:"amount"`
	PaidAt         time.Time `bson:"paidAt" json:"paidAt"`
}

// Order defines the persisted order document. It owns its item snapshots and
// location/route substructures; customer, partner, branch and products are
// referenced by id only.
type Order struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderCode string             `bson:"orderCode" json:"orderCode"`

	CustomerID        primitive.ObjectID  `bson:"customerId" json:"customerId"`
	BranchID          primitive.ObjectID  `bson:"branchId" json:"branchId"`
	DeliveryPartnerID *primitive.ObjectID `bson:"deliveryPartnerId,omitempty" json:"deliveryPartnerId,omitempty"`

	Items       []OrderItem `bson:"items" json:"items"`
	TotalPrice  float64     `bson:"totalPrice" json:"totalPrice"`
	DeliveryFee float64     `bson:"deliveryFee" json:"deliveryFee"`

	PaymentMethod  string          `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus  string          `bson:"paymentStatus" json:"paymentStatus"`
	PaymentDetails *PaymentDetails `bson:"paymentDetails,omitempty" json:"paymentDetails,omitempty"`

	Status       OrderStatus `bson:"status" json:"status"`
	CancelReason string      `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`

	DeliveryLocation Address `bson:"deliveryLocation" json:"deliveryLocation"`
	PickupLocation   Address `bson:"pickupLocation" json:"pickupLocation"`

	DeliveryPersonLocation *PartnerLocation `bson:"deliveryPersonLocation,omitempty" json:"deliveryPersonLocation,omitempty"`
	RouteData              *RouteData       `bson:"routeData,omitempty" json:"routeData,omitempty"`
	RouteHistory           []RouteData      `bson:"routeHistory,omitempty" json:"routeHistory,omitempty"`

	// Reservation bookkeeping: stock is reserved at most once (on accept) and
	// released at most once (on cancel or administrative delete).
	ReservedAt *time.Time `bson:"reservedAt,omitempty" json:"reservedAt,omitempty"`
	ReleasedAt *time.Time `bson:"releasedAt,omitempty" json:"releasedAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Payment status values for Order.PaymentStatus.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// Payment methods accepted at order creation.
const (
	PaymentMethodCOD    = "cod"
	PaymentMethodOnline = "online"
)

// StockHeld reports whether the order currently holds a stock reservation.
func (o *Order) StockHeld() bool {
	return o.ReservedAt != nil && o.ReleasedAt == nil
}

// IsBoundPartner reports whether id is the delivery partner bound to the order.
func (o *Order) IsBoundPartner(id primitive.ObjectID) bool {
	return o.DeliveryPartnerID != nil && *o.DeliveryPartnerID == id
}

// MarshalJSON injects the derived deliveryStatus label so clients always see a
// label consistent with the canonical status.
func (o Order) MarshalJSON() ([]byte, error) {
	type alias Order
	return json.Marshal(struct {
		alias
		DeliveryStatus string `json:"deliveryStatus"`
	}{alias(o), o.Status.DeliveryLabel()})
}
