package orders

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"swiftdash/internal/models"
)

// StatusTransition is a conditional status update: it applies only while the
// order's current status equals From, which is what serializes concurrent
// transitions on one order at the storage layer.
type StatusTransition struct {
	From models.OrderStatus
	To   models.OrderStatus

	// Set on accept; cleared when an accept is rolled back after a failed
	// reservation.
	DeliveryPartnerID    *primitive.ObjectID
	ClearDeliveryPartner bool

	DeliveryPersonLocation *models.PartnerLocation
	CancelReason           string

	// Reservation bookkeeping stamps.
	MarkReserved bool
	MarkReleased bool
}

// Store persists orders. ApplyTransition and ConfirmPayment are atomic
// conditional updates; implementations must never emulate them with
// read-then-write.
type Store interface {
	InsertOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error)

	// ApplyTransition returns the updated order, or
	// models.ErrTransitionConflict when the order's status no longer equals
	// t.From.
	ApplyTransition(ctx context.Context, id primitive.ObjectID, t StatusTransition) (*models.Order, error)

	// UpdateLocation sets the partner location and, when route is non-nil,
	// archives the previous routeData into routeHistory before overwriting.
	UpdateLocation(ctx context.Context, id primitive.ObjectID, loc models.PartnerLocation, route *models.RouteData) (*models.Order, error)

	// ConfirmPayment moves paymentStatus from pending to paid and attaches
	// the details; returns models.ErrDuplicatePayment when the order is
	// already paid.
	ConfirmPayment(ctx context.Context, id primitive.ObjectID, details models.PaymentDetails) (*models.Order, error)

	DeleteOrder(ctx context.Context, id primitive.ObjectID) error

	// NextOrderCode returns the next sequential human-readable order code.
	NextOrderCode(ctx context.Context) (string, error)
}

// Directory resolves the weak references an order holds by id.
type Directory interface {
	FindCustomer(ctx context.Context, id primitive.ObjectID) (*models.Customer, error)
	FindDeliveryPartner(ctx context.Context, id primitive.ObjectID) (*models.DeliveryPartner, error)
	FindBranch(ctx context.Context, id primitive.ObjectID) (*models.Branch, error)
}
