package models

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrPartnerNotFound  = errors.New("delivery partner not found")
	ErrBranchNotFound   = errors.New("branch not found")

	// ErrUnauthorized means the caller is not the principal bound to the order.
	ErrUnauthorized = errors.New("caller is not permitted to act on this order")

	// ErrTransitionConflict is reported by stores when a conditional status
	// update matched no document: the expected current status no longer holds.
	ErrTransitionConflict = errors.New("order transition conflict")

	// ErrDuplicatePayment means the payment callback was already processed.
	ErrDuplicatePayment = errors.New("payment already processed")

	ErrCancelReasonRequired = errors.New("cancellation reason is required")
	ErrCODLimitExceeded     = errors.New("order total exceeds cash-on-delivery limit")
	ErrRateLimited          = errors.New("too many location updates")
)

// ProductNotFoundError names the cart line that referenced a missing product.
type ProductNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID.Hex())
}

// InsufficientStockError names the offending product when a stock check or
// reservation fails.
type InsufficientStockError struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID.Hex(), e.Requested, e.Available)
}

// InvalidTransitionError reports an illegal state-machine move.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition %s -> %s", e.From, e.To)
}

// ValidationError reports malformed or missing input detected before any
// mutation.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}
