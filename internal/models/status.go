package models

// OrderStatus is the canonical machine-readable order state.
type OrderStatus string

const (
	StatusPending           OrderStatus = "pending"
	StatusAccepted          OrderStatus = "accepted"
	StatusInProgress        OrderStatus = "in-progress"
	StatusAwaitConfirmation OrderStatus = "awaitconfirmation"
	StatusDelivered         OrderStatus = "delivered"
	StatusCancelled         OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusInProgress, StatusAwaitConfirmation, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted out of s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// DeliveryLabel derives the human-facing delivery status from the canonical
// status. The label is never stored; it is recomputed on every read so the two
// can never diverge.
func (s OrderStatus) DeliveryLabel() string {
	switch s {
	case StatusPending:
		return "Assigning Partner"
	case StatusAccepted:
		return "Partner Assigned"
	case StatusInProgress, StatusAwaitConfirmation:
		return "On The Way"
	case StatusDelivered:
		return "Delivered"
	case StatusCancelled:
		return "Cancelled"
	}
	return ""
}

// partnerAdvances is the explicit adjacency table for the generic status-set
// path available to the bound delivery partner.
var partnerAdvances = map[OrderStatus]OrderStatus{
	StatusAccepted:          StatusInProgress,
	StatusInProgress:        StatusAwaitConfirmation,
	StatusAwaitConfirmation: StatusDelivered,
}

// CanPartnerAdvance reports whether the bound delivery partner may move an
// order from one status directly to another.
func CanPartnerAdvance(from, to OrderStatus) bool {
	return partnerAdvances[from] == to
}
