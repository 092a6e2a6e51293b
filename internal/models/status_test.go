package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusValid(t *testing.T) {
	for _, s := range []OrderStatus{
		StatusPending, StatusAccepted, StatusInProgress,
		StatusAwaitConfirmation, StatusDelivered, StatusCancelled,
	} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, OrderStatus("shipped").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusAwaitConfirmation.Terminal())
}

func TestDeliveryLabelDerivation(t *testing.T) {
	cases := map[OrderStatus]string{
		StatusPending:           "Assigning Partner",
		StatusAccepted:          "Partner Assigned",
		StatusInProgress:        "On The Way",
		StatusAwaitConfirmation: "On The Way",
		StatusDelivered:         "Delivered",
		StatusCancelled:         "Cancelled",
	}
	for status, label := range cases {
		assert.Equal(t, label, status.DeliveryLabel(), string(status))
	}
}

func TestCanPartnerAdvance(t *testing.T) {
	assert.True(t, CanPartnerAdvance(StatusAccepted, StatusInProgress))
	assert.True(t, CanPartnerAdvance(StatusInProgress, StatusAwaitConfirmation))
	assert.True(t, CanPartnerAdvance(StatusAwaitConfirmation, StatusDelivered))

	// No skips, no reversals, nothing out of pending or terminal states.
	assert.False(t, CanPartnerAdvance(StatusPending, StatusAccepted))
	assert.False(t, CanPartnerAdvance(StatusPending, StatusInProgress))
	assert.False(t, CanPartnerAdvance(StatusAccepted, StatusAwaitConfirmation))
	assert.False(t, CanPartnerAdvance(StatusAccepted, StatusDelivered))
	assert.False(t, CanPartnerAdvance(StatusInProgress, StatusAccepted))
	assert.False(t, CanPartnerAdvance(StatusDelivered, StatusInProgress))
	assert.False(t, CanPartnerAdvance(StatusCancelled, StatusDelivered))
}
