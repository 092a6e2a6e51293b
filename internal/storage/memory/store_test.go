package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"swiftdash/internal/models"
	"swiftdash/internal/orders"
)

func TestApplyTransitionIsConditional(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	order := &models.Order{Status: models.StatusPending}
	require.NoError(t, store.InsertOrder(ctx, order))

	partnerID := primitive.NewObjectID()
	updated, err := store.ApplyTransition(ctx, order.ID, orders.StatusTransition{
		From:              models.StatusPending,
		To:                models.StatusAccepted,
		DeliveryPartnerID: &partnerID,
		MarkReserved:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, updated.Status)
	assert.NotNil(t, updated.ReservedAt)

	// Stale precondition loses.
	_, err = store.ApplyTransition(ctx, order.ID, orders.StatusTransition{
		From: models.StatusPending,
		To:   models.StatusAccepted,
	})
	assert.ErrorIs(t, err, models.ErrTransitionConflict)
}

func TestClearDeliveryPartnerAlsoDropsReservation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	order := &models.Order{Status: models.StatusPending}
	require.NoError(t, store.InsertOrder(ctx, order))

	partnerID := primitive.NewObjectID()
	_, err := store.ApplyTransition(ctx, order.ID, orders.StatusTransition{
		From:              models.StatusPending,
		To:                models.StatusAccepted,
		DeliveryPartnerID: &partnerID,
		MarkReserved:      true,
	})
	require.NoError(t, err)

	reverted, err := store.ApplyTransition(ctx, order.ID, orders.StatusTransition{
		From:                 models.StatusAccepted,
		To:                   models.StatusPending,
		ClearDeliveryPartner: true,
	})
	require.NoError(t, err)
	assert.Nil(t, reverted.DeliveryPartnerID)
	assert.Nil(t, reverted.ReservedAt)
	assert.False(t, reverted.StockHeld())
}

func TestFindOrderReturnsIsolatedCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	order := &models.Order{
		Status: models.StatusPending,
		Items:  []models.OrderItem{{Name: "Su 5L", UnitsBought: 2}},
	}
	require.NoError(t, store.InsertOrder(ctx, order))

	first, err := store.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	first.Items[0].UnitsBought = 99
	first.Status = models.StatusCancelled

	second, err := store.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Items[0].UnitsBought)
	assert.Equal(t, models.StatusPending, second.Status)
}

func TestNextOrderCodeIsSequential(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	first, err := store.NextOrderCode(ctx)
	require.NoError(t, err)
	second, err := store.NextOrderCode(ctx)
	require.NoError(t, err)

	assert.Equal(t, "ORD-000001", first)
	assert.Equal(t, "ORD-000002", second)
}
