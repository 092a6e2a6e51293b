package orders_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"swiftdash/internal/events"
	"swiftdash/internal/inventory"
	"swiftdash/internal/kvstore"
	"swiftdash/internal/models"
	"swiftdash/internal/orders"
	"swiftdash/internal/routing"
	"swiftdash/internal/storage/memory"
)

type fixture struct {
	store *memory.Store
	bus   *events.Bus
	kv    *kvstore.MemoryStore
	svc   *orders.Service

	customer *models.Customer
	branch   *models.Branch
	partner  *models.DeliveryPartner
	product  *models.Product
}

func newFixture(t *testing.T, cfg orders.Config) *fixture {
	t.Helper()

	store := memory.NewStore()
	bus := events.NewBus(16, nil)
	kv := kvstore.NewMemoryStore()
	ledger := inventory.NewLedger(store, nil, 10)
	estimator := routing.NewEstimator(nil, routing.Config{})

	f := &fixture{
		store: store,
		bus:   bus,
		kv:    kv,
		svc:   orders.NewService(store, store, store, ledger, bus, estimator, kv, nil, cfg),
	}

	f.customer = &models.Customer{
		Name: "Deniz",
		Address: models.Address{
			Detail:   "Bagdat Cd. 17",
			Location: models.GeoPoint{Latitude: 40.98, Longitude: 29.06},
		},
	}
	store.PutCustomer(f.customer)

	f.branch = &models.Branch{
		Name: "Kadikoy",
		Address: models.Address{
			Detail:   "Moda Cd. 5",
			Location: models.GeoPoint{Latitude: 40.99, Longitude: 29.03},
		},
	}
	store.PutBranch(f.branch)

	f.partner = &models.DeliveryPartner{Name: "Mert", BranchID: f.branch.ID}
	store.PutPartner(f.partner)

	f.product = &models.Product{Name: "Su 5L", BasePrice: 40, Stock: 100}
	store.PutProduct(f.product)

	return f
}

func (f *fixture) createOrder(t *testing.T, units int) *models.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), orders.CreateOrderInput{
		CustomerID:    f.customer.ID,
		BranchID:      f.branch.ID,
		Items:         []orders.CreateItemInput{{ProductID: f.product.ID, Units: units}},
		PaymentMethod: models.PaymentMethodCOD,
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) acceptedOrder(t *testing.T, units int) *models.Order {
	t.Helper()
	order := f.createOrder(t, units)
	accepted, err := f.svc.Accept(context.Background(), order.ID, f.partner.ID)
	require.NoError(t, err)
	return accepted
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	p, err := f.store.FindProduct(context.Background(), f.product.ID)
	require.NoError(t, err)
	return p.Stock
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, orders.Config{BaseDeliveryFee: 20, PerKmFee: 8})

	branchRoom := f.bus.Subscribe(events.BranchTopic(f.branch.ID))
	defer branchRoom.Close()

	order := f.createOrder(t, 3)

	assert.Equal(t, "ORD-000001", order.OrderCode)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, 120.0, order.TotalPrice)
	assert.Greater(t, order.DeliveryFee, 20.0, "fee grows with distance")
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.Nil(t, order.DeliveryPartnerID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 40.0, order.Items[0].UnitPrice)

	// Stock is only reserved at accept.
	assert.Equal(t, 100, f.stock(t))

	evt := <-branchRoom.Events()
	assert.Equal(t, events.EventNewOrderAvailable, evt.Name)
	assert.Equal(t, order.ID.Hex(), evt.OrderID)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t, orders.Config{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, orders.CreateOrderInput{
		CustomerID:    f.customer.ID,
		BranchID:      f.branch.ID,
		PaymentMethod: models.PaymentMethodCOD,
	})
	var validationErr models.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = f.svc.Create(ctx, orders.CreateOrderInput{
		CustomerID:    f.customer.ID,
		BranchID:      f.branch.ID,
		Items:         []orders.CreateItemInput{{ProductID: f.product.ID, Units: 1}},
		PaymentMethod: "card",
	})
	assert.ErrorAs(t, err, &validationErr)

	_, err = f.svc.Create(ctx, orders.CreateOrderInput{
		CustomerID:    f.customer.ID,
		BranchID:      f.branch.ID,
		Items:         []orders.CreateItemInput{{ProductID: primitive.NewObjectID(), Units: 1}},
		PaymentMethod: models.PaymentMethodCOD,
	})
	var notFound models.ProductNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestCreateOrderCODLimit(t *testing.T) {
	f := newFixture(t, orders.Config{CODLimit: 100})

	_, err := f.svc.Create(context.Background(), orders.CreateOrderInput{
		CustomerID:    f.customer.ID,
		BranchID:      f.branch.ID,
		Items:         []orders.CreateItemInput{{ProductID: f.product.ID, Units: 5}},
		PaymentMethod: models.PaymentMethodCOD,
	})
	assert.ErrorIs(t, err, models.ErrCODLimitExceeded)

	// The same cart is fine when paid online.
	_, err = f.svc.Create(context.Background(), orders.CreateOrderInput{
		CustomerID:    f.customer.ID,
		BranchID:      f.branch.ID,
		Items:         []orders.CreateItemInput{{ProductID: f.product.ID, Units: 5}},
		PaymentMethod: models.PaymentMethodOnline,
	})
	assert.NoError(t, err)
}

func TestAcceptReservesStockAndBindsPartner(t *testing.T) {
	f := newFixture(t, orders.Config{})
	order := f.createOrder(t, 4)

	accepted, err := f.svc.Accept(context.Background(), order.ID, f.partner.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.DeliveryPartnerID)
	assert.Equal(t, f.partner.ID, *accepted.DeliveryPartnerID)
	assert.NotNil(t, accepted.ReservedAt)
	assert.Equal(t, 96, f.stock(t))
}

func TestAcceptExactlyOneWinner(t *testing.T) {
	f := newFixture(t, orders.Config{})
	order := f.createOrder(t, 1)

	partners := make([]*models.DeliveryPartner, 8)
	for i := range partners {
		p := &models.DeliveryPartner{Name: "p", BranchID: f.branch.ID}
		f.store.PutPartner(p)
		partners[i] = p
	}

	var wg sync.WaitGroup
	results := make(chan error, len(partners))
	for _, p := range partners {
		wg.Add(1)
		go func(id primitive.ObjectID) {
			defer wg.Done()
			_, err := f.svc.Accept(context.Background(), order.ID, id)
			results <- err
		}(p.ID)
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		var transitionErr models.InvalidTransitionError
		assert.ErrorAs(t, err, &transitionErr)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 99, f.stock(t))
}

func TestAcceptRejectsForeignBranchPartner(t *testing.T) {
	f := newFixture(t, orders.Config{})
	order := f.createOrder(t, 1)

	outsider := &models.DeliveryPartner{Name: "other", BranchID: primitive.NewObjectID()}
	f.store.PutPartner(outsider)

	_, err := f.svc.Accept(context.Background(), order.ID, outsider.ID)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAcceptRollsBackWhenStockRunsOut(t *testing.T) {
	f := newFixture(t, orders.Config{})
	order := f.createOrder(t, 5)

	// Stock drains between creation and acceptance.
	_, err := f.store.DecrementStock(context.Background(), f.product.ID, 98)
	require.NoError(t, err)

	_, err = f.svc.Accept(context.Background(), order.ID, f.partner.ID)
	var stockErr models.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	// The order is back up for grabs with no partner bound.
	reloaded, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, reloaded.Status)
	assert.Nil(t, reloaded.DeliveryPartnerID)
	assert.False(t, reloaded.StockHeld())
	assert.Equal(t, 2, f.stock(t))
}

func TestLifecycleHappyPath(t *testing.T) {
	f := newFixture(t, orders.Config{})
	ctx := context.Background()
	order := f.acceptedOrder(t, 2)

	inProgress, err := f.svc.Pickup(ctx, order.ID, f.partner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, inProgress.Status)
	require.NotNil(t, inProgress.DeliveryPersonLocation)
	assert.Equal(t, f.branch.Address.Location.Latitude, inProgress.DeliveryPersonLocation.Latitude)

	awaiting, err := f.svc.MarkDelivered(ctx, order.ID, f.partner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitConfirmation, awaiting.Status)
	require.NotNil(t, awaiting.DeliveryPersonLocation)
	assert.True(t, awaiting.DeliveryPersonLocation.IsFinalLocation)

	done, err := f.svc.Confirm(ctx, order.ID, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, done.Status)

	// Delivered orders keep their stock deduction.
	assert.Equal(t, 98, f.stock(t))
}

func TestConfirmRequiresOwningCustomer(t *testing.T) {
	f := newFixture(t, orders.Config{})
	ctx := context.Background()
	order := f.acceptedOrder(t, 1)

	_, err := f.svc.Pickup(ctx, order.ID, f.partner.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkDelivered(ctx, order.ID, f.partner.ID)
	require.NoError(t, err)

	stranger := &models.Customer{Name: "other"}
	f.store.PutCustomer(stranger)

	_, err = f.svc.Confirm(ctx, order.ID, stranger.ID)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestConfirmClosesOrderRoom(t *testing.T) {
	f := newFixture(t, orders.Config{})
	ctx := context.Background()
	order := f.acceptedOrder(t, 1)

	topic := events.OrderTopic(order.ID)
	sub := f.bus.Subscribe(topic)
	defer sub.Close()

	_, err := f.svc.Pickup(ctx, order.ID, f.partner.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkDelivered(ctx, order.ID, f.partner.ID)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, order.ID, f.customer.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, f.bus.Subscribers(topic))
}

func TestUpdateStatusFollowsAdjacencyOnly(t *testing.T) {
	f := newFixture(t, orders.Config{})
	ctx := context.Background()
	order := f.createOrder(t, 1)

	// Pending orders are claimed through Accept, never the generic path.
	_, err := f.svc.UpdateStatus(ctx, order.ID, f.partner.ID, models.StatusInProgress, nil)
	assert.ErrorIs(t, err, models.ErrUnauthorized, "no partner bound yet")

	accepted, err := f.svc.Accept(ctx, order.ID, f.partner.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, accepted.ID, f.partner.ID, models.StatusDelivered, nil)
	var transitionErr models.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, models.StatusAccepted, transitionErr.From)

	updated, err := f.svc.UpdateStatus(ctx, accepted.ID, f.partner.ID, models.StatusInProgress, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
}

func TestUpdateStatusToDeliveredClosesRoom(t *testing.T) {
	f := newFixture(t, orders.Config{})
	ctx := context.Background()
	order := f.acceptedOrder(t, 1)

	topic := events.OrderTopic(order.ID)
	sub := f.bus.Subscribe(topic)
	defer sub.Close()

	for _, next := range []models.OrderStatus{
		models.StatusInProgress, models.StatusAwaitConfirmation, models.StatusDelivered,
	} {
		_, err := f.svc.UpdateStatus(ctx, order.ID, f.partner.ID, next, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, f.bus.Subscribers(topic))
}

func TestCancelRequiresReason(t *testing.T) {
	f := newFixture(t, orders.Config{})
	order := f.createOrder(t, 1)

	_, err := f.svc.Cancel(context.Background(), order.ID, "")
	assert.ErrorIs(t, err, models.ErrCancelReasonRequired)
}

func TestCancelPendingOrderTouchesNoStock(t *testing.T) {
	f := newFixture(t, orders.Config{})
	order := f.createOrder(t, 5)

	cancelled, err := f.svc.Cancel(context.Background(), order.ID, "customer changed mind")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, "customer changed mind", cancelled.CancelReason)
	assert.Equal(t, 100, f.stock(t))
}

func TestCancelReleasesReservedStockOnce(t *testing.T) {
	f := newFixture(t, orders.Config{})
	order := f.acceptedOrder(t, 5)
	require.Equal(t, 95, f.stock(t))

	cancelled, err := f.svc.Cancel(context.Background(), order.ID, "partner unavailable")
	require.NoError(t, err)
	assert.Equal(t, 100, f.stock(t))
	assert.NotNil(t, cancelled.ReleasedAt)

	// A second cancel must fail and must not restore again.
	_, err = f.svc.Cancel(context.Background(), order.ID, "again")
	var transitionErr models.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, 100, f.stock(t))
}

func TestCancelClosesOrderRoom(t *testing.T) {
	f := newFixture(t, orders.Config{})
	order := f.createOrder(t, 1)

	topic := events.OrderTopic(order.ID)
	sub := f.bus.Subscribe(topic)
	defer sub.Close()

	_, err := f.svc.Cancel(context.Background(), order.ID, "out of range")
	require.NoError(t, err)
	assert.Equal(t, 0, f.bus.Subscribers(topic))
}

func TestUpdateLocationArchivesRouteAndFansOut(t *testing.T) {
	f := newFixture(t, orders.Config{})
	ctx := context.Background()
	order := f.acceptedOrder(t, 1)

	orderRoom := f.bus.Subscribe(events.OrderTopic(order.ID))
	defer orderRoom.Close()
	customerRoom := f.bus.Subscribe(events.CustomerTopic(f.customer.ID))
	defer customerRoom.Close()

	first, err := f.svc.UpdateLocation(ctx, order.ID, f.partner.ID, models.PartnerLocation{
		Latitude: 40.991, Longitude: 29.031,
	})
	require.NoError(t, err)
	require.NotNil(t, first.RouteData)
	assert.True(t, first.RouteData.Fallback)
	assert.Empty(t, first.RouteHistory)

	second, err := f.svc.UpdateLocation(ctx, order.ID, f.partner.ID, models.PartnerLocation{
		Latitude: 40.985, Longitude: 29.045,
	})
	require.NoError(t, err)
	require.Len(t, second.RouteHistory, 1)
	assert.Equal(t, first.RouteData.DistanceKm, second.RouteHistory[0].DistanceKm)

	evt := <-orderRoom.Events()
	assert.Equal(t, events.EventOrderLocationUpdated, evt.Name)
	delta, ok := evt.Payload.(orders.LocationDelta)
	require.True(t, ok)
	assert.Equal(t, order.ID.Hex(), delta.OrderID)
	assert.NotNil(t, delta.RouteData)

	evt = <-customerRoom.Events()
	assert.Equal(t, events.EventDeliveryPartnerLocationUpdate, evt.Name)
}

func TestUpdateLocationRateLimited(t *testing.T) {
	f := newFixture(t, orders.Config{LocationRateLimit: 2, LocationRateWindow: time.Minute})
	ctx := context.Background()
	order := f.acceptedOrder(t, 1)

	loc := models.PartnerLocation{Latitude: 40.99, Longitude: 29.03}
	_, err := f.svc.UpdateLocation(ctx, order.ID, f.partner.ID, loc)
	require.NoError(t, err)
	_, err = f.svc.UpdateLocation(ctx, order.ID, f.partner.ID, loc)
	require.NoError(t, err)

	_, err = f.svc.UpdateLocation(ctx, order.ID, f.partner.ID, loc)
	assert.ErrorIs(t, err, models.ErrRateLimited)
}

func TestUpdateLocationRequiresActiveOrder(t *testing.T) {
	f := newFixture(t, orders.Config{})
	order := f.createOrder(t, 1)

	_, err := f.svc.UpdateLocation(context.Background(), order.ID, f.partner.ID,
		models.PartnerLocation{Latitude: 40.99, Longitude: 29.03})
	assert.ErrorIs(t, err, models.ErrUnauthorized, "no partner bound on a pending order")
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture(t, orders.Config{})
	ctx := context.Background()
	order := f.createOrder(t, 2)

	details := models.PaymentDetails{
		GatewayOrderID: "gw_123",
		PaymentID:      "pay_123",
		Amount:         order.TotalPrice + order.DeliveryFee,
	}
	paid, err := f.svc.ConfirmPayment(ctx, order.ID, details)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	require.NotNil(t, paid.PaymentDetails)
	assert.False(t, paid.PaymentDetails.PaidAt.IsZero())

	// Same callback replayed.
	_, err = f.svc.ConfirmPayment(ctx, order.ID, details)
	assert.ErrorIs(t, err, models.ErrDuplicatePayment)

	// Fresh payment id against an already paid order.
	details.PaymentID = "pay_456"
	_, err = f.svc.ConfirmPayment(ctx, order.ID, details)
	assert.ErrorIs(t, err, models.ErrDuplicatePayment)
}

func TestConfirmPaymentValidatesIdentifiers(t *testing.T) {
	f := newFixture(t, orders.Config{})
	order := f.createOrder(t, 1)

	_, err := f.svc.ConfirmPayment(context.Background(), order.ID, models.PaymentDetails{PaymentID: "pay_1"})
	var validationErr models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestDeleteReleasesHeldStock(t *testing.T) {
	f := newFixture(t, orders.Config{})
	ctx := context.Background()
	order := f.acceptedOrder(t, 3)
	require.Equal(t, 97, f.stock(t))

	require.NoError(t, f.svc.Delete(ctx, order.ID))
	assert.Equal(t, 100, f.stock(t))

	_, err := f.svc.Get(ctx, order.ID)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestDeletePendingOrderLeavesStockAlone(t *testing.T) {
	f := newFixture(t, orders.Config{})
	order := f.createOrder(t, 3)

	require.NoError(t, f.svc.Delete(context.Background(), order.ID))
	assert.Equal(t, 100, f.stock(t))
}
