// Package orders owns the order lifecycle: it enforces legal transitions,
// drives the inventory ledger and the event bus, and attaches route/location
// metadata. Every operation validates ownership and current-state legality
// before mutating; violations leave the order untouched.
package orders

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"swiftdash/internal/events"
	"swiftdash/internal/inventory"
	"swiftdash/internal/kvstore"
	"swiftdash/internal/metrics"
	"swiftdash/internal/models"
	"swiftdash/internal/pricing"
	"swiftdash/internal/routing"
)

// Config carries the service tunables.
type Config struct {
	BaseDeliveryFee float64
	PerKmFee        float64
	CODLimit        float64

	// Per-partner location update throttle.
	LocationRateLimit  int64
	LocationRateWindow time.Duration
}

// Service is the order state machine.
type Service struct {
	store     Store
	dir       Directory
	products  inventory.ProductStore
	ledger    *inventory.Ledger
	bus       *events.Bus
	estimator *routing.Estimator
	kv        kvstore.Store
	metrics   *metrics.Metrics
	cfg       Config
	log       *logrus.Entry
}

// NewService wires the state machine. metrics may be nil.
func NewService(store Store, dir Directory, products inventory.ProductStore, ledger *inventory.Ledger,
	bus *events.Bus, estimator *routing.Estimator, kv kvstore.Store, m *metrics.Metrics, cfg Config) *Service {
	if cfg.LocationRateLimit <= 0 {
		cfg.LocationRateLimit = 30
	}
	if cfg.LocationRateWindow <= 0 {
		cfg.LocationRateWindow = time.Minute
	}
	return &Service{
		store:     store,
		dir:       dir,
		products:  products,
		ledger:    ledger,
		bus:       bus,
		estimator: estimator,
		kv:        kv,
		metrics:   m,
		cfg:       cfg,
		log:       logrus.WithField("component", "orders"),
	}
}

// CreateItemInput is one requested cart line.
type CreateItemInput struct {
	ProductID primitive.ObjectID
	Units     int
}

// CreateOrderInput is the creation request after transport-level binding.
type CreateOrderInput struct {
	CustomerID    primitive.ObjectID
	BranchID      primitive.ObjectID
	Items         []CreateItemInput
	PaymentMethod string

	// DeliveryAddress defaults to the customer's stored address when nil.
	DeliveryAddress *models.Address

	// DeliveryFeeOverride replaces the computed fee when set (upstream-computed value).
	DeliveryFeeOverride *float64
}

// Create prices the cart, freezes the line snapshots and persists the order
// in pending. Stock is only soft-checked here; reservation happens at accept.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, models.ValidationError{Message: "at least one item is required"}
	}
	if input.PaymentMethod != models.PaymentMethodCOD && input.PaymentMethod != models.PaymentMethodOnline {
		return nil, models.ValidationError{Message: "invalid payment method"}
	}
	for _, item := range input.Items {
		if item.Units <= 0 {
			return nil, models.ValidationError{Message: "units must be greater than zero"}
		}
	}

	customer, err := s.dir.FindCustomer(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	branch, err := s.dir.FindBranch(ctx, input.BranchID)
	if err != nil {
		return nil, err
	}

	deliveryAddress := customer.Address
	if input.DeliveryAddress != nil {
		deliveryAddress = *input.DeliveryAddress
	}

	lines := make([]pricing.Line, 0, len(input.Items))
	for _, item := range input.Items {
		product, err := s.products.FindProduct(ctx, item.ProductID)
		if err != nil {
			var notFound models.ProductNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
			product = nil
		}
		lines = append(lines, pricing.Line{ProductID: item.ProductID, Product: product, Units: item.Units})
	}

	quote, err := pricing.Price(lines, customer.IsSubscribed)
	if err != nil {
		return nil, err
	}

	fee := s.deliveryFee(branch.Address.Location, deliveryAddress.Location)
	if input.DeliveryFeeOverride != nil {
		fee = round2(*input.DeliveryFeeOverride)
	}

	if input.PaymentMethod == models.PaymentMethodCOD && s.cfg.CODLimit > 0 &&
		quote.CartTotal+fee > s.cfg.CODLimit {
		return nil, models.ErrCODLimitExceeded
	}

	code, err := s.store.NextOrderCode(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &models.Order{
		OrderCode:        code,
		CustomerID:       customer.ID,
		BranchID:         branch.ID,
		Items:            snapshotItems(quote.Items),
		TotalPrice:       quote.CartTotal,
		DeliveryFee:      fee,
		PaymentMethod:    input.PaymentMethod,
		PaymentStatus:    models.PaymentPending,
		Status:           models.StatusPending,
		DeliveryLocation: deliveryAddress,
		PickupLocation:   branch.Address,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertOrder(ctx, order); err != nil {
		return nil, err
	}

	s.metrics.OrderCreated()
	s.log.WithFields(logrus.Fields{"order": order.OrderCode, "branch": branch.ID.Hex()}).
		Info("order created")

	s.bus.Publish(events.BranchTopic(branch.ID),
		events.New(events.EventNewOrderAvailable, order.ID.Hex(), order))
	return order, nil
}

// Accept binds a delivery partner to a pending order and reserves stock.
// Exactly one of N concurrent accepts can win the conditional pending ->
// accepted update; losers fail their precondition and the order is untouched.
func (s *Service) Accept(ctx context.Context, orderID, partnerID primitive.ObjectID) (*models.Order, error) {
	partner, err := s.dir.FindDeliveryPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusPending {
		return nil, models.InvalidTransitionError{From: order.Status, To: models.StatusAccepted}
	}
	if partner.BranchID != order.BranchID {
		return nil, models.ErrUnauthorized
	}

	updated, err := s.store.ApplyTransition(ctx, orderID, StatusTransition{
		From:              models.StatusPending,
		To:                models.StatusAccepted,
		DeliveryPartnerID: &partnerID,
		MarkReserved:      true,
	})
	if err != nil {
		return nil, s.transitionError(ctx, orderID, err, models.StatusAccepted)
	}

	if err := s.ledger.Reserve(ctx, reservationLines(updated)); err != nil {
		// Hard check failed: put the order back up for grabs.
		if _, rbErr := s.store.ApplyTransition(ctx, orderID, StatusTransition{
			From:                 models.StatusAccepted,
			To:                   models.StatusPending,
			ClearDeliveryPartner: true,
		}); rbErr != nil {
			s.log.WithError(rbErr).WithField("order", orderID.Hex()).
				Error("failed to roll back accept after reservation failure")
		}
		return nil, err
	}

	s.metrics.OrderAccepted()
	s.log.WithFields(logrus.Fields{"order": updated.OrderCode, "partner": partnerID.Hex()}).
		Info("order accepted")

	s.bus.Publish(events.OrderTopic(orderID),
		events.New(events.EventOrderStatusUpdated, orderID.Hex(), updated))
	// Hide the order from the other partners idle at the branch.
	s.bus.Publish(events.BranchTopic(updated.BranchID),
		events.New(events.EventOrderAcceptedByOther, orderID.Hex(), updated))
	return updated, nil
}

// Pickup moves an accepted order to in-progress and seats the partner at the
// pickup location.
func (s *Service) Pickup(ctx context.Context, orderID, partnerID primitive.ObjectID) (*models.Order, error) {
	order, err := s.ownedOrder(ctx, orderID, partnerID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusAccepted {
		return nil, models.InvalidTransitionError{From: order.Status, To: models.StatusInProgress}
	}

	loc := models.PartnerLocation{
		Latitude:  order.PickupLocation.Location.Latitude,
		Longitude: order.PickupLocation.Location.Longitude,
		Timestamp: time.Now().UTC(),
	}
	updated, err := s.store.ApplyTransition(ctx, orderID, StatusTransition{
		From:                   models.StatusAccepted,
		To:                     models.StatusInProgress,
		DeliveryPersonLocation: &loc,
	})
	if err != nil {
		return nil, s.transitionError(ctx, orderID, err, models.StatusInProgress)
	}

	s.bus.Publish(events.OrderTopic(orderID),
		events.New(events.EventOrderPickedUp, orderID.Hex(), updated))
	s.bus.Publish(events.CustomerTopic(updated.CustomerID),
		events.New(events.EventOrderInProgress, orderID.Hex(), updated))
	return updated, nil
}

// MarkDelivered moves an in-progress order to awaitconfirmation and freezes
// the partner's terminal location snapshot.
func (s *Service) MarkDelivered(ctx context.Context, orderID, partnerID primitive.ObjectID) (*models.Order, error) {
	order, err := s.ownedOrder(ctx, orderID, partnerID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusInProgress {
		return nil, models.InvalidTransitionError{From: order.Status, To: models.StatusAwaitConfirmation}
	}

	loc := finalLocation(order)
	updated, err := s.store.ApplyTransition(ctx, orderID, StatusTransition{
		From:                   models.StatusInProgress,
		To:                     models.StatusAwaitConfirmation,
		DeliveryPersonLocation: &loc,
	})
	if err != nil {
		return nil, s.transitionError(ctx, orderID, err, models.StatusAwaitConfirmation)
	}

	s.bus.Publish(events.OrderTopic(orderID),
		events.New(events.EventOrderStatusUpdated, orderID.Hex(), updated))
	s.bus.Publish(events.CustomerTopic(updated.CustomerID),
		events.New(events.EventAwaitingCustomerConfirmation, orderID.Hex(), updated))
	return updated, nil
}

// Confirm finalizes delivery. Only the order's customer may confirm; the
// order room is force-closed afterwards.
func (s *Service) Confirm(ctx context.Context, orderID, customerID primitive.ObjectID) (*models.Order, error) {
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, models.ErrUnauthorized
	}
	if order.Status != models.StatusAwaitConfirmation {
		return nil, models.InvalidTransitionError{From: order.Status, To: models.StatusDelivered}
	}

	updated, err := s.store.ApplyTransition(ctx, orderID, StatusTransition{
		From: models.StatusAwaitConfirmation,
		To:   models.StatusDelivered,
	})
	if err != nil {
		return nil, s.transitionError(ctx, orderID, err, models.StatusDelivered)
	}

	s.metrics.OrderDelivered()
	s.log.WithField("order", updated.OrderCode).Info("delivery confirmed")

	s.bus.Publish(events.OrderTopic(orderID),
		events.New(events.EventDeliveryConfirmed, orderID.Hex(), updated))
	s.bus.Publish(events.CustomerTopic(updated.CustomerID),
		events.New(events.EventOrderCompleted, orderID.Hex(), updated))
	s.bus.CloseTopic(events.OrderTopic(orderID))
	return updated, nil
}

// Cancel moves any non-terminal order to cancelled and releases reserved
// stock exactly once. The reason is mandatory.
func (s *Service) Cancel(ctx context.Context, orderID primitive.ObjectID, reason string) (*models.Order, error) {
	if reason == "" {
		return nil, models.ErrCancelReasonRequired
	}

	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, models.InvalidTransitionError{From: order.Status, To: models.StatusCancelled}
	}

	release := order.StockHeld()
	updated, err := s.store.ApplyTransition(ctx, orderID, StatusTransition{
		From:         order.Status,
		To:           models.StatusCancelled,
		CancelReason: reason,
		MarkReleased: release,
	})
	if err != nil {
		return nil, s.transitionError(ctx, orderID, err, models.StatusCancelled)
	}

	if release {
		if err := s.ledger.Release(ctx, reservationLines(updated)); err != nil {
			s.log.WithError(err).WithField("order", updated.OrderCode).
				Error("failed to restore stock on cancellation")
		}
	}

	s.metrics.OrderCancelled()
	s.log.WithFields(logrus.Fields{"order": updated.OrderCode, "reason": reason}).
		Info("order cancelled")

	s.bus.Publish(events.OrderTopic(orderID),
		events.New(events.EventOrderCancelled, orderID.Hex(), updated))
	s.bus.Publish(events.CustomerTopic(updated.CustomerID),
		events.New(events.EventOrderCancelled, orderID.Hex(), updated))
	s.bus.Publish(events.BranchTopic(updated.BranchID),
		events.New(events.EventOrderCancelled, orderID.Hex(), updated))
	s.bus.CloseTopic(events.OrderTopic(orderID))
	return updated, nil
}

// UpdateStatus is the generic status-set path for the bound delivery partner.
// Only moves present in the explicit adjacency table are permitted.
func (s *Service) UpdateStatus(ctx context.Context, orderID, partnerID primitive.ObjectID,
	to models.OrderStatus, loc *models.PartnerLocation) (*models.Order, error) {
	if !to.Valid() {
		return nil, models.ValidationError{Message: "unknown order status"}
	}
	order, err := s.ownedOrder(ctx, orderID, partnerID)
	if err != nil {
		return nil, err
	}
	if !models.CanPartnerAdvance(order.Status, to) {
		return nil, models.InvalidTransitionError{From: order.Status, To: to}
	}

	t := StatusTransition{From: order.Status, To: to}
	if loc != nil {
		loc.Timestamp = time.Now().UTC()
		t.DeliveryPersonLocation = loc
	}
	if to == models.StatusAwaitConfirmation && t.DeliveryPersonLocation == nil {
		final := finalLocation(order)
		t.DeliveryPersonLocation = &final
	}

	updated, err := s.store.ApplyTransition(ctx, orderID, t)
	if err != nil {
		return nil, s.transitionError(ctx, orderID, err, to)
	}

	s.bus.Publish(events.OrderTopic(orderID),
		events.New(events.EventOrderStatusUpdated, orderID.Hex(), updated))
	switch to {
	case models.StatusInProgress:
		s.bus.Publish(events.CustomerTopic(updated.CustomerID),
			events.New(events.EventOrderInProgress, orderID.Hex(), updated))
	case models.StatusAwaitConfirmation:
		s.bus.Publish(events.CustomerTopic(updated.CustomerID),
			events.New(events.EventAwaitingCustomerConfirmation, orderID.Hex(), updated))
	case models.StatusDelivered:
		s.metrics.OrderDelivered()
		s.bus.Publish(events.CustomerTopic(updated.CustomerID),
			events.New(events.EventOrderCompleted, orderID.Hex(), updated))
		s.bus.CloseTopic(events.OrderTopic(orderID))
	}
	return updated, nil
}

// LocationDelta is the payload for location events.
type LocationDelta struct {
	OrderID   string                 `json:"orderId"`
	Location  models.PartnerLocation `json:"location"`
	RouteData *models.RouteData      `json:"routeData,omitempty"`
}

// UpdateLocation records the partner's position, re-estimates the route
// (archiving the superseded one) and fans the delta out.
func (s *Service) UpdateLocation(ctx context.Context, orderID, partnerID primitive.ObjectID,
	loc models.PartnerLocation) (*models.Order, error) {
	order, err := s.ownedOrder(ctx, orderID, partnerID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusAccepted && order.Status != models.StatusInProgress {
		return nil, models.InvalidTransitionError{From: order.Status, To: order.Status}
	}

	count := s.kv.Increment("locrate:"+partnerID.Hex(), s.cfg.LocationRateWindow)
	if count > s.cfg.LocationRateLimit {
		return nil, models.ErrRateLimited
	}

	loc.Timestamp = time.Now().UTC()
	loc.IsFinalLocation = false
	route := s.estimator.Estimate(ctx, loc.Point(), order.DeliveryLocation.Location)

	updated, err := s.store.UpdateLocation(ctx, orderID, loc, &route)
	if err != nil {
		return nil, err
	}

	delta := LocationDelta{OrderID: orderID.Hex(), Location: loc, RouteData: updated.RouteData}
	s.bus.Publish(events.OrderTopic(orderID),
		events.New(events.EventOrderLocationUpdated, orderID.Hex(), delta))
	s.bus.Publish(events.CustomerTopic(updated.CustomerID),
		events.New(events.EventDeliveryPartnerLocationUpdate, orderID.Hex(), delta))
	return updated, nil
}

// ConfirmPayment consumes the verified payment-confirmation callback. The
// duplicate gate is a TTL mark on the payment id plus the conditional
// pending -> paid update at the store.
func (s *Service) ConfirmPayment(ctx context.Context, orderID primitive.ObjectID,
	details models.PaymentDetails) (*models.Order, error) {
	if details.PaymentID == "" || details.GatewayOrderID == "" {
		return nil, models.ValidationError{Message: "payment id and gateway order id are required"}
	}

	key := "payment:" + details.PaymentID
	if !s.kv.SetNX(key, 24*time.Hour) {
		return nil, models.ErrDuplicatePayment
	}

	details.PaidAt = time.Now().UTC()
	updated, err := s.store.ConfirmPayment(ctx, orderID, details)
	if err != nil {
		if !errors.Is(err, models.ErrDuplicatePayment) {
			// Transient store failure: let the gateway retry the callback.
			s.kv.Delete(key)
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"order": updated.OrderCode, "payment": details.PaymentID}).
		Info("payment confirmed")
	s.bus.Publish(events.CustomerTopic(updated.CustomerID),
		events.New(events.EventOrderStatusUpdated, orderID.Hex(), updated))
	return updated, nil
}

// Delete is the administrative hard remove: it releases any stock the order
// still holds regardless of status, then drops the record. It is not a
// state-machine transition and deliberately bypasses room unsubscription.
func (s *Service) Delete(ctx context.Context, orderID primitive.ObjectID) error {
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.StockHeld() {
		if err := s.ledger.Release(ctx, reservationLines(order)); err != nil {
			return err
		}
	}
	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	s.log.WithField("order", order.OrderCode).Info("order deleted")
	return nil
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, orderID primitive.ObjectID) (*models.Order, error) {
	return s.store.FindOrder(ctx, orderID)
}

func (s *Service) ownedOrder(ctx context.Context, orderID, partnerID primitive.ObjectID) (*models.Order, error) {
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsBoundPartner(partnerID) {
		return nil, models.ErrUnauthorized
	}
	return order, nil
}

// transitionError maps a storage CAS miss to an InvalidTransitionError built
// from the order's actual current status.
func (s *Service) transitionError(ctx context.Context, orderID primitive.ObjectID, err error, to models.OrderStatus) error {
	if !errors.Is(err, models.ErrTransitionConflict) {
		return err
	}
	current, findErr := s.store.FindOrder(ctx, orderID)
	if findErr != nil {
		return models.InvalidTransitionError{To: to}
	}
	return models.InvalidTransitionError{From: current.Status, To: to}
}

func (s *Service) deliveryFee(from, to models.GeoPoint) float64 {
	distance := routing.HaversineKm(from, to)
	return round2(s.cfg.BaseDeliveryFee + s.cfg.PerKmFee*distance)
}

func snapshotItems(items []pricing.PricedItem) []models.OrderItem {
	snapshots := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		p := item.Product
		snapshots = append(snapshots, models.OrderItem{
			ProductID:           p.ID,
			Name:                p.Name,
			Brand:               p.Brand,
			QuantityDescriptor:  p.QuantityDescriptor,
			PricingMode:         item.Mode,
			UnitsBought:         item.UnitsBought,
			BundlesBought:       item.BundlesBought,
			UnitPrice:           item.UnitPrice,
			TotalPrice:          item.TotalPrice,
			BasePrice:           p.BasePrice,
			DiscountPrice:       p.DiscountPrice,
			SubscriptionPrice:   p.SubscriptionPrice,
			UnitPerSubscription: p.UnitPerSubscription,
		})
	}
	return snapshots
}

func reservationLines(order *models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Units: item.UnitsBought})
	}
	return lines
}

func finalLocation(order *models.Order) models.PartnerLocation {
	loc := models.PartnerLocation{Timestamp: time.Now().UTC(), IsFinalLocation: true}
	if order.DeliveryPersonLocation != nil {
		loc.Latitude = order.DeliveryPersonLocation.Latitude
		loc.Longitude = order.DeliveryPersonLocation.Longitude
		loc.Accuracy = order.DeliveryPersonLocation.Accuracy
	} else {
		loc.Latitude = order.DeliveryLocation.Location.Latitude
		loc.Longitude = order.DeliveryLocation.Location.Longitude
	}
	return loc
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
