// Package memory holds the in-process Store implementations used by tests.
// They preserve the production concurrency semantics: conditional status
// transitions and conditional stock decrements are atomic under one mutex.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"swiftdash/internal/models"
	"swiftdash/internal/orders"
)

// Store implements orders.Store, orders.Directory and inventory.ProductStore.
type Store struct {
	mu        sync.Mutex
	orders    map[primitive.ObjectID]*models.Order
	products  map[primitive.ObjectID]*models.Product
	customers map[primitive.ObjectID]*models.Customer
	partners  map[primitive.ObjectID]*models.DeliveryPartner
	branches  map[primitive.ObjectID]*models.Branch
	seq       int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		orders:    make(map[primitive.ObjectID]*models.Order),
		products:  make(map[primitive.ObjectID]*models.Product),
		customers: make(map[primitive.ObjectID]*models.Customer),
		partners:  make(map[primitive.ObjectID]*models.DeliveryPartner),
		branches:  make(map[primitive.ObjectID]*models.Branch),
	}
}

/* ---- seeding helpers for tests ---- */

func (s *Store) PutProduct(p *models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.products[p.ID] = p
}

func (s *Store) PutCustomer(c *models.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.customers[c.ID] = c
}

func (s *Store) PutPartner(p *models.DeliveryPartner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.partners[p.ID] = p
}

func (s *Store) PutBranch(b *models.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	s.branches[b.ID] = b
}

/* ---- orders.Store ---- */

func (s *Store) InsertOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *Store) FindOrder(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) ApplyTransition(_ context.Context, id primitive.ObjectID, t orders.StatusTransition) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	if order.Status != t.From {
		return nil, models.ErrTransitionConflict
	}

	now := time.Now().UTC()
	order.Status = t.To
	order.UpdatedAt = now
	if t.DeliveryPartnerID != nil {
		order.DeliveryPartnerID = t.DeliveryPartnerID
	}
	if t.ClearDeliveryPartner {
		order.DeliveryPartnerID = nil
		order.ReservedAt = nil
	}
	if t.DeliveryPersonLocation != nil {
		loc := *t.DeliveryPersonLocation
		order.DeliveryPersonLocation = &loc
	}
	if t.CancelReason != "" {
		order.CancelReason = t.CancelReason
	}
	if t.MarkReserved {
		ts := now
		order.ReservedAt = &ts
	}
	if t.MarkReleased {
		ts := now
		order.ReleasedAt = &ts
	}
	return cloneOrder(order), nil
}

func (s *Store) UpdateLocation(_ context.Context, id primitive.ObjectID, loc models.PartnerLocation, route *models.RouteData) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}

	l := loc
	order.DeliveryPersonLocation = &l
	if route != nil {
		if order.RouteData != nil {
			order.RouteHistory = append(order.RouteHistory, *order.RouteData)
		}
		r := *route
		order.RouteData = &r
	}
	order.UpdatedAt = time.Now().UTC()
	return cloneOrder(order), nil
}

func (s *Store) ConfirmPayment(_ context.Context, id primitive.ObjectID, details models.PaymentDetails) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	if order.PaymentStatus != models.PaymentPending {
		return nil, models.ErrDuplicatePayment
	}
	order.PaymentStatus = models.PaymentPaid
	d := details
	order.PaymentDetails = &d
	order.UpdatedAt = time.Now().UTC()
	return cloneOrder(order), nil
}

func (s *Store) DeleteOrder(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return models.ErrOrderNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *Store) NextOrderCode(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("ORD-%06d", s.seq), nil
}

/* ---- orders.Directory ---- */

func (s *Store) FindCustomer(_ context.Context, id primitive.ObjectID) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, models.ErrCustomerNotFound
	}
	clone := *c
	return &clone, nil
}

func (s *Store) FindDeliveryPartner(_ context.Context, id primitive.ObjectID) (*models.DeliveryPartner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partners[id]
	if !ok {
		return nil, models.ErrPartnerNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *Store) FindBranch(_ context.Context, id primitive.ObjectID) (*models.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[id]
	if !ok {
		return nil, models.ErrBranchNotFound
	}
	clone := *b
	return &clone, nil
}

/* ---- inventory.ProductStore ---- */

func (s *Store) FindProduct(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.IsDeleted {
		return nil, models.ProductNotFoundError{ProductID: id}
	}
	clone := *p
	return &clone, nil
}

func (s *Store) DecrementStock(_ context.Context, id primitive.ObjectID, units int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.IsDeleted {
		return 0, models.ProductNotFoundError{ProductID: id}
	}
	if p.Stock < units {
		return 0, models.InsufficientStockError{ProductID: id, Available: p.Stock, Requested: units}
	}
	p.Stock -= units
	return p.Stock, nil
}

func (s *Store) IncrementStock(_ context.Context, id primitive.ObjectID, units int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return models.ProductNotFoundError{ProductID: id}
	}
	p.Stock += units
	return nil
}

func cloneOrder(order *models.Order) *models.Order {
	clone := *order
	clone.Items = append([]models.OrderItem(nil), order.Items...)
	clone.RouteHistory = append([]models.RouteData(nil), order.RouteHistory...)
	if order.DeliveryPersonLocation != nil {
		loc := *order.DeliveryPersonLocation
		clone.DeliveryPersonLocation = &loc
	}
	if order.RouteData != nil {
		r := *order.RouteData
		clone.RouteData = &r
	}
	if order.PaymentDetails != nil {
		d := *order.PaymentDetails
		clone.PaymentDetails = &d
	}
	return &clone
}
