// Package inventory is the exclusive gate on product stock mutation.
package inventory

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"swiftdash/internal/metrics"
	"swiftdash/internal/models"
)

// ProductStore is the storage contract the ledger drives. DecrementStock must
// be an atomic conditional decrement (stock >= units), never read-then-write,
// so two concurrent reservations can never jointly oversell a product.
type ProductStore interface {
	FindProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	// DecrementStock atomically decrements stock by units if stock >= units
	// and returns the remaining stock. It returns a
	// models.InsufficientStockError when the condition does not hold.
	DecrementStock(ctx context.Context, id primitive.ObjectID, units int) (int, error)
	IncrementStock(ctx context.Context, id primitive.ObjectID, units int) error
}

// Line is one reservation entry.
type Line struct {
	ProductID primitive.ObjectID
	Units     int
}

// Ledger guards stock decrement/restore against overselling.
type Ledger struct {
	store            ProductStore
	metrics          *metrics.Metrics
	defaultThreshold int
	log              *logrus.Entry
}

// NewLedger builds a ledger. defaultThreshold is the low-stock advisory level
// used for products that do not set their own.
func NewLedger(store ProductStore, m *metrics.Metrics, defaultThreshold int) *Ledger {
	return &Ledger{
		store:            store,
		metrics:          m,
		defaultThreshold: defaultThreshold,
		log:              logrus.WithField("component", "inventory"),
	}
}

// Reserve re-validates current stock for every line and atomically decrements
// it. The operation is all-or-nothing per order: if any line fails, every
// already-applied decrement is restored before the error is returned.
func (l *Ledger) Reserve(ctx context.Context, lines []Line) error {
	applied := make([]Line, 0, len(lines))

	for _, line := range lines {
		product, err := l.store.FindProduct(ctx, line.ProductID)
		if err != nil {
			l.rollback(ctx, applied)
			return err
		}

		// Advisory pre-read; the decrement below is the authoritative check.
		if product.Stock < line.Units {
			l.rollback(ctx, applied)
			l.metrics.ReservationRejected()
			return models.InsufficientStockError{
				ProductID: line.ProductID,
				Available: product.Stock,
				Requested: line.Units,
			}
		}

		remaining, err := l.store.DecrementStock(ctx, line.ProductID, line.Units)
		if err != nil {
			l.rollback(ctx, applied)
			var stockErr models.InsufficientStockError
			if errors.As(err, &stockErr) {
				l.metrics.ReservationRejected()
			}
			return err
		}
		applied = append(applied, line)

		threshold := product.LowStockThreshold
		if threshold <= 0 {
			threshold = l.defaultThreshold
		}
		if remaining < threshold {
			l.metrics.LowStockAdvisory(line.ProductID.Hex())
			l.log.WithFields(logrus.Fields{
				"product":   line.ProductID.Hex(),
				"remaining": remaining,
				"threshold": threshold,
			}).Warn("stock below advisory threshold")
		}
	}

	l.metrics.ReservationCommitted()
	return nil
}

// Release increments stock back per line; used on cancellation or deletion.
// It is not idempotent: callers must invoke it at most once per order, which
// the state machine's terminal-transition guard enforces.
func (l *Ledger) Release(ctx context.Context, lines []Line) error {
	for _, line := range lines {
		if err := l.store.IncrementStock(ctx, line.ProductID, line.Units); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) rollback(ctx context.Context, applied []Line) {
	for _, line := range applied {
		if err := l.store.IncrementStock(ctx, line.ProductID, line.Units); err != nil {
			l.log.WithError(err).WithField("product", line.ProductID.Hex()).
				Error("failed to restore stock after partial reservation")
		}
	}
}
