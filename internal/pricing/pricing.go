package pricing

import (
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"swiftdash/internal/models"
)

// Pricing modes recorded on order line snapshots.
const (
	ModeRetail    = "retail"
	ModeWholesale = "wholesale"
)

// WholesaleCartThreshold is the minimum cart total (computed under the
// tentative wholesale-aware pricing) at which wholesale pricing is honored
// at all. Below it the whole cart is re-priced retail-only.
const WholesaleCartThreshold = 2500.0

// Line is one resolved cart entry. Product is nil when the referenced id did
// not resolve; ProductID is kept so the failure can name the line.
type Line struct {
	ProductID primitive.ObjectID
	Product   *models.Product
	Units     int
}

// PricedItem is the computed snapshot for one line.
type PricedItem struct {
	Product       *models.Product
	Mode          string
	UnitsBought   int
	BundlesBought int
	UnitPrice     float64
	TotalPrice    float64
}

// Quote is the result of pricing a full cart.
type Quote struct {
	Items     []PricedItem
	CartTotal float64
}

// Price computes per-line and cart-level pricing. It is pure: identical inputs
// always produce identical output.
//
// Non-eligible customers get retail pricing on every line. Eligible customers
// are evaluated per line for wholesale bundling, which is chosen only when
// strictly cheaper than the retail line total. Wholesale is then honored only
// if the tentative wholesale-aware cart total meets WholesaleCartThreshold;
// otherwise the entire cart is recomputed retail-only in a second pass.
//
// The stock check here is advisory; the ledger re-validates at acceptance.
func Price(lines []Line, eligible bool) (Quote, error) {
	for _, line := range lines {
		if line.Product == nil {
			return Quote{}, models.ProductNotFoundError{ProductID: line.ProductID}
		}
		if line.Product.Stock < line.Units {
			return Quote{}, models.InsufficientStockError{
				ProductID: line.Product.ID,
				Available: line.Product.Stock,
				Requested: line.Units,
			}
		}
	}

	quote := priceAll(lines, eligible)
	if eligible && quote.CartTotal < WholesaleCartThreshold && hasWholesale(quote.Items) {
		quote = priceAll(lines, false)
	}
	return quote, nil
}

func priceAll(lines []Line, eligible bool) Quote {
	items := make([]PricedItem, 0, len(lines))
	var rawTotal float64

	for _, line := range lines {
		item, raw := priceLine(line, eligible)
		rawTotal += raw
		items = append(items, item)
	}

	return Quote{Items: items, CartTotal: round2(rawTotal)}
}

// priceLine returns the priced snapshot plus the unrounded line total so the
// cart total can be rounded once at the end rather than per line.
func priceLine(line Line, eligible bool) (PricedItem, float64) {
	p := line.Product
	retailUnit := p.RetailUnitPrice()
	retailTotal := retailUnit * float64(line.Units)

	item := PricedItem{
		Product:     p,
		Mode:        ModeRetail,
		UnitsBought: line.Units,
		UnitPrice:   retailUnit,
	}
	raw := retailTotal

	if eligible && p.BundleEligible() {
		bundles := line.Units / p.UnitPerSubscription
		remainder := line.Units % p.UnitPerSubscription
		wholesaleTotal := float64(bundles)*p.SubscriptionPrice + float64(remainder)*retailUnit
		if wholesaleTotal < retailTotal {
			item.Mode = ModeWholesale
			item.BundlesBought = bundles
			item.UnitPrice = p.SubscriptionPrice / float64(p.UnitPerSubscription)
			raw = wholesaleTotal
		}
	}

	item.TotalPrice = round2(raw)
	return item, raw
}

func hasWholesale(items []PricedItem) bool {
	for _, item := range items {
		if item.Mode == ModeWholesale {
			return true
		}
	}
	return false
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
