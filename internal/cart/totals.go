package cart

import (
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

var (
	discountThreshold = decimal.NewFromInt(1000)
	discountRate      = decimal.NewFromFloat(0.10)
)

// LineItem is a booked trip as it appears in the cart.
type LineItem struct {
	ID          string          `json:"id"`
	Destination string          `json:"destination"`
	Price       decimal.Decimal `json:"price"`
}

// Totals summarises the amounts owed for a cart.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals sums item prices and applies a 10% discount, rounded to a whole
// unit, once the subtotal reaches 1000.
func ComputeTotals(items []LineItem) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Price)
	}
	discount := decimal.Zero
	if subtotal.GreaterThanOrEqual(discountThreshold) {
		discount = subtotal.Mul(discountRate).Round(0)
	}
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}
