// Package pricing holds the shared pricing rules: the free-shipping
// threshold, the flat shipping fee, the consumption tax rate and the
// sale-discount computation. All arithmetic goes through decimals so
// totals stay exact at two decimal places.
package pricing

import "github.com/shopspring/decimal"

const (
	// FreeShippingThreshold is the subtotal above which shipping is free.
	FreeShippingThreshold = 5000.0
	// FlatShippingCost is charged on any non-empty cart at or below the
	// threshold.
	FlatShippingCost = 200.0
	// TaxRate is the flat consumption tax applied to the subtotal,
	// before shipping.
	TaxRate = 0.18
)

// ShippingCost returns the shipping fee for a given subtotal. An empty
// cart ships free regardless of the threshold.
func ShippingCost(subtotal float64) float64 {
	if subtotal <= 0 {
		return 0
	}
	if subtotal > FreeShippingThreshold {
		return 0
	}
	return FlatShippingCost
}

// Tax returns the consumption tax on a subtotal, rounded to two
// decimal places.
func Tax(subtotal float64) float64 {
	t := decimal.NewFromFloat(subtotal).
		Mul(decimal.NewFromFloat(TaxRate)).
		Round(2)
	f, _ := t.Float64()
	return f
}

// LineTotal returns unit price times quantity, rounded to two decimal
// places.
func LineTotal(unitPrice float64, quantity int) float64 {
	t := decimal.NewFromFloat(unitPrice).
		Mul(decimal.NewFromInt(int64(quantity))).
		Round(2)
	f, _ := t.Float64()
	return f
}

// GrandTotal returns subtotal + shipping + tax - discount, rounded to
// two decimal places.
func GrandTotal(subtotal, shipping, tax, discount float64) float64 {
	t := decimal.NewFromFloat(subtotal).
		Add(decimal.NewFromFloat(shipping)).
		Add(decimal.NewFromFloat(tax)).
		Sub(decimal.NewFromFloat(discount)).
		Round(2)
	f, _ := t.Float64()
	return f
}

// DiscountPercent returns the whole-number percentage discount of a
// sale price against the base price, 0 when there is no effective sale.
func DiscountPercent(price, salePrice float64) int {
	if price <= 0 || salePrice <= 0 || salePrice >= price {
		return 0
	}
	p := decimal.NewFromFloat(price)
	pct := p.Sub(decimal.NewFromFloat(salePrice)).
		Div(p).
		Mul(decimal.NewFromInt(100)).
		Round(0)
	return int(pct.IntPart())
}
