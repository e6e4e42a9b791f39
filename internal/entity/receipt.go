package entity

import (
	"github.com/shopspring/decimal"
)

// MaxItemPrice is the sanity ceiling above which a parsed price is treated as noise.
var MaxItemPrice = decimal.NewFromInt(500)

// LineItem is a single purchased item on a receipt.
type LineItem struct {
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       *string         `json:"unit"`
	Category   string          `json:"category"`
	ExpiryDate *Date           `json:"expiry_date,omitempty"`
}

// ValidPrice reports whether p may be stored as a line item price.
func ValidPrice(p decimal.Decimal) bool {
	return !p.IsNegative() && !p.GreaterThan(MaxItemPrice)
}

// StructuredReceipt is the structured form of a store receipt.
type StructuredReceipt struct {
	Merchant string          `json:"merchant"`
	Date     *Date           `json:"date"`
	Total    decimal.Decimal `json:"total"`
	Tax      decimal.Decimal `json:"tax"`
	Items    []LineItem      `json:"items"`
}

// ItemsTotal sums the item prices.
func (r StructuredReceipt) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range r.Items {
		sum = sum.Add(it.Price)
	}
	return sum
}
