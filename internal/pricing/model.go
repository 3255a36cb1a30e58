package pricing

import "github.com/shopspring/decimal"

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

func (t DiscountType) Valid() bool {
	return t == DiscountTypePercentage || t == DiscountTypeFixed
}

type Discount struct {
	ID    uint
	Name  string
	Value decimal.Decimal
	Type  DiscountType
}

// ItemTax is the tax computed for an item when the order was placed.
// It never follows later changes to the tax rate.
type ItemTax struct {
	ID       uint
	TaxID    uint
	TaxValue decimal.Decimal
}

type ItemAddOn struct {
	ID      uint
	AddOnID uint
}

type Item struct {
	ID        uint
	OrderID   uint
	ProductID uint
	StockID   *uint
	ComboID   *uint
	UnitPrice decimal.Decimal
	Quantity  int
	// Discount is a percentage in [0, 100].
	Discount decimal.Decimal
	Taxes    []ItemTax
	AddOns   []ItemAddOn
}

type Order struct {
	ID        uint
	SubTotal  decimal.Decimal
	Total     decimal.Decimal
	Discounts []Discount
	Items     []Item
}

type Summary struct {
	ItemsCount    int
	SubTotal      decimal.Decimal
	Total         decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalAmount   decimal.Decimal
}
