package order

import (
	"time"

	"retail-be/internal/discount"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID              uint
	EditStock       bool
	SubTotal        decimal.Decimal
	Total           decimal.Decimal
	CustomerID      *uint
	AddressID       *uint
	RetailShopID    *uint
	CurrentStatusID *uint
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Items     []*Item
	Discounts []*discount.Discount
}

// Item is owned by exactly one order.
type Item struct {
	ID        uint
	OrderID   uint
	ProductID *uint
	StockID   *uint
	ComboID   *uint
	UnitPrice decimal.Decimal
	Quantity  int16
	Discount  decimal.Decimal

	Taxes  []*ItemTax
	AddOns []*ItemAddOn
}

type ItemTax struct {
	ID       uint
	ItemID   uint
	TaxID    uint
	TaxValue decimal.Decimal
}

type ItemAddOn struct {
	ID      uint
	ItemID  uint
	AddOnID uint
}

// OrderSummary is one row of the bulk listing. The derived columns are
// computed by the database.
type OrderSummary struct {
	ID              uint
	SubTotal        decimal.Decimal
	Total           decimal.Decimal
	CurrentStatusID *uint
	CreatedAt       time.Time
	ItemsCount      int
	TotalDiscount   decimal.Decimal
	TotalAmount     decimal.Decimal
}

type TimelineEntry struct {
	StatusID  uint
	Name      string
	Code      int16
	CreatedAt time.Time
}

type CreateOrderInput struct {
	EditStock    bool
	CustomerID   *uint
	AddressID    *uint
	RetailShopID *uint
	Items        []*Item
	DiscountIDs  []uint
}

type SortDirection string

const (
	SortDirectionAsc  SortDirection = "ASC"
	SortDirectionDesc SortDirection = "DESC"
)

type OrderSortField string

const (
	OrderSortFieldCreatedAt   OrderSortField = "CREATED_AT"
	OrderSortFieldTotal       OrderSortField = "TOTAL"
	OrderSortFieldTotalAmount OrderSortField = "TOTAL_AMOUNT"
	OrderSortFieldItemsCount  OrderSortField = "ITEMS_COUNT"
)

type OrderSortInput struct {
	Field     OrderSortField
	Direction SortDirection
}

type OrderFilterInput struct {
	CustomerID   *uint
	RetailShopID *uint
	StatusID     *uint
	DateFrom     *time.Time
	DateTo       *time.Time
}

// RecalcOptions tunes RecalculateAll.
type RecalcOptions struct {
	Concurrency   int
	RatePerSecond float64
}
