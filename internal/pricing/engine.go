// Package pricing derives monetary figures for orders from immutable snapshots.
// Every function here is pure: it performs no I/O and never mutates its input,
// so it can be called concurrently on independent snapshots.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept on every amount.
const Places = 2

var hundred = decimal.NewFromInt(100)

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

func validateItem(item Item) error {
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: item %d unit price %s is negative", ErrInvalidValue, item.ID, item.UnitPrice)
	}
	if item.Quantity < 0 {
		return fmt.Errorf("%w: item %d quantity %d is negative", ErrInvalidValue, item.ID, item.Quantity)
	}
	if item.Discount.IsNegative() || item.Discount.GreaterThan(hundred) {
		return fmt.Errorf("%w: item %d discount %s outside [0,100]", ErrInvalidValue, item.ID, item.Discount)
	}
	return nil
}

// ItemTotalPrice returns unit price times quantity. A zero quantity is legal
// and yields zero.
func ItemTotalPrice(item Item) (decimal.Decimal, error) {
	if err := validateItem(item); err != nil {
		return decimal.Zero, err
	}
	return round(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))), nil
}

// ItemDiscountAmount returns the share of the item total removed by the
// item's percentage discount.
func ItemDiscountAmount(item Item) (decimal.Decimal, error) {
	total, err := ItemTotalPrice(item)
	if err != nil {
		return decimal.Zero, err
	}
	return round(total.Mul(item.Discount).Div(hundred)), nil
}

// ItemTaxTotal sums the tax snapshots recorded on the item.
func ItemTaxTotal(item Item) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, tax := range item.Taxes {
		if tax.TaxValue.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: item %d tax %d value %s is negative",
				ErrInvalidValue, item.ID, tax.ID, tax.TaxValue)
		}
		sum = sum.Add(tax.TaxValue)
	}
	return round(sum), nil
}

// ItemNetPrice is what the item contributes to the order subtotal:
// total price minus item discount plus recorded taxes.
func ItemNetPrice(item Item) (decimal.Decimal, error) {
	total, err := ItemTotalPrice(item)
	if err != nil {
		return decimal.Zero, err
	}
	discount, err := ItemDiscountAmount(item)
	if err != nil {
		return decimal.Zero, err
	}
	tax, err := ItemTaxTotal(item)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Sub(discount).Add(tax), nil
}

// IsCombo reports whether the item stands for a bundled combo. Combo items
// are priced exactly like product items.
func IsCombo(item Item) bool {
	return item.ComboID != nil
}

// OrderItemsCount counts the items in the snapshot.
func OrderItemsCount(order Order) int {
	return len(order.Items)
}

// DiscountAmount returns what a single order-level discount takes off the
// given order total.
func DiscountAmount(d Discount, total decimal.Decimal) (decimal.Decimal, error) {
	if d.Value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: discount %d value %s is negative", ErrInvalidValue, d.ID, d.Value)
	}
	switch d.Type {
	case DiscountTypeFixed:
		return round(d.Value), nil
	case DiscountTypePercentage:
		if d.Value.GreaterThan(hundred) {
			return decimal.Zero, fmt.Errorf("%w: discount %d percentage %s above 100", ErrInvalidValue, d.ID, d.Value)
		}
		return round(total.Mul(d.Value).Div(hundred)), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: discount %d has unknown type %q", ErrInvalidValue, d.ID, d.Type)
	}
}

// OrderTotalDiscount sums the order-level discounts. Percentage discounts
// apply to the stored order total, never to a value being recomputed.
func OrderTotalDiscount(order Order) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, d := range order.Discounts {
		amount, err := DiscountAmount(d, order.Total)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(amount)
	}
	return sum, nil
}

// OrderTotalAmount is the payable amount. It is not clamped at zero.
func OrderTotalAmount(order Order) (decimal.Decimal, error) {
	discount, err := OrderTotalDiscount(order)
	if err != nil {
		return decimal.Zero, err
	}
	return round(order.Total).Sub(discount), nil
}

// OrderSubtotalRecompute sums ItemNetPrice over items, which must all
// belong to order. Taxes are part of the subtotal.
func OrderSubtotalRecompute(order Order, items []Item) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, item := range items {
		if item.OrderID != order.ID {
			return decimal.Zero, fmt.Errorf("%w: item %d belongs to order %d, not %d",
				ErrInconsistentState, item.ID, item.OrderID, order.ID)
		}
		net, err := ItemNetPrice(item)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(net)
	}
	return sum, nil
}

// ValidateCombos checks that every combo reference resolves against known.
func ValidateCombos(items []Item, known map[uint]bool) error {
	for _, item := range items {
		if !IsCombo(item) {
			continue
		}
		if !known[*item.ComboID] {
			return fmt.Errorf("%w: item %d references unknown combo %d",
				ErrInconsistentState, item.ID, *item.ComboID)
		}
	}
	return nil
}

// ComboIDs returns the distinct combo references of items in first-seen order.
func ComboIDs(items []Item) []uint {
	seen := make(map[uint]bool)
	var ids []uint
	for _, item := range items {
		if item.ComboID == nil || seen[*item.ComboID] {
			continue
		}
		seen[*item.ComboID] = true
		ids = append(ids, *item.ComboID)
	}
	return ids
}

// Summarize derives every figure for the snapshot as stored. SubTotal is
// recomputed from the items; Total is the stored total the discounts apply to.
func Summarize(order Order) (Summary, error) {
	subTotal, err := OrderSubtotalRecompute(order, order.Items)
	if err != nil {
		return Summary{}, err
	}
	discount, err := OrderTotalDiscount(order)
	if err != nil {
		return Summary{}, err
	}
	amount, err := OrderTotalAmount(order)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		ItemsCount:    OrderItemsCount(order),
		SubTotal:      subTotal,
		Total:         round(order.Total),
		TotalDiscount: discount,
		TotalAmount:   amount,
	}, nil
}
