package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func uintPtr(v uint) *uint {
	return &v
}

func TestItemTotalPrice(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		item := Item{ID: 1, UnitPrice: dec("50.00"), Quantity: 3, Discount: dec("10")}

		total, err := ItemTotalPrice(item)
		require.NoError(t, err)
		assert.Equal(t, "150.00", total.StringFixed(2))
	})

	t.Run("ZeroQuantity", func(t *testing.T) {
		total, err := ItemTotalPrice(Item{UnitPrice: dec("9.99"), Quantity: 0})
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	})

	t.Run("NegativeQuantity", func(t *testing.T) {
		_, err := ItemTotalPrice(Item{UnitPrice: dec("9.99"), Quantity: -1})
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("NegativeUnitPrice", func(t *testing.T) {
		_, err := ItemTotalPrice(Item{UnitPrice: dec("-0.01"), Quantity: 1})
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("NeverNegative", func(t *testing.T) {
		prices := []string{"0", "0.01", "1.10", "999.99"}
		for _, p := range prices {
			for q := 0; q < 5; q++ {
				total, err := ItemTotalPrice(Item{UnitPrice: dec(p), Quantity: q})
				require.NoError(t, err)
				assert.False(t, total.IsNegative())
			}
		}
	})
}

func TestItemDiscountAmount(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		item := Item{UnitPrice: dec("50.00"), Quantity: 3, Discount: dec("10")}

		amount, err := ItemDiscountAmount(item)
		require.NoError(t, err)
		assert.Equal(t, "15.00", amount.StringFixed(2))
	})

	t.Run("Bounds", func(t *testing.T) {
		for _, pct := range []string{"0", "0.5", "33.33", "99.99", "100"} {
			item := Item{UnitPrice: dec("19.99"), Quantity: 7, Discount: dec(pct)}

			total, err := ItemTotalPrice(item)
			require.NoError(t, err)
			amount, err := ItemDiscountAmount(item)
			require.NoError(t, err)

			assert.False(t, amount.IsNegative(), pct)
			assert.True(t, amount.LessThanOrEqual(total), pct)
		}
	})

	t.Run("AboveHundred", func(t *testing.T) {
		_, err := ItemDiscountAmount(Item{UnitPrice: dec("10"), Quantity: 1, Discount: dec("150")})
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("Negative", func(t *testing.T) {
		_, err := ItemDiscountAmount(Item{UnitPrice: dec("10"), Quantity: 1, Discount: dec("-1")})
		assert.ErrorIs(t, err, ErrInvalidValue)
	})
}

func TestItemTaxTotalAndNetPrice(t *testing.T) {
	item := Item{
		ID:        4,
		UnitPrice: dec("20.00"),
		Quantity:  2,
		Discount:  dec("25"),
		Taxes: []ItemTax{
			{ID: 1, TaxValue: dec("1.50")},
			{ID: 2, TaxValue: dec("0.70")},
		},
	}

	tax, err := ItemTaxTotal(item)
	require.NoError(t, err)
	assert.Equal(t, "2.20", tax.StringFixed(2))

	net, err := ItemNetPrice(item)
	require.NoError(t, err)
	// 40.00 - 10.00 + 2.20
	assert.Equal(t, "32.20", net.StringFixed(2))

	item.Taxes = append(item.Taxes, ItemTax{ID: 3, TaxValue: dec("-1")})
	_, err = ItemTaxTotal(item)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestIsCombo(t *testing.T) {
	assert.False(t, IsCombo(Item{}))
	assert.True(t, IsCombo(Item{ComboID: uintPtr(3)}))

	plain := Item{UnitPrice: dec("5"), Quantity: 2}
	combo := plain
	combo.ComboID = uintPtr(3)

	a, err := ItemTotalPrice(plain)
	require.NoError(t, err)
	b, err := ItemTotalPrice(combo)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestOrderItemsCount(t *testing.T) {
	assert.Equal(t, 0, OrderItemsCount(Order{}))
	assert.Equal(t, 3, OrderItemsCount(Order{Items: []Item{{ID: 1}, {ID: 2}, {ID: 3}}}))
}

func TestOrderTotalDiscount(t *testing.T) {
	t.Run("MixedTypes", func(t *testing.T) {
		order := Order{
			Total: dec("200.00"),
			Discounts: []Discount{
				{ID: 1, Type: DiscountTypeFixed, Value: dec("10.00")},
				{ID: 2, Type: DiscountTypePercentage, Value: dec("5")},
			},
		}

		discount, err := OrderTotalDiscount(order)
		require.NoError(t, err)
		assert.Equal(t, "20.00", discount.StringFixed(2))

		amount, err := OrderTotalAmount(order)
		require.NoError(t, err)
		assert.Equal(t, "180.00", amount.StringFixed(2))
	})

	t.Run("SameTypeIsAdditive", func(t *testing.T) {
		order := Order{
			Total: dec("100.00"),
			Discounts: []Discount{
				{Type: DiscountTypePercentage, Value: dec("10")},
				{Type: DiscountTypePercentage, Value: dec("10")},
			},
		}

		discount, err := OrderTotalDiscount(order)
		require.NoError(t, err)
		assert.Equal(t, "20.00", discount.StringFixed(2))
	})

	t.Run("NoDiscounts", func(t *testing.T) {
		discount, err := OrderTotalDiscount(Order{Total: dec("12.34")})
		require.NoError(t, err)
		assert.True(t, discount.IsZero())
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := OrderTotalDiscount(Order{Discounts: []Discount{{Type: "VALUE", Value: dec("1")}}})
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("PercentageAboveHundred", func(t *testing.T) {
		_, err := OrderTotalDiscount(Order{Discounts: []Discount{{Type: DiscountTypePercentage, Value: dec("101")}}})
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("NegativeValue", func(t *testing.T) {
		_, err := OrderTotalDiscount(Order{Discounts: []Discount{{Type: DiscountTypeFixed, Value: dec("-5")}}})
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("ManySmallAmountsDoNotDrift", func(t *testing.T) {
		order := Order{Total: dec("1000.00")}
		for i := 0; i < 1000; i++ {
			order.Discounts = append(order.Discounts, Discount{Type: DiscountTypeFixed, Value: dec("0.10")})
		}

		discount, err := OrderTotalDiscount(order)
		require.NoError(t, err)
		assert.Equal(t, "100.00", discount.StringFixed(2))
	})
}

func TestOrderTotalAmount_NotClamped(t *testing.T) {
	order := Order{
		Total:     dec("5.00"),
		Discounts: []Discount{{Type: DiscountTypeFixed, Value: dec("7.50")}},
	}

	amount, err := OrderTotalAmount(order)
	require.NoError(t, err)
	assert.Equal(t, "-2.50", amount.StringFixed(2))
}

func TestOrderSubtotalRecompute(t *testing.T) {
	order := Order{ID: 9}
	items := []Item{
		{ID: 1, OrderID: 9, UnitPrice: dec("50.00"), Quantity: 3, Discount: dec("10")},
		{ID: 2, OrderID: 9, UnitPrice: dec("2.50"), Quantity: 4, Taxes: []ItemTax{{TaxValue: dec("0.50")}}},
	}

	t.Run("Success", func(t *testing.T) {
		sub, err := OrderSubtotalRecompute(order, items)
		require.NoError(t, err)
		// 135.00 + 10.00 + 0.50
		assert.Equal(t, "145.50", sub.StringFixed(2))
	})

	t.Run("Empty", func(t *testing.T) {
		sub, err := OrderSubtotalRecompute(order, nil)
		require.NoError(t, err)
		assert.True(t, sub.IsZero())
	})

	t.Run("ForeignItem", func(t *testing.T) {
		foreign := append([]Item{}, items...)
		foreign[1].OrderID = 10

		_, err := OrderSubtotalRecompute(order, foreign)
		assert.ErrorIs(t, err, ErrInconsistentState)
	})

	t.Run("InvalidItem", func(t *testing.T) {
		bad := append([]Item{}, items...)
		bad[0].Discount = dec("150")

		_, err := OrderSubtotalRecompute(order, bad)
		assert.ErrorIs(t, err, ErrInvalidValue)
	})
}

func TestValidateCombos(t *testing.T) {
	items := []Item{
		{ID: 1},
		{ID: 2, ComboID: uintPtr(7)},
		{ID: 3, ComboID: uintPtr(8)},
		{ID: 4, ComboID: uintPtr(7)},
	}

	assert.Equal(t, []uint{7, 8}, ComboIDs(items))
	assert.NoError(t, ValidateCombos(items, map[uint]bool{7: true, 8: true}))
	assert.ErrorIs(t, ValidateCombos(items, map[uint]bool{7: true}), ErrInconsistentState)
	assert.Nil(t, ComboIDs(items[:1]))
}

func TestSummarize(t *testing.T) {
	order := Order{
		ID:    1,
		Total: dec("200.00"),
		Discounts: []Discount{
			{Type: DiscountTypeFixed, Value: dec("10.00")},
			{Type: DiscountTypePercentage, Value: dec("5")},
		},
		Items: []Item{
			{ID: 1, OrderID: 1, UnitPrice: dec("50.00"), Quantity: 4},
		},
	}

	first, err := Summarize(order)
	require.NoError(t, err)
	second, err := Summarize(order)
	require.NoError(t, err)

	assert.Equal(t, 1, first.ItemsCount)
	assert.Equal(t, "200.00", first.SubTotal.StringFixed(2))
	assert.Equal(t, "20.00", first.TotalDiscount.StringFixed(2))
	assert.Equal(t, "180.00", first.TotalAmount.StringFixed(2))

	assert.Equal(t, first.ItemsCount, second.ItemsCount)
	assert.Equal(t, first.SubTotal.String(), second.SubTotal.String())
	assert.Equal(t, first.TotalDiscount.String(), second.TotalDiscount.String())
	assert.Equal(t, first.TotalAmount.String(), second.TotalAmount.String())
}
