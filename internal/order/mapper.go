package order

import "retail-be/internal/pricing"

func ToPricingItem(i *Item) pricing.Item {
	item := pricing.Item{
		ID:        i.ID,
		OrderID:   i.OrderID,
		StockID:   i.StockID,
		ComboID:   i.ComboID,
		UnitPrice: i.UnitPrice,
		Quantity:  int(i.Quantity),
		Discount:  i.Discount,
	}
	if i.ProductID != nil {
		item.ProductID = *i.ProductID
	}
	for _, t := range i.Taxes {
		item.Taxes = append(item.Taxes, pricing.ItemTax{ID: t.ID, TaxID: t.TaxID, TaxValue: t.TaxValue})
	}
	for _, a := range i.AddOns {
		item.AddOns = append(item.AddOns, pricing.ItemAddOn{ID: a.ID, AddOnID: a.AddOnID})
	}
	return item
}

// ToPricingOrder copies o into an engine snapshot. Later changes to o do
// not leak into the snapshot.
func ToPricingOrder(o *Order) pricing.Order {
	snap := pricing.Order{
		ID:       o.ID,
		SubTotal: o.SubTotal,
		Total:    o.Total,
	}
	for _, i := range o.Items {
		snap.Items = append(snap.Items, ToPricingItem(i))
	}
	for _, d := range o.Discounts {
		snap.Discounts = append(snap.Discounts, d.Snapshot())
	}
	return snap
}

func itemComboIDs(items []*Item) []uint {
	snap := make([]pricing.Item, len(items))
	for i, it := range items {
		snap[i] = ToPricingItem(it)
	}
	return pricing.ComboIDs(snap)
}

// newItemFrom copies an input item for insertion. Store-assigned ids are
// cleared on the copy only; the caller's item is left untouched.
func newItemFrom(in *Item) *Item {
	it := *in
	it.ID = 0
	it.OrderID = 0

	it.Taxes = make([]*ItemTax, 0, len(in.Taxes))
	for _, t := range in.Taxes {
		it.Taxes = append(it.Taxes, &ItemTax{TaxID: t.TaxID, TaxValue: t.TaxValue})
	}
	it.AddOns = make([]*ItemAddOn, 0, len(in.AddOns))
	for _, a := range in.AddOns {
		it.AddOns = append(it.AddOns, &ItemAddOn{AddOnID: a.AddOnID})
	}
	return &it
}
