package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"retail-be/internal/order"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

// orderFile is the JSON accepted by "ordersctl create". Money fields take
// either strings or numbers.
type orderFile struct {
	EditStock    *bool      `json:"edit_stock"`
	CustomerID   *uint      `json:"customer_id"`
	AddressID    *uint      `json:"address_id"`
	RetailShopID *uint      `json:"retail_shop_id"`
	Items        []itemFile `json:"items"`
	DiscountIDs  []uint     `json:"discount_ids"`
}

type itemFile struct {
	ProductID *uint           `json:"product_id"`
	StockID   *uint           `json:"stock_id"`
	ComboID   *uint           `json:"combo_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int16           `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
	Taxes     []taxFile       `json:"taxes"`
	AddOnIDs  []uint          `json:"add_on_ids"`
}

type taxFile struct {
	TaxID    uint            `json:"tax_id"`
	TaxValue decimal.Decimal `json:"tax_value"`
}

func decodeOrderFile(r io.Reader) (order.CreateOrderInput, error) {
	var f orderFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return order.CreateOrderInput{}, fmt.Errorf("invalid order file: %w", err)
	}

	in := order.CreateOrderInput{
		EditStock:    f.EditStock == nil || *f.EditStock,
		CustomerID:   f.CustomerID,
		AddressID:    f.AddressID,
		RetailShopID: f.RetailShopID,
		DiscountIDs:  f.DiscountIDs,
	}
	for _, it := range f.Items {
		item := &order.Item{
			ProductID: it.ProductID,
			StockID:   it.StockID,
			ComboID:   it.ComboID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Discount:  it.Discount,
		}
		for _, t := range it.Taxes {
			item.Taxes = append(item.Taxes, &order.ItemTax{TaxID: t.TaxID, TaxValue: t.TaxValue})
		}
		for _, id := range it.AddOnIDs {
			item.AddOns = append(item.AddOns, &order.ItemAddOn{AddOnID: id})
		}
		in.Items = append(in.Items, item)
	}
	return in, nil
}

type createdView struct {
	OrderID  uint   `json:"order_id"`
	SubTotal string `json:"sub_total"`
	Total    string `json:"total"`
	ItemIDs  []uint `json:"item_ids"`
}

func (a *App) createOrder(c *cli.Context) error {
	var r io.Reader = a.In
	if path := c.String("file"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open order file: %w", err)
		}
		defer f.Close()
		r = f
	}

	input, err := decodeOrderFile(r)
	if err != nil {
		return err
	}

	o, err := a.Orders.CreateOrder(c.Context, input)
	if err != nil {
		return err
	}

	view := createdView{
		OrderID:  o.ID,
		SubTotal: money(o.SubTotal),
		Total:    money(o.Total),
		ItemIDs:  make([]uint, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		view.ItemIDs = append(view.ItemIDs, it.ID)
	}
	return a.print(view)
}
