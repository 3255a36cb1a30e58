package discount

import (
	"retail-be/internal/pricing"

	"github.com/shopspring/decimal"
)

// Discount is reusable reference data; any number of orders may attach it.
type Discount struct {
	ID    uint
	Name  *string
	Value decimal.Decimal
	Type  pricing.DiscountType
}

type Input struct {
	Name  *string
	Value decimal.Decimal
	Type  pricing.DiscountType
}

func (d *Discount) Snapshot() pricing.Discount {
	s := pricing.Discount{ID: d.ID, Value: d.Value, Type: d.Type}
	if d.Name != nil {
		s.Name = *d.Name
	}
	return s
}
