package order

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrItemNotFound        = errors.New("item not found in order")
	ErrDiscountNotAttached = errors.New("discount not attached to order")
	ErrEmptyOrder          = errors.New("order has no items")
)
