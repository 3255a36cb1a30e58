package discount

import "errors"

var (
	ErrDiscountNotFound = errors.New("discount not found")
	ErrDiscountInUse    = errors.New("discount is attached to orders")

	PgForeignKeyViolation = "23503"
	PgCheckViolation      = "23514"
)
