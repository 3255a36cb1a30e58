package status

import "errors"

var (
	ErrStatusNotFound    = errors.New("status not found")
	ErrStatusExists      = errors.New("status name or code already exists")
	ErrInvalidStatusName = errors.New("status name must be 1-20 characters")

	PgUniqueViolation = "23505"
)
