package pricing

import "errors"

var (
	ErrInvalidValue      = errors.New("invalid value")
	ErrInconsistentState = errors.New("inconsistent state")
)
