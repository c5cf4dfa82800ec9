package domain

import (
	"fmt"

	"github.com/dmehra2102/vending-machine/pkg/apperr"
)

var (
	ErrInvalidKey       = fmt.Errorf("%w: product key must be alphanumeric or underscore", apperr.ErrInvalidInput)
	ErrInvalidPrice     = fmt.Errorf("%w: price must be at least 1", apperr.ErrInvalidInput)
	ErrEmptyBatch       = fmt.Errorf("%w: no inventory units given", apperr.ErrInvalidInput)
	ErrDuplicateProduct = fmt.Errorf("%w: product already exists", apperr.ErrConflict)
	ErrProductNotFound  = fmt.Errorf("%w: product", apperr.ErrNotFound)
	ErrOutOfStock       = fmt.Errorf("%w: no units left", apperr.ErrOutOfStock)
)
