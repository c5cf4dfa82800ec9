package domain

import (
	"fmt"

	"github.com/dmehra2102/vending-machine/pkg/apperr"
)

var (
	ErrOrderNotFound         = fmt.Errorf("%w: order", apperr.ErrNotFound)
	ErrOrderAlreadyProcessed = fmt.Errorf("%w: order already processed", apperr.ErrConflict)
)
