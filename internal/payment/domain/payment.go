package domain

import (
	"fmt"
	"strings"

	"github.com/dmehra2102/vending-machine/pkg/apperr"
)

var ErrInvalidLink = fmt.Errorf("%w: payment link must be an http or https URL", apperr.ErrInvalidInput)

// Payment records what the buyer was asked to pay and where. Money is settled
// outside the system; an operator confirms it by approving the order.
type Payment struct {
	Link        string `json:"link,omitempty"`
	AmountCents int64  `json:"amount"`
}

// NewPayment trims link and checks its scheme. An empty link is allowed.
func NewPayment(link string, amountCents int64) (Payment, error) {
	link = strings.TrimSpace(link)
	if link != "" && !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return Payment{}, ErrInvalidLink
	}
	return Payment{Link: link, AmountCents: amountCents}, nil
}
