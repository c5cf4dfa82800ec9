package domain

import (
	"strings"
	"unicode"
)

type Product struct {
	Key         string
	Name        string
	PriceCents  int64
	Description string

	pool InventoryPool
}

// Stock is always derived from the pool so the two can never drift.
func (p *Product) Stock() int { return p.pool.Len() }

func (p *Product) Pool() *InventoryPool { return &p.pool }

func (p *Product) Level() StockLevel {
	return StockLevel{
		Key:         p.Key,
		Name:        p.Name,
		PriceCents:  p.PriceCents,
		Description: p.Description,
		Stock:       p.Stock(),
	}
}

// ValidKey reports whether key is made of letters, digits and underscores
// with at least one letter or digit.
func ValidKey(key string) bool {
	alnum := false
	for _, r := range key {
		switch {
		case r == '_':
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			alnum = true
		default:
			return false
		}
	}
	return alnum
}

// ParseUnits splits a newline separated batch into trimmed, non-blank units.
func ParseUnits(text string) []string {
	return cleanUnits(strings.Split(text, "\n"))
}

func cleanUnits(raw []string) []string {
	units := make([]string, 0, len(raw))
	for _, u := range raw {
		if u = strings.TrimSpace(u); u != "" {
			units = append(units, u)
		}
	}
	return units
}
