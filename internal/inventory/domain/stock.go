package domain

// StockLevel is a point-in-time view of a product. Stock is copied out of the
// pool when the view is taken and does not follow later changes.
type StockLevel struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	PriceCents  int64  `json:"price"`
	Description string `json:"description"`
	Stock       int    `json:"stock"`
}

func (s StockLevel) Available() bool { return s.Stock > 0 }
