package domain

// Catalog maps product keys to products for a single tenant, remembering the
// order products were added in. Like InventoryPool it relies on the tenant
// lock for synchronization.
type Catalog struct {
	products map[string]*Product
	keys     []string
}

func NewCatalog() *Catalog {
	return &Catalog{products: make(map[string]*Product)}
}

func (c *Catalog) AddProduct(key, name string, priceCents int64, description string) (*Product, error) {
	if !ValidKey(key) {
		return nil, ErrInvalidKey
	}
	if priceCents < 1 {
		return nil, ErrInvalidPrice
	}
	if _, ok := c.products[key]; ok {
		return nil, ErrDuplicateProduct
	}
	p := &Product{
		Key:         key,
		Name:        name,
		PriceCents:  priceCents,
		Description: description,
	}
	c.products[key] = p
	c.keys = append(c.keys, key)
	return p, nil
}

// AppendInventory trims the batch, drops blank entries and appends the rest
// to the product's pool in the given order.
func (c *Catalog) AppendInventory(key string, units []string) (int, error) {
	p, ok := c.products[key]
	if !ok {
		return 0, ErrProductNotFound
	}
	cleaned := cleanUnits(units)
	if len(cleaned) == 0 {
		return 0, ErrEmptyBatch
	}
	p.pool.Append(cleaned...)
	return len(cleaned), nil
}

func (c *Catalog) Get(key string) (*Product, bool) {
	p, ok := c.products[key]
	return p, ok
}

// ListAvailable returns a snapshot of every product in insertion order.
func (c *Catalog) ListAvailable() []StockLevel {
	out := make([]StockLevel, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.products[k].Level())
	}
	return out
}

func (c *Catalog) Len() int { return len(c.keys) }
