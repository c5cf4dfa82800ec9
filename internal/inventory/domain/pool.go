package domain

// InventoryPool is a FIFO queue of opaque unit payloads belonging to one
// product. It does no locking of its own: the tenant that owns the product
// serializes every call.
type InventoryPool struct {
	units []string
}

func (p *InventoryPool) Len() int { return len(p.units) }

// TryTake removes and returns the oldest unit. ok is false, and nothing
// changes, when the pool is empty.
func (p *InventoryPool) TryTake() (unit string, ok bool) {
	if len(p.units) == 0 {
		return "", false
	}
	unit = p.units[0]
	p.units[0] = ""
	p.units = p.units[1:]
	return unit, true
}

// Return puts a unit back at the front so a retried delivery gets it ahead
// of stock appended since.
func (p *InventoryPool) Return(unit string) {
	p.units = append([]string{unit}, p.units...)
}

func (p *InventoryPool) Append(units ...string) {
	p.units = append(p.units, units...)
}

// Units returns a copy of the queue, oldest first.
func (p *InventoryPool) Units() []string {
	out := make([]string, len(p.units))
	copy(out, p.units)
	return out
}
