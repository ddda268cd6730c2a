// Package checkout turns an in-memory cart into a committed sale.
//
// The cart pre-validates stock so the cashier gets immediate feedback;
// Checkout re-validates against the store before anything is written.
package checkout

import (
	"math"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
)

// Weighed (PLU) presets in kilograms.
const (
	// PresetKilogram is the free-form unit: base price, quantity adjustable.
	PresetKilogram = 1.0

	// PresetQuarter is the fixed 0.25 kg pack: base price plus surcharge,
	// quantity locked.
	PresetQuarter = 0.25
)

// EffectiveUnitPrice returns the unit price for a weighed line of qty kg.
// The surcharge applies iff qty is the 0.25 kg preset.
func EffectiveUnitPrice(base, surcharge int64, qty float64) int64 {
	if math.Abs(qty-PresetQuarter) < pos.QuantityEpsilon {
		return base + surcharge
	}
	return base
}

// LineKey identifies a cart line. A product can appear at most twice:
// once as a free line and once as a locked 0.25 kg pack.
type LineKey struct {
	ProductID int64
	Locked    bool
}

// Line is one product selection in a cart.
type Line struct {
	Product   pos.Product
	Quantity  float64 `validate:"gt=0"`
	UnitPrice int64   `validate:"gte=0"`

	// Locked lines ignore Increment and are removed by Decrement.
	Locked bool
}

// Key returns the line's identity within the cart.
func (l Line) Key() LineKey {
	return LineKey{ProductID: l.Product.ID, Locked: l.Locked}
}

// Subtotal returns UnitPrice × Quantity in whole rupiah.
func (l Line) Subtotal() int64 {
	return pos.LineSubtotal(l.UnitPrice, l.Quantity)
}

// Cart holds the lines of a sale being rung up. A Cart is not safe for
// concurrent use; each register owns one.
type Cart struct {
	surcharge int64
	lines     []Line
}

// NewCart returns an empty cart. surcharge is added to the unit price of
// 0.25 kg weighed packs.
func NewCart(surcharge int64) *Cart {
	return &Cart{surcharge: surcharge}
}

// Add puts qty units of p into the cart, merging with the product's free
// line if there is one. Fails with STOCK_INSUFFICIENT, leaving the cart
// unchanged, if the product's total quantity in the cart would exceed its
// stock.
func (c *Cart) Add(p pos.Product, qty float64) error {
	if qty <= 0 {
		return pos.NewValidationError("quantity must be positive, got %g", qty)
	}
	if err := c.checkStock(p, qty); err != nil {
		return err
	}
	if i := c.index(LineKey{ProductID: p.ID}); i >= 0 {
		c.lines[i].Product = p
		c.lines[i].Quantity += qty
		return nil
	}
	c.lines = append(c.lines, Line{Product: p, Quantity: qty, UnitPrice: p.Price})
	return nil
}

// ConfirmWeighed adds a weighed item using one of the two presets.
//
// The 1 kg preset behaves like Add at the base price. The 0.25 kg preset
// adds a locked line priced at base + surcharge. A product holds at most
// one pack: confirming it again fails with VALIDATION and leaves the cart
// unchanged. Any other weight is rejected.
func (c *Cart) ConfirmWeighed(p pos.Product, weight float64) error {
	switch {
	case pos.QuantityEqual(weight, PresetKilogram):
		return c.Add(p, PresetKilogram)
	case pos.QuantityEqual(weight, PresetQuarter):
		key := LineKey{ProductID: p.ID, Locked: true}
		if c.index(key) >= 0 {
			return pos.NewValidationError("%g kg pack of %q is already in the cart", PresetQuarter, p.Name)
		}
		if err := c.checkStock(p, PresetQuarter); err != nil {
			return err
		}
		c.lines = append(c.lines, Line{
			Product:   p,
			Quantity:  PresetQuarter,
			UnitPrice: EffectiveUnitPrice(p.Price, c.surcharge, PresetQuarter),
			Locked:    true,
		})
		return nil
	}
	return pos.NewValidationError("weight %g kg is not a preset (%g or %g)", weight, PresetKilogram, PresetQuarter)
}

// Increment adds one unit to a free line. It is a no-op on a locked line.
func (c *Cart) Increment(key LineKey) error {
	i := c.index(key)
	if i < 0 {
		return pos.NewNotFoundError("cart line for product", key.ProductID)
	}
	if c.lines[i].Locked {
		return nil
	}
	if err := c.checkStock(c.lines[i].Product, 1); err != nil {
		return err
	}
	c.lines[i].Quantity++
	return nil
}

// Decrement removes one unit from a free line, dropping the line when it
// reaches zero. A locked line is removed entirely.
func (c *Cart) Decrement(key LineKey) error {
	i := c.index(key)
	if i < 0 {
		return pos.NewNotFoundError("cart line for product", key.ProductID)
	}
	if c.lines[i].Locked || c.lines[i].Quantity <= 1+pos.QuantityEpsilon {
		c.removeAt(i)
		return nil
	}
	c.lines[i].Quantity--
	return nil
}

// Remove drops a line. Removing a missing line is a no-op.
func (c *Cart) Remove(key LineKey) {
	if i := c.index(key); i >= 0 {
		c.removeAt(i)
	}
}

// Lines returns a copy of the cart's lines in insertion order.
func (c *Cart) Lines() []Line {
	return append([]Line(nil), c.lines...)
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Quantity returns the total quantity of a product across its lines.
func (c *Cart) Quantity(productID int64) float64 {
	var q float64
	for _, l := range c.lines {
		if l.Product.ID == productID {
			q += l.Quantity
		}
	}
	return q
}

// Total returns Σ line subtotals.
func (c *Cart) Total() int64 {
	var total int64
	for _, l := range c.lines {
		total += l.Subtotal()
	}
	return total
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) checkStock(p pos.Product, extra float64) error {
	want := c.Quantity(p.ID) + extra
	if p.Deleted || !pos.Covers(p.Stock, want) {
		available := p.Stock
		if p.Deleted {
			available = 0
		}
		return pos.NewStockError(pos.Shortage{
			ProductID: p.ID,
			Name:      p.Name,
			Requested: want,
			Available: available,
		})
	}
	return nil
}

func (c *Cart) index(key LineKey) int {
	for i, l := range c.lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}
