package pos

import "math"

// QuantityEpsilon is the tolerance used when comparing fractional
// quantities and stock levels.
const QuantityEpsilon = 1e-6

// LineSubtotal returns price × quantity rounded to whole rupiah.
func LineSubtotal(price int64, qty float64) int64 {
	return int64(math.Round(float64(price) * qty))
}

// LineProfit returns (price − cost) × quantity rounded to whole rupiah.
func LineProfit(price, cost int64, qty float64) int64 {
	return int64(math.Round(float64(price-cost) * qty))
}

// NewItem builds a line for p at the given unit price, snapshotting the
// product name and cost.
func NewItem(p Product, qty float64, unitPrice int64) Item {
	it := Item{
		ProductID:   p.ID,
		ProductName: NormalizeName(p.Name),
		Quantity:    qty,
		Price:       unitPrice,
		CostPrice:   p.CostPrice,
	}
	it.Recompute()
	return it
}

// Recompute derives Subtotal and Profit from price, cost and quantity.
func (i *Item) Recompute() {
	i.Subtotal = LineSubtotal(i.Price, i.Quantity)
	i.Profit = LineProfit(i.Price, i.CostPrice, i.Quantity)
}

// SumSubtotals returns Σ item.Subtotal.
func SumSubtotals(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.Subtotal
	}
	return total
}

// Settlement returns cash_received and change for a sale of total paid by m.
//
// Cash: change = max(0, cash − total). Credit: cash_received = total and
// change = 0, since nothing is collected at the counter.
func Settlement(m PaymentMethod, total, cash int64) (cashReceived, change int64) {
	if m == PaymentCredit {
		return total, 0
	}
	if cash > total {
		return cash, cash - total
	}
	return cash, 0
}

// QuantityEqual reports whether two quantities are equal within
// QuantityEpsilon.
func QuantityEqual(a, b float64) bool {
	return math.Abs(a-b) < QuantityEpsilon
}

// Covers reports whether stock can cover qty.
func Covers(stock, qty float64) bool {
	return stock+QuantityEpsilon >= qty
}
