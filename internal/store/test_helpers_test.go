package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/testutil"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(testutil.NewDeterministicClock().Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedProduct inserts a product with the given stock and price.
func seedProduct(t *testing.T, s *Store, name string, stock float64, price int64) pos.Product {
	t.Helper()
	id, err := s.CreateProduct(context.Background(), pos.Product{
		Name:      name,
		Price:     price,
		CostPrice: price * 8 / 10,
		Stock:     stock,
	})
	require.NoError(t, err)
	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p
}

// newSale builds a cash or credit sale for the given lines.
func newSale(number string, method pos.PaymentMethod, cash int64, lines ...pos.Item) (pos.Transaction, []pos.Item) {
	for i := range lines {
		lines[i].Recompute()
	}
	total := pos.SumSubtotals(lines)
	received, change := pos.Settlement(method, total, cash)
	return pos.Transaction{
		Number:       number,
		Total:        total,
		CashReceived: received,
		Change:       change,
		Method:       method,
		Status:       pos.InitialStatus(method),
	}, lines
}

func line(p pos.Product, qty float64) pos.Item {
	return pos.NewItem(p, qty, p.Price)
}

func stockOf(t *testing.T, s *Store, id int64) float64 {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}
