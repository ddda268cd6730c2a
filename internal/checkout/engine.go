package checkout

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
)

// Store is the subset of the local store the engine needs.
// Implemented by *store.Store.
type Store interface {
	GetProduct(ctx context.Context, id int64) (pos.Product, error)
	GetTransaction(ctx context.Context, id int64) (pos.Transaction, error)
	GetTransactionByNumber(ctx context.Context, number string) (pos.Transaction, error)
	CreateTransaction(ctx context.Context, tx pos.Transaction, items []pos.Item) (int64, error)
}

// Payment describes how the customer settles a sale.
type Payment struct {
	Method       pos.PaymentMethod `validate:"oneof=cash credit"`
	CustomerName string
	CashReceived int64 `validate:"gte=0"`

	// Number reuses a transaction number for a retry of the same sale.
	// Empty means a new number is generated.
	Number string
}

// Engine commits carts to the store.
type Engine struct {
	store   Store
	numbers pos.NumberGenerator
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithNumbers sets the transaction number generator.
//
// Default: pos.UUIDv7Numbers.
func WithNumbers(g pos.NumberGenerator) Option {
	return func(e *Engine) { e.numbers = g }
}

// WithClock sets the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine over s.
func New(s Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		numbers: pos.UUIDv7Numbers{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// Checkout commits cart as a sale and clears it.
//
// Stock is re-validated against the store, not the cart's product copies;
// every short line is reported in one STOCK_INSUFFICIENT error. Cash sales
// require CashReceived ≥ total. Cash sales are paid on creation, credit
// (BON) sales are pending with cash_received = total and no change.
//
// On any error the cart is left untouched. If Payment.Number names a sale
// that was already committed, that sale is returned and nothing is written.
func (e *Engine) Checkout(ctx context.Context, cart *Cart, pay Payment) (pos.Transaction, error) {
	if cart == nil || cart.Len() == 0 {
		return pos.Transaction{}, pos.NewEmptyCartError()
	}
	if err := pos.Validate(pay); err != nil {
		return pos.Transaction{}, err
	}

	if pay.Number != "" {
		existing, err := e.store.GetTransactionByNumber(ctx, pay.Number)
		if err == nil {
			e.logger.Info("checkout already committed", "number", pay.Number, "id", existing.ID)
			cart.Clear()
			return existing, nil
		}
		if !pos.IsCode(err, pos.ErrCodeNotFound) {
			return pos.Transaction{}, err
		}
	}

	items, err := e.snapshot(ctx, cart)
	if err != nil {
		return pos.Transaction{}, err
	}

	total := pos.SumSubtotals(items)
	if pay.Method == pos.PaymentCash && pay.CashReceived < total {
		return pos.Transaction{}, pos.NewAmountTooLowError(total, pay.CashReceived)
	}
	received, change := pos.Settlement(pay.Method, total, pay.CashReceived)

	number := pay.Number
	if number == "" {
		number = e.numbers.Generate()
	}

	tx := pos.Transaction{
		Number:          number,
		CustomerName:    pos.NormalizeName(pay.CustomerName),
		Total:           total,
		CashReceived:    received,
		Change:          change,
		Method:          pay.Method,
		PaymentMethodID: pay.Method.ID(),
		Status:          pos.InitialStatus(pay.Method),
		CreatedAt:       e.now(),
	}

	id, err := e.store.CreateTransaction(ctx, tx, items)
	if err != nil {
		e.logger.Warn("checkout failed", "number", number, "error", err)
		return pos.Transaction{}, err
	}

	committed, err := e.store.GetTransaction(ctx, id)
	if err != nil {
		return pos.Transaction{}, err
	}
	cart.Clear()

	e.logger.Info("checkout committed",
		"id", committed.ID,
		"number", committed.Number,
		"total", committed.Total,
		"status", committed.Status,
	)
	return committed, nil
}

// snapshot re-reads every product in the cart and builds items from the
// current name and cost. Unit prices stay as rung up.
func (e *Engine) snapshot(ctx context.Context, cart *Cart) ([]pos.Item, error) {
	lines := cart.Lines()
	fresh := make(map[int64]pos.Product, len(lines))
	var (
		order     []int64
		shortages []pos.Shortage
	)
	for _, l := range lines {
		if err := pos.Validate(l); err != nil {
			return nil, err
		}
		if _, ok := fresh[l.Product.ID]; ok {
			continue
		}
		p, err := e.store.GetProduct(ctx, l.Product.ID)
		if pos.IsCode(err, pos.ErrCodeNotFound) {
			p = l.Product
			p.Deleted = true
		} else if err != nil {
			return nil, err
		}
		fresh[l.Product.ID] = p
		order = append(order, l.Product.ID)
	}

	for _, id := range order {
		p := fresh[id]
		want := cart.Quantity(id)
		available := p.Stock
		if p.Deleted {
			available = 0
		}
		if !pos.Covers(available, want) {
			shortages = append(shortages, pos.Shortage{
				ProductID: id,
				Name:      p.Name,
				Requested: want,
				Available: available,
			})
		}
	}
	if len(shortages) > 0 {
		return nil, pos.NewStockError(shortages...)
	}

	items := make([]pos.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, pos.NewItem(fresh[l.Product.ID], l.Quantity, l.UnitPrice))
	}
	return items, nil
}
