package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/checkout"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/lifecycle"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/store"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs scenarios with a deterministic clock and sequential transaction
// numbers over a fresh in-memory store.
type Harness struct {
	store    *store.Store
	engine   *checkout.Engine
	machine  *lifecycle.Machine
	cart     *checkout.Cart
	products map[string]int64
	sales    map[string]int64
	logger   *slog.Logger
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes checkout and lifecycle logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Seed the catalog from scenario.Products
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions
//
// A step that fails with a domain error is recorded in the trace and
// checked against its expect clause. Any other failure aborts the run.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	clock := testutil.NewDeterministicClock()
	st, err := store.Open(":memory:", store.WithClock(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	surcharge := DefaultSurcharge
	if scenario.Surcharge != nil {
		surcharge = *scenario.Surcharge
	}

	h := &Harness{
		store: st,
		engine: checkout.New(st,
			checkout.WithClock(clock.Now),
			checkout.WithNumbers(testutil.NewSequentialNumbers(scenario.NumberPrefix)),
			checkout.WithLogger(o.logger),
		),
		machine:  lifecycle.New(st, lifecycle.WithLogger(o.logger)),
		cart:     checkout.NewCart(surcharge),
		products: make(map[string]int64, len(scenario.Products)),
		sales:    make(map[string]int64),
		logger:   o.logger,
	}

	ctx := context.Background()

	if err := h.seed(ctx, scenario.Products); err != nil {
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store:    st,
		Ctx:      ctx,
		Products: h.products,
		Sales:    h.sales,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) seed(ctx context.Context, products []ProductFixture) error {
	for _, f := range products {
		id, err := h.store.CreateProduct(ctx, pos.Product{
			Name:      f.Name,
			Price:     f.Price,
			CostPrice: f.CostPrice,
			Stock:     f.Stock,
			MinStock:  f.MinStock,
			Barcode:   f.Barcode,
			IsPLU:     f.PLU,
		})
		if err != nil {
			return fmt.Errorf("product %q: %w", f.Key, err)
		}
		h.products[f.Key] = id
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		if step.Action == ActionAdd && step.Qty == 0 {
			step.Qty = 1
		}

		tx, err := h.execute(ctx, step)
		outcome := OutcomeOK
		var produced map[string]any
		switch {
		case err == nil:
			produced = h.describe(step, tx)
		case pos.CodeOf(err) != "":
			outcome = string(pos.CodeOf(err))
			produced = describeError(err)
		default:
			return fmt.Errorf("flow step %d (%s): %w", i, step.Action, err)
		}
		result.AddTrace(step.Action, stepArgs(step), outcome, produced)

		for _, msg := range h.checkExpect(step, outcome, tx) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Action, msg))
		}

		h.logger.Debug("flow step completed",
			"step", i,
			"action", step.Action,
			"outcome", outcome,
		)
	}
	return nil
}

// execute performs one step. It returns the affected sale for checkout
// and lifecycle steps.
func (h *Harness) execute(ctx context.Context, step FlowStep) (*pos.Transaction, error) {
	switch step.Action {
	case ActionAdd, ActionWeigh:
		p, err := h.store.GetProduct(ctx, h.products[step.Product])
		if err != nil {
			return nil, err
		}
		if step.Action == ActionAdd {
			return nil, h.cart.Add(p, step.Qty)
		}
		return nil, h.cart.ConfirmWeighed(p, step.Kg)

	case ActionIncrement:
		return nil, h.cart.Increment(h.lineKey(step))

	case ActionDecrement:
		return nil, h.cart.Decrement(h.lineKey(step))

	case ActionCheckout:
		method, err := pos.ParsePaymentMethod(step.Method)
		if err != nil {
			return nil, err
		}
		tx, err := h.engine.Checkout(ctx, h.cart, checkout.Payment{
			Method:       method,
			CustomerName: step.Name,
			CashReceived: step.Cash,
		})
		if err != nil {
			return nil, err
		}
		if step.As != "" {
			h.sales[step.As] = tx.ID
		}
		return &tx, nil

	case ActionPay, ActionCancel, ActionRefund:
		id := h.sales[step.Sale]
		var (
			tx  pos.Transaction
			err error
		)
		switch step.Action {
		case ActionPay:
			tx, err = h.machine.Pay(ctx, id, step.Cash)
		case ActionCancel:
			tx, err = h.machine.Cancel(ctx, id)
		default:
			tx, err = h.machine.Refund(ctx, id)
		}
		if err != nil {
			return nil, err
		}
		return &tx, nil
	}
	return nil, fmt.Errorf("unknown action %q", step.Action)
}

func (h *Harness) lineKey(step FlowStep) checkout.LineKey {
	return checkout.LineKey{ProductID: h.products[step.Product], Locked: step.Locked}
}

// describe builds the trace result of a successful step.
func (h *Harness) describe(step FlowStep, tx *pos.Transaction) map[string]any {
	if tx == nil {
		return map[string]any{
			"cart_total": h.cart.Total(),
			"lines":      h.cart.Len(),
		}
	}
	out := map[string]any{"status": string(tx.Status)}
	switch step.Action {
	case ActionCheckout:
		out["number"] = tx.Number
		out["total"] = tx.Total
		out["cash_received"] = tx.CashReceived
		out["change"] = tx.Change
	case ActionPay:
		out["cash_received"] = tx.CashReceived
		out["change"] = tx.Change
	}
	return out
}

func describeError(err error) map[string]any {
	shortages := pos.ShortagesOf(err)
	if len(shortages) == 0 {
		return nil
	}
	names := make([]string, len(shortages))
	for i, s := range shortages {
		names[i] = s.Name
	}
	return map[string]any{"short": names}
}

func (h *Harness) checkExpect(step FlowStep, outcome string, tx *pos.Transaction) []string {
	want := OutcomeOK
	if step.Expect != nil && step.Expect.Error != "" {
		want = step.Expect.Error
	}
	if outcome != want {
		return []string{fmt.Sprintf("expected outcome %s, got %s", want, outcome)}
	}
	if step.Expect == nil {
		return nil
	}

	var errs []string
	exp := step.Expect
	if exp.CartTotal != nil && h.cart.Total() != *exp.CartTotal {
		errs = append(errs, fmt.Sprintf("expected cart total %d, got %d", *exp.CartTotal, h.cart.Total()))
	}
	if tx == nil {
		if exp.Status != "" || exp.Total != nil || exp.Change != nil {
			errs = append(errs, "status, total and change expectations need a sale")
		}
		return errs
	}
	if exp.Status != "" && string(tx.Status) != exp.Status {
		errs = append(errs, fmt.Sprintf("expected status %s, got %s", exp.Status, tx.Status))
	}
	if exp.Total != nil && tx.Total != *exp.Total {
		errs = append(errs, fmt.Sprintf("expected total %d, got %d", *exp.Total, tx.Total))
	}
	if exp.Change != nil && tx.Change != *exp.Change {
		errs = append(errs, fmt.Sprintf("expected change %d, got %d", *exp.Change, tx.Change))
	}
	return errs
}

// stepArgs lists the parameters a step was run with, for the trace.
func stepArgs(step FlowStep) map[string]any {
	args := make(map[string]any)
	if step.Product != "" {
		args["product"] = step.Product
	}
	if step.Qty != 0 {
		args["qty"] = step.Qty
	}
	if step.Kg != 0 {
		args["kg"] = step.Kg
	}
	if step.Locked {
		args["locked"] = true
	}
	if step.Method != "" {
		args["method"] = step.Method
	}
	if step.Cash != 0 {
		args["cash"] = step.Cash
	}
	if step.Name != "" {
		args["name"] = step.Name
	}
	if step.As != "" {
		args["as"] = step.As
	}
	if step.Sale != "" {
		args["sale"] = step.Sale
	}
	if len(args) == 0 {
		return nil
	}
	return args
}
