// Package lifecycle drives a committed sale through its statuses: settling
// a BON sale, cancelling it, refunding a paid sale.
//
// The local store is the source of truth. When a pusher is configured and
// the sale had already reached the remote, the new status is pushed right
// away; if that fails the sale simply stays in the outbox and the next
// upload carries the new status.
package lifecycle

import (
	"context"
	"io"
	"log/slog"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
)

// Store is the subset of the local store the machine needs.
type Store interface {
	GetTransaction(ctx context.Context, id int64) (pos.Transaction, error)
	UpdateStatus(ctx context.Context, id int64, status pos.Status) (pos.Transaction, error)
	Settle(ctx context.Context, id int64, cashReceived int64) (pos.Transaction, error)
	MarkSyncedAt(ctx context.Context, id, version int64) (bool, error)
}

// StatusPusher pushes status changes to the remote. ref is the
// transaction number. *remote.Client satisfies it.
type StatusPusher interface {
	UpdateStatus(ctx context.Context, ref, status string) error
	Pay(ctx context.Context, ref string, cashReceived, change int64) error
}

// Machine applies status transitions.
type Machine struct {
	store  Store
	pusher StatusPusher
	logger *slog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithPusher enables immediate remote pushes for already-synced sales.
func WithPusher(p StatusPusher) Option {
	return func(m *Machine) { m.pusher = p }
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// New creates a Machine over store.
func New(store Store, opts ...Option) *Machine {
	m := &Machine{store: store}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m
}

// Pay settles a pending sale with cashReceived. Fails with AMOUNT_TOO_LOW
// when cash is short and INVALID_TRANSITION unless the sale is pending.
func (m *Machine) Pay(ctx context.Context, id int64, cashReceived int64) (pos.Transaction, error) {
	return m.apply(ctx, id, pos.EventPay, func() (pos.Transaction, error) {
		return m.store.Settle(ctx, id, cashReceived)
	})
}

// Cancel voids a pending sale. Stock is not restored.
func (m *Machine) Cancel(ctx context.Context, id int64) (pos.Transaction, error) {
	return m.apply(ctx, id, pos.EventCancel, func() (pos.Transaction, error) {
		return m.store.UpdateStatus(ctx, id, pos.StatusCancelled)
	})
}

// Refund reverses a paid sale and restores its stock.
func (m *Machine) Refund(ctx context.Context, id int64) (pos.Transaction, error) {
	return m.apply(ctx, id, pos.EventRefund, func() (pos.Transaction, error) {
		return m.store.UpdateStatus(ctx, id, pos.StatusRefunded)
	})
}

func (m *Machine) apply(ctx context.Context, id int64, event pos.Event, commit func() (pos.Transaction, error)) (pos.Transaction, error) {
	before, err := m.store.GetTransaction(ctx, id)
	if err != nil {
		return pos.Transaction{}, err
	}

	after, err := commit()
	if err != nil {
		return pos.Transaction{}, err
	}
	m.logger.Info("transaction status changed",
		"number", after.Number,
		"event", string(event),
		"from", string(before.Status),
		"to", string(after.Status),
	)

	if m.pusher == nil || !before.Synced {
		return after, nil
	}
	return m.push(ctx, event, after), nil
}

// push sends the committed status. Failures are logged and leave the row
// unsynced.
func (m *Machine) push(ctx context.Context, event pos.Event, tx pos.Transaction) pos.Transaction {
	var err error
	if event == pos.EventPay {
		err = m.pusher.Pay(ctx, tx.Number, tx.CashReceived, tx.Change)
	} else {
		err = m.pusher.UpdateStatus(ctx, tx.Number, string(tx.Status))
	}
	if err != nil {
		m.logger.Warn("status push failed; left for next sync",
			"number", tx.Number,
			"status", string(tx.Status),
			"error", err,
		)
		return tx
	}

	marked, err := m.store.MarkSyncedAt(ctx, tx.ID, tx.Version)
	if err != nil {
		m.logger.Warn("mark synced after push failed", "number", tx.Number, "error", err)
		return tx
	}
	if !marked {
		return tx
	}
	if fresh, err := m.store.GetTransaction(ctx, tx.ID); err == nil {
		return fresh
	}
	tx.Synced = true
	return tx
}
