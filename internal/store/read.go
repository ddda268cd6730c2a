package store

import (
	"context"
	"iter"
	"math"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
)

// outboxPageSize bounds how many unsynced rows are read per keyset page.
const outboxPageSize = 50

// GetTransaction retrieves a transaction and its items by local id.
// Returns a NOT_FOUND error if no such row exists.
func (s *Store) GetTransaction(ctx context.Context, id int64) (pos.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if err != nil {
		return pos.Transaction{}, notFoundOr("get transaction", "transaction", id, err)
	}
	if t.Items, err = s.readItems(ctx, t.ID); err != nil {
		return pos.Transaction{}, err
	}
	return t, nil
}

// GetTransactionByNumber retrieves a transaction by its idempotency key.
func (s *Store) GetTransactionByNumber(ctx context.Context, number string) (pos.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_number = ?`, number))
	if err != nil {
		return pos.Transaction{}, notFoundOr("get transaction", "transaction", number, err)
	}
	if t.Items, err = s.readItems(ctx, t.ID); err != nil {
		return pos.Transaction{}, err
	}
	return t, nil
}

// HasTransactionNumber reports whether a transaction with number exists.
func (s *Store) HasTransactionNumber(ctx context.Context, number string) (bool, error) {
	id, err := transactionIDByNumber(ctx, s.db, number)
	if err != nil {
		return false, storageErr("has transaction number", err)
	}
	return id != 0, nil
}

// ListOptions filters ListTransactions.
type ListOptions struct {
	UnsyncedOnly bool
	Status       pos.Status
	Limit        int
}

// ListTransactions returns transactions newest-first, with items.
func (s *Store) ListTransactions(ctx context.Context, opts ListOptions) ([]pos.Transaction, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE deleted = 0`
	var args []any
	if opts.UnsyncedOnly {
		query += ` AND synced = 0`
	}
	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	txs, err := s.queryTransactions(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// ListUnsynced returns the outbox: transactions with synced = 0, oldest
// first by (created_at, id).
//
// The sequence is lazy and restartable; each range starts a fresh walk.
// Rows are fetched in keyset pages and the connection is released before
// each page is yielded, so callers may write to the store (e.g. MarkSynced)
// while iterating. A row marked synced during the walk is not revisited.
func (s *Store) ListUnsynced(ctx context.Context) iter.Seq2[pos.Transaction, error] {
	return func(yield func(pos.Transaction, error) bool) {
		afterCreated, afterID := int64(math.MinInt64), int64(0)
		for {
			page, err := s.queryTransactions(ctx, `
				SELECT `+transactionColumns+`
				FROM transactions
				WHERE synced = 0 AND deleted = 0
				  AND (created_at > ? OR (created_at = ? AND id > ?))
				ORDER BY created_at ASC, id ASC
				LIMIT ?
			`, afterCreated, afterCreated, afterID, outboxPageSize)
			if err == nil {
				err = s.attachItems(ctx, page)
			}
			if err != nil {
				yield(pos.Transaction{}, err)
				return
			}

			for _, t := range page {
				afterCreated, afterID = t.CreatedAt.UnixNano(), t.ID
				if !yield(t, nil) {
					return
				}
			}
			if len(page) < outboxPageSize {
				return
			}
		}
	}
}

// CountUnsynced returns the size of the outbox.
func (s *Store) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE synced = 0 AND deleted = 0`).Scan(&n); err != nil {
		return 0, storageErr("count unsynced", err)
	}
	return n, nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]pos.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query transactions", err)
	}
	defer rows.Close()

	txs := []pos.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, storageErr("scan transaction", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate transactions", err)
	}
	return txs, nil
}

// attachItems loads items for each transaction after the header rows have
// been closed.
func (s *Store) attachItems(ctx context.Context, txs []pos.Transaction) error {
	for i := range txs {
		items, err := s.readItems(ctx, txs[i].ID)
		if err != nil {
			return err
		}
		txs[i].Items = items
	}
	return nil
}

func (s *Store) readItems(ctx context.Context, transactionID int64) ([]pos.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM transaction_items
		WHERE transaction_id = ?
		ORDER BY id ASC
	`, transactionID)
	if err != nil {
		return nil, storageErr("query items", err)
	}
	defer rows.Close()

	items := []pos.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("scan item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate items", err)
	}
	return items, nil
}
