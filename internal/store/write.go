package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
)

// CreateTransaction commits a sale and decrements stock for every item in
// one SQL transaction. Returns the local transaction id.
//
// Item subtotals and profits are recomputed from price, cost and quantity;
// tx.Total must equal their sum. Stock is re-checked against the committed
// rows, aggregated per product, and every shortage is reported at once.
//
// If a transaction with the same number already exists, its id is returned
// and nothing is written. A retried checkout of the same sale therefore
// never decrements stock twice.
func (s *Store) CreateTransaction(ctx context.Context, tx pos.Transaction, items []pos.Item) (int64, error) {
	if len(items) == 0 {
		return 0, pos.NewValidationError("transaction %q has no items", tx.Number)
	}

	items = append([]pos.Item(nil), items...)
	for i := range items {
		items[i].Recompute()
	}
	tx.Items = items
	if err := pos.Validate(tx); err != nil {
		return 0, err
	}
	if sum := pos.SumSubtotals(items); tx.Total != sum {
		return 0, pos.NewValidationError("total %d does not match item subtotals %d", tx.Total, sum)
	}
	if tx.PaymentMethodID == 0 {
		tx.PaymentMethodID = tx.Method.ID()
	}

	var id int64
	err := s.withTx(ctx, "create transaction", func(sqlTx *sql.Tx) error {
		existing, err := transactionIDByNumber(ctx, sqlTx, tx.Number)
		if err != nil {
			return storageErr("create transaction: lookup number", err)
		}
		if existing != 0 {
			id = existing
			return nil
		}

		if err := decrementStock(ctx, sqlTx, items, s.timestamp()); err != nil {
			return err
		}

		createdAt := s.timestamp()
		if !tx.CreatedAt.IsZero() {
			createdAt = tx.CreatedAt.UTC().UnixNano()
		}

		result, err := sqlTx.ExecContext(ctx, `
			INSERT INTO transactions
			(transaction_number, customer_name, total, cash_received, change_amount,
			 payment_method, payment_method_id, status, created_at, synced, deleted, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 1)
		`,
			tx.Number,
			tx.CustomerName,
			tx.Total,
			tx.CashReceived,
			tx.Change,
			string(tx.Method),
			tx.PaymentMethodID,
			string(tx.Status),
			createdAt,
		)
		if err != nil {
			return storageErr("create transaction: insert header", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return storageErr("create transaction: last insert id", err)
		}

		return insertItems(ctx, sqlTx, id, items)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// decrementStock checks and decrements stock for every product referenced
// by items. Quantities for the same product on several lines are summed.
func decrementStock(ctx context.Context, sqlTx *sql.Tx, items []pos.Item, now int64) error {
	type demand struct {
		name string
		qty  float64
	}
	order := make([]int64, 0, len(items))
	wanted := make(map[int64]*demand, len(items))
	for _, it := range items {
		if it.ProductID == 0 {
			return pos.NewValidationError("item %q has no product", it.ProductName)
		}
		d, ok := wanted[it.ProductID]
		if !ok {
			d = &demand{name: it.ProductName}
			wanted[it.ProductID] = d
			order = append(order, it.ProductID)
		}
		d.qty += it.Quantity
	}

	var shortages []pos.Shortage
	for _, productID := range order {
		d := wanted[productID]
		var (
			name    string
			stock   float64
			deleted bool
		)
		err := sqlTx.QueryRowContext(ctx, `
			SELECT name, stock, deleted FROM products WHERE id = ?
		`, productID).Scan(&name, &stock, &deleted)
		if errors.Is(err, sql.ErrNoRows) {
			return pos.NewNotFoundError("product", productID)
		}
		if err != nil {
			return storageErr("decrement stock: read product", err)
		}
		if deleted {
			stock = 0
		}
		if !pos.Covers(stock, d.qty) {
			shortages = append(shortages, pos.Shortage{
				ProductID: productID,
				Name:      name,
				Requested: d.qty,
				Available: stock,
			})
		}
	}
	if len(shortages) > 0 {
		return pos.NewStockError(shortages...)
	}

	for _, productID := range order {
		if _, err := sqlTx.ExecContext(ctx, `
			UPDATE products
			SET stock = MAX(ROUND(stock - ?, 6), 0), version = version + 1, updated_at = ?
			WHERE id = ?
		`, wanted[productID].qty, now, productID); err != nil {
			return storageErr("decrement stock: update product", err)
		}
	}
	return nil
}

func insertItems(ctx context.Context, sqlTx *sql.Tx, transactionID int64, items []pos.Item) error {
	stmt, err := sqlTx.PrepareContext(ctx, `
		INSERT INTO transaction_items
		(transaction_id, product_id, product_name, quantity, price, cost_price, subtotal, total_profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return storageErr("insert items: prepare", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx,
			transactionID,
			nullID(it.ProductID),
			it.ProductName,
			it.Quantity,
			it.Price,
			it.CostPrice,
			it.Subtotal,
			it.Profit,
		); err != nil {
			return storageErr("insert items", err)
		}
	}
	return nil
}

// AdjustStock applies a signed delta to a product's stock and returns the
// new level. Fails with STOCK_INSUFFICIENT if the result would be negative.
func (s *Store) AdjustStock(ctx context.Context, productID int64, delta float64) (float64, error) {
	var level float64
	err := s.withTx(ctx, "adjust stock", func(sqlTx *sql.Tx) error {
		var name string
		var stock float64
		err := sqlTx.QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = ?`, productID).Scan(&name, &stock)
		if err != nil {
			return notFoundOr("adjust stock", "product", productID, err)
		}
		if delta < 0 && !pos.Covers(stock, -delta) {
			return pos.NewStockError(pos.Shortage{
				ProductID: productID,
				Name:      name,
				Requested: -delta,
				Available: stock,
			})
		}
		if err := sqlTx.QueryRowContext(ctx, `
			UPDATE products
			SET stock = MAX(ROUND(stock + ?, 6), 0), version = version + 1, updated_at = ?
			WHERE id = ?
			RETURNING stock
		`, delta, s.timestamp(), productID).Scan(&level); err != nil {
			return storageErr("adjust stock: update", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return level, nil
}

// UpdateStatus moves a transaction to newStatus following the lifecycle
// table. A paid target settles a pending sale with exact cash.
//
// Refunding a paid sale restores every item's quantity to stock inside the
// same SQL transaction as the status write. Any status change clears the
// synced flag so the new status is uploaded on the next sync.
func (s *Store) UpdateStatus(ctx context.Context, id int64, newStatus pos.Status) (pos.Transaction, error) {
	event, err := pos.EventTo(newStatus)
	if err != nil {
		return pos.Transaction{}, err
	}
	return s.transition(ctx, id, event, nil)
}

// Settle pays a pending (BON) transaction with the given cash.
// Fails with AMOUNT_TOO_LOW if cash is below the total; status is unchanged.
func (s *Store) Settle(ctx context.Context, id int64, cashReceived int64) (pos.Transaction, error) {
	return s.transition(ctx, id, pos.EventPay, &cashReceived)
}

func (s *Store) transition(ctx context.Context, id int64, event pos.Event, cash *int64) (pos.Transaction, error) {
	op := fmt.Sprintf("%s transaction", event)
	err := s.withTx(ctx, op, func(sqlTx *sql.Tx) error {
		cur, err := scanTransaction(sqlTx.QueryRowContext(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
		if err != nil {
			return notFoundOr(op, "transaction", id, err)
		}

		next, err := cur.Status.Next(event)
		if err != nil {
			return err
		}

		cashReceived, change := cur.CashReceived, cur.Change
		if event == pos.EventPay {
			paid := cur.Total
			if cash != nil {
				paid = *cash
			}
			if paid < cur.Total {
				return pos.NewAmountTooLowError(cur.Total, paid)
			}
			cashReceived, change = pos.Settlement(pos.PaymentCash, cur.Total, paid)
		}

		if cur.Status.RestoresStock(event) {
			if err := restoreStock(ctx, sqlTx, id, s.timestamp()); err != nil {
				return err
			}
		}

		if _, err := sqlTx.ExecContext(ctx, `
			UPDATE transactions
			SET status = ?, cash_received = ?, change_amount = ?,
			    synced = 0, synced_at = NULL, version = version + 1
			WHERE id = ?
		`, string(next), cashReceived, change, id); err != nil {
			return storageErr(op+": update", err)
		}
		return nil
	})
	if err != nil {
		return pos.Transaction{}, err
	}
	return s.GetTransaction(ctx, id)
}

// restoreStock returns every item's quantity to its product. Items whose
// product has since been deleted are skipped.
func restoreStock(ctx context.Context, sqlTx *sql.Tx, transactionID, now int64) error {
	if _, err := sqlTx.ExecContext(ctx, `
		UPDATE products
		SET stock = ROUND(stock + (
		        SELECT SUM(ti.quantity) FROM transaction_items ti
		        WHERE ti.transaction_id = ? AND ti.product_id = products.id
		    ), 6),
		    version = version + 1,
		    updated_at = ?
		WHERE id IN (
		    SELECT product_id FROM transaction_items
		    WHERE transaction_id = ? AND product_id IS NOT NULL
		)
	`, transactionID, now, transactionID); err != nil {
		return storageErr("restore stock", err)
	}
	return nil
}

// MarkSynced sets synced = 1 and stamps synced_at. Idempotent: marking an
// already-synced row keeps its original synced_at.
func (s *Store) MarkSynced(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET synced_at = CASE WHEN synced = 1 AND synced_at IS NOT NULL THEN synced_at ELSE ? END,
		    synced = 1
		WHERE id = ?
	`, s.timestamp(), id)
	if err != nil {
		return storageErr("mark synced", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return storageErr("mark synced: rows affected", err)
	}
	if n == 0 {
		return pos.NewNotFoundError("transaction", id)
	}
	return nil
}

// MarkSyncedAt marks a transaction synced only if its version still equals
// the uploaded version. Returns false if the row changed in the meantime,
// in which case it stays in the outbox.
func (s *Store) MarkSyncedAt(ctx context.Context, id, version int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET synced_at = CASE WHEN synced = 1 AND synced_at IS NOT NULL THEN synced_at ELSE ? END,
		    synced = 1
		WHERE id = ? AND version = ?
	`, s.timestamp(), id, version)
	if err != nil {
		return false, storageErr("mark synced", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, storageErr("mark synced: rows affected", err)
	}
	return n > 0, nil
}

// SetTransactionNumber assigns a number to a legacy row that has none.
// The number is persisted before upload so retries reuse it.
func (s *Store) SetTransactionNumber(ctx context.Context, id int64, number string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET transaction_number = ? WHERE id = ? AND transaction_number = ''
	`, number, id)
	if err != nil {
		return storageErr("set transaction number", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return pos.NewValidationError("transaction %d already has a number", id)
	}
	return nil
}

// SetTransactionTotal overwrites a legacy row's total, e.g. after it was
// recomputed from its items.
func (s *Store) SetTransactionTotal(ctx context.Context, id, total int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE transactions SET total = ? WHERE id = ?`, total, id); err != nil {
		return storageErr("set transaction total", err)
	}
	return nil
}

// ImportTransaction inserts a historical transaction downloaded from the
// remote during device provisioning. Imported rows are already synced and
// do not touch stock. Returns false if the number already exists locally.
func (s *Store) ImportTransaction(ctx context.Context, tx pos.Transaction) (bool, error) {
	if tx.Number == "" {
		return false, pos.NewValidationError("imported transaction has no number")
	}
	if !tx.Status.Valid() {
		return false, pos.NewValidationError("imported transaction %q has status %q", tx.Number, tx.Status)
	}

	inserted := false
	err := s.withTx(ctx, "import transaction", func(sqlTx *sql.Tx) error {
		existing, err := transactionIDByNumber(ctx, sqlTx, tx.Number)
		if err != nil {
			return storageErr("import transaction: lookup number", err)
		}
		if existing != 0 {
			return nil
		}

		createdAt := s.timestamp()
		if !tx.CreatedAt.IsZero() {
			createdAt = tx.CreatedAt.UTC().UnixNano()
		}
		method := tx.Method
		if !method.Valid() {
			method = pos.PaymentMethodFromID(tx.PaymentMethodID)
		}

		result, err := sqlTx.ExecContext(ctx, `
			INSERT INTO transactions
			(transaction_number, customer_name, total, cash_received, change_amount,
			 payment_method, payment_method_id, status, created_at, synced, synced_at, deleted, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, 0, 1)
		`,
			tx.Number, tx.CustomerName, tx.Total, tx.CashReceived, tx.Change,
			string(method), method.ID(), string(tx.Status), createdAt, s.timestamp(),
		)
		if err != nil {
			return storageErr("import transaction: insert header", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return storageErr("import transaction: last insert id", err)
		}

		items := make([]pos.Item, 0, len(tx.Items))
		for _, it := range tx.Items {
			if it.Quantity <= 0 {
				continue
			}
			if it.ProductID != 0 {
				var exists int
				err := sqlTx.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE id = ?`, it.ProductID).Scan(&exists)
				if err != nil {
					return storageErr("import transaction: check product", err)
				}
				if exists == 0 {
					it.ProductID = 0
				}
			}
			items = append(items, it)
		}
		if err := insertItems(ctx, sqlTx, id, items); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// rowQuerier is satisfied by *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func transactionIDByNumber(ctx context.Context, q rowQuerier, number string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM transactions WHERE transaction_number = ?`, number).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}
