package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
)

// Column lists shared by every query that scans a full row.
const (
	productColumns = `id, COALESCE(server_id, ''), name, price, cost_price, stock, min_stock,
		barcode, category_id, image, is_plu, deleted, version, updated_at`

	categoryColumns = `id, COALESCE(server_id, ''), name, version, updated_at`

	transactionColumns = `id, transaction_number, customer_name, total, cash_received, change_amount,
		payment_method, payment_method_id, status, created_at, synced, synced_at, deleted, version`

	itemColumns = `id, transaction_id, COALESCE(product_id, 0), product_name, quantity,
		price, cost_price, subtotal, total_profit`
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (pos.Product, error) {
	var (
		p          pos.Product
		categoryID sql.NullInt64
		updatedAt  int64
	)
	if err := row.Scan(
		&p.ID, &p.ServerID, &p.Name, &p.Price, &p.CostPrice, &p.Stock, &p.MinStock,
		&p.Barcode, &categoryID, &p.Image, &p.IsPLU, &p.Deleted, &p.Version, &updatedAt,
	); err != nil {
		return pos.Product{}, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		p.CategoryID = &id
	}
	p.UpdatedAt = fromNanos(updatedAt)
	return p, nil
}

func scanCategory(row scanner) (pos.Category, error) {
	var (
		c         pos.Category
		updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.ServerID, &c.Name, &c.Version, &updatedAt); err != nil {
		return pos.Category{}, err
	}
	c.UpdatedAt = fromNanos(updatedAt)
	return c, nil
}

func scanTransaction(row scanner) (pos.Transaction, error) {
	var (
		t         pos.Transaction
		method    string
		status    string
		createdAt int64
		syncedAt  sql.NullInt64
	)
	if err := row.Scan(
		&t.ID, &t.Number, &t.CustomerName, &t.Total, &t.CashReceived, &t.Change,
		&method, &t.PaymentMethodID, &status, &createdAt, &t.Synced, &syncedAt, &t.Deleted, &t.Version,
	); err != nil {
		return pos.Transaction{}, err
	}
	t.Method = pos.PaymentMethod(method)
	t.Status = pos.Status(status)
	t.CreatedAt = fromNanos(createdAt)
	if syncedAt.Valid {
		at := fromNanos(syncedAt.Int64)
		t.SyncedAt = &at
	}
	return t, nil
}

func scanItem(row scanner) (pos.Item, error) {
	var it pos.Item
	if err := row.Scan(
		&it.ID, &it.TransactionID, &it.ProductID, &it.ProductName, &it.Quantity,
		&it.Price, &it.CostPrice, &it.Subtotal, &it.Profit,
	); err != nil {
		return pos.Item{}, err
	}
	return it, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// nullID maps a zero id to SQL NULL.
func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullIDPtr(id *int64) any {
	if id == nil || *id == 0 {
		return nil
	}
	return *id
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// storageErr wraps an I/O failure unless it already carries a domain code.
func storageErr(op string, err error) error {
	if pos.CodeOf(err) != "" {
		return err
	}
	return pos.NewStorageError(op, err)
}

// notFoundOr maps sql.ErrNoRows to NOT_FOUND and wraps anything else.
func notFoundOr(op, kind string, id any, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return pos.NewNotFoundError(kind, id)
	}
	return storageErr(op, err)
}
