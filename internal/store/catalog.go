package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
)

// CreateCategory inserts a local category and returns its id.
func (s *Store) CreateCategory(ctx context.Context, c pos.Category) (int64, error) {
	c.Name = pos.NormalizeName(c.Name)
	if err := pos.Validate(c); err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (server_id, name, version, updated_at) VALUES (?, ?, 1, ?)
	`, nullString(c.ServerID), c.Name, s.timestamp())
	if err != nil {
		return 0, storageErr("create category", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, storageErr("create category: last insert id", err)
	}
	return id, nil
}

// UpsertCategory merges a remote category. Matches by server id first,
// then by name among categories not yet linked to the remote, so a
// category created locally before the first sync is adopted instead of
// duplicated. Another row already holding the incoming name is renamed
// aside in the same transaction; a later upsert of that row, or a swap
// within one pull, settles its final name. Returns the local id and
// whether a row was inserted.
func (s *Store) UpsertCategory(ctx context.Context, c pos.Category) (int64, bool, error) {
	c.Name = pos.NormalizeName(c.Name)
	if err := pos.Validate(c); err != nil {
		return 0, false, err
	}

	var (
		id       int64
		inserted bool
	)
	err := s.withTx(ctx, "upsert category", func(sqlTx *sql.Tx) error {
		err := sqlTx.QueryRowContext(ctx, `
			SELECT id FROM categories
			WHERE (server_id IS NOT NULL AND server_id = ?)
			   OR (name = ? AND (server_id IS NULL OR ? = ''))
			ORDER BY CASE WHEN server_id = ? THEN 0 ELSE 1 END
			LIMIT 1
		`, c.ServerID, c.Name, c.ServerID, c.ServerID).Scan(&id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return storageErr("upsert category: lookup", err)
		}

		now := s.timestamp()
		if err := displaceCategoryName(ctx, sqlTx, c.Name, id, now); err != nil {
			return err
		}

		if id != 0 {
			_, err := sqlTx.ExecContext(ctx, `
				UPDATE categories
				SET server_id = COALESCE(?, server_id), name = ?, version = version + 1, updated_at = ?
				WHERE id = ?
			`, nullString(c.ServerID), c.Name, now, id)
			if err != nil {
				return storageErr("upsert category: update", err)
			}
			return nil
		}

		result, err := sqlTx.ExecContext(ctx, `
			INSERT INTO categories (server_id, name, version, updated_at) VALUES (?, ?, 1, ?)
		`, nullString(c.ServerID), c.Name, now)
		if err != nil {
			return storageErr("upsert category: insert", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return storageErr("upsert category: last insert id", err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return id, inserted, nil
}

// displaceCategoryName frees name for the row keep (0 for a row about to
// be inserted) by suffixing any other holder with its own id. Products
// keep pointing at the displaced row.
func displaceCategoryName(ctx context.Context, sqlTx *sql.Tx, name string, keep, now int64) error {
	_, err := sqlTx.ExecContext(ctx, `
		UPDATE categories
		SET name = name || ' #' || id, version = version + 1, updated_at = ?
		WHERE name = ? AND id != ?
	`, now, name, keep)
	if err != nil {
		return storageErr("upsert category: displace name", err)
	}
	return nil
}

// ListCategories returns categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]pos.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, storageErr("list categories", err)
	}
	defer rows.Close()

	cats := []pos.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, storageErr("scan category", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate categories", err)
	}
	return cats, nil
}

// CategoryIDByServerID resolves a remote category id to a local id.
// Returns 0 if the category has not been merged yet.
func (s *Store) CategoryIDByServerID(ctx context.Context, serverID string) (int64, error) {
	return s.localID(ctx, `SELECT id FROM categories WHERE server_id = ?`, serverID)
}

// ProductIDByServerID resolves a remote product id to a local id.
// Returns 0 if the product has not been merged yet.
func (s *Store) ProductIDByServerID(ctx context.Context, serverID string) (int64, error) {
	return s.localID(ctx, `SELECT id FROM products WHERE server_id = ?`, serverID)
}

// ProductServerID returns the remote id of a local product, or "" if the
// product was created locally and never merged.
func (s *Store) ProductServerID(ctx context.Context, localID int64) (string, error) {
	if localID == 0 {
		return "", nil
	}
	var serverID sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT server_id FROM products WHERE id = ?`, localID).Scan(&serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storageErr("product server id", err)
	}
	return serverID.String, nil
}

func (s *Store) localID(ctx context.Context, query, serverID string) (int64, error) {
	if serverID == "" {
		return 0, nil
	}
	var id int64
	err := s.db.QueryRowContext(ctx, query, serverID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("resolve server id", err)
	}
	return id, nil
}

// CreateProduct inserts a local product and returns its id.
func (s *Store) CreateProduct(ctx context.Context, p pos.Product) (int64, error) {
	p.Name = pos.NormalizeName(p.Name)
	if err := pos.Validate(p); err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO products
		(server_id, name, price, cost_price, stock, min_stock, barcode, category_id, image, is_plu, deleted, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 1, ?)
	`,
		nullString(p.ServerID), p.Name, p.Price, p.CostPrice, p.Stock, p.MinStock,
		p.Barcode, nullIDPtr(p.CategoryID), p.Image, p.IsPLU, s.timestamp(),
	)
	if err != nil {
		return 0, storageErr("create product", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, storageErr("create product: last insert id", err)
	}
	return id, nil
}

// UpsertProduct merges a remote product by server id. The remote is
// authoritative: mutable fields (name, price, cost, stock, category,
// image, barcode, flags) are overwritten. Negative remote stock is stored
// as zero. Returns the local id and whether a row was inserted.
func (s *Store) UpsertProduct(ctx context.Context, p pos.Product) (int64, bool, error) {
	if p.ServerID == "" {
		return 0, false, pos.NewValidationError("remote product %q has no server id", p.Name)
	}
	p.Name = pos.NormalizeName(p.Name)
	if p.Stock < 0 {
		p.Stock = 0
	}
	if p.MinStock < 0 {
		p.MinStock = 0
	}
	if err := pos.Validate(p); err != nil {
		return 0, false, err
	}

	var (
		id       int64
		inserted bool
	)
	err := s.withTx(ctx, "upsert product", func(sqlTx *sql.Tx) error {
		err := sqlTx.QueryRowContext(ctx, `SELECT id FROM products WHERE server_id = ?`, p.ServerID).Scan(&id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return storageErr("upsert product: lookup", err)
		}

		now := s.timestamp()
		if id != 0 {
			_, err := sqlTx.ExecContext(ctx, `
				UPDATE products
				SET name = ?, price = ?, cost_price = ?, stock = ?, min_stock = ?, barcode = ?,
				    category_id = ?, image = ?, is_plu = ?, deleted = ?, version = version + 1, updated_at = ?
				WHERE id = ?
			`,
				p.Name, p.Price, p.CostPrice, p.Stock, p.MinStock, p.Barcode,
				nullIDPtr(p.CategoryID), p.Image, p.IsPLU, p.Deleted, now, id,
			)
			if err != nil {
				return storageErr("upsert product: update", err)
			}
			return nil
		}

		result, err := sqlTx.ExecContext(ctx, `
			INSERT INTO products
			(server_id, name, price, cost_price, stock, min_stock, barcode, category_id, image, is_plu, deleted, version, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		`,
			p.ServerID, p.Name, p.Price, p.CostPrice, p.Stock, p.MinStock, p.Barcode,
			nullIDPtr(p.CategoryID), p.Image, p.IsPLU, p.Deleted, now,
		)
		if err != nil {
			return storageErr("upsert product: insert", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return storageErr("upsert product: last insert id", err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return id, inserted, nil
}

// GetProduct retrieves a product by local id.
func (s *Store) GetProduct(ctx context.Context, id int64) (pos.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err != nil {
		return pos.Product{}, notFoundOr("get product", "product", id, err)
	}
	return p, nil
}

// FindProductByBarcode retrieves a live product by barcode.
func (s *Store) FindProductByBarcode(ctx context.Context, barcode string) (pos.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE barcode = ? AND barcode != '' AND deleted = 0
		ORDER BY id ASC LIMIT 1
	`, barcode))
	if err != nil {
		return pos.Product{}, notFoundOr("find product", "product with barcode", barcode, err)
	}
	return p, nil
}

// ProductQuery filters ListProducts.
type ProductQuery struct {
	// Search matches a substring of the name or an exact barcode.
	Search         string
	CategoryID     int64
	IncludeDeleted bool
	LowStockOnly   bool
}

// ListProducts returns products ordered by name.
func (s *Store) ListProducts(ctx context.Context, q ProductQuery) ([]pos.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1 = 1`
	var args []any
	if !q.IncludeDeleted {
		query += ` AND deleted = 0`
	}
	if q.Search != "" {
		query += ` AND (name LIKE ? OR barcode = ?)`
		args = append(args, "%"+pos.NormalizeName(q.Search)+"%", q.Search)
	}
	if q.CategoryID != 0 {
		query += ` AND category_id = ?`
		args = append(args, q.CategoryID)
	}
	if q.LowStockOnly {
		query += ` AND stock <= min_stock`
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list products", err)
	}
	defer rows.Close()

	products := []pos.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, storageErr("scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate products", err)
	}
	return products, nil
}
