package syncer

import (
	"context"
	"fmt"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remote"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/retry"
)

// download merges categories, then products, then (optionally) history.
// Categories go first so product category references resolve.
func (r *Reconciler) download(ctx context.Context, opts DownloadOptions) (DownloadSummary, error) {
	sum := DownloadSummary{StartedAt: r.opts.Clock()}
	defer func() {
		sum.Duration = r.opts.Clock().Sub(sum.StartedAt)
		r.logger.Info("download finished",
			"categories", sum.CategoriesMerged,
			"products_inserted", sum.ProductsInserted,
			"products_updated", sum.ProductsUpdated,
			"pages", sum.Pages,
			"history_imported", sum.HistoryImported,
			"failed", sum.Failed,
			"aborted", sum.Aborted,
		)
	}()

	if err := r.syncCategories(ctx, &sum); err != nil || sum.Aborted {
		return sum, err
	}
	if err := r.syncProducts(ctx, &sum); err != nil || sum.Aborted {
		return sum, err
	}
	if opts.History {
		if err := r.importHistory(ctx, &sum); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// syncCategories creates local-only categories on the remote, then merges
// the remote list. A create answered with "already exists" counts as done.
func (r *Reconciler) syncCategories(ctx context.Context, sum *DownloadSummary) error {
	local, err := r.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range local {
		if c.ServerID != "" {
			continue
		}
		ref := "category " + c.Name
		err := r.call(ctx, func(ctx context.Context) error {
			_, err := r.client.CreateCategory(ctx, c.Name)
			return err
		})
		if err != nil && !remote.IsConflict(err) {
			r.failDownload(sum, ref, err)
			if systemic(ctx, err) {
				sum.Aborted = true
				return nil
			}
			continue
		}
		sum.CategoriesPushed++
	}

	var cats []remote.Category
	err = r.call(ctx, func(ctx context.Context) error {
		var err error
		cats, err = r.client.ListCategories(ctx)
		return err
	})
	if err != nil {
		r.failDownload(sum, "categories", err)
		sum.Aborted = systemic(ctx, err)
		return nil
	}

	for _, c := range cats {
		if _, _, err := r.store.UpsertCategory(ctx, pos.Category{ServerID: c.ID, Name: c.Name}); err != nil {
			r.failDownload(sum, "category "+c.Name, err)
			continue
		}
		sum.CategoriesMerged++
	}
	return nil
}

// syncProducts merges the catalog page by page. Each page is fully applied
// before the next is requested. At most CatalogMaxPages pages are read.
func (r *Reconciler) syncProducts(ctx context.Context, sum *DownloadSummary) error {
	knownPages := 0
	for page := 1; ; page++ {
		if page > r.opts.CatalogMaxPages {
			sum.PageLimitReached = true
			r.logger.Warn("catalog page limit reached", "limit", r.opts.CatalogMaxPages)
			return nil
		}
		if ctx.Err() != nil {
			sum.Aborted = true
			return nil
		}

		var (
			products []remote.Product
			meta     remote.Meta
		)
		err := r.call(ctx, func(ctx context.Context) error {
			var err error
			products, meta, err = r.client.ListProducts(ctx, page, r.opts.CatalogPageSize)
			return err
		})
		if err != nil {
			r.failDownload(sum, fmt.Sprintf("products page %d", page), err)
			if systemic(ctx, err) {
				sum.Aborted = true
				return nil
			}
			if page < knownPages {
				continue
			}
			return nil
		}
		sum.Pages++
		if meta.TotalPages > 0 {
			knownPages = meta.TotalPages
		}

		for _, p := range products {
			if err := r.mergeProduct(ctx, p, sum); err != nil {
				r.failDownload(sum, "product "+p.ID, err)
			}
		}

		if lastPage(page, len(products), r.opts.CatalogPageSize, meta) {
			return nil
		}
	}
}

func (r *Reconciler) mergeProduct(ctx context.Context, p remote.Product, sum *DownloadSummary) error {
	var categoryID *int64
	if p.CategoryID != "" {
		id, err := r.store.CategoryIDByServerID(ctx, p.CategoryID)
		if err != nil {
			return err
		}
		if id != 0 {
			categoryID = &id
		}
	}
	_, inserted, err := r.store.UpsertProduct(ctx, fromRemoteProduct(p, categoryID))
	if err != nil {
		return err
	}
	if inserted {
		sum.ProductsInserted++
	} else {
		sum.ProductsUpdated++
	}
	return nil
}

// importHistory inserts remote transactions whose number is unknown
// locally. Existing numbers are left untouched.
func (r *Reconciler) importHistory(ctx context.Context, sum *DownloadSummary) error {
	knownPages := 0
	for page := 1; page <= r.opts.CatalogMaxPages; page++ {
		if ctx.Err() != nil {
			sum.Aborted = true
			return nil
		}

		var (
			txs  []remote.Transaction
			meta remote.Meta
		)
		err := r.call(ctx, func(ctx context.Context) error {
			var err error
			txs, meta, err = r.client.ListTransactions(ctx, page, r.opts.HistoryPageSize)
			return err
		})
		if err != nil {
			r.failDownload(sum, fmt.Sprintf("history page %d", page), err)
			if systemic(ctx, err) {
				sum.Aborted = true
				return nil
			}
			if page < knownPages {
				continue
			}
			return nil
		}
		if meta.TotalPages > 0 {
			knownPages = meta.TotalPages
		}

		for _, t := range txs {
			inserted, err := r.importOne(ctx, t)
			if err != nil {
				r.failDownload(sum, t.TransactionNumber, err)
				continue
			}
			if inserted {
				sum.HistoryImported++
			} else {
				sum.HistoryExisting++
			}
		}

		if lastPage(page, len(txs), r.opts.HistoryPageSize, meta) {
			return nil
		}
	}
	return nil
}

func (r *Reconciler) importOne(ctx context.Context, t remote.Transaction) (bool, error) {
	tx := fromRemoteTransaction(t)
	for i, it := range t.Items {
		id, err := r.store.ProductIDByServerID(ctx, it.ProductID)
		if err != nil {
			return false, err
		}
		tx.Items[i].ProductID = id
	}
	return r.store.ImportTransaction(ctx, tx)
}

// lastPage reports whether page is the final one. meta.TotalPages wins
// when the server sends it; otherwise a short page ends the walk.
func lastPage(page, n, limit int, meta remote.Meta) bool {
	if meta.TotalPages > 0 {
		return page >= meta.TotalPages
	}
	return n < limit
}

func (r *Reconciler) failDownload(sum *DownloadSummary, ref string, err error) {
	sum.Failed++
	sum.Failures = append(sum.Failures, Failure{Ref: ref, Reason: err.Error(), Attempts: retry.Attempts(err)})
	r.logger.Warn("download step failed", "ref", ref, "attempts", retry.Attempts(err), "error", err)
}
