package syncer

import (
	"context"
	"fmt"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
)

// Legacy row repair.
//
// Rows written by older releases may lack a transaction number or carry a
// zero total. These are fixed here, persisted, and only then uploaded, so
// the upload path itself can assume well-formed rows. Remove this file
// once no device carries such rows.

// repairResult describes what repair did to one row.
type repairResult struct {
	changed bool
	skip    string // non-empty: do not upload, with this reason
}

func (r *Reconciler) repair(ctx context.Context, tx *pos.Transaction) (repairResult, error) {
	var res repairResult
	if len(tx.Items) == 0 {
		res.skip = "transaction has no items"
		return res, nil
	}

	if tx.Number == "" {
		number := r.opts.Numbers.Generate()
		if err := r.store.SetTransactionNumber(ctx, tx.ID, number); err != nil {
			return res, fmt.Errorf("assign number to transaction %d: %w", tx.ID, err)
		}
		r.logger.Info("repaired missing transaction number", "id", tx.ID, "number", number)
		tx.Number = number
		res.changed = true
	}

	if tx.Total == 0 {
		for i := range tx.Items {
			if tx.Items[i].Subtotal == 0 {
				tx.Items[i].Recompute()
			}
		}
		if total := pos.SumSubtotals(tx.Items); total != 0 {
			if err := r.store.SetTransactionTotal(ctx, tx.ID, total); err != nil {
				return res, fmt.Errorf("recompute total of %s: %w", tx.Number, err)
			}
			r.logger.Info("repaired zero total", "number", tx.Number, "total", total)
			tx.Total = total
			res.changed = true
		}
	}
	return res, nil
}
