package syncer

import (
	"context"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remote"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/retry"
)

// upload walks the outbox once. The returned error is reserved for local
// storage failures; remote failures are reported in the summary.
func (r *Reconciler) upload(ctx context.Context) (UploadSummary, error) {
	sum := UploadSummary{StartedAt: r.opts.Clock()}
	start := sum.StartedAt
	defer func() {
		r.logger.Info("upload finished",
			"synced", sum.Synced,
			"created", sum.Created,
			"updated", sum.Updated,
			"failed", sum.Failed,
			"skipped", sum.Skipped,
			"stale", sum.Stale,
			"aborted", sum.Aborted,
		)
	}()

	// streak counts consecutive rows that got no HTTP answer.
	streak := 0
	for tx, err := range r.store.ListUnsynced(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				sum.Aborted = true
				break
			}
			return sum, err
		}
		if ctx.Err() != nil {
			sum.Aborted = true
			break
		}

		fixed, err := r.repair(ctx, &tx)
		if err != nil {
			r.fail(&sum, refOf(tx.Number, tx.ID), err)
			continue
		}
		if fixed.skip != "" {
			sum.Skipped++
			sum.Skips = append(sum.Skips, Failure{Ref: refOf(tx.Number, tx.ID), Reason: fixed.skip})
			r.logger.Warn("transaction not uploaded", "id", tx.ID, "number", tx.Number, "reason", fixed.skip)
			continue
		}
		if fixed.changed {
			sum.Repaired++
		}

		body, err := r.toRemote(ctx, tx)
		if err != nil {
			r.fail(&sum, tx.Number, err)
			continue
		}

		var res remote.CreateResult
		err = r.call(ctx, func(ctx context.Context) error {
			var err error
			res, err = r.client.CreateTransaction(ctx, body)
			return err
		})
		if err != nil {
			r.fail(&sum, tx.Number, err)
			if remote.IsUnreachable(err) {
				streak++
			} else {
				streak = 0
			}
			if systemic(ctx, err) || streak >= r.opts.MaxNetworkFailures {
				sum.Aborted = true
				break
			}
			continue
		}
		streak = 0
		if res.Updated {
			sum.Updated++
		} else {
			sum.Created++
		}

		marked, err := r.store.MarkSyncedAt(ctx, tx.ID, tx.Version)
		if err != nil {
			r.fail(&sum, tx.Number, err)
			continue
		}
		if !marked {
			sum.Stale++
			r.logger.Info("transaction changed during upload; left queued", "number", tx.Number)
			continue
		}
		sum.Synced++
	}

	sum.Duration = r.opts.Clock().Sub(start)
	return sum, nil
}

func (r *Reconciler) fail(sum *UploadSummary, ref string, err error) {
	sum.Failed++
	sum.Failures = append(sum.Failures, Failure{Ref: ref, Reason: err.Error(), Attempts: retry.Attempts(err)})
	r.logger.Warn("transaction upload failed", "number", ref, "attempts", retry.Attempts(err), "error", err)
}
