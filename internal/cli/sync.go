package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/store"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/syncer"
)

// defaultWatchInterval applies when neither --interval nor
// KASIR_SYNC_INTERVAL is set.
const defaultWatchInterval = time.Minute

type syncOptions struct {
	history  bool
	interval time.Duration
}

// NewSyncCommand creates the sync command and its subcommands.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload pending sales, then download the catalog",
		Long: `Upload pending sales, then download the catalog.

Each sale is retried on transient failures; a sale the server rejects
stays queued and does not block the others. If the server cannot be
reached the pass stops and the download is skipped. Exit status 1 means
some work is left for the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconciler(cmd, rootOpts, func(ctx context.Context, f *OutputFormatter, r *syncer.Reconciler) error {
				sum, err := r.Sync(ctx, syncer.DownloadOptions{History: opts.history})
				if err != nil {
					return f.Fail("sync", err)
				}
				return finishSync(f, syncReport(sum), sum.OK())
			})
		},
	}
	cmd.PersistentFlags().BoolVar(&opts.history, "history", false, "also import remote transactions missing locally")

	cmd.AddCommand(newSyncUpCommand(rootOpts))
	cmd.AddCommand(newSyncDownCommand(rootOpts, opts))
	cmd.AddCommand(newSyncWatchCommand(rootOpts, opts))
	return cmd
}

func newSyncUpCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Upload pending sales only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconciler(cmd, rootOpts, func(ctx context.Context, f *OutputFormatter, r *syncer.Reconciler) error {
				sum, err := r.SyncToServer(ctx)
				if err != nil {
					return f.Fail("upload", err)
				}
				return finishSync(f, uploadReport(sum), sum.OK())
			})
		},
	}
}

func newSyncDownCommand(rootOpts *RootOptions, opts *syncOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Download categories and the product catalog only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconciler(cmd, rootOpts, func(ctx context.Context, f *OutputFormatter, r *syncer.Reconciler) error {
				sum, err := r.SyncFromServer(ctx, syncer.DownloadOptions{History: opts.history})
				if err != nil {
					return f.Fail("download", err)
				}
				return finishSync(f, downloadReport(sum), sum.OK())
			})
		},
	}
}

func newSyncWatchCommand(rootOpts *RootOptions, opts *syncOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync repeatedly until interrupted",
		Long: `Sync repeatedly until interrupted.

The first pass starts immediately. With --format json each pass is
written as one JSON line. SIGINT or SIGTERM stops after the current pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interval := opts.interval
			if interval == 0 {
				interval = rootOpts.Config.SyncInterval
			}
			if interval == 0 {
				interval = defaultWatchInterval
			}
			if interval < 0 {
				return usageError("interval must be positive")
			}

			return withReconciler(cmd, rootOpts, func(ctx context.Context, f *OutputFormatter, r *syncer.Reconciler) error {
				ctx, cancel := signalContext(ctx, f.VerboseLog)
				defer cancel()

				rootOpts.Logger.Info("sync watch started", "interval", interval.String())
				err := r.Run(ctx, interval, syncer.DownloadOptions{History: opts.history}, func(sum syncer.Summary, err error) {
					if err != nil && ctx.Err() == nil {
						code, _ := describeError(err)
						_ = f.Error(code, "sync pass: "+err.Error(), nil)
						return
					}
					if ctx.Err() == nil {
						_ = f.Success(syncReport(sum))
					}
				})
				if ctx.Err() != nil {
					rootOpts.Logger.Info("sync watch stopped")
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "time between passes (default KASIR_SYNC_INTERVAL or 1m)")
	return cmd
}

type reconcileFunc func(ctx context.Context, f *OutputFormatter, r *syncer.Reconciler) error

// withReconciler opens the store and remote client, then runs fn.
func withReconciler(cmd *cobra.Command, rootOpts *RootOptions, fn reconcileFunc) error {
	f := rootOpts.formatter(cmd)
	client, err := rootOpts.remoteClient()
	if err != nil {
		return WrapExitError(ExitCommandError, "configure remote", err)
	}
	st, err := rootOpts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	logPending(cmd.Context(), f, st)
	f.VerboseLog("remote: %s", client.BaseURL())
	return fn(cmd.Context(), f, rootOpts.reconciler(st, client))
}

func logPending(ctx context.Context, f *OutputFormatter, st *store.Store) {
	if n, err := st.CountUnsynced(ctx); err == nil {
		f.VerboseLog("pending uploads: %d", n)
	}
}

// finishSync prints a pass report. An incomplete pass is reported as a
// SYNC_INCOMPLETE failure carrying the report.
func finishSync(f *OutputFormatter, report textRenderer, ok bool) error {
	if ok {
		return f.Success(report)
	}
	var details any
	if f.Format == "json" {
		details = report
	} else {
		report.RenderText(f.Writer)
	}
	_ = f.Error(ErrCodeSync, "sync incomplete; remaining work is queued for the next run", details)
	e := NewExitError(ExitFailure, "sync incomplete")
	e.Reported = true
	return e
}
