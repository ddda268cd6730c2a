// Package syncer reconciles the local store with the remote server.
//
// Upload walks the outbox oldest-first and POSTs each sale keyed by its
// transaction number; a row is marked synced only after the remote
// acknowledged the exact version that was sent. Download merges categories,
// then the product catalog page by page, and optionally imports history.
//
// Failures are per unit of work (one sale, one page): they are recorded in
// the summary and the batch continues. Only an unreachable remote or a
// cancelled context stops a run early.
package syncer

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remote"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/retry"
)

// Defaults for Options fields left zero.
const (
	DefaultCatalogPageSize = 100
	DefaultCatalogMaxPages = 50
	DefaultHistoryPageSize = 100

	// DefaultMaxNetworkFailures consecutive rows failing in transport end
	// an upload pass even when no single error shows the remote is down.
	DefaultMaxNetworkFailures = 3
)

// Store is the subset of the local store the reconciler needs.
type Store interface {
	ListUnsynced(ctx context.Context) iter.Seq2[pos.Transaction, error]
	MarkSyncedAt(ctx context.Context, id, version int64) (bool, error)
	SetTransactionNumber(ctx context.Context, id int64, number string) error
	SetTransactionTotal(ctx context.Context, id, total int64) error
	ProductServerID(ctx context.Context, localID int64) (string, error)

	ListCategories(ctx context.Context) ([]pos.Category, error)
	UpsertCategory(ctx context.Context, c pos.Category) (int64, bool, error)
	CategoryIDByServerID(ctx context.Context, serverID string) (int64, error)
	ProductIDByServerID(ctx context.Context, serverID string) (int64, error)
	UpsertProduct(ctx context.Context, p pos.Product) (int64, bool, error)
	ImportTransaction(ctx context.Context, tx pos.Transaction) (bool, error)
}

// Remote is the subset of the remote API the reconciler uses.
// *remote.Client satisfies it.
type Remote interface {
	CreateTransaction(ctx context.Context, t remote.Transaction) (remote.CreateResult, error)
	ListProducts(ctx context.Context, page, limit int) ([]remote.Product, remote.Meta, error)
	ListCategories(ctx context.Context) ([]remote.Category, error)
	CreateCategory(ctx context.Context, name string) (remote.Category, error)
	ListTransactions(ctx context.Context, page, limit int) ([]remote.Transaction, remote.Meta, error)
}

// Options configures a Reconciler. Zero values take the package defaults.
type Options struct {
	Retry           retry.Policy
	CatalogPageSize int
	CatalogMaxPages int
	HistoryPageSize int
	Logger          *slog.Logger

	// MaxNetworkFailures bounds consecutive per-row transport failures
	// before an upload pass gives up. Default: DefaultMaxNetworkFailures.
	MaxNetworkFailures int

	// Clock stamps summaries. Default: time.Now.
	Clock func() time.Time

	// Numbers regenerates missing transaction numbers during repair.
	// Default: pos.UUIDv7Numbers.
	Numbers pos.NumberGenerator
}

// Reconciler runs upload and download passes. Passes are serialised: a
// call made while another pass is running waits for it.
type Reconciler struct {
	store  Store
	client Remote
	opts   Options
	logger *slog.Logger

	mu sync.Mutex
}

// New creates a Reconciler.
func New(store Store, client Remote, opts Options) *Reconciler {
	if opts.CatalogPageSize <= 0 {
		opts.CatalogPageSize = DefaultCatalogPageSize
	}
	if opts.CatalogMaxPages <= 0 {
		opts.CatalogMaxPages = DefaultCatalogMaxPages
	}
	if opts.HistoryPageSize <= 0 {
		opts.HistoryPageSize = DefaultHistoryPageSize
	}
	if opts.MaxNetworkFailures <= 0 {
		opts.MaxNetworkFailures = DefaultMaxNetworkFailures
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = remote.IsRetryable
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Numbers == nil {
		opts.Numbers = pos.UUIDv7Numbers{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconciler{store: store, client: client, opts: opts, logger: logger}
}

// SyncToServer uploads the outbox.
func (r *Reconciler) SyncToServer(ctx context.Context) (UploadSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upload(ctx)
}

// SyncFromServer downloads categories, the catalog and optionally history.
func (r *Reconciler) SyncFromServer(ctx context.Context, opts DownloadOptions) (DownloadSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.download(ctx, opts)
}

// Sync runs an upload pass followed by a download pass.
//
// Download is skipped if upload found the remote unreachable or ctx was
// cancelled.
func (r *Reconciler) Sync(ctx context.Context, opts DownloadOptions) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sum Summary
	up, err := r.upload(ctx)
	sum.Upload = up
	if err != nil {
		return sum, err
	}
	if up.Aborted {
		return sum, nil
	}
	down, err := r.download(ctx, opts)
	sum.Download = down
	return sum, err
}

// Run calls Sync every interval until ctx is done. The first pass starts
// immediately. Each summary is passed to report, which may be nil.
// Returns ctx.Err() once ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration, opts DownloadOptions, report func(Summary, error)) error {
	if interval <= 0 {
		return errors.New("sync interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sum, err := r.Sync(ctx, opts)
		if err != nil && ctx.Err() == nil {
			r.logger.Warn("sync pass failed", "error", err)
		}
		if report != nil {
			report(sum, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// call runs fn under the retry policy.
func (r *Reconciler) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, r.opts.Retry, func(ctx context.Context, _ int) error {
		return fn(ctx)
	})
}

// systemic reports whether err should end the run rather than one unit.
func systemic(ctx context.Context, err error) bool {
	return ctx.Err() != nil || remote.IsDown(err)
}
