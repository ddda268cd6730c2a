package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/lifecycle"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remote"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/store"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/syncer"
)

var errNoRemote = errors.New("no remote configured (set KASIR_REMOTE_URL or --remote)")

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openStore opens the local database named by the configuration.
func (o *RootOptions) openStore() (*store.Store, error) {
	st, err := store.Open(o.Config.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	return st, nil
}

// remoteClient builds the API client, or fails if no remote is configured.
func (o *RootOptions) remoteClient() (*remote.Client, error) {
	if !o.Config.RemoteConfigured() {
		return nil, errNoRemote
	}
	return remote.New(o.Config.RemoteBaseURL,
		remote.WithToken(o.Config.AuthToken),
		remote.WithDeviceID(o.Config.DeviceID),
		remote.WithTimeout(o.Config.RequestTimeout),
		remote.WithLogger(o.Logger),
	)
}

func (o *RootOptions) reconciler(st *store.Store, client *remote.Client) *syncer.Reconciler {
	return syncer.New(st, client, syncer.Options{
		Retry:           o.Config.RetryPolicy(),
		CatalogPageSize: o.Config.CatalogPageSize,
		CatalogMaxPages: o.Config.CatalogMaxPages,
		Logger:          o.Logger,
	})
}

// machine builds the lifecycle machine. Status changes are pushed to the
// remote right away when one is configured; otherwise they wait for the
// next sync.
func (o *RootOptions) machine(st *store.Store) (*lifecycle.Machine, error) {
	opts := []lifecycle.Option{lifecycle.WithLogger(o.Logger)}
	if o.Config.RemoteConfigured() {
		client, err := o.remoteClient()
		if err != nil {
			return nil, err
		}
		opts = append(opts, lifecycle.WithPusher(client))
	}
	return lifecycle.New(st, opts...), nil
}

// resolveTransaction finds a transaction by local id or transaction number.
func resolveTransaction(ctx context.Context, st *store.Store, ref string) (pos.Transaction, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		tx, err := st.GetTransaction(ctx, id)
		if err == nil || !pos.IsCode(err, pos.ErrCodeNotFound) {
			return tx, err
		}
	}
	return st.GetTransactionByNumber(ctx, ref)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logf func(string, ...any)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logf("received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func usageError(format string, args ...any) error {
	return NewExitError(ExitCommandError, fmt.Sprintf(format, args...))
}
