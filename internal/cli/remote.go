package cli

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remotesim"
)

// NewRemoteCommand creates the remote command group: a local stand-in for
// the back-office server, for development and demos.
func NewRemoteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Run the development back-office server",
	}
	cmd.AddCommand(newRemoteServeCommand(rootOpts))
	cmd.AddCommand(newRemoteTokenCommand(rootOpts))
	return cmd
}

type remoteServeOptions struct {
	listen string
	dbPath string
	secret string
}

type serveInfo struct {
	Address string `json:"address"`
	BaseURL string `json:"base_url"`
	Auth    bool   `json:"auth"`
}

func (s serveInfo) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Listening on %s\nBase URL: %s\n", s.Address, s.BaseURL)
	if s.Auth {
		fmt.Fprintln(w, "Bearer tokens required.")
	}
}

func newRemoteServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &remoteServeOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the remote API until interrupted",
		Long: `Serve the remote API until interrupted.

Point a terminal at it with KASIR_REMOTE_URL=http://ADDRESS/api. With a
JWT secret every request must carry a bearer token from "kasir remote token".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if opts.listen == "" {
				opts.listen = cfg.RemoteListenAddr
			}
			if opts.dbPath == "" {
				opts.dbPath = cfg.RemoteDBPath
			}
			if opts.secret == "" {
				opts.secret = cfg.RemoteJWTSecret
			}

			f := rootOpts.formatter(cmd)
			serverOpts := []remotesim.Option{
				remotesim.WithJWTSecret(opts.secret),
				remotesim.WithLogger(rootOpts.Logger),
			}
			if rootOpts.Verbose {
				serverOpts = append(serverOpts, remotesim.WithAccessLog(f.GetErrWriter()))
			}
			srv, err := remotesim.New(opts.dbPath, serverOpts...)
			if err != nil {
				return WrapExitError(ExitCommandError, "start remote", err)
			}
			defer srv.Close()

			ln, err := net.Listen("tcp", opts.listen)
			if err != nil {
				return WrapExitError(ExitCommandError, "listen", err)
			}

			ctx, cancel := signalContext(cmd.Context(), f.VerboseLog)
			defer cancel()
			go func() {
				<-ctx.Done()
				if err := srv.Shutdown(); err != nil {
					rootOpts.Logger.Warn("remote shutdown", "error", err)
				}
				// Covers a cancel that lands before Serve registered ln.
				_ = ln.Close()
			}()

			addr := ln.Addr().String()
			if err := f.Success(serveInfo{Address: addr, BaseURL: "http://" + addr + "/api", Auth: opts.secret != ""}); err != nil {
				return err
			}
			rootOpts.Logger.Info("remote listening", "address", addr, "db", opts.dbPath)

			if err := srv.Serve(ln); err != nil && ctx.Err() == nil {
				return WrapExitError(ExitCommandError, "serve", err)
			}
			rootOpts.Logger.Info("remote stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.listen, "listen", "", "listen address (default KASIR_REMOTE_LISTEN)")
	cmd.Flags().StringVar(&opts.dbPath, "remote-db", "", "server database path (default KASIR_REMOTE_DB_PATH)")
	cmd.Flags().StringVar(&opts.secret, "jwt-secret", "", "require HS256 bearer tokens signed with this secret")
	return cmd
}

type tokenInfo struct {
	Token     string    `json:"token"`
	DeviceID  string    `json:"device_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t tokenInfo) String() string {
	return t.Token
}

func newRemoteTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		device string
		ttl    time.Duration
		secret string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a device bearer token for a server started with --jwt-secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = rootOpts.Config.RemoteJWTSecret
			}
			if secret == "" {
				return usageError("no secret: pass --jwt-secret or set KASIR_REMOTE_JWT_SECRET")
			}
			if device == "" {
				device = rootOpts.Config.DeviceID
			}
			if device == "" {
				return usageError("no device: pass --device or set KASIR_DEVICE_ID")
			}
			if ttl <= 0 {
				return usageError("ttl must be positive")
			}

			token, err := remotesim.IssueToken(secret, device, ttl)
			if err != nil {
				return WrapExitError(ExitCommandError, "issue token", err)
			}
			return rootOpts.formatter(cmd).Success(tokenInfo{
				Token:     token,
				DeviceID:  device,
				ExpiresAt: time.Now().Add(ttl).UTC().Truncate(time.Second),
			})
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "device id (default KASIR_DEVICE_ID)")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "jwt-secret", "", "signing secret (default KASIR_REMOTE_JWT_SECRET)")
	return cmd
}
