package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/lifecycle"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
)

type transitionFunc func(ctx context.Context, m *lifecycle.Machine, id int64) (pos.Transaction, error)

// NewPayCommand creates the pay command.
func NewPayCommand(rootOpts *RootOptions) *cobra.Command {
	var cash int64
	cmd := newTransitionCommand(rootOpts, "pay REF", "Settle a pending BON sale",
		func(ctx context.Context, m *lifecycle.Machine, id int64) (pos.Transaction, error) {
			return m.Pay(ctx, id, cash)
		})
	cmd.Flags().Int64Var(&cash, "cash", 0, "cash received in rupiah (required)")
	_ = cmd.MarkFlagRequired("cash")
	return cmd
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return newTransitionCommand(rootOpts, "cancel REF", "Cancel a sale without restoring stock",
		func(ctx context.Context, m *lifecycle.Machine, id int64) (pos.Transaction, error) {
			return m.Cancel(ctx, id)
		})
}

// NewRefundCommand creates the refund command.
func NewRefundCommand(rootOpts *RootOptions) *cobra.Command {
	return newTransitionCommand(rootOpts, "refund REF", "Refund a paid sale and restore its stock",
		func(ctx context.Context, m *lifecycle.Machine, id int64) (pos.Transaction, error) {
			return m.Refund(ctx, id)
		})
}

// newTransitionCommand builds a command applying one status change to the
// transaction named by REF, a local id or a transaction number.
func newTransitionCommand(rootOpts *RootOptions, use, short string, apply transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

REF is a local transaction id or a transaction number. When a remote is
configured and the sale was already uploaded, the new status is pushed
immediately; otherwise it goes out with the next sync.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			tx, err := resolveTransaction(ctx, st, args[0])
			if err != nil {
				return f.Fail("find transaction", err)
			}
			m, err := rootOpts.machine(st)
			if err != nil {
				return WrapExitError(ExitCommandError, "configure remote", err)
			}
			updated, err := apply(ctx, m, tx.ID)
			if err != nil {
				return f.Fail(cmd.Name()+" "+tx.Number, err)
			}
			return f.Success(transactionView(updated))
		},
	}
}
