package cli

import (
	"github.com/spf13/cobra"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/store"
)

// NewTxCommand creates the tx command group.
func NewTxCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Inspect local transactions",
	}
	cmd.AddCommand(newTxListCommand(rootOpts))
	cmd.AddCommand(newTxShowCommand(rootOpts))
	return cmd
}

type txListOptions struct {
	unsynced bool
	status   string
	limit    int
}

func newTxListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &txListOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			status := pos.Status(opts.status)
			if status != "" && !status.Valid() {
				return usageError("invalid status %q", opts.status)
			}
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			txs, err := st.ListTransactions(cmd.Context(), store.ListOptions{
				UnsyncedOnly: opts.unsynced,
				Status:       status,
				Limit:        opts.limit,
			})
			if err != nil {
				return f.Fail("list transactions", err)
			}
			return f.Success(transactionList(txs))
		},
	}
	cmd.Flags().BoolVar(&opts.unsynced, "unsynced", false, "only transactions waiting for upload")
	cmd.Flags().StringVar(&opts.status, "status", "", "filter by status (pending|paid|cancelled|refunded)")
	cmd.Flags().IntVar(&opts.limit, "limit", 50, "maximum rows")
	return cmd
}

func newTxShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show REF",
		Short: "Show one transaction with its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			tx, err := resolveTransaction(cmd.Context(), st, args[0])
			if err != nil {
				return f.Fail("find transaction", err)
			}
			return f.Success(transactionView(tx))
		},
	}
}
