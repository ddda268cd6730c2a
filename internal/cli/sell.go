package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/checkout"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/store"
)

type sellOptions struct {
	items    []string
	weighed  []string
	method   string
	cash     int64
	customer string
	number   string
}

// NewSellCommand creates the sell command.
func NewSellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &sellOptions{}
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Ring up and commit a sale",
		Long: `Ring up and commit a sale.

Products are named by local id or barcode. --item adds units at the base
price; --weigh adds a weighed product using the 1 kg or 0.25 kg preset.
The 0.25 kg pack carries the configured PLU surcharge and is fixed at one
pack per product; weighing the same product at 0.25 twice is an error.

Cash sales are paid immediately and need --cash covering the total.
BON (credit) sales stay pending until settled with "kasir pay".`,
		Example: `  kasir sell --item 3:2 --item 8991234567890:1 --cash 50000
  kasir sell --weigh 12:0.25 --method bon --name "Bu Sari"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSell(cmd, rootOpts, opts)
		},
	}
	cmd.Flags().StringArrayVar(&opts.items, "item", nil, "product and quantity as REF:QTY (repeatable)")
	cmd.Flags().StringArrayVar(&opts.weighed, "weigh", nil, "weighed product as REF:KG, KG is 1 or 0.25 (repeatable)")
	cmd.Flags().StringVar(&opts.method, "method", "cash", "payment method (cash|bon)")
	cmd.Flags().Int64Var(&opts.cash, "cash", 0, "cash received in rupiah")
	cmd.Flags().StringVar(&opts.customer, "name", "", "customer name")
	cmd.Flags().StringVar(&opts.number, "number", "", "transaction number to reuse when retrying a sale")
	return cmd
}

func runSell(cmd *cobra.Command, rootOpts *RootOptions, opts *sellOptions) error {
	f := rootOpts.formatter(cmd)
	if len(opts.items) == 0 && len(opts.weighed) == 0 {
		return usageError("nothing to sell: pass --item or --weigh")
	}
	method, err := pos.ParsePaymentMethod(opts.method)
	if err != nil {
		return f.Fail("sell", err)
	}

	st, err := rootOpts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	cart := checkout.NewCart(rootOpts.Config.PLUSurcharge)
	for _, arg := range opts.items {
		p, q, err := parseLine(ctx, st, arg)
		if err != nil {
			return f.Fail("add item "+arg, err)
		}
		if err := cart.Add(p, q); err != nil {
			return f.Fail("add item "+arg, err)
		}
	}
	for _, arg := range opts.weighed {
		p, kg, err := parseLine(ctx, st, arg)
		if err != nil {
			return f.Fail("weigh "+arg, err)
		}
		if err := cart.ConfirmWeighed(p, kg); err != nil {
			return f.Fail("weigh "+arg, err)
		}
	}
	f.VerboseLog("cart: %d lines, total %s", cart.Len(), rupiah(cart.Total()))

	engine := checkout.New(st, checkout.WithLogger(rootOpts.Logger))
	tx, err := engine.Checkout(ctx, cart, checkout.Payment{
		Method:       method,
		CustomerName: opts.customer,
		CashReceived: opts.cash,
		Number:       opts.number,
	})
	if err != nil {
		return f.Fail("checkout", err)
	}
	return f.Success(transactionView(tx))
}

// parseLine splits "REF:QTY" and resolves REF to a product.
func parseLine(ctx context.Context, st *store.Store, arg string) (pos.Product, float64, error) {
	ref, rawQty, ok := strings.Cut(arg, ":")
	if !ok {
		rawQty = "1"
	}
	q, err := strconv.ParseFloat(rawQty, 64)
	if err != nil || q <= 0 {
		return pos.Product{}, 0, pos.NewValidationError("invalid quantity %q", rawQty)
	}
	p, err := resolveProduct(ctx, st, ref)
	return p, q, err
}

// resolveProduct finds a product by local id, falling back to barcode.
func resolveProduct(ctx context.Context, st *store.Store, ref string) (pos.Product, error) {
	if ref == "" {
		return pos.Product{}, pos.NewValidationError("empty product reference")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		p, err := st.GetProduct(ctx, id)
		if err == nil || !pos.IsCode(err, pos.ErrCodeNotFound) {
			return p, err
		}
	}
	return st.FindProductByBarcode(ctx, ref)
}
