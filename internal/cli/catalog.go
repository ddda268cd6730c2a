package cli

import (
	"github.com/spf13/cobra"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/store"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the local product catalog",
	}
	cmd.AddCommand(newCatalogListCommand(rootOpts))
	cmd.AddCommand(newCatalogFindCommand(rootOpts))
	return cmd
}

type catalogListOptions struct {
	search   string
	lowStock bool
	all      bool
}

func newCatalogListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &catalogListOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			products, err := st.ListProducts(cmd.Context(), store.ProductQuery{
				Search:         opts.search,
				LowStockOnly:   opts.lowStock,
				IncludeDeleted: opts.all,
			})
			if err != nil {
				return f.Fail("list products", err)
			}
			return f.Success(productList(products))
		},
	}
	cmd.Flags().StringVar(&opts.search, "search", "", "match a name substring or an exact barcode")
	cmd.Flags().BoolVar(&opts.lowStock, "low-stock", false, "only products at or below their minimum stock")
	cmd.Flags().BoolVar(&opts.all, "all", false, "include deleted products")
	return cmd
}

func newCatalogFindCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find BARCODE",
		Short: "Look up a product by barcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			p, err := st.FindProductByBarcode(cmd.Context(), args[0])
			if err != nil {
				return f.Fail("find product", err)
			}
			return f.Success(productView(p))
		},
	}
}

// NewProductCommand creates the product command group.
func NewProductCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage local products",
	}
	cmd.AddCommand(newProductAddCommand(rootOpts))
	return cmd
}

func newProductAddCommand(rootOpts *RootOptions) *cobra.Command {
	var p pos.Product
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product to the local catalog",
		Long: `Add a product to the local catalog.

Products created here have no server id; the next catalog download
overwrites only products the server knows about.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			id, err := st.CreateProduct(cmd.Context(), p)
			if err != nil {
				return f.Fail("add product", err)
			}
			created, err := st.GetProduct(cmd.Context(), id)
			if err != nil {
				return f.Fail("add product", err)
			}
			rootOpts.Logger.Info("product added", "id", id, "name", created.Name)
			return f.Success(productView(created))
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "product name (required)")
	cmd.Flags().Int64Var(&p.Price, "price", 0, "selling price in rupiah")
	cmd.Flags().Int64Var(&p.CostPrice, "cost", 0, "cost price in rupiah")
	cmd.Flags().Float64Var(&p.Stock, "stock", 0, "opening stock")
	cmd.Flags().Float64Var(&p.MinStock, "min-stock", 0, "low-stock threshold")
	cmd.Flags().StringVar(&p.Barcode, "barcode", "", "barcode")
	cmd.Flags().BoolVar(&p.IsPLU, "plu", false, "sold by weight")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
