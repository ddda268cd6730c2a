package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
)

func TestProductAdd(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "  Gula   Pasir ", 14000, 12.5, "--min-stock", "2", "--barcode", "899001", "--plu")

	assert.NotZero(t, p.ID)
	assert.Equal(t, "Gula Pasir", p.Name)
	assert.EqualValues(t, 14000, p.Price)
	assert.EqualValues(t, 11200, p.CostPrice)
	assert.InDelta(t, 12.5, p.Stock, pos.QuantityEpsilon)
	assert.Equal(t, "899001", p.Barcode)
	assert.True(t, p.IsPLU)
	assert.Empty(t, p.ServerID)
}

func TestProductAdd_Invalid(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.runJSON(t, "product", "add", "--name", "Kopi", "--price", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION", resp.Error.Code)

	res := env.run("product", "add", "--price", "1000")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err), "missing required flag")
}

func TestCatalogList(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Teh", 4000, 10, "--min-stock", "2")
	env.addProduct(t, "Beras", 12000, 1, "--min-stock", "5", "--barcode", "899777")
	env.addProduct(t, "Kopi", 5000, 0)

	var all []pos.Product
	env.mustJSON(t, &all, "catalog", "list")
	require.Len(t, all, 3)
	assert.Equal(t, "Beras", all[0].Name, "ordered by name")

	var low []pos.Product
	env.mustJSON(t, &low, "catalog", "list", "--low-stock")
	var names []string
	for _, p := range low {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"Beras", "Kopi"}, names)

	var found []pos.Product
	env.mustJSON(t, &found, "catalog", "list", "--search", "899777")
	require.Len(t, found, 1)
	assert.Equal(t, "Beras", found[0].Name)
}

func TestCatalogList_Text(t *testing.T) {
	env := newTestEnv(t)
	res := env.run("catalog", "list")
	require.NoError(t, res.err)
	assert.Equal(t, "No products.\n", res.stdout)

	env.addProduct(t, "Beras", 12000, 1, "--min-stock", "5", "--plu")
	res = env.run("catalog", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "NAME")
	assert.Contains(t, res.stdout, "Beras")
	assert.Contains(t, res.stdout, "plu,low")
}

func TestCatalogFind(t *testing.T) {
	env := newTestEnv(t)
	env.addProduct(t, "Beras", 12000, 1, "--barcode", "899777")

	var p pos.Product
	env.mustJSON(t, &p, "catalog", "find", "899777")
	assert.Equal(t, "Beras", p.Name)

	resp, err := env.runJSON(t, "catalog", "find", "000")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}
