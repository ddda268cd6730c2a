package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remotesim"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/syncer"
)

func newSyncEnv(t *testing.T, opts ...remotesim.Option) (*testEnv, *remotesim.Server) {
	t.Helper()
	srv, base := remotesim.Start(t, opts...)
	return newTestEnv(t, "KASIR_REMOTE_URL="+base), srv
}

func deadRemote(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String() + "/api"
	require.NoError(t, ln.Close())
	return base
}

func TestSync_NoRemoteConfigured(t *testing.T) {
	env := newTestEnv(t)
	res := env.run("sync")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.err.Error(), "no remote configured")
}

func TestSyncUp_UploadsOutbox(t *testing.T) {
	env, srv := newSyncEnv(t)
	gula := env.addProduct(t, "Gula", 10000, 10)
	var sale pos.Transaction
	env.mustJSON(t, &sale, "sell", "--item", ref(gula.ID)+":2", "--cash", "20000")
	env.mustJSON(t, nil, "sell", "--item", ref(gula.ID), "--method", "bon")

	var sum syncer.UploadSummary
	env.mustJSON(t, &sum, "sync", "up")
	assert.Equal(t, 2, sum.Synced)
	assert.Equal(t, 2, sum.Created)

	var unsynced []pos.Transaction
	env.mustJSON(t, &unsynced, "tx", "list", "--unsynced")
	assert.Empty(t, unsynced)

	remoteTx, found, err := srv.Transaction(sale.Number)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "paid", remoteTx.Status)
	assert.EqualValues(t, 20000, remoteTx.Total)
	assert.Equal(t, "till-1", remoteTx.DeviceID)
}

func TestSync_RejectedSaleExitsOne(t *testing.T) {
	env, srv := newSyncEnv(t)
	gula := env.addProduct(t, "Gula", 10000, 10)
	var bad, good pos.Transaction
	env.mustJSON(t, &bad, "sell", "--item", ref(gula.ID), "--cash", "10000")
	env.mustJSON(t, &good, "sell", "--item", ref(gula.ID), "--cash", "10000")
	srv.Reject(bad.Number, "duplicate receipt")

	resp, err := env.runJSON(t, "sync", "up")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSync, resp.Error.Code)

	_, found, err := srv.Transaction(good.Number)
	require.NoError(t, err)
	assert.True(t, found, "rejected row does not block the next one")

	var unsynced []pos.Transaction
	env.mustJSON(t, &unsynced, "tx", "list", "--unsynced")
	require.Len(t, unsynced, 1)
	assert.Equal(t, bad.Number, unsynced[0].Number)

	srv.Accept(bad.Number)
	env.mustJSON(t, nil, "sync", "up")
}

func TestSync_UnreachableText(t *testing.T) {
	env := newTestEnv(t, "KASIR_REMOTE_URL="+deadRemote(t))
	gula := env.addProduct(t, "Gula", 10000, 10)
	env.mustJSON(t, nil, "sell", "--item", ref(gula.ID), "--cash", "10000")

	res := env.run("sync")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.True(t, IsReported(res.err))
	assert.Contains(t, res.stdout, "aborted: remote unreachable")
	assert.Contains(t, res.stdout, "Error [SYNC_INCOMPLETE]")
}

func TestSyncDown_MergesCatalog(t *testing.T) {
	env, srv := newSyncEnv(t)
	catID, err := srv.SeedCategory("Sembako")
	require.NoError(t, err)
	_, err = srv.SeedProduct(remotesim.Product{Name: "Beras", Price: 12000, Stock: 20, CategoryID: &catID})
	require.NoError(t, err)
	_, err = srv.SeedProduct(remotesim.Product{Name: "Minyak", Price: 18000, Stock: 4})
	require.NoError(t, err)

	var sum syncer.DownloadSummary
	env.mustJSON(t, &sum, "sync", "down")
	assert.Equal(t, 2, sum.ProductsInserted)
	assert.Equal(t, 1, sum.CategoriesMerged)

	var products []pos.Product
	env.mustJSON(t, &products, "catalog", "list")
	require.Len(t, products, 2)
	assert.Equal(t, "Beras", products[0].Name)
	assert.NotEmpty(t, products[0].ServerID)
	assert.NotNil(t, products[0].CategoryID)
}

func TestSync_FullPassWithHistory(t *testing.T) {
	env, _ := newSyncEnv(t)
	gula := env.addProduct(t, "Gula", 10000, 10)
	env.mustJSON(t, nil, "sell", "--item", ref(gula.ID), "--cash", "10000")

	var sum syncer.Summary
	env.mustJSON(t, &sum, "sync", "--history")
	assert.Equal(t, 1, sum.Upload.Synced)
	assert.Equal(t, 1, sum.Download.HistoryExisting, "uploaded sale is already local")
	assert.Zero(t, sum.Download.HistoryImported)

	res := env.run("sync")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Upload: 0 synced")
	assert.Contains(t, res.stdout, "Download:")
}

func TestRefund_PushedWhenAlreadySynced(t *testing.T) {
	env, srv := newSyncEnv(t)
	gula := env.addProduct(t, "Gula", 10000, 10)
	var sale pos.Transaction
	env.mustJSON(t, &sale, "sell", "--item", ref(gula.ID), "--cash", "10000")
	env.mustJSON(t, nil, "sync", "up")

	var refunded pos.Transaction
	env.mustJSON(t, &refunded, "refund", sale.Number)
	assert.Equal(t, pos.StatusRefunded, refunded.Status)
	assert.True(t, refunded.Synced, "pushed immediately")

	remoteTx, _, err := srv.Transaction(sale.Number)
	require.NoError(t, err)
	assert.Equal(t, "refunded", remoteTx.Status)
}

func TestRefund_PushFailureLeavesRowQueued(t *testing.T) {
	env, srv := newSyncEnv(t)
	gula := env.addProduct(t, "Gula", 10000, 10)
	var sale pos.Transaction
	env.mustJSON(t, &sale, "sell", "--item", ref(gula.ID), "--cash", "10000")
	env.mustJSON(t, nil, "sync", "up")

	srv.FailNext(1)
	var refunded pos.Transaction
	env.mustJSON(t, &refunded, "refund", sale.Number)
	assert.Equal(t, pos.StatusRefunded, refunded.Status)
	assert.False(t, refunded.Synced)

	env.mustJSON(t, nil, "sync", "up")
	remoteTx, _, err := srv.Transaction(sale.Number)
	require.NoError(t, err)
	assert.Equal(t, "refunded", remoteTx.Status)
}

func TestSyncWatch_StopsOnCancel(t *testing.T) {
	env, _ := newSyncEnv(t)
	gula := env.addProduct(t, "Gula", 10000, 10)
	env.mustJSON(t, nil, "sell", "--item", ref(gula.ID), "--cash", "10000")

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	res := env.exec(ctx, "--format", "json", "sync", "watch", "--interval", "1h")
	require.NoError(t, res.err)

	scanner := bufio.NewScanner(strings.NewReader(res.stdout))
	var passes []syncer.Summary
	for scanner.Scan() {
		var resp struct {
			Status string         `json:"status"`
			Data   syncer.Summary `json:"data"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		passes = append(passes, resp.Data)
	}
	require.Len(t, passes, 1, "first pass runs immediately, the next waits for the interval")
	assert.Equal(t, 1, passes[0].Upload.Synced)
}

func TestSyncWatch_RejectsNegativeInterval(t *testing.T) {
	env, _ := newSyncEnv(t)
	res := env.run("sync", "watch", "--interval", "-1s")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
}

func TestSync_WithBearerToken(t *testing.T) {
	token, err := remotesim.IssueToken("s3cret", "till-1", time.Hour)
	require.NoError(t, err)
	srv, base := remotesim.Start(t, remotesim.WithJWTSecret("s3cret"))
	_, err = srv.SeedProduct(remotesim.Product{Name: "Teh", Price: 4000, Stock: 3})
	require.NoError(t, err)

	unauth := newTestEnv(t, "KASIR_REMOTE_URL="+base)
	resp, err := unauth.runJSON(t, "sync", "down")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ErrCodeSync, resp.Error.Code)

	authed := newTestEnv(t, "KASIR_REMOTE_URL="+base, "KASIR_AUTH_TOKEN="+token)
	var sum syncer.DownloadSummary
	authed.mustJSON(t, &sum, "sync", "down")
	assert.Equal(t, 1, sum.ProductsInserted)
}
