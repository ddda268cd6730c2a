package syncer

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remote"
)

func TestSyncToServer_UploadsAndMarks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gula := f.product(t, "Gula", 10000, 10)
	f.sell(t, "TRX-1", pos.PaymentCash, gula, 2)
	f.sell(t, "TRX-2", pos.PaymentCredit, gula, 1)

	sum, err := f.rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Synced)
	assert.Equal(t, 2, sum.Created)
	assert.Zero(t, sum.Updated)
	assert.True(t, sum.OK())
	assert.Zero(t, f.unsynced(t))

	paid := f.remoteTx(t, "TRX-1")
	assert.Equal(t, "paid", paid.Status)
	assert.EqualValues(t, 20000, paid.Total)
	assert.EqualValues(t, 1, paid.PaymentMethodID)
	assert.Equal(t, "till-1", paid.DeviceID)
	require.Len(t, paid.Items, 1)
	assert.Equal(t, "Gula", paid.Items[0].ProductNameSnapshot)
	assert.InDelta(t, 2, paid.Items[0].Quantity, pos.QuantityEpsilon)

	bon := f.remoteTx(t, "TRX-2")
	assert.Equal(t, "pending", bon.Status)
	assert.EqualValues(t, 2, bon.PaymentMethodID)

	again, err := f.rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Synced+again.Created+again.Updated, "nothing left in the outbox")
}

func TestSyncToServer_StatusChangeUpdatesInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gula := f.product(t, "Gula", 10000, 10)
	tx := f.sell(t, "TRX-1", pos.PaymentCash, gula, 2)

	_, err := f.rec.SyncToServer(ctx)
	require.NoError(t, err)

	_, err = f.store.UpdateStatus(ctx, tx.ID, pos.StatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, 1, f.unsynced(t))

	sum, err := f.rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Synced)
	assert.Equal(t, "refunded", f.remoteTx(t, "TRX-1").Status)

	n, err := f.srv.CountTransactions()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSyncToServer_LostAckIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gula := f.product(t, "Gula", 10000, 10)
	f.sell(t, "TRX-1", pos.PaymentCash, gula, 1)

	// First upload reached the remote but the ack never arrived locally.
	_, err := f.client.CreateTransaction(ctx, remote.Transaction{
		TransactionNumber: "TRX-1",
		PaymentMethodID:   1,
		Total:             10000,
		CashReceived:      10000,
		Status:            "paid",
		Items:             []remote.TransactionItem{{ProductNameSnapshot: "Gula", Quantity: 1, Price: 10000, Subtotal: 10000}},
	})
	require.NoError(t, err)

	sum, err := f.rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)
	assert.Zero(t, sum.Created)

	n, err := f.srv.CountTransactions()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSyncToServer_RejectedRowDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gula := f.product(t, "Gula", 10000, 10)
	f.sell(t, "TRX-1", pos.PaymentCash, gula, 1)
	f.sell(t, "TRX-2", pos.PaymentCash, gula, 1)
	f.sell(t, "TRX-3", pos.PaymentCash, gula, 1)
	f.srv.Reject("TRX-2", "receipt flagged")

	sum, err := f.rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Synced)
	assert.Equal(t, 1, sum.Failed)
	assert.False(t, sum.Aborted)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "TRX-2", sum.Failures[0].Ref)
	assert.Contains(t, sum.Failures[0].Reason, "receipt flagged")
	assert.Equal(t, 1, sum.Failures[0].Attempts, "rejections are not retried")
	assert.Equal(t, 1, f.unsynced(t))

	f.srv.Accept("TRX-2")
	sum, err = f.rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Synced)
	assert.Zero(t, f.unsynced(t))
}

func TestSyncToServer_RetriesTransientFailures(t *testing.T) {
	f := newFixture(t)
	gula := f.product(t, "Gula", 10000, 10)
	f.sell(t, "TRX-1", pos.PaymentCash, gula, 1)
	f.srv.FailNext(2)

	sum, err := f.rec.SyncToServer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Synced)
	assert.Equal(t, 3, f.srv.Calls("POST /api/transactions"))
}

func TestSyncToServer_ExhaustedRetriesContinueWithNext(t *testing.T) {
	f := newFixture(t)
	gula := f.product(t, "Gula", 10000, 10)
	f.sell(t, "TRX-1", pos.PaymentCash, gula, 1)
	f.sell(t, "TRX-2", pos.PaymentCash, gula, 1)
	f.srv.FailNext(3)

	sum, err := f.rec.SyncToServer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Synced)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "TRX-1", sum.Failures[0].Ref)
	assert.Equal(t, 3, sum.Failures[0].Attempts)

	_, found, err := f.srv.Transaction("TRX-2")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, f.unsynced(t))
}

func TestSyncToServer_NetworkErrorOnOneRowContinues(t *testing.T) {
	f := newFixture(t)
	gula := f.product(t, "Gula", 10000, 10)
	f.sell(t, "TRX-1", pos.PaymentCash, gula, 1)
	f.sell(t, "TRX-2", pos.PaymentCash, gula, 1)
	f.sell(t, "TRX-3", pos.PaymentCash, gula, 1)

	hook := &hookedRemote{Remote: f.client, createErr: resetBy("TRX-1")}
	sum, err := f.reconciler(hook).SyncToServer(context.Background())
	require.NoError(t, err)

	assert.False(t, sum.Aborted)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 2, sum.Synced)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "TRX-1", sum.Failures[0].Ref)
	assert.Equal(t, 3, sum.Failures[0].Attempts)
	assert.Equal(t, []string{"TRX-1", "TRX-1", "TRX-1", "TRX-2", "TRX-3"}, hook.created)

	f.remoteTx(t, "TRX-2")
	f.remoteTx(t, "TRX-3")
	assert.Equal(t, 1, f.unsynced(t))
}

func TestSyncToServer_ConsecutiveNetworkErrorsAbort(t *testing.T) {
	f := newFixture(t)
	gula := f.product(t, "Gula", 10000, 10)
	for _, n := range []string{"TRX-1", "TRX-2", "TRX-3", "TRX-4"} {
		f.sell(t, n, pos.PaymentCash, gula, 1)
	}

	hook := &hookedRemote{Remote: f.client, createErr: resetBy("TRX-1", "TRX-2", "TRX-3", "TRX-4")}
	sum, err := f.reconciler(hook, func(o *Options) { o.MaxNetworkFailures = 2 }).SyncToServer(context.Background())
	require.NoError(t, err)

	assert.True(t, sum.Aborted)
	assert.Equal(t, 2, sum.Failed)
	assert.NotContains(t, hook.created, "TRX-3")
	assert.Equal(t, 4, f.unsynced(t))
}

func TestSyncToServer_SuccessResetsNetworkStreak(t *testing.T) {
	f := newFixture(t)
	gula := f.product(t, "Gula", 10000, 10)
	for _, n := range []string{"TRX-1", "TRX-2", "TRX-3", "TRX-4"} {
		f.sell(t, n, pos.PaymentCash, gula, 1)
	}

	hook := &hookedRemote{Remote: f.client, createErr: resetBy("TRX-1", "TRX-3")}
	sum, err := f.reconciler(hook, func(o *Options) { o.MaxNetworkFailures = 2 }).SyncToServer(context.Background())
	require.NoError(t, err)

	assert.False(t, sum.Aborted)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 2, sum.Synced)
}

func TestSyncToServer_UnreachableAbortsRun(t *testing.T) {
	f := newFixture(t)
	gula := f.product(t, "Gula", 10000, 10)
	f.sell(t, "TRX-1", pos.PaymentCash, gula, 1)
	f.sell(t, "TRX-2", pos.PaymentCash, gula, 1)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := "http://" + ln.Addr().String() + "/api"
	require.NoError(t, ln.Close())
	client, err := remote.New(dead)
	require.NoError(t, err)

	sum, err := f.reconciler(client).SyncToServer(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.Aborted)
	assert.Equal(t, 1, sum.Failed, "second row never attempted")
	assert.Equal(t, 2, f.unsynced(t))
}

func TestSyncToServer_CancelledContext(t *testing.T) {
	f := newFixture(t)
	gula := f.product(t, "Gula", 10000, 10)
	f.sell(t, "TRX-1", pos.PaymentCash, gula, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := f.rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Aborted)
	assert.Zero(t, f.srv.Calls("POST /api/transactions"))
	assert.Equal(t, 1, f.unsynced(t))
}

func TestSyncToServer_StatusChangedDuringUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gula := f.product(t, "Gula", 10000, 10)
	tx := f.sell(t, "TRX-1", pos.PaymentCash, gula, 1)

	hooked := &hookedRemote{Remote: f.client}
	hooked.beforeCreate = func(remote.Transaction) {
		hooked.beforeCreate = nil
		_, err := f.store.UpdateStatus(ctx, tx.ID, pos.StatusRefunded)
		require.NoError(t, err)
	}
	rec := f.reconciler(hooked)

	sum, err := rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 1, sum.Stale)
	assert.Zero(t, sum.Synced)
	assert.Equal(t, "paid", f.remoteTx(t, "TRX-1").Status)
	assert.Equal(t, 1, f.unsynced(t))

	sum, err = rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Synced)
	assert.Equal(t, "refunded", f.remoteTx(t, "TRX-1").Status)
}

func TestSyncToServer_SendsServerProductIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	serverID, err := f.srv.SeedProduct(remotesimProduct("Beras", 12000, 20))
	require.NoError(t, err)
	_, err = f.rec.SyncFromServer(ctx, DownloadOptions{})
	require.NoError(t, err)

	localID, err := f.store.ProductIDByServerID(ctx, serverID)
	require.NoError(t, err)
	beras, err := f.store.GetProduct(ctx, localID)
	require.NoError(t, err)
	f.sell(t, "TRX-1", pos.PaymentCash, beras, 1)

	_, err = f.rec.SyncToServer(ctx)
	require.NoError(t, err)
	items := f.remoteTx(t, "TRX-1").Items
	require.Len(t, items, 1)
	assert.Equal(t, serverID, items[0].ProductID)
}
