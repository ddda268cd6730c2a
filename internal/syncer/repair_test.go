package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
)

func TestRepair_MissingNumberAndZeroTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gula := f.product(t, "Gula", 10000, 10)
	tx := f.sell(t, "TRX-OLD", pos.PaymentCash, gula, 2)

	_, err := f.store.DB().ExecContext(ctx,
		`UPDATE transactions SET transaction_number = '', total = 0 WHERE id = ?`, tx.ID)
	require.NoError(t, err)

	sum, err := f.rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Repaired)
	assert.Equal(t, 1, sum.Synced)

	fixed, err := f.store.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "LEGACY-0001", fixed.Number)
	assert.EqualValues(t, 20000, fixed.Total)
	assert.True(t, fixed.Synced)

	uploaded := f.remoteTx(t, "LEGACY-0001")
	assert.EqualValues(t, 20000, uploaded.Total)
}

func TestRepair_NumberPersistsAcrossFailedUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gula := f.product(t, "Gula", 10000, 10)
	tx := f.sell(t, "TRX-OLD", pos.PaymentCash, gula, 1)
	_, err := f.store.DB().ExecContext(ctx, `UPDATE transactions SET transaction_number = '' WHERE id = ?`, tx.ID)
	require.NoError(t, err)

	f.srv.Reject("LEGACY-0001", "maintenance")
	sum, err := f.rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	f.srv.Accept("LEGACY-0001")
	sum, err = f.rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Synced)
	assert.Zero(t, sum.Repaired, "number was kept from the first run")
	f.remoteTx(t, "LEGACY-0001")
}

func TestRepair_EmptyItemsAreSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.DB().ExecContext(ctx, `
		INSERT INTO transactions
		(transaction_number, customer_name, total, cash_received, change_amount,
		 payment_method, payment_method_id, status, created_at, synced, deleted, version)
		VALUES ('TRX-EMPTY', '', 0, 0, 0, 'cash', 1, 'paid', 1, 0, 0, 1)
	`)
	require.NoError(t, err)
	gula := f.product(t, "Gula", 10000, 10)
	f.sell(t, "TRX-1", pos.PaymentCash, gula, 1)

	sum, err := f.rec.SyncToServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Synced)
	require.Len(t, sum.Skips, 1)
	assert.Equal(t, "TRX-EMPTY", sum.Skips[0].Ref)
	assert.Equal(t, 1, f.unsynced(t), "skipped row stays queued")

	_, found, err := f.srv.Transaction("TRX-EMPTY")
	require.NoError(t, err)
	assert.False(t, found)
}
