package syncer

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remote"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remotesim"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/retry"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/store"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/testutil"
)

type fixture struct {
	srv    *remotesim.Server
	client *remote.Client
	store  *store.Store
	rec    *Reconciler
}

// fastRetry keeps the real attempt budget but does not wait.
var fastRetry = retry.Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Millisecond,
	Multiplier:  2,
	MaxDelay:    5 * time.Millisecond,
}

func newFixture(t *testing.T, tweak ...func(*Options)) *fixture {
	t.Helper()
	srv, base := remotesim.Start(t)
	client, err := remote.New(base, remote.WithDeviceID("till-1"), remote.WithTimeout(5*time.Second))
	require.NoError(t, err)

	f := &fixture{srv: srv, client: client, store: openStore(t)}
	f.rec = f.reconciler(client, tweak...)
	return f
}

func (f *fixture) reconciler(client Remote, tweak ...func(*Options)) *Reconciler {
	opts := Options{
		Retry:   fastRetry,
		Numbers: testutil.NewSequentialNumbers("LEGACY-"),
		Clock:   testutil.NewDeterministicClock().Now,
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	return New(f.store, client, opts)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	s, err := store.Open(filepath.Join(t.TempDir(), "local.db"), store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func (f *fixture) product(t *testing.T, name string, price int64, stock float64) pos.Product {
	t.Helper()
	ctx := context.Background()
	id, err := f.store.CreateProduct(ctx, pos.Product{Name: name, Price: price, CostPrice: price / 2, Stock: stock})
	require.NoError(t, err)
	p, err := f.store.GetProduct(ctx, id)
	require.NoError(t, err)
	return p
}

// sell commits a sale of qty units of p, paid exactly (cash) or on BON.
func (f *fixture) sell(t *testing.T, number string, method pos.PaymentMethod, p pos.Product, qty float64) pos.Transaction {
	t.Helper()
	ctx := context.Background()
	item := pos.NewItem(p, qty, p.Price)
	received, change := pos.Settlement(method, item.Subtotal, item.Subtotal)
	id, err := f.store.CreateTransaction(ctx, pos.Transaction{
		Number:          number,
		Total:           item.Subtotal,
		CashReceived:    received,
		Change:          change,
		Method:          method,
		PaymentMethodID: method.ID(),
		Status:          pos.InitialStatus(method),
	}, []pos.Item{item})
	require.NoError(t, err)
	tx, err := f.store.GetTransaction(ctx, id)
	require.NoError(t, err)
	return tx
}

func (f *fixture) unsynced(t *testing.T) int {
	t.Helper()
	n, err := f.store.CountUnsynced(context.Background())
	require.NoError(t, err)
	return n
}

func (f *fixture) remoteTx(t *testing.T, number string) remotesim.Transaction {
	t.Helper()
	tx, found, err := f.srv.Transaction(number)
	require.NoError(t, err)
	require.True(t, found, "remote has no %s", number)
	return tx
}

// hookedRemote wraps a Remote to inject behavior into specific calls.
type hookedRemote struct {
	Remote
	beforeCreate func(remote.Transaction)
	createErr    func(remote.Transaction) error
	created      []string
	failPage     int
	pageCalls    []int
}

func (h *hookedRemote) CreateTransaction(ctx context.Context, t remote.Transaction) (remote.CreateResult, error) {
	h.created = append(h.created, t.TransactionNumber)
	if h.beforeCreate != nil {
		h.beforeCreate(t)
	}
	if h.createErr != nil {
		if err := h.createErr(t); err != nil {
			return remote.CreateResult{}, err
		}
	}
	return h.Remote.CreateTransaction(ctx, t)
}

// resetBy fails uploads of the listed numbers with a reset connection.
func resetBy(numbers ...string) func(remote.Transaction) error {
	return func(t remote.Transaction) error {
		for _, n := range numbers {
			if t.TransactionNumber == n {
				return &remote.NetworkError{Op: "create transaction", Err: errors.New("read: connection reset by peer")}
			}
		}
		return nil
	}
}

func (h *hookedRemote) ListProducts(ctx context.Context, page, limit int) ([]remote.Product, remote.Meta, error) {
	h.pageCalls = append(h.pageCalls, page)
	if page == h.failPage {
		return nil, remote.Meta{}, &remote.RemoteRejectedError{
			Op:         "list products",
			StatusCode: http.StatusBadGateway,
			Message:    "upstream timeout",
		}
	}
	return h.Remote.ListProducts(ctx, page, limit)
}
