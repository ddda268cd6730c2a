package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api/", opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:3000", "ftp://x", "http://"} {
		_, err := New(raw)
		assert.Error(t, err, "url %q", raw)
	}
}

func TestCreateTransaction_SendsBodyAndHeaders(t *testing.T) {
	var got Transaction
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/transactions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "till-1", r.Header.Get("X-Device-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   map[string]any{"id": "srv-1", "updated": true},
		})
	}, WithToken("secret"), WithDeviceID("till-1"))

	res, err := c.CreateTransaction(context.Background(), Transaction{
		TransactionNumber: "TRX-1",
		PaymentMethodID:   1,
		Total:             20000,
		CashReceived:      25000,
		ChangeAmount:      5000,
		Status:            "paid",
		Items: []TransactionItem{
			{ProductID: "p-1", ProductNameSnapshot: "Gula", Quantity: 2, Price: 10000, Subtotal: 20000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", res.ID)
	assert.True(t, res.Updated)
	assert.Equal(t, "TRX-1", got.TransactionNumber)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Gula", got.Items[0].ProductNameSnapshot)
}

func TestDo_SuccessFalseIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "items required"})
	})

	_, err := c.CreateTransaction(context.Background(), Transaction{TransactionNumber: "TRX-1"})
	var reject *RemoteRejectedError
	require.ErrorAs(t, err, &reject)
	assert.Equal(t, "items required", reject.Message)
	assert.False(t, IsRetryable(err))
}

func TestDo_StatusErrorIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"status": "error", "message": "bad total"})
	})

	_, err := c.CreateTransaction(context.Background(), Transaction{TransactionNumber: "TRX-1"})
	var reject *RemoteRejectedError
	require.ErrorAs(t, err, &reject)
	assert.Equal(t, http.StatusUnprocessableEntity, reject.StatusCode)
	assert.Contains(t, err.Error(), "bad total")
}

func TestDo_ServerErrorIsRetryable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := c.ListCategories(context.Background())
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "upstream down")
}

func TestDo_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})

	_, err := c.ListCategories(context.Background())
	var reject *RemoteRejectedError
	require.ErrorAs(t, err, &reject)
	assert.Contains(t, reject.Message, "malformed")
}

func TestListProducts_PageQueryAndMeta(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data": []map[string]any{
				{"id": "p-1", "name": "Gula", "price": 14000, "stock": 3.5, "category_id": "c-1", "is_plu": true},
			},
			"meta": map[string]any{"page": 2, "limit": 50, "total": 51, "totalPages": 2},
		})
	})

	products, meta, err := c.ListProducts(context.Background(), 2, 50)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "p-1", products[0].ID)
	assert.InDelta(t, 3.5, products[0].Stock, 1e-9)
	assert.True(t, products[0].IsPLU)
	assert.Equal(t, Meta{Page: 2, Limit: 50, Total: 51, TotalPages: 2}, meta)
}

func TestCreateCategory_Conflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "message": "category already exists"})
	})

	_, err := c.CreateCategory(context.Background(), "Minuman")
	assert.True(t, IsConflict(err))
	assert.False(t, IsRetryable(err))
}

func TestUpdateStatusAndPay_Paths(t *testing.T) {
	var paths []string
	var bodies []map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		paths = append(paths, r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
	})

	require.NoError(t, c.UpdateStatus(context.Background(), "TRX-1", "refunded"))
	require.NoError(t, c.Pay(context.Background(), "TRX-2", 50000, 5000))

	assert.Equal(t, []string{"/api/transactions/TRX-1/status", "/api/transactions/TRX-2/pay"}, paths)
	assert.Equal(t, "refunded", bodies[0]["status"])
	assert.EqualValues(t, 50000, bodies[1]["cash_received"])
	assert.EqualValues(t, 5000, bodies[1]["change_amount"])
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := c.ListCategories(context.Background())
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 50*time.Millisecond, timeout.Timeout)
	assert.True(t, IsRetryable(err))
}

func TestDo_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)

	_, err = c.ListCategories(context.Background())
	assert.True(t, IsUnreachable(err), "got %v", err)
	assert.True(t, IsDown(err), "got %v", err)
	assert.True(t, IsRetryable(err))
}

func TestNew_DoesNotMutateCallerHTTPClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	c, err := New("http://pos.test/api", WithHTTPClient(shared), WithTimeout(2*time.Second))
	require.NoError(t, err)

	assert.Equal(t, time.Minute, shared.Timeout)
	assert.Equal(t, 2*time.Second, c.http.Timeout)
	assert.NotSame(t, shared, c.http)
}

func TestIsDown(t *testing.T) {
	refused := &NetworkError{Op: "create transaction", Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}
	reset := &NetworkError{Op: "create transaction", Err: &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}}
	dns := &NetworkError{Op: "list products", Err: &net.DNSError{Err: "no such host", Name: "pos.invalid"}}

	assert.True(t, IsDown(refused))
	assert.True(t, IsDown(dns))
	assert.False(t, IsDown(reset))
	assert.False(t, IsDown(&NetworkError{Err: errors.New("connection reset by peer")}))
	assert.False(t, IsDown(&RemoteRejectedError{Op: "create transaction", StatusCode: 503}))
	assert.False(t, IsDown(nil))
}

func TestDo_CallerCancelIsNotRetryable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListCategories(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.False(t, IsRetryable(err))
}

func TestEnvelope_OK(t *testing.T) {
	yes, no := true, false
	assert.True(t, Envelope{}.OK())
	assert.True(t, Envelope{Status: "success"}.OK())
	assert.True(t, Envelope{Success: &yes}.OK())
	assert.False(t, Envelope{Success: &no}.OK())
	assert.False(t, Envelope{Status: "error"}.OK())
}
