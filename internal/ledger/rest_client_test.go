package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"semidex-go/internal/config"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	rc := &RestClient{
		client:   resty.New().SetBaseURL(server.URL),
		logger:   zap.NewNop(),
		limiter:  rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
		metadata: make(map[Address]TokenMetadata),
	}

	return rc, server
}

func TestRestClient_Metadata(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/tokens/0xusdc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol": "USDC", "decimals": 6}`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()
	ctx := context.Background()

	symbol, err := rc.Symbol(ctx, "0xusdc")
	assert.NoError(t, err)
	assert.Equal(t, "USDC", symbol)

	decimals, err := rc.Decimals(ctx, "0xusdc")
	assert.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "metadata should be cached")
}

func TestRestClient_BalanceOf(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/tokens/0xusdc/balances/reserve-b", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"balance": "115792089237316195423570985008687907853269984665640564039457"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		balance, err := rc.BalanceOf(context.Background(), "0xusdc", "reserve-b")
		assert.NoError(t, err)
		assert.Equal(t, "115792089237316195423570985008687907853269984665640564039457", balance.String())
	})

	t.Run("Malformed", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"balance": "lots"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.BalanceOf(context.Background(), "0xusdc", "reserve-b")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "malformed balance")
	})

	t.Run("UnknownToken", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code": "unknown_token", "message": "no such token"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.BalanceOf(context.Background(), "0xnope", "reserve-b")
		assert.ErrorIs(t, err, ErrUnknownToken)
	})
}

func TestRestClient_TransferFrom(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/tokens/0xeth/transfer-from", r.URL.Path)
			assert.NotEmpty(t, r.Header.Get(idempotencyKeyHeader))

			var body transferFromRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, transferFromRequest{Spender: "semidex", Owner: "alice", To: "reserve-a", Amount: "50"}, body)

			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		err := rc.TransferFrom(context.Background(), "0xeth", "semidex", "alice", "reserve-a", sdkmath.NewInt(50))
		assert.NoError(t, err)
	})

	t.Run("InsufficientAllowance", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code": "insufficient_allowance", "message": "approve first"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		err := rc.TransferFrom(context.Background(), "0xeth", "semidex", "alice", "reserve-a", sdkmath.NewInt(50))
		assert.ErrorIs(t, err, ErrInsufficientAllowance)
		assert.Contains(t, err.Error(), "approve first")
	})

	t.Run("RetryKeepsIdempotencyKey", func(t *testing.T) {
		var calls int32
		var firstKey atomic.Value
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyKeyHeader)
			if atomic.AddInt32(&calls, 1) == 1 {
				firstKey.Store(key)
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			assert.Equal(t, firstKey.Load(), key)
			w.WriteHeader(http.StatusOK)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		err := rc.TransferFrom(context.Background(), "0xeth", "semidex", "alice", "reserve-a", sdkmath.NewInt(50))
		assert.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})
}

func TestRestClient_CancelledContext(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rc.TransferFrom(ctx, "0xeth", "semidex", "alice", "reserve-a", sdkmath.NewInt(50))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRestClient(t *testing.T) {
	cfg := &config.Ledger{URL: "http://ledger.local", RateLimit: 10, RateLimitBurst: 2}
	rc := NewRestClient(cfg, zap.NewNop())
	assert.NotNil(t, rc)
	assert.Equal(t, "http://ledger.local", rc.client.BaseURL)
	assert.Equal(t, 2, rc.limiter.Burst())
}
