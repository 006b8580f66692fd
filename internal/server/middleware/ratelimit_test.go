package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacktrail/stacktrail/internal/server/middleware"
)

// okHandler is a simple handler that writes 200 OK.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// request builds a GET request claiming to come from addr.
func request(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = addr
	return req
}

func TestRateLimitByIP_FirstRequestPasses(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimitByIP(context.Background(), 1, 1)(okHandler)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, request("203.0.113.7:56001"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitByIP_BurstExceededReturns429(t *testing.T) {
	t.Parallel()

	// Effectively zero refill during the test, burst of 2.
	handler := middleware.RateLimitByIP(context.Background(), 0.001, 2)(okHandler)

	for i := range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("203.0.113.8:56002"))
		require.Equalf(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request("203.0.113.8:56002"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimitByIP_IndependentPerClient(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimitByIP(context.Background(), 0.001, 1)(okHandler)

	// Exhaust the first client's burst.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request("203.0.113.9:56003"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, request("203.0.113.9:56003"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// The second client still has its own budget.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, request("203.0.113.10:56004"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitByIP_PortDoesNotSplitBudget(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimitByIP(context.Background(), 0.001, 1)(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request("203.0.113.11:50000"))
	require.Equal(t, http.StatusOK, rec.Code)

	// Same IP on a fresh ephemeral port shares the exhausted budget.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, request("203.0.113.11:50001"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitByIP_BareIPKey(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimitByIP(context.Background(), 0.001, 1)(okHandler)

	// RealIP rewrites RemoteAddr to a bare IP when forwarding headers are set.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request("203.0.113.12"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, request("203.0.113.12:40000"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
