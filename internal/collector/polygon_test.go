package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPolygon(t *testing.T, h http.HandlerFunc) *PolygonClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewPolygonClient("key", WithPolygonBaseURL(srv.URL), WithPolygonRateLimit(0))
	c.now = func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestPolygonFetchQuote(t *testing.T) {
	c := newTestPolygon(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/aggs/ticker/QQQ/prev", r.URL.Path)
		assert.Equal(t, "key", r.URL.Query().Get("apiKey"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"o":400,"c":410,"h":412,"l":399,"v":1000,"t":1709856000000}]}`))
	})

	q, err := c.FetchQuote(context.Background(), "qqq")
	require.NoError(t, err)
	assert.Equal(t, "QQQ", q.Ticker)
	assert.InDelta(t, 410, q.Price, 1e-9)
	assert.InDelta(t, 10, q.Change, 1e-9)
	assert.InDelta(t, 0.025, q.ChangePercent, 1e-9)
	assert.Equal(t, "polygon", q.Source)
}

func TestPolygonFetchQuoteEmpty(t *testing.T) {
	c := newTestPolygon(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","results":[]}`))
	})
	_, err := c.FetchQuote(context.Background(), "QQQ")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestPolygonAPIError(t *testing.T) {
	c := newTestPolygon(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("not authorized"))
	})
	_, err := c.FetchQuote(context.Background(), "QQQ")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestPolygonFetchHistory(t *testing.T) {
	c := newTestPolygon(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/aggs/ticker/SPY/range/1/day/2024-03-03/2024-03-10", r.URL.Path)
		assert.Equal(t, "asc", r.URL.Query().Get("sort"))
		_, _ = w.Write([]byte(`{"results":[{"c":500,"t":1709510400000},{"c":505,"t":1709596800000}]}`))
	})

	pts, err := c.FetchHistory(context.Background(), "SPY", 7)
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, "2024-03-04", pts[0].Date)
	assert.InDelta(t, 505, pts[1].Price, 1e-9)
}

func TestPolygonMarketStatus(t *testing.T) {
	c := newTestPolygon(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"market":"open","serverTime":"2024-03-08T10:00:00-05:00","exchanges":{"nasdaq":"open","nyse":"open","otc":"open"}}`))
	})
	st, err := c.FetchMarketStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MarketOpen, st.Status)
	assert.Equal(t, "open", st.Exchanges["nyse"])
}

func TestPolygonWithoutKey(t *testing.T) {
	c := NewPolygonClient("")
	assert.False(t, c.Configured())
	_, err := c.FetchQuote(context.Background(), "SPY")
	require.Error(t, err)
}
