package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuoteFetcher struct {
	name  string
	quote *Quote
	err   error
	calls int
}

func (s *stubQuoteFetcher) Name() string { return s.name }

func (s *stubQuoteFetcher) FetchQuote(_ context.Context, ticker string) (*Quote, error) {
	s.calls++
	return s.quote, s.err
}

func TestChainQuoteFetcherFallsThrough(t *testing.T) {
	first := &stubQuoteFetcher{name: "browser", err: errors.New("chrome missing")}
	second := &stubQuoteFetcher{name: "empty"}
	third := &stubQuoteFetcher{name: "polygon", quote: &Quote{Ticker: "SPY", Price: 500}}
	never := &stubQuoteFetcher{name: "never"}

	q, err := NewChainQuoteFetcher(first, second, third, never).FetchQuote(context.Background(), "SPY")
	require.NoError(t, err)
	assert.InDelta(t, 500, q.Price, 1e-9)
	assert.Equal(t, 0, never.calls)
}

func TestChainQuoteFetcherJoinsErrors(t *testing.T) {
	a := &stubQuoteFetcher{name: "a", err: ErrNoPrice}
	b := &stubQuoteFetcher{name: "b", err: errors.New("boom")}

	_, err := NewChainQuoteFetcher(a, b).FetchQuote(context.Background(), "SPY")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPrice)
	assert.Contains(t, err.Error(), "b: boom")
}

func TestChainQuoteFetcherEmpty(t *testing.T) {
	_, err := NewChainQuoteFetcher().FetchQuote(context.Background(), "SPY")
	assert.Error(t, err)
}

type flakyFetcher struct {
	failures int
	calls    int
	err      error
}

func (f *flakyFetcher) Name() string { return "flaky" }

func (f *flakyFetcher) FetchQuote(_ context.Context, ticker string) (*Quote, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &Quote{Ticker: ticker, Price: 1}, nil
}

func TestRetryQuoteFetcher(t *testing.T) {
	f := &flakyFetcher{failures: 2, err: ErrNoPrice}
	q, err := (&RetryQuoteFetcher{Fetcher: f, Retries: 2, Backoff: time.Millisecond}).FetchQuote(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, "SPY", q.Ticker)
	assert.Equal(t, 3, f.calls)

	f = &flakyFetcher{failures: 5, err: ErrNoPrice}
	_, err = (&RetryQuoteFetcher{Fetcher: f, Retries: 1, Backoff: time.Millisecond}).FetchQuote(context.Background(), "SPY")
	assert.ErrorIs(t, err, ErrNoPrice)
	assert.Equal(t, 2, f.calls)

	f = &flakyFetcher{failures: 5, err: ErrInvalidTicker}
	_, err = (&RetryQuoteFetcher{Fetcher: f, Retries: 3}).FetchQuote(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidTicker)
	assert.Equal(t, 1, f.calls)
}
