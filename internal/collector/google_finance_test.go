package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quotePageHTML = `<html><body>
<div class="zzDege">SPDR S&amp;P 500 ETF Trust</div>
<div class="YMlKec fxKbKc">$512.34</div>
<div class="P6K39c">+3.21 (+0.63%)</div>
<div data-name="market-cap">480.2B USD</div>
<div data-name="volume">71.3M</div>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc.Selection
}

func TestExtractQuoteUsesFallbackSelectors(t *testing.T) {
	q, err := extractQuote(mustDoc(t, quotePageHTML), "SPY")
	require.NoError(t, err)

	assert.Equal(t, "SPY", q.Ticker)
	assert.Equal(t, "SPDR S&P 500 ETF Trust", q.Name)
	assert.InDelta(t, 512.34, q.Price, 1e-9)
	assert.InDelta(t, 3.21, q.Change, 1e-9)
	assert.InDelta(t, 0.0063, q.ChangePercent, 1e-9)
	assert.Equal(t, "480.2B USD", q.MarketCap)
	assert.Equal(t, "71.3M", q.Volume)
	assert.Empty(t, q.PERatio)
}

func TestExtractQuoteReadsPriceAttribute(t *testing.T) {
	html := `<html><body><h1>Apple Inc</h1><span data-last-price="189.5"></span></body></html>`
	q, err := extractQuote(mustDoc(t, html), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 189.5, q.Price, 1e-9)
	assert.Equal(t, "Apple Inc", q.Name)
	assert.Zero(t, q.Change)
}

func TestExtractQuoteWithoutPrice(t *testing.T) {
	_, err := extractQuote(mustDoc(t, `<html><body><h1>Nothing</h1></body></html>`), "XYZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPrice))
}

func TestHTMLQuoteFetcher(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(quotePageHTML))
	}))
	defer srv.Close()

	f := &HTMLQuoteFetcher{URLFor: func(ticker string) string {
		return srv.URL + "/finance/quote/" + ticker + ":" + ExchangeFor(ticker)
	}}
	q, err := f.FetchQuote(context.Background(), "spy")
	require.NoError(t, err)
	assert.Equal(t, "/finance/quote/SPY:NYSEARCA", gotPath)
	assert.Equal(t, "google_finance_html", q.Source)
	assert.InDelta(t, 512.34, q.Price, 1e-9)
}

func TestHTMLQuoteFetcherRejectsInvalidTicker(t *testing.T) {
	f := &HTMLQuoteFetcher{}
	_, err := f.FetchQuote(context.Background(), "BRK.B")
	assert.ErrorIs(t, err, ErrInvalidTicker)
}

func TestQuoteJSEmbedsSelectors(t *testing.T) {
	js := quoteJS()
	for _, sel := range append(append([]string{}, priceSelectors...), nameSelectors...) {
		assert.Contains(t, js, sel)
	}
	assert.Contains(t, js, `stat("52-week-range")`)
}

func TestBrowserFetcherCloseWithoutStart(t *testing.T) {
	b := NewBrowserQuoteFetcher(0)
	b.Close()
	b.Close()
	_, err := b.FetchQuote(context.Background(), "not valid")
	assert.ErrorIs(t, err, ErrInvalidTicker)
}
