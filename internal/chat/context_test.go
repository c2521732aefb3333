package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/LJTian/FundDash/internal/collector"
	"github.com/LJTian/FundDash/internal/storage"
	"github.com/stretchr/testify/assert"
)

type stubQuotes struct {
	quote *collector.Quote
	err   error
}

func (s stubQuotes) Name() string { return "stub" }

func (s stubQuotes) FetchQuote(context.Context, string) (*collector.Quote, error) {
	return s.quote, s.err
}

type stubFunds struct {
	fund *storage.Fund
	news []storage.NewsItem
}

func (s stubFunds) GetFundByTicker(context.Context, string) (*storage.Fund, error) {
	if s.fund == nil {
		return nil, storage.ErrNotFound
	}
	return s.fund, nil
}

func (s stubFunds) ListNews(context.Context, storage.NewsFilter) ([]storage.NewsItem, error) {
	return s.news, nil
}

func f64(v float64) *float64 { return &v }

func TestBuildWithoutTickersReturnsHint(t *testing.T) {
	b := NewContextBuilder(nil, nil, nil, nil)
	assert.Equal(t, noTickerHint, b.Build(context.Background(), nil))
}

func TestBuildUsesLiveQuoteAndStoredNews(t *testing.T) {
	q := &collector.Quote{
		Ticker: "AAPL", Name: "Apple Inc", Price: 189.87, Change: -3.01, ChangePercent: -0.0156,
		MarketCap: "2.95T", YearRange: "$164.08 - $199.62",
	}
	funds := stubFunds{news: []storage.NewsItem{{NewsArticle: storage.NewsArticle{
		Title:          "Apple slides",
		Source:         "Reuters",
		PublishedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		SentimentScore: f64(-0.65),
		Content:        strings.Repeat("x", 300),
	}}}}
	b := NewContextBuilder(funds, stubQuotes{quote: q}, nil, nil)

	out := b.Build(context.Background(), []string{"AAPL"})
	assert.True(t, strings.HasPrefix(out, "STOCK DATA:"))
	assert.Contains(t, out, "=== Apple Inc (AAPL) ===")
	assert.Contains(t, out, "Current Price: $189.87")
	assert.Contains(t, out, "Daily Change: -1.56%")
	assert.Contains(t, out, "Price Change: $-3.01")
	assert.Contains(t, out, "Market Cap: 2.95T")
	assert.Contains(t, out, "52-Week Range: $164.08 - $199.62")
	assert.NotContains(t, out, "P/E Ratio")

	assert.Contains(t, out, "NEWS DATA:")
	assert.Contains(t, out, "=== Recent News for AAPL ===")
	assert.Contains(t, out, "1. Apple slides")
	assert.Contains(t, out, "Published: 2024-03-01")
	assert.Contains(t, out, "Sentiment: Negative (-65.0%)")
	assert.Contains(t, out, "Summary: "+strings.Repeat("x", 200)+"...")
}

func TestBuildFallsBackToStoredPrice(t *testing.T) {
	funds := stubFunds{fund: &storage.Fund{Ticker: "XLF", Name: "Financial Select Sector SPDR Fund", LastPrice: f64(38.91), DailyChange: f64(0.0123)}}
	news := &collector.StaticNewsFetcher{}
	b := NewContextBuilder(funds, stubQuotes{err: errors.New("blocked")}, news, nil)

	out := b.Build(context.Background(), []string{"XLF"})
	assert.Contains(t, out, "Current Price: $38.91")
	assert.Contains(t, out, "Daily Change: +1.23%")
	// 库里没有新闻时实时抓取并打分
	assert.Contains(t, out, "Market Update: Tech Stocks Face Pressure")
	assert.Contains(t, out, "Sentiment: ")
}

func TestBuildReportsMissingData(t *testing.T) {
	b := NewContextBuilder(stubFunds{}, stubQuotes{err: errors.New("down")}, nil, nil)
	out := b.Build(context.Background(), []string{"ZZZZ"})
	assert.Contains(t, out, "Error getting data for ZZZZ")
	assert.Contains(t, out, "No recent news found for ZZZZ")
}
