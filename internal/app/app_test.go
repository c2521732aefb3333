package app

import (
	"context"
	"testing"

	"github.com/LJTian/FundDash/internal/collector"
	"github.com/LJTian/FundDash/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		DBDriver:    "sqlite",
		DatabaseDSN: "file:app_test?mode=memory&cache=shared",
		Scraping:    config.ScrapingConfig{Timeout: 1, NewsTimeout: 1},
		HuggingFace: config.HuggingFaceConfig{BaseURL: "http://127.0.0.1:1"},
		Polygon:     config.PolygonConfig{BaseURL: "http://127.0.0.1:1"},
		Chat: config.ChatConfig{
			Providers:   []string{"groq"},
			GroqBaseURL: "http://127.0.0.1:1",
			MaxTokens:   10,
		},
		Sync: config.SyncConfig{BatchSize: 1, ArticlesPerFund: 1},
	}
}

func TestNewWiresOfflineComponents(t *testing.T) {
	a, err := New(context.Background(), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, &collector.StaticNewsFetcher{}, a.News)
	assert.False(t, a.NLP.Configured())
	assert.False(t, a.Polygon.Configured())
	assert.Empty(t, a.Assistant.Providers())

	chain, ok := a.Quotes.(*collector.ChainQuoteFetcher)
	require.True(t, ok)
	// 未开启浏览器且没有 Polygon 密钥时只剩静态 HTML
	require.Len(t, chain.Fetchers, 1)
	assert.Equal(t, "google_finance_html", chain.Fetchers[0].Name())
	assert.Equal(t, "static_news", a.Syncer.NewsSource())
}

func TestNewEnablesScraperAndPolygon(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseDSN = "file:app_test_full?mode=memory&cache=shared"
	cfg.Scraping.NewsEnabled = true
	cfg.Scraping.BrowserEnabled = true
	cfg.Polygon.APIKey = "pk"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, "news_scraper", a.News.Name())
	chain := a.Quotes.(*collector.ChainQuoteFetcher)
	require.Len(t, chain.Fetchers, 3)
	assert.Equal(t, "polygon", chain.Fetchers[2].Name())
}
