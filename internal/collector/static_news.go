package collector

import (
	"context"
	"time"
)

// StaticNewsFetcher 返回一组固定的市场新闻，用于关闭抓取时的同步与本地演示
type StaticNewsFetcher struct {
	Now func() time.Time
}

func (s *StaticNewsFetcher) Name() string {
	return "static_news"
}

func (s *StaticNewsFetcher) FetchNews(_ context.Context, ticker string, max int) ([]Article, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	items := []Article{
		{
			Title:       "Market Update: Tech Stocks Face Pressure",
			Content:     "Technology stocks continued to face selling pressure today as investors rotated into value stocks amid rising interest rate expectations. Major tech companies saw significant declines in trading volume.",
			Source:      "MarketWatch",
			URL:         "https://example.com/tech-pressure",
			PublishedAt: now,
		},
		{
			Title:       "Federal Reserve Signals Cautious Approach",
			Content:     "The Federal Reserve indicated a measured approach to monetary policy, citing ongoing economic uncertainties and inflation concerns. Markets responded positively to the dovish tone.",
			Source:      "Reuters",
			URL:         "https://example.com/fed-signals",
			PublishedAt: now.Add(-1 * time.Hour),
		},
		{
			Title:       "Energy Sector Rallies on Supply Concerns",
			Content:     "Energy stocks surged today as supply chain disruptions and geopolitical tensions raised concerns about oil and gas availability. Investors flocked to energy ETFs.",
			Source:      "Bloomberg",
			URL:         "https://example.com/energy-rally",
			PublishedAt: now.Add(-2 * time.Hour),
		},
		{
			Title:       "Electric Vehicle Stocks Show Strong Performance",
			Content:     "Electric vehicle manufacturers posted strong gains today following positive earnings reports and increased government support for clean energy initiatives.",
			Source:      "CNBC",
			URL:         "https://example.com/ev-gains",
			PublishedAt: now.Add(-3 * time.Hour),
		},
	}
	for i := range items {
		items[i].Ticker = ticker
	}
	if max > 0 && len(items) > max {
		items = items[:max]
	}
	return items, nil
}
