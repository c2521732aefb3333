package collector

import (
	"context"
	"errors"
	"time"
)

// Quote 单只基金 / 股票的实时行情快照
type Quote struct {
	Ticker string  `json:"ticker"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
	// 小数形式，0.0123 表示 +1.23%
	ChangePercent float64   `json:"changePercent"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`

	MarketCap string `json:"marketCap,omitempty"`
	PERatio   string `json:"peRatio,omitempty"`
	DayRange  string `json:"dayRange,omitempty"`
	YearRange string `json:"yearRange,omitempty"`
	Volume    string `json:"volume,omitempty"`

	Source string `json:"source"`
}

// PricePoint 日线数据，Date 为 2006-01-02
type PricePoint struct {
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume float64 `json:"volume"`
}

// Article 新闻源解析出的原始条目，尚未打分
type Article struct {
	Title       string
	Content     string
	Source      string
	URL         string
	PublishedAt time.Time
	Ticker      string
}

// QuoteFetcher 抽象每一个行情来源
type QuoteFetcher interface {
	Name() string
	FetchQuote(ctx context.Context, ticker string) (*Quote, error)
}

// NewsFetcher 抽象每一个新闻来源
type NewsFetcher interface {
	Name() string
	FetchNews(ctx context.Context, ticker string, max int) ([]Article, error)
}

// HistoryFetcher 返回最近 days 天的日线
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, ticker string, days int) ([]PricePoint, error)
}

var (
	// ErrNoPrice 页面可访问但解析不到有效价格
	ErrNoPrice = errors.New("no valid price found")
	// ErrInvalidTicker 不符合 1-5 位大写字母
	ErrInvalidTicker = errors.New("invalid ticker")
)
