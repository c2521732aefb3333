package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/FundDash/internal/collector"
	"github.com/LJTian/FundDash/internal/nlp"
	"github.com/LJTian/FundDash/internal/storage"
	"go.uber.org/zap"
)

// 每只代码放入上下文的新闻条数
const contextArticles = 5

const noTickerHint = "No specific stock data found. Please ask about a specific stock ticker (e.g., AAPL, TSLA, SPY)."

// FundSource 已入库的基金与新闻
type FundSource interface {
	GetFundByTicker(ctx context.Context, ticker string) (*storage.Fund, error)
	ListNews(ctx context.Context, f storage.NewsFilter) ([]storage.NewsItem, error)
}

// ContextBuilder 为提问中的代码拼装行情与新闻上下文
type ContextBuilder struct {
	quotes collector.QuoteFetcher
	news   collector.NewsFetcher
	scorer interface {
		Score(ctx context.Context, text string) nlp.Result
	}
	funds FundSource
}

// NewContextBuilder quotes / news 可为空，为空时只使用库内数据
func NewContextBuilder(funds FundSource, quotes collector.QuoteFetcher, news collector.NewsFetcher, analyzer *nlp.Analyzer) *ContextBuilder {
	if analyzer == nil {
		analyzer = nlp.NewAnalyzer(nil)
	}
	return &ContextBuilder{quotes: quotes, news: news, scorer: analyzer, funds: funds}
}

type newsLine struct {
	Title       string
	Source      string
	PublishedAt time.Time
	Sentiment   *float64
	Content     string
}

// Build 生成上下文文本；没有代码时返回提示语
func (b *ContextBuilder) Build(ctx context.Context, tickers []string) string {
	var stock, news strings.Builder
	for _, t := range tickers {
		if q := b.quote(ctx, t); q != nil {
			writeQuote(&stock, q)
		} else {
			fmt.Fprintf(&stock, "\n\nError getting data for %s\n", t)
		}

		lines := b.articles(ctx, t)
		if len(lines) == 0 {
			fmt.Fprintf(&news, "\n\nNo recent news found for %s\n", t)
			continue
		}
		fmt.Fprintf(&news, "\n\n=== Recent News for %s ===\n", t)
		for i, l := range lines {
			writeNews(&news, i+1, l)
		}
	}

	var full string
	if stock.Len() > 0 {
		full += "STOCK DATA:" + stock.String()
	}
	if news.Len() > 0 {
		full += "\n\nNEWS DATA:" + news.String()
	}
	if full == "" {
		return noTickerHint
	}
	return full
}

// quote 先实时抓取，失败时用库里的最新价格
func (b *ContextBuilder) quote(ctx context.Context, ticker string) *collector.Quote {
	if b.quotes != nil {
		q, err := b.quotes.FetchQuote(ctx, ticker)
		if err == nil {
			return q
		}
		zap.S().Debugf("live quote %s: %v", ticker, err)
	}
	if b.funds == nil {
		return nil
	}
	f, err := b.funds.GetFundByTicker(ctx, ticker)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			zap.S().Warnf("stored fund %s: %v", ticker, err)
		}
		return nil
	}
	if f.LastPrice == nil {
		return nil
	}
	q := &collector.Quote{Ticker: f.Ticker, Name: f.Name, Price: *f.LastPrice, Source: "database"}
	if f.DailyChange != nil {
		q.ChangePercent = *f.DailyChange
		// 库里只存涨跌幅，按昨收反推涨跌额
		if prev := *f.LastPrice / (1 + *f.DailyChange); prev != 0 {
			q.Change = *f.LastPrice - prev
		}
	}
	return q
}

// articles 优先取库内已打分的新闻，没有时实时抓取并打分
func (b *ContextBuilder) articles(ctx context.Context, ticker string) []newsLine {
	if b.funds != nil {
		items, err := b.funds.ListNews(ctx, storage.NewsFilter{Ticker: ticker, Days: 7, Limit: contextArticles})
		if err != nil {
			zap.S().Warnf("stored news %s: %v", ticker, err)
		}
		if len(items) > 0 {
			out := make([]newsLine, 0, len(items))
			for _, it := range items {
				out = append(out, newsLine{
					Title:       it.Title,
					Source:      it.Source,
					PublishedAt: it.PublishedAt,
					Sentiment:   it.SentimentScore,
					Content:     it.Content,
				})
			}
			return out
		}
	}
	if b.news == nil {
		return nil
	}

	items, err := b.news.FetchNews(ctx, ticker, contextArticles)
	if err != nil {
		zap.S().Debugf("live news %s: %v", ticker, err)
		return nil
	}
	out := make([]newsLine, 0, len(items))
	for _, it := range items {
		r := b.scorer.Score(ctx, it.Title+" "+it.Content)
		score := r.Score
		out = append(out, newsLine{
			Title:       it.Title,
			Source:      it.Source,
			PublishedAt: it.PublishedAt,
			Sentiment:   &score,
			Content:     it.Content,
		})
	}
	return out
}

func writeQuote(sb *strings.Builder, q *collector.Quote) {
	name := q.Name
	if name == "" {
		name = q.Ticker
	}
	fmt.Fprintf(sb, "\n\n=== %s (%s) ===\n", name, q.Ticker)
	fmt.Fprintf(sb, "Current Price: $%.2f\n", q.Price)
	fmt.Fprintf(sb, "Daily Change: %s%.2f%%\n", sign(q.ChangePercent), q.ChangePercent*100)
	fmt.Fprintf(sb, "Price Change: %s$%.2f\n", sign(q.Change), q.Change)

	for _, kv := range [][2]string{
		{"Market Cap", q.MarketCap},
		{"P/E Ratio", q.PERatio},
		{"Day Range", q.DayRange},
		{"52-Week Range", q.YearRange},
		{"Volume", q.Volume},
	} {
		if kv[1] != "" {
			fmt.Fprintf(sb, "%s: %s\n", kv[0], kv[1])
		}
	}
}

func writeNews(sb *strings.Builder, n int, l newsLine) {
	fmt.Fprintf(sb, "\n%d. %s\n", n, l.Title)
	fmt.Fprintf(sb, "   Source: %s\n", l.Source)
	fmt.Fprintf(sb, "   Published: %s\n", l.PublishedAt.Format("2006-01-02"))
	if l.Sentiment != nil {
		s := *l.Sentiment
		fmt.Fprintf(sb, "   Sentiment: %s (%.1f%%)\n", titleLabel(nlp.Label(s)), s*100)
	}
	if l.Content != "" {
		fmt.Fprintf(sb, "   Summary: %s...\n", firstRunes(l.Content, 200))
	}
}

func sign(v float64) string {
	if v >= 0 {
		return "+"
	}
	// 负号由 %f 输出
	return ""
}

func titleLabel(label string) string {
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func firstRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
