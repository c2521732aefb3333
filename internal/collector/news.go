package collector

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// 单个来源一次最多解析的条数
const maxArticlesPerSource = 10

// NewsSource 一个新闻站点的搜索地址与 DOM 选择器
type NewsSource struct {
	Name    string
	BaseURL string
	// SearchURL 中的 {query} 会被替换为转义后的代码
	SearchURL string
	Selectors ArticleSelectors
}

type ArticleSelectors struct {
	Articles string
	Title    string
	Content  string
	Link     string
	// 可为空，为空时使用抓取时间
	Date string
}

// DefaultNewsSources Yahoo Finance / MarketWatch / Reuters 的搜索页
func DefaultNewsSources() []NewsSource {
	return []NewsSource{
		{
			Name:      "Yahoo Finance",
			BaseURL:   "https://finance.yahoo.com",
			SearchURL: "https://finance.yahoo.com/quote/{query}/news",
			Selectors: ArticleSelectors{
				Articles: `[data-module="Stream"] li`,
				Title:    "h3 a",
				Content:  "p",
				Link:     "h3 a",
				Date:     "time",
			},
		},
		{
			Name:      "MarketWatch",
			BaseURL:   "https://www.marketwatch.com",
			SearchURL: "https://www.marketwatch.com/search?q={query}&m=Keyword&rpp=15&mp=2007&bd=false&rs=true",
			Selectors: ArticleSelectors{
				Articles: ".searchresult",
				Title:    ".headline a",
				Content:  ".summary",
				Link:     ".headline a",
			},
		},
		{
			Name:      "Reuters Business",
			BaseURL:   "https://www.reuters.com",
			SearchURL: "https://www.reuters.com/site-search/?query={query}&section=business",
			Selectors: ArticleSelectors{
				Articles: `[data-testid="MediaStoryCard"]`,
				Title:    `[data-testid="Heading"]`,
				Content:  `[data-testid="Body"]`,
				Link:     "a",
			},
		},
	}
}

// NewsScraper 按来源顺序抓取，来源之间通过限速器拉开间隔
type NewsScraper struct {
	sources []NewsSource
	timeout time.Duration
	limiter *rate.Limiter
	now     func() time.Time
}

// NewNewsScraper delay 为两次来源请求之间的最小间隔，<=0 表示不限速
func NewNewsScraper(sources []NewsSource, timeout, delay time.Duration) *NewsScraper {
	if len(sources) == 0 {
		sources = DefaultNewsSources()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		lim = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &NewsScraper{sources: sources, timeout: timeout, limiter: lim, now: time.Now}
}

func (s *NewsScraper) Name() string {
	return "news_scraper"
}

// FetchNews 每个来源取 ceil(max/来源数) 条，合并后按发布时间倒序截取 max 条。
// 单个来源失败只记录日志。
func (s *NewsScraper) FetchNews(ctx context.Context, ticker string, max int) ([]Article, error) {
	if max <= 0 {
		max = 10
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	perSource := (max + len(s.sources) - 1) / len(s.sources)
	if perSource > maxArticlesPerSource {
		perSource = maxArticlesPerSource
	}

	var all []Article
	for _, src := range s.sources {
		if err := s.limiter.Wait(ctx); err != nil {
			return all, err
		}
		items, err := s.scrapeSource(ctx, src, ticker, perSource)
		if err != nil {
			zap.S().Warnf("scrape news %s from %s: %v", ticker, src.Name, err)
			continue
		}
		zap.S().Debugf("scrape news %s from %s: %d items", ticker, src.Name, len(items))
		all = append(all, items...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})
	if len(all) > max {
		all = all[:max]
	}
	return all, nil
}

func (s *NewsScraper) scrapeSource(ctx context.Context, src NewsSource, ticker string, limit int) ([]Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.UserAgent(RandomUserAgent()),
	)
	c.SetRequestTimeout(s.timeout)

	now := s.now()
	results := make([]Article, 0, limit)
	c.OnHTML(src.Selectors.Articles, func(e *colly.HTMLElement) {
		if len(results) >= limit {
			return
		}
		title := strings.TrimSpace(e.DOM.Find(src.Selectors.Title).First().Text())
		href, _ := e.DOM.Find(src.Selectors.Link).First().Attr("href")
		if title == "" || strings.TrimSpace(href) == "" {
			return
		}

		content := ""
		if src.Selectors.Content != "" {
			content = strings.TrimSpace(e.DOM.Find(src.Selectors.Content).First().Text())
		}
		if content == "" {
			content = title
		}

		published := now
		if src.Selectors.Date != "" {
			d := e.DOM.Find(src.Selectors.Date).First()
			raw := strings.TrimSpace(d.AttrOr("datetime", ""))
			if raw == "" {
				raw = strings.TrimSpace(d.Text())
			}
			published = parsePublished(raw, now)
		}

		results = append(results, Article{
			Title:       title,
			Content:     content,
			Source:      src.Name,
			URL:         absoluteURL(src.BaseURL, href),
			PublishedAt: published,
			Ticker:      ticker,
		})
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	target := strings.ReplaceAll(src.SearchURL, "{query}", url.QueryEscape(ticker))
	if err := c.Visit(target); err != nil {
		if visitErr != nil {
			return nil, visitErr
		}
		return nil, fmt.Errorf("visit %s: %w", target, err)
	}
	c.Wait()
	if visitErr != nil {
		return nil, visitErr
	}
	return results, nil
}
