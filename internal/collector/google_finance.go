package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Google Finance 页面结构经常调整，每个字段按顺序尝试多个选择器
var (
	priceSelectors  = []string{"[data-last-price]", ".YMlKec.fxKbKc", ".kf1m0"}
	changeSelectors = []string{"[data-last-change]", ".P2Luy.Ez2Ioe.ZYVHBb", ".P6K39c"}
	nameSelectors   = []string{".zzDege", "h1", ".ahz2Je"}
	// 等待页面渲染时只要出现其中任意一个即可开始解析
	readySelectors = []string{"[data-last-price]", ".YMlKec.fxKbKc", ".kf1m0", "[data-symbol]", ".zzDege"}
)

const (
	statMarketCap = "market-cap"
	statPERatio   = "pe-ratio"
	statDayRange  = "day-range"
	statYearRange = "52-week-range"
	statVolume    = "volume"
)

// HTMLQuoteFetcher 直接请求静态 HTML 并用 goquery 解析，作为无头浏览器的兜底
type HTMLQuoteFetcher struct {
	Timeout time.Duration
	// URLFor 为空时使用 QuoteURL
	URLFor func(ticker string) string
}

func (h *HTMLQuoteFetcher) Name() string {
	return "google_finance_html"
}

func (h *HTMLQuoteFetcher) FetchQuote(ctx context.Context, ticker string) (*Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if !IsValidTicker(ticker) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := QuoteURL(ticker)
	if h.URLFor != nil {
		target = h.URLFor(ticker)
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := colly.NewCollector(colly.UserAgent(RandomUserAgent()))
	c.SetRequestTimeout(timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})

	var (
		quote    *Quote
		parseErr error
	)
	c.OnHTML("html", func(e *colly.HTMLElement) {
		quote, parseErr = extractQuote(e.DOM, ticker)
	})

	zap.S().Debugf("fetch quote %s from %s", ticker, target)
	if err := c.Visit(target); err != nil {
		return nil, fmt.Errorf("visit %s: %w", target, err)
	}
	c.Wait()

	if parseErr != nil {
		return nil, parseErr
	}
	if quote == nil {
		return nil, ErrNoPrice
	}
	quote.Source = h.Name()
	return quote, nil
}

// extractQuote 在文档中按选择器兜底链提取价格、涨跌、名称与附加指标
func extractQuote(doc *goquery.Selection, ticker string) (*Quote, error) {
	var price float64
	for _, sel := range priceSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		price = ParsePrice(node.Text())
		if price == 0 {
			price = ParsePrice(node.AttrOr("data-last-price", ""))
		}
		if price > 0 {
			break
		}
	}
	if price <= 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoPrice)
	}

	changeText := firstText(doc, changeSelectors)
	change, pct := ParseChange(changeText)

	name := firstText(doc, nameSelectors)
	if name == "" {
		name = ticker
	}

	return &Quote{
		Ticker:        ticker,
		Name:          name,
		Price:         price,
		Change:        change,
		ChangePercent: pct,
		Currency:      "USD",
		Timestamp:     time.Now(),
		MarketCap:     statText(doc, statMarketCap),
		PERatio:       statText(doc, statPERatio),
		DayRange:      statText(doc, statDayRange),
		YearRange:     statText(doc, statYearRange),
		Volume:        statText(doc, statVolume),
	}, nil
}

func firstText(doc *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func statText(doc *goquery.Selection, name string) string {
	return strings.TrimSpace(doc.Find(`[data-name="` + name + `"]`).First().Text())
}
