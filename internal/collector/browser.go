package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// BrowserQuoteFetcher 通过无头 Chrome 渲染 Google Finance 页面后提取行情。
// 整个进程复用一个浏览器实例，每次请求开一个新标签页。
type BrowserQuoteFetcher struct {
	NavigateTimeout time.Duration
	SelectorTimeout time.Duration
	// 所有就绪选择器都未出现时，再等待一段时间后直接解析
	SettleDelay time.Duration
	URLFor      func(ticker string) string

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func NewBrowserQuoteFetcher(navigateTimeout time.Duration) *BrowserQuoteFetcher {
	if navigateTimeout <= 0 {
		navigateTimeout = 30 * time.Second
	}
	return &BrowserQuoteFetcher{
		NavigateTimeout: navigateTimeout,
		SelectorTimeout: 5 * time.Second,
		SettleDelay:     3 * time.Second,
	}
}

func (b *BrowserQuoteFetcher) Name() string {
	return "google_finance_browser"
}

func (b *BrowserQuoteFetcher) start() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(RandomUserAgent()),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// 预热浏览器，避免首个请求耗时过长
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	b.browserCtx = browserCtx
	b.cancelBrowser = cancelBrowser
	b.cancelAlloc = cancelAlloc
	return browserCtx, nil
}

// Close 关闭浏览器进程，可重复调用
func (b *BrowserQuoteFetcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelBrowser != nil {
		b.cancelBrowser()
		b.cancelAlloc()
	}
	b.browserCtx, b.cancelBrowser, b.cancelAlloc = nil, nil, nil
}

type browserQuote struct {
	PriceText  string `json:"priceText"`
	ChangeText string `json:"changeText"`
	Name       string `json:"name"`
	MarketCap  string `json:"marketCap"`
	PERatio    string `json:"peRatio"`
	DayRange   string `json:"dayRange"`
	YearRange  string `json:"yearRange"`
	Volume     string `json:"volume"`
}

func (b *BrowserQuoteFetcher) FetchQuote(ctx context.Context, ticker string) (*Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if !IsValidTicker(ticker) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	browserCtx, err := b.start()
	if err != nil {
		return nil, err
	}

	target := QuoteURL(ticker)
	if b.URLFor != nil {
		target = b.URLFor(ticker)
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, b.NavigateTimeout)
	defer cancel()
	// 调用方取消时同步关闭标签页
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(target)); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", target, err)
	}

	found := false
	for _, sel := range readySelectors {
		selCtx, cancelSel := context.WithTimeout(tabCtx, b.SelectorTimeout)
		err := chromedp.Run(selCtx, chromedp.WaitVisible(sel, chromedp.ByQuery))
		cancelSel()
		if err == nil {
			found = true
			break
		}
		if tabCtx.Err() != nil {
			return nil, tabCtx.Err()
		}
	}
	if !found {
		zap.S().Infof("browser: no ready selector for %s, extracting after %s", ticker, b.SettleDelay)
		if err := chromedp.Run(tabCtx, chromedp.Sleep(b.SettleDelay)); err != nil {
			return nil, err
		}
	}

	var raw browserQuote
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(quoteJS(), &raw)); err != nil {
		return nil, fmt.Errorf("extract %s: %w", ticker, err)
	}

	price := ParsePrice(raw.PriceText)
	if price <= 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoPrice)
	}
	change, pct := ParseChange(raw.ChangeText)
	name := strings.TrimSpace(raw.Name)
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
		MarketCap:     strings.TrimSpace(raw.MarketCap),
		PERatio:       strings.TrimSpace(raw.PERatio),
		DayRange:      strings.TrimSpace(raw.DayRange),
		YearRange:     strings.TrimSpace(raw.YearRange),
		Volume:        strings.TrimSpace(raw.Volume),
		Source:        b.Name(),
	}, nil
}

// quoteJS 返回在页面内执行的提取脚本，选择器与 goquery 兜底解析共用同一份列表
func quoteJS() string {
	price, _ := json.Marshal(priceSelectors)
	change, _ := json.Marshal(changeSelectors)
	name, _ := json.Marshal(nameSelectors)

	return `(function () {
  function first(selectors, attr) {
    for (var i = 0; i < selectors.length; i++) {
      var el = document.querySelector(selectors[i]);
      if (!el) continue;
      var t = (el.textContent || "").trim();
      if (!t && attr) t = el.getAttribute(attr) || "";
      if (t) return t;
    }
    return "";
  }
  function stat(name) {
    var el = document.querySelector('[data-name="' + name + '"]');
    return el ? (el.textContent || "").trim() : "";
  }
  return {
    priceText: first(` + string(price) + `, "data-last-price"),
    changeText: first(` + string(change) + `, ""),
    name: first(` + string(name) + `, ""),
    marketCap: stat("` + statMarketCap + `"),
    peRatio: stat("` + statPERatio + `"),
    dayRange: stat("` + statDayRange + `"),
    yearRange: stat("` + statYearRange + `"),
    volume: stat("` + statVolume + `")
  };
})();`
}
