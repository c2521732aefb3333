package app

import (
	"context"

	"github.com/LJTian/FundDash/internal/chat"
	"github.com/LJTian/FundDash/internal/collector"
	"github.com/LJTian/FundDash/internal/config"
	"github.com/LJTian/FundDash/internal/nlp"
	"github.com/LJTian/FundDash/internal/processor"
	"github.com/LJTian/FundDash/internal/scheduler"
	"github.com/LJTian/FundDash/internal/storage"
	"go.uber.org/zap"
)

// App 聚合 cmd/api 与 cmd/collect 共用的组件
type App struct {
	Config    *config.Config
	Store     *storage.Store
	Polygon   *collector.PolygonClient
	Quotes    collector.QuoteFetcher
	News      collector.NewsFetcher
	NLP       *nlp.Client
	Analyzer  *nlp.Analyzer
	Syncer    *scheduler.Syncer
	Assistant *chat.Assistant

	browser *collector.BrowserQuoteFetcher
}

// New 打开存储并按配置组装行情、新闻、NLP 与聊天组件
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := storage.NewStore(cfg.DBDriver, cfg.DatabaseDSN, cfg.RedisAddr)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Store: store}

	a.Polygon = collector.NewPolygonClient(cfg.Polygon.APIKey, collector.WithPolygonBaseURL(cfg.Polygon.BaseURL))
	a.Quotes = a.quoteChain()
	a.News = newsFetcher(cfg.Scraping)

	a.NLP = nlp.NewClient(cfg.HuggingFace.APIKey,
		nlp.WithBaseURL(cfg.HuggingFace.BaseURL),
		nlp.WithRequestInterval(cfg.HuggingFace.RequestInterval),
	)
	if !a.NLP.Configured() {
		zap.S().Info("HUGGINGFACE_API_KEY not set, sentiment uses keyword fallback")
	}
	a.Analyzer = nlp.NewAnalyzer(a.NLP)

	a.Syncer = scheduler.NewSyncer(store, a.Quotes, a.News, processor.NewSimpleProcessor(a.Analyzer, a.Analyzer), cfg.Sync)

	providers := chat.ProvidersFromConfig(ctx, cfg.Chat)
	if len(providers) == 0 {
		zap.S().Warn("no chat provider configured, chat answers fall back to a canned response")
	}
	a.Assistant = chat.NewAssistant(providers, chat.NewContextBuilder(store, a.Quotes, a.News, a.Analyzer), store)
	return a, nil
}

// quoteChain 浏览器 → 静态 HTML → Polygon
func (a *App) quoteChain() collector.QuoteFetcher {
	sc := a.Config.Scraping
	var fetchers []collector.QuoteFetcher
	if sc.BrowserEnabled {
		a.browser = collector.NewBrowserQuoteFetcher(sc.Timeout)
		fetchers = append(fetchers, &collector.RetryQuoteFetcher{
			Fetcher: a.browser,
			Retries: sc.MaxRetries,
			Backoff: sc.Delay / 3,
		})
	}
	fetchers = append(fetchers, &collector.HTMLQuoteFetcher{Timeout: sc.Timeout})
	if a.Polygon.Configured() {
		fetchers = append(fetchers, a.Polygon)
	}
	return collector.NewChainQuoteFetcher(fetchers...)
}

func newsFetcher(sc config.ScrapingConfig) collector.NewsFetcher {
	if !sc.NewsEnabled {
		return &collector.StaticNewsFetcher{}
	}
	return collector.NewNewsScraper(collector.DefaultNewsSources(), sc.NewsTimeout, sc.Delay)
}

// Close 关闭浏览器与存储连接
func (a *App) Close() error {
	if a.browser != nil {
		a.browser.Close()
	}
	return a.Store.Close()
}
