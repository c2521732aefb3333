package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/LJTian/FundDash/internal/collector"
	"github.com/LJTian/FundDash/internal/config"
	"github.com/LJTian/FundDash/internal/processor"
	"github.com/LJTian/FundDash/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// Syncer 负责价格刷新与新闻入库
type Syncer struct {
	store     *storage.Store
	quotes    collector.QuoteFetcher
	news      collector.NewsFetcher
	processor *processor.SimpleProcessor
	cfg       config.SyncConfig
}

func NewSyncer(store *storage.Store, quotes collector.QuoteFetcher, news collector.NewsFetcher,
	p *processor.SimpleProcessor, cfg config.SyncConfig) *Syncer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	if cfg.ArticlesPerFund <= 0 {
		cfg.ArticlesPerFund = 3
	}
	return &Syncer{
		store:     store,
		quotes:    quotes,
		news:      news,
		processor: p,
		cfg:       cfg,
	}
}

// NewsSource 当前使用的新闻来源名
func (s *Syncer) NewsSource() string {
	if s.news == nil {
		return ""
	}
	return s.news.Name()
}

// SyncPrices 分批拉取报价并回写，单只失败不影响其他，返回更新成功的数量
func (s *Syncer) SyncPrices(ctx context.Context) (int, error) {
	funds, err := s.store.ListFunds(ctx)
	if err != nil {
		return 0, fmt.Errorf("list funds: %w", err)
	}
	zap.S().Infof("updating prices for %d funds via %s", len(funds), s.quotes.Name())

	var updated atomic.Int64
	for start := 0; start < len(funds); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(funds))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.BatchSize)
		for _, f := range funds[start:end] {
			g.Go(func() error {
				q, err := s.quotes.FetchQuote(gctx, f.Ticker)
				if err != nil {
					zap.S().Warnf("quote %s failed: %v", f.Ticker, err)
					return nil
				}
				if err := s.store.UpdateFundPrice(gctx, f.Ticker, q.Price, q.ChangePercent); err != nil {
					zap.S().Warnf("save price %s failed: %v", f.Ticker, err)
					return nil
				}
				updated.Add(1)
				zap.S().Debugf("%s: %.2f (%+.2f%%) via %s", f.Ticker, q.Price, q.ChangePercent*100, q.Source)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(funds) {
			if err := sleepCtx(ctx, s.cfg.BatchDelay); err != nil {
				return int(updated.Load()), err
			}
		}
	}
	return int(updated.Load()), nil
}

// SyncNews 为前 NewsFunds 只基金抓取新闻，打分、抽取实体并与全部基金做相关度匹配
func (s *Syncer) SyncNews(ctx context.Context) (int, error) {
	funds, err := s.store.ListFunds(ctx)
	if err != nil {
		return 0, fmt.Errorf("list funds: %w", err)
	}
	refs := make([]processor.FundRef, 0, len(funds))
	for _, f := range funds {
		refs = append(refs, processor.FundRef{ID: f.ID, Ticker: f.Ticker, Name: f.Name, Sector: f.Sector})
	}

	targets := funds
	if s.cfg.NewsFunds < len(targets) {
		targets = targets[:s.cfg.NewsFunds]
	}

	processed := 0
	for i, f := range targets {
		if i > 0 {
			if err := sleepCtx(ctx, s.cfg.FundDelay); err != nil {
				return processed, err
			}
		}

		items, err := s.news.FetchNews(ctx, f.Ticker, s.cfg.ArticlesPerFund)
		if err != nil {
			zap.S().Warnf("news for %s failed: %v", f.Ticker, err)
			continue
		}
		for _, pa := range s.processor.Process(ctx, items) {
			if err := s.saveArticle(ctx, pa, refs); err != nil {
				zap.S().Warnf("save article %s failed: %v", pa.URL, err)
				continue
			}
			processed++
		}
	}
	return processed, nil
}

func (s *Syncer) saveArticle(ctx context.Context, pa processor.ProcessedArticle, refs []processor.FundRef) error {
	score := pa.Sentiment
	a := &storage.NewsArticle{
		Title:           pa.Title,
		Content:         pa.Content,
		Source:          pa.Source,
		URL:             pa.URL,
		PublishedAt:     pa.PublishedAt,
		SentimentScore:  &score,
		SentimentMethod: pa.SentimentMethod,
		ProcessedAt:     time.Now(),
	}
	if len(pa.Entities) > 0 {
		if bs, err := json.Marshal(pa.Entities); err == nil {
			a.Entities = datatypes.JSON(bs)
		}
	}
	if err := s.store.UpsertArticle(ctx, a); err != nil {
		return err
	}

	for _, m := range processor.MatchArticleToFunds(pa.Title, pa.Content, pa.Entities, refs) {
		if err := s.store.LinkArticle(ctx, m.FundID, a.ID, m.Relevance); err != nil {
			zap.S().Warnf("link %s -> %s failed: %v", a.URL, m.Ticker, err)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
