package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ChainQuoteFetcher 依次尝试多个行情源（例如 浏览器 → 静态 HTML → Polygon），返回第一个成功结果
type ChainQuoteFetcher struct {
	Fetchers []QuoteFetcher
}

func NewChainQuoteFetcher(fetchers ...QuoteFetcher) *ChainQuoteFetcher {
	return &ChainQuoteFetcher{Fetchers: fetchers}
}

func (c *ChainQuoteFetcher) Name() string {
	return "chain"
}

func (c *ChainQuoteFetcher) FetchQuote(ctx context.Context, ticker string) (*Quote, error) {
	if len(c.Fetchers) == 0 {
		return nil, errors.New("no quote fetcher configured")
	}
	var errs []error
	for _, f := range c.Fetchers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q, err := f.FetchQuote(ctx, ticker)
		if err == nil && q != nil {
			return q, nil
		}
		if err == nil {
			err = ErrNoPrice
		}
		zap.S().Warnf("quote %s via %s failed: %v", ticker, f.Name(), err)
		errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
	}
	return nil, errors.Join(errs...)
}

// RetryQuoteFetcher 对单个行情源做有限次重试，代码非法时不重试
type RetryQuoteFetcher struct {
	Fetcher QuoteFetcher
	Retries int
	Backoff time.Duration
}

func (r *RetryQuoteFetcher) Name() string {
	return r.Fetcher.Name()
}

func (r *RetryQuoteFetcher) FetchQuote(ctx context.Context, ticker string) (*Quote, error) {
	var err error
	for attempt := 0; attempt <= r.Retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(r.Backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
			zap.S().Debugf("retry quote %s via %s (%d/%d)", ticker, r.Fetcher.Name(), attempt, r.Retries)
		}
		var q *Quote
		q, err = r.Fetcher.FetchQuote(ctx, ticker)
		if err == nil {
			return q, nil
		}
		if errors.Is(err, ErrInvalidTicker) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, err
}
