package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SentimentSummary 某只基金最近关联文章的情绪汇总
type SentimentSummary struct {
	Average  float64 `json:"average"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Neutral  int     `json:"neutral"`
	Total    int     `json:"total"`
}

// FundArticle 基金详情页的新闻条目，附带相关度
type FundArticle struct {
	NewsArticle
	RelevanceScore float64 `json:"relevanceScore"`
}

// ListFunds 按 ticker 排序返回全部基金
func (s *Store) ListFunds(ctx context.Context) ([]Fund, error) {
	var funds []Fund
	if err := s.DB.WithContext(ctx).Order("ticker ASC").Find(&funds).Error; err != nil {
		return nil, err
	}
	return funds, nil
}

// GetFundByTicker ticker 不区分大小写
func (s *Store) GetFundByTicker(ctx context.Context, ticker string) (*Fund, error) {
	var f Fund
	err := s.DB.WithContext(ctx).Where("ticker = ?", strings.ToUpper(strings.TrimSpace(ticker))).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// UpsertFund 以 ticker 为幂等键写入基金基础信息，价格字段只在非空时覆盖
func (s *Store) UpsertFund(ctx context.Context, f *Fund) error {
	f.Ticker = strings.ToUpper(strings.TrimSpace(f.Ticker))
	f.Name = truncateRunesDB(toValidUTF8(f.Name), 256)

	cols := []string{"name", "isin", "sector", "updated_at"}
	if f.LastPrice != nil {
		cols = append(cols, "last_price", "daily_change")
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(f).Error
	if err != nil {
		return err
	}
	f.ID = 0
	return s.DB.WithContext(ctx).Where("ticker = ?", f.Ticker).First(f).Error
}

// UpdateFundPrice 写入最新价格与日涨跌（小数）
func (s *Store) UpdateFundPrice(ctx context.Context, ticker string, price, changePct float64) error {
	res := s.DB.WithContext(ctx).Model(&Fund{}).
		Where("ticker = ?", strings.ToUpper(ticker)).
		Updates(map[string]any{
			"last_price":   price,
			"daily_change": changePct,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FundSentiment 统计最近 limit 篇关联文章的情绪，没有已打分文章时返回零值
func (s *Store) FundSentiment(ctx context.Context, fundID uint, limit int) (SentimentSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	var scores []*float64
	err := s.DB.WithContext(ctx).
		Table("news_articles").
		Select("news_articles.sentiment_score").
		Joins("JOIN fund_news_links ON fund_news_links.article_id = news_articles.id").
		Where("fund_news_links.fund_id = ?", fundID).
		Order("news_articles.published_at DESC").
		Limit(limit).
		Pluck("news_articles.sentiment_score", &scores).Error
	if err != nil {
		return SentimentSummary{}, err
	}
	return summarize(scores), nil
}

func summarize(scores []*float64) SentimentSummary {
	var sum SentimentSummary
	var total float64
	for _, sc := range scores {
		if sc == nil {
			continue
		}
		v := *sc
		total += v
		sum.Total++
		switch {
		case v > 0.1:
			sum.Positive++
		case v < -0.1:
			sum.Negative++
		default:
			sum.Neutral++
		}
	}
	if sum.Total > 0 {
		sum.Average = total / float64(sum.Total)
	}
	return sum
}

// FundNews 返回与基金关联的文章，相关度高的在前
func (s *Store) FundNews(ctx context.Context, fundID uint, limit int) ([]FundArticle, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []FundArticle
	err := s.DB.WithContext(ctx).
		Table("news_articles").
		Select("news_articles.*, fund_news_links.relevance_score").
		Joins("JOIN fund_news_links ON fund_news_links.article_id = news_articles.id").
		Where("fund_news_links.fund_id = ?", fundID).
		Order("fund_news_links.relevance_score DESC").
		Order("news_articles.published_at DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PricedToday 今天（服务器本地日期）是否已经记录过任一基金价格
func (s *Store) PricedToday(ctx context.Context, now time.Time) (bool, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var n int64
	err := s.DB.WithContext(ctx).Model(&Fund{}).
		Where("last_price IS NOT NULL AND updated_at >= ?", start).
		Count(&n).Error
	return n > 0, err
}
