package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm/clause"
)

// NewsFilter 新闻列表筛选条件
type NewsFilter struct {
	Ticker string
	Days   int
	Limit  int
}

// RelatedFund 文章关联的基金及相关度
type RelatedFund struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	Sector    string  `json:"sector"`
	Relevance float64 `json:"relevance"`
}

// NewsItem 新闻列表条目，附带关联的基金；RelevanceScore 为筛选基金（未筛选时取最高）的相关度
type NewsItem struct {
	NewsArticle
	RelevanceScore float64       `json:"relevanceScore"`
	RelatedFunds   []RelatedFund `json:"relatedFunds"`
	RelatedTickers []string      `json:"relatedTickers"`
}

// UpsertArticle 以 URL 为幂等键写入文章，已存在时刷新内容与情绪，返回带 ID 的记录
func (s *Store) UpsertArticle(ctx context.Context, a *NewsArticle) error {
	a.Title = truncateRunesDB(toValidUTF8(a.Title), 512)
	a.Content = toValidUTF8(a.Content)
	a.Source = truncateRunesDB(toValidUTF8(a.Source), 128)
	if a.ProcessedAt.IsZero() {
		a.ProcessedAt = time.Now()
	}

	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "content", "source", "published_at",
			"sentiment_score", "sentiment_method", "entities", "processed_at",
		}),
	}).Create(a).Error
	if err != nil {
		return err
	}
	// 冲突更新时返回的 ID 不可靠，按 URL 重新读取
	a.ID = 0
	if err := s.DB.WithContext(ctx).Where("url = ?", a.URL).First(a).Error; err != nil {
		return err
	}
	s.bumpNewsVersion(ctx)
	return nil
}

// LinkArticle 写入文章与基金的关联，重复时更新相关度
func (s *Store) LinkArticle(ctx context.Context, fundID, articleID uint, relevance float64) error {
	link := &FundNewsLink{FundID: fundID, ArticleID: articleID, RelevanceScore: relevance}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fund_id"}, {Name: "article_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"relevance_score"}),
	}).Create(link).Error
	if err != nil {
		return err
	}
	s.bumpNewsVersion(ctx)
	return nil
}

// ListNews 按时间倒序返回最近 Days 天内至少关联一只基金的新闻，可按 ticker 过滤，并使用 Redis 做简单缓存
func (s *Store) ListNews(ctx context.Context, f NewsFilter) ([]NewsItem, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 10
	}
	if f.Days <= 0 {
		f.Days = 7
	}
	f.Ticker = strings.ToUpper(strings.TrimSpace(f.Ticker))

	cacheKey := fmt.Sprintf("news:list:v%d:%s:%d:%d", s.newsVersion(ctx), f.Ticker, f.Days, f.Limit)
	var cached []NewsItem
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	linked := s.DB.Table("fund_news_links").Select("fund_news_links.article_id")
	if f.Ticker != "" {
		linked = linked.
			Joins("JOIN funds ON funds.id = fund_news_links.fund_id").
			Where("funds.ticker = ?", f.Ticker)
	}

	since := time.Now().AddDate(0, 0, -f.Days)
	var articles []NewsArticle
	err := s.DB.WithContext(ctx).Model(&NewsArticle{}).
		Where("news_articles.published_at >= ?", since).
		Where("news_articles.id IN (?)", linked).
		Order("news_articles.published_at DESC").
		Limit(f.Limit).
		Find(&articles).Error
	if err != nil {
		return nil, err
	}

	related, err := s.relatedFunds(ctx, articles)
	if err != nil {
		return nil, err
	}
	items := make([]NewsItem, 0, len(articles))
	for _, a := range articles {
		it := NewsItem{NewsArticle: a, RelatedFunds: related[a.ID], RelatedTickers: []string{}}
		if it.RelatedFunds == nil {
			it.RelatedFunds = []RelatedFund{}
		}
		for i, rf := range it.RelatedFunds {
			it.RelatedTickers = append(it.RelatedTickers, rf.Ticker)
			if i == 0 || rf.Ticker == f.Ticker {
				it.RelevanceScore = rf.Relevance
			}
		}
		items = append(items, it)
	}

	if len(items) > 0 {
		s.cacheSet(ctx, cacheKey, items)
	}
	return items, nil
}

// relatedFunds 按文章分组的关联基金，相关度高的在前
func (s *Store) relatedFunds(ctx context.Context, articles []NewsArticle) (map[uint][]RelatedFund, error) {
	out := make(map[uint][]RelatedFund, len(articles))
	if len(articles) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}

	var rows []struct {
		ArticleID      uint
		Ticker         string
		Name           string
		Sector         string
		RelevanceScore float64
	}
	err := s.DB.WithContext(ctx).
		Table("fund_news_links").
		Select("fund_news_links.article_id, funds.ticker, funds.name, funds.sector, fund_news_links.relevance_score").
		Joins("JOIN funds ON funds.id = fund_news_links.fund_id").
		Where("fund_news_links.article_id IN ?", ids).
		Order("fund_news_links.relevance_score DESC").
		Order("funds.ticker ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ArticleID] = append(out[r.ArticleID], RelatedFund{
			Ticker:    r.Ticker,
			Name:      r.Name,
			Sector:    r.Sector,
			Relevance: r.RelevanceScore,
		})
	}
	return out, nil
}

// LatestUpdates 最近一次价格更新与新闻处理时间，无数据时为 nil
func (s *Store) LatestUpdates(ctx context.Context) (stock, news *time.Time, err error) {
	var f Fund
	res := s.DB.WithContext(ctx).Where("last_price IS NOT NULL").Order("updated_at DESC").Limit(1).Find(&f)
	if res.Error != nil {
		return nil, nil, res.Error
	}
	if res.RowsAffected > 0 {
		t := f.UpdatedAt
		stock = &t
	}

	var a NewsArticle
	res = s.DB.WithContext(ctx).Order("processed_at DESC").Limit(1).Find(&a)
	if res.Error != nil {
		return nil, nil, res.Error
	}
	if res.RowsAffected > 0 {
		t := a.ProcessedAt
		news = &t
	}
	return stock, news, nil
}

// ArticlesWithoutSentiment 尚未打分的文章，旧的在前
func (s *Store) ArticlesWithoutSentiment(ctx context.Context, limit int) ([]NewsArticle, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []NewsArticle
	err := s.DB.WithContext(ctx).
		Where("sentiment_score IS NULL").
		Order("published_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// SetSentiment 回写单篇文章的情绪分
func (s *Store) SetSentiment(ctx context.Context, articleID uint, score float64, method string) error {
	res := s.DB.WithContext(ctx).Model(&NewsArticle{}).
		Where("id = ?", articleID).
		Updates(map[string]any{
			"sentiment_score":  score,
			"sentiment_method": method,
			"processed_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.bumpNewsVersion(ctx)
	return nil
}
