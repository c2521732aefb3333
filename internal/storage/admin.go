package storage

import (
	"context"
	"time"
)

// 组件状态
const (
	StatusUp       = "up"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

type ComponentHealth struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Details   string `json:"details,omitempty"`
}

// OverallStatus 任一组件 down 则 down，任一 degraded 则 degraded，否则 healthy
func OverallStatus(components []ComponentHealth) string {
	overall := "healthy"
	for _, c := range components {
		switch c.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// Health 检查数据库、Redis 与数据新鲜度
func (s *Store) Health(ctx context.Context) []ComponentHealth {
	out := make([]ComponentHealth, 0, 4)

	db := ComponentHealth{Component: "database", Status: StatusUp}
	if sqlDB, err := s.DB.DB(); err != nil {
		db.Status, db.Details = StatusDown, err.Error()
	} else if err := sqlDB.PingContext(ctx); err != nil {
		db.Status, db.Details = StatusDown, err.Error()
	}
	out = append(out, db)

	cache := ComponentHealth{Component: "cache", Status: StatusUp}
	if s.Redis == nil {
		cache.Status, cache.Details = StatusDegraded, "redis not configured"
	} else if err := s.Redis.Ping(ctx).Err(); err != nil {
		cache.Status, cache.Details = StatusDegraded, err.Error()
	}
	out = append(out, cache)

	if db.Status == StatusDown {
		return out
	}

	stock, news, err := s.LatestUpdates(ctx)
	out = append(out, freshness("prices", stock, 24*time.Hour, err))
	out = append(out, freshness("news", news, 48*time.Hour, err))
	return out
}

func freshness(name string, last *time.Time, maxAge time.Duration, err error) ComponentHealth {
	c := ComponentHealth{Component: name, Status: StatusUp}
	switch {
	case err != nil:
		c.Status, c.Details = StatusDown, err.Error()
	case last == nil:
		c.Status, c.Details = StatusDegraded, "no data"
	case time.Since(*last) > maxAge:
		c.Status, c.Details = StatusDegraded, "last update "+last.UTC().Format(time.RFC3339)
	default:
		c.Details = "last update " + last.UTC().Format(time.RFC3339)
	}
	return c
}

type Metric struct {
	Value       float64 `json:"value"`
	Description string  `json:"description"`
}

// DailyStatistics 指定日期（UTC）的数据统计
func (s *Store) DailyStatistics(ctx context.Context, day time.Time) (map[string]Metric, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	db := s.DB.WithContext(ctx)

	var articles, queries, links, funds int64
	if err := db.Model(&NewsArticle{}).Where("created_at >= ? AND created_at < ?", start, end).Count(&articles).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&UserQuery{}).Where("created_at >= ? AND created_at < ?", start, end).Count(&queries).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&FundNewsLink{}).Where("created_at >= ? AND created_at < ?", start, end).Count(&links).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Fund{}).Where("updated_at >= ? AND updated_at < ?", start, end).Count(&funds).Error; err != nil {
		return nil, err
	}

	var avgSentiment, avgResponse struct{ V *float64 }
	if err := db.Model(&NewsArticle{}).Select("AVG(sentiment_score) AS v").
		Where("created_at >= ? AND created_at < ? AND sentiment_score IS NOT NULL", start, end).
		Scan(&avgSentiment).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&UserQuery{}).Select("AVG(response_time_ms) AS v").
		Where("created_at >= ? AND created_at < ?", start, end).
		Scan(&avgResponse).Error; err != nil {
		return nil, err
	}

	return map[string]Metric{
		"articles_ingested":    {Value: float64(articles), Description: "News articles stored"},
		"fund_links_created":   {Value: float64(links), Description: "Article to fund links created"},
		"funds_updated":        {Value: float64(funds), Description: "Funds with a price update"},
		"user_queries":         {Value: float64(queries), Description: "Chat questions answered"},
		"avg_sentiment":        {Value: deref(avgSentiment.V), Description: "Average sentiment of new articles"},
		"avg_response_time_ms": {Value: deref(avgResponse.V), Description: "Average chat response time"},
	}, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

type IntegrityCheck struct {
	CheckType   string `json:"check_type"`
	IssueCount  int64  `json:"issue_count"`
	Description string `json:"description"`
}

// 会影响页面展示的问题
var criticalChecks = map[string]bool{
	"orphaned_fund_links": true,
	"missing_sentiment":   true,
}

// IsCritical 是否为严重问题
func (c IntegrityCheck) IsCritical() bool {
	return c.IssueCount > 0 && criticalChecks[c.CheckType]
}

// CheckIntegrity 数据一致性检查
func (s *Store) CheckIntegrity(ctx context.Context) ([]IntegrityCheck, error) {
	db := s.DB.WithContext(ctx)
	var orphaned, missing, unpriced int64

	if err := db.Model(&FundNewsLink{}).
		Where("article_id NOT IN (?) OR fund_id NOT IN (?)",
			s.DB.Model(&NewsArticle{}).Select("id"),
			s.DB.Model(&Fund{}).Select("id")).
		Count(&orphaned).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&NewsArticle{}).Where("sentiment_score IS NULL").Count(&missing).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Fund{}).Where("last_price IS NULL").Count(&unpriced).Error; err != nil {
		return nil, err
	}

	var dupRows []struct {
		Title string
		N     int64
	}
	if err := db.Model(&NewsArticle{}).Select("title, COUNT(*) AS n").
		Group("title").Having("COUNT(*) > 1").Scan(&dupRows).Error; err != nil {
		return nil, err
	}

	return []IntegrityCheck{
		{CheckType: "orphaned_fund_links", IssueCount: orphaned, Description: "Links pointing at missing funds or articles"},
		{CheckType: "missing_sentiment", IssueCount: missing, Description: "Articles without a sentiment score"},
		{CheckType: "funds_without_price", IssueCount: unpriced, Description: "Funds that never received a price"},
		{CheckType: "duplicate_titles", IssueCount: int64(len(dupRows)), Description: "Titles stored under more than one URL"},
	}, nil
}

// PruneNews 删除 olderThanDays 天前发布的文章及其关联，返回删除的文章数
func (s *Store) PruneNews(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = 30
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	old := s.DB.Model(&NewsArticle{}).Select("id").Where("published_at < ?", cutoff)

	tx := s.DB.WithContext(ctx).Begin()
	if err := tx.Where("article_id IN (?)", old).Delete(&FundNewsLink{}).Error; err != nil {
		tx.Rollback()
		return 0, err
	}
	res := tx.Where("published_at < ?", cutoff).Delete(&NewsArticle{})
	if res.Error != nil {
		tx.Rollback()
		return 0, res.Error
	}
	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	if res.RowsAffected > 0 {
		s.bumpNewsVersion(ctx)
	}
	return res.RowsAffected, nil
}

type TableSize struct {
	Table string `json:"table_name"`
	Rows  int64  `json:"table_rows"`
}

type Activity struct {
	NewArticles       int64 `json:"new_articles"`
	UserQueries       int64 `json:"user_queries"`
	AvgResponseTimeMs int64 `json:"avg_response_time_ms"`
}

// TableSizes 各业务表行数
func (s *Store) TableSizes(ctx context.Context) ([]TableSize, error) {
	models := []struct {
		name  string
		model any
	}{
		{"funds", &Fund{}},
		{"news_articles", &NewsArticle{}},
		{"fund_news_links", &FundNewsLink{}},
		{"user_queries", &UserQuery{}},
	}
	out := make([]TableSize, 0, len(models))
	for _, m := range models {
		var n int64
		if err := s.DB.WithContext(ctx).Model(m.model).Count(&n).Error; err != nil {
			return nil, err
		}
		out = append(out, TableSize{Table: m.name, Rows: n})
	}
	return out, nil
}

// ActivityMetrics 最近 24 小时的入库与问答情况
func (s *Store) ActivityMetrics(ctx context.Context) (Activity, error) {
	var act Activity
	since := time.Now().Add(-24 * time.Hour)
	db := s.DB.WithContext(ctx)

	if err := db.Model(&NewsArticle{}).Where("created_at >= ?", since).Count(&act.NewArticles).Error; err != nil {
		return act, err
	}
	var q struct {
		N   int64
		Avg *float64
	}
	if err := db.Model(&UserQuery{}).
		Select("COUNT(*) AS n, AVG(response_time_ms) AS avg").
		Where("created_at >= ?", since).
		Scan(&q).Error; err != nil {
		return act, err
	}
	act.UserQueries = q.N
	act.AvgResponseTimeMs = int64(deref(q.Avg) + 0.5)
	return act, nil
}
