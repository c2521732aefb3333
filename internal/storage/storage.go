package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound 查询的记录不存在
var ErrNotFound = errors.New("record not found")

// Fund 跟踪的基金 / 股票
type Fund struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	Ticker      string   `gorm:"size:16;uniqueIndex" json:"ticker"`
	Name        string   `gorm:"size:256" json:"name"`
	ISIN        string   `gorm:"size:32" json:"isin,omitempty"`
	Sector      string   `gorm:"size:128" json:"sector,omitempty"`
	LastPrice   *float64 `json:"lastPrice"`
	DailyChange *float64 `json:"dailyChange"` // 小数形式，-0.0125 表示 -1.25%

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

type NewsArticle struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:512" json:"title"`
	Content     string    `gorm:"type:text" json:"content"`
	Source      string    `gorm:"size:128;index" json:"source"`
	URL         string    `gorm:"size:1024;uniqueIndex" json:"url"`
	PublishedAt time.Time `gorm:"index" json:"publishedAt"`
	// nil 表示尚未打分
	SentimentScore  *float64       `json:"sentimentScore"`
	SentimentMethod string         `gorm:"size:128" json:"sentimentMethod,omitempty"`
	Entities        datatypes.JSON `json:"entities,omitempty"`
	ProcessedAt     time.Time      `gorm:"index" json:"processedAt"`

	CreatedAt time.Time `json:"createdAt"`
}

// FundNewsLink 文章与基金的关联，(fund_id, article_id) 唯一
type FundNewsLink struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	FundID         uint      `gorm:"uniqueIndex:idx_fund_article" json:"fundId"`
	ArticleID      uint      `gorm:"uniqueIndex:idx_fund_article;index" json:"articleId"`
	RelevanceScore float64   `json:"relevanceScore"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UserQuery 聊天问答日志
type UserQuery struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Question       string    `gorm:"type:text" json:"question"`
	Response       string    `gorm:"type:text" json:"response"`
	Provider       string    `gorm:"size:64" json:"provider"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStore 按驱动打开数据库并自动迁移；redisAddr 为空时不启用缓存
func NewStore(driver, dsn, redisAddr string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zap.S().Warnf("redis ping failed: %v", err)
		}
	}

	return NewStoreWithDB(db, rdb)
}

// NewStoreWithDB 复用已打开的连接，测试中用于注入 sqlite 内存库
func NewStoreWithDB(db *gorm.DB, rdb *redis.Client) (*Store, error) {
	if err := db.AutoMigrate(&Fund{}, &NewsArticle{}, &FundNewsLink{}, &UserQuery{}); err != nil {
		return nil, err
	}
	return &Store{DB: db, Redis: rdb}, nil
}

// Close 关闭数据库与 Redis 连接
func (s *Store) Close() error {
	var errs []error
	if sqlDB, err := s.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	return errors.Join(errs...)
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

const (
	listCacheTTL   = 5 * time.Minute
	newsVersionKey = "news:version"
)

// cacheGet 命中返回 true；Redis 未启用或出错时按未命中处理
func (s *Store) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.Redis == nil {
		return false
	}
	bs, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(bs, dst) == nil
}

func (s *Store) cacheSet(ctx context.Context, key string, v any) {
	if s.Redis == nil {
		return
	}
	if bs, err := json.Marshal(v); err == nil {
		_ = s.Redis.Set(ctx, key, bs, listCacheTTL).Err()
	}
}

// newsVersion 新闻相关缓存 key 的版本号，写入后递增使旧缓存失效
func (s *Store) newsVersion(ctx context.Context) int64 {
	if s.Redis == nil {
		return 0
	}
	v, err := s.Redis.Get(ctx, newsVersionKey).Int64()
	if err != nil {
		return 0
	}
	return v
}

func (s *Store) bumpNewsVersion(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Incr(ctx, newsVersionKey).Err(); err != nil {
		zap.S().Debugf("bump news cache version: %v", err)
	}
}
