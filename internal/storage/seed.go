package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm/clause"
)

//go:embed seed_default.yaml
var defaultSeed []byte

// SeedFund 种子文件中的基金
type SeedFund struct {
	Ticker      string   `yaml:"ticker"`
	Name        string   `yaml:"name"`
	ISIN        string   `yaml:"isin"`
	Sector      string   `yaml:"sector"`
	Price       *float64 `yaml:"price"`
	DailyChange *float64 `yaml:"dailyChange"`
}

// SeedArticle 种子新闻，发布时间用相对当前的小时数表示
type SeedArticle struct {
	Title     string   `yaml:"title"`
	Content   string   `yaml:"content"`
	Source    string   `yaml:"source"`
	URL       string   `yaml:"url"`
	HoursAgo  int      `yaml:"hoursAgo"`
	Sentiment *float64 `yaml:"sentiment"`
	Tickers   []string `yaml:"tickers"`
}

type SeedData struct {
	Funds    []SeedFund    `yaml:"funds"`
	Articles []SeedArticle `yaml:"articles"`
}

// SeedResult 本次写入的数量（已存在的不计）
type SeedResult struct {
	Funds    int `json:"funds"`
	Articles int `json:"articles"`
	Links    int `json:"links"`
}

// LoadSeed 读取种子 YAML；path 为空或文件不存在时使用内置数据
func LoadSeed(path string) (*SeedData, error) {
	raw := defaultSeed
	if path != "" {
		bs, err := os.ReadFile(path)
		switch {
		case err == nil:
			raw = bs
		case errors.Is(err, fs.ErrNotExist):
			zap.S().Infof("seed file %s not found, using built-in seed", path)
		default:
			return nil, err
		}
	}

	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &data, nil
}

// Seed 写入种子数据，已存在的基金 / 文章 / 关联保持不变
func (s *Store) Seed(ctx context.Context, data *SeedData) (SeedResult, error) {
	var res SeedResult
	now := time.Now()
	db := s.DB.WithContext(ctx)

	fundIDs := make(map[string]uint, len(data.Funds))
	for _, sf := range data.Funds {
		f := &Fund{
			Ticker:      strings.ToUpper(strings.TrimSpace(sf.Ticker)),
			Name:        sf.Name,
			ISIN:        sf.ISIN,
			Sector:      sf.Sector,
			LastPrice:   sf.Price,
			DailyChange: sf.DailyChange,
		}
		if f.Ticker == "" {
			continue
		}
		r := db.Clauses(clause.OnConflict{DoNothing: true}).Create(f)
		if r.Error != nil {
			return res, fmt.Errorf("seed fund %s: %w", f.Ticker, r.Error)
		}
		res.Funds += int(r.RowsAffected)

		var stored Fund
		if err := db.Where("ticker = ?", f.Ticker).First(&stored).Error; err != nil {
			return res, err
		}
		fundIDs[stored.Ticker] = stored.ID
	}

	for _, sa := range data.Articles {
		if sa.URL == "" || sa.Title == "" {
			continue
		}
		a := &NewsArticle{
			Title:          sa.Title,
			Content:        sa.Content,
			Source:         sa.Source,
			URL:            sa.URL,
			PublishedAt:    now.Add(-time.Duration(sa.HoursAgo) * time.Hour),
			SentimentScore: sa.Sentiment,
			ProcessedAt:    now,
		}
		if sa.Sentiment != nil {
			a.SentimentMethod = "seed"
		}
		r := db.Clauses(clause.OnConflict{DoNothing: true}).Create(a)
		if r.Error != nil {
			return res, fmt.Errorf("seed article %s: %w", sa.URL, r.Error)
		}
		res.Articles += int(r.RowsAffected)

		var stored NewsArticle
		if err := db.Where("url = ?", sa.URL).First(&stored).Error; err != nil {
			return res, err
		}
		for _, t := range sa.Tickers {
			fid, ok := fundIDs[strings.ToUpper(t)]
			if !ok {
				continue
			}
			link := &FundNewsLink{FundID: fid, ArticleID: stored.ID, RelevanceScore: 0.8}
			r := db.Clauses(clause.OnConflict{DoNothing: true}).Create(link)
			if r.Error != nil {
				return res, r.Error
			}
			res.Links += int(r.RowsAffected)
		}
	}

	// 只新增关联时列表同样会变化
	if res.Articles > 0 || res.Links > 0 {
		s.bumpNewsVersion(ctx)
	}
	return res, nil
}
