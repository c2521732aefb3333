package processor

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/LJTian/FundDash/internal/collector"
	"github.com/LJTian/FundDash/internal/nlp"
)

// 正文最多保留的字符数（按 rune）
const maxContentRunes = 2000

// Scorer 为文本打情绪分
type Scorer interface {
	Score(ctx context.Context, text string) nlp.Result
}

// EntityExtractor 为文章抽取命名实体，失败时返回 nil
type EntityExtractor interface {
	Entities(ctx context.Context, text string) []nlp.Entity
}

// ProcessedArticle 是写入存储层前的统一结构
type ProcessedArticle struct {
	ID              string
	Title           string
	Content         string
	Source          string
	URL             string
	PublishedAt     time.Time
	Ticker          string
	Sentiment       float64
	SentimentMethod string
	// 未配置实体抽取或抽取失败时为空
	Entities []nlp.Entity
}

// SimpleProcessor 做基础清洗、去重、情绪打分与实体抽取
type SimpleProcessor struct {
	scorer   Scorer
	entities EntityExtractor
}

// NewSimpleProcessor scorer 为空时只使用关键词打分，entities 为空时不抽取实体
func NewSimpleProcessor(scorer Scorer, entities EntityExtractor) *SimpleProcessor {
	if scorer == nil {
		scorer = nlp.NewAnalyzer(nil)
	}
	return &SimpleProcessor{scorer: scorer, entities: entities}
}

func (p *SimpleProcessor) Process(ctx context.Context, items []collector.Article) []ProcessedArticle {
	out := make([]ProcessedArticle, 0, len(items))
	seen := make(map[string]struct{})

	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		url := strings.TrimSpace(it.URL)
		if title == "" || url == "" {
			continue
		}
		id := hashURL(url)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		content := strings.TrimSpace(it.Content)
		if content == "" {
			content = title
		}
		published := it.PublishedAt
		if published.IsZero() {
			published = time.Now()
		}

		// 打分使用标题 + 完整正文，入库前再截断
		res := p.scorer.Score(ctx, title+" "+content)
		var ents []nlp.Entity
		if p.entities != nil {
			ents = p.entities.Entities(ctx, title+" "+content)
		}

		out = append(out, ProcessedArticle{
			ID:              id,
			Title:           title,
			Content:         truncateRunes(content, maxContentRunes),
			Source:          it.Source,
			URL:             url,
			PublishedAt:     published,
			Ticker:          it.Ticker,
			Sentiment:       res.Score,
			SentimentMethod: res.Method,
			Entities:        ents,
		})
	}

	return out
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

// truncateRunes 按 rune 截断并追加省略号
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}
