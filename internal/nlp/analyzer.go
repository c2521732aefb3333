package nlp

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// MethodKeyword 未使用模型时的打分方式
const MethodKeyword = "keyword"

// Result 一次打分的结果与来源（模型名或 keyword）
type Result struct {
	Score  float64 `json:"score"`
	Label  string  `json:"label"`
	Method string  `json:"method"`
}

// Analyzer 优先调用托管模型，失败时退回关键词打分
type Analyzer struct {
	client *Client
}

func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

func (a *Analyzer) Score(ctx context.Context, text string) Result {
	if a.client.Configured() {
		s, err := a.client.Sentiment(ctx, text)
		if err == nil {
			return Result{Score: s.Score, Label: s.Label, Method: s.Model}
		}
		zap.S().Debugf("hosted sentiment unavailable, using keywords: %v", err)
	}
	score := KeywordSentiment(text)
	return Result{Score: score, Label: Label(score), Method: MethodKeyword}
}

// Entities 未配置或失败时返回 nil，匹配逻辑只依赖子串规则
func (a *Analyzer) Entities(ctx context.Context, text string) []Entity {
	if !a.client.Configured() {
		return nil
	}
	ents, err := a.client.Entities(ctx, text)
	if err != nil {
		if !errors.Is(err, ErrAllModelsFailed) {
			zap.S().Debugf("entity extraction: %v", err)
		}
		return nil
	}
	return ents
}
