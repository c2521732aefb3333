package processor

import (
	"math"
	"strings"

	"github.com/LJTian/FundDash/internal/nlp"
)

// 各命中项的加分
const (
	tickerWeight    = 0.8
	nameWeight      = 0.6
	sectorWeight    = 0.3
	entityWeight    = 0.4
	relevanceCutoff = 0.2
)

// FundRef 匹配时需要的基金字段
type FundRef struct {
	ID     uint
	Ticker string
	Name   string
	Sector string
}

// Match 文章与某只基金的相关度，(0.2, 1]
type Match struct {
	FundID    uint
	Ticker    string
	Relevance float64
}

// MatchArticleToFunds 基于子串命中与命名实体重叠计算相关度。
// 代码命中 +0.8，名称命中 +0.6，行业命中 +0.3；
// 每个包含代码或名称的实体再加 0.4 * 置信度。只保留 > 0.2 的结果，上限为 1。
func MatchArticleToFunds(title, content string, entities []nlp.Entity, funds []FundRef) []Match {
	text := strings.ToLower(title + " " + content)
	lowered := make([]string, len(entities))
	for i, e := range entities {
		lowered[i] = strings.ToLower(e.Text)
	}

	var matches []Match
	for _, f := range funds {
		ticker := strings.ToLower(strings.TrimSpace(f.Ticker))
		name := strings.ToLower(strings.TrimSpace(f.Name))
		sector := strings.ToLower(strings.TrimSpace(f.Sector))

		relevance := 0.0
		if ticker != "" && strings.Contains(text, ticker) {
			relevance += tickerWeight
		}
		if name != "" && strings.Contains(text, name) {
			relevance += nameWeight
		}
		if sector != "" && strings.Contains(text, sector) {
			relevance += sectorWeight
		}
		for i, e := range entities {
			if (ticker != "" && strings.Contains(lowered[i], ticker)) ||
				(name != "" && strings.Contains(lowered[i], name)) {
				relevance += entityWeight * e.Confidence
			}
		}

		if relevance > relevanceCutoff {
			matches = append(matches, Match{
				FundID:    f.ID,
				Ticker:    f.Ticker,
				Relevance: math.Min(1, relevance),
			})
		}
	}
	return matches
}
