package nlp

import "strings"

var (
	positiveKeywords = []string{
		"rally", "surge", "gain", "positive", "optimism", "confidence", "growth",
		"strong", "bullish", "up", "rise", "increase", "profit",
	}
	negativeKeywords = []string{
		"decline", "pressure", "concern", "uncertainty", "volatility", "disruption", "challenge",
		"weak", "bearish", "down", "fall", "decrease", "loss", "crash", "drop",
	}
)

// keywordStep 每命中一个关键词的加减分
const keywordStep = 0.1

// KeywordSentiment 关键词计数的兜底打分：按空白切词，词中包含任一正面关键词 +0.1，
// 包含任一负面关键词 -0.1（同一个词正负各最多计一次），结果截断到 [-1, 1]
func KeywordSentiment(text string) float64 {
	score := 0.0
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if containsAny(word, positiveKeywords) {
			score += keywordStep
		}
		if containsAny(word, negativeKeywords) {
			score -= keywordStep
		}
	}
	return clamp(score, -1, 1)
}

func containsAny(word string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(word, kw) {
			return true
		}
	}
	return false
}

// Label 将分数映射为 positive / negative / neutral（阈值 ±0.1）
func Label(score float64) string {
	switch {
	case score > 0.1:
		return Positive
	case score < -0.1:
		return Negative
	default:
		return Neutral
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
