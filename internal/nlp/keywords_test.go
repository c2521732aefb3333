package nlp

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordSentiment(t *testing.T) {
	assert.InDelta(t, 0.3, KeywordSentiment("Stocks RALLY as profits surge"), 1e-9)
	assert.InDelta(t, -0.2, KeywordSentiment("Tech faces pressure amid concerns"), 1e-9)
	assert.Zero(t, KeywordSentiment("The committee met on Tuesday"))

	// 子串匹配："upgrade" 含 up，"downturn" 含 down
	assert.InDelta(t, 0, KeywordSentiment("upgrade downturn"), 1e-9)
}

func TestKeywordSentimentCountsWordOncePerPolarity(t *testing.T) {
	// upsurge 同时含 up 与 surge，downfall 同时含 down 与 fall
	assert.InDelta(t, 0.1, KeywordSentiment("upsurge"), 1e-9)
	assert.InDelta(t, -0.1, KeywordSentiment("downfall"), 1e-9)
	assert.InDelta(t, 0, KeywordSentiment("upsurge downfall"), 1e-9)
}

func TestKeywordSentimentClamps(t *testing.T) {
	assert.Equal(t, 1.0, KeywordSentiment(strings.Repeat("rally ", 30)))
	assert.Equal(t, -1.0, KeywordSentiment(strings.Repeat("crash ", 30)))
}

func TestLabelThresholds(t *testing.T) {
	assert.Equal(t, Positive, Label(0.11))
	assert.Equal(t, Neutral, Label(0.1))
	assert.Equal(t, Neutral, Label(-0.1))
	assert.Equal(t, Negative, Label(-0.11))
}

func TestAnalyzerFallsBackToKeywords(t *testing.T) {
	a := NewAnalyzer(nil)
	r := a.Score(context.Background(), "strong growth")
	assert.Equal(t, MethodKeyword, r.Method)
	assert.InDelta(t, 0.2, r.Score, 1e-9)
	assert.Equal(t, Positive, r.Label)
	assert.Nil(t, a.Entities(context.Background(), "Tesla"))
}

func TestAnalyzerUsesHostedModel(t *testing.T) {
	stub := &hfStub{replies: map[string]func(http.ResponseWriter){
		"m/loading": body(`[{"label":"NEGATIVE","score":0.9}]`),
	}}
	a := NewAnalyzer(newStubClient(t, stub))
	r := a.Score(context.Background(), "strong growth")
	assert.Equal(t, "m/loading", r.Method)
	assert.InDelta(t, -0.9, r.Score, 1e-9)
}

func TestAnalyzerHostedFailureUsesKeywords(t *testing.T) {
	stub := &hfStub{replies: map[string]func(http.ResponseWriter){}}
	a := NewAnalyzer(newStubClient(t, stub))
	r := a.Score(context.Background(), "bearish loss")
	assert.Equal(t, MethodKeyword, r.Method)
	assert.InDelta(t, -0.2, r.Score, 1e-9)
}
