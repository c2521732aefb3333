package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/LJTian/FundDash/internal/nlp"
	"github.com/LJTian/FundDash/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type newsView struct {
	storage.NewsItem
	SentimentLabel string `json:"sentimentLabel"`
	TimeAgo        string `json:"timeAgo"`
}

type newsStats struct {
	TotalArticles         int               `json:"totalArticles"`
	DateRange             map[string]string `json:"dateRange"`
	SentimentDistribution map[string]int    `json:"sentimentDistribution"`
	AvgSentiment          float64           `json:"avgSentiment"`
	Sources               []string          `json:"sources"`
	RelatedTickers        []string          `json:"relatedTickers"`
}

func (s *Server) listNews(c *gin.Context) {
	ticker := strings.ToUpper(strings.TrimSpace(c.Query("ticker")))
	limit := queryInt(c, "limit", 10, 100)
	days := queryInt(c, "days", 7, 365)

	items, err := s.store.ListNews(c.Request.Context(), storage.NewsFilter{Ticker: ticker, Days: days, Limit: limit})
	if err != nil {
		zap.S().Errorf("list news: %v", err)
		internalError(c)
		return
	}

	now := s.now()
	views := make([]newsView, 0, len(items))
	for _, it := range items {
		views = append(views, newsView{
			NewsItem:       it,
			SentimentLabel: sentimentLabel(it.SentimentScore),
			TimeAgo:        timeAgo(now, it.PublishedAt),
		})
	}

	var tickerMeta any
	if ticker != "" {
		tickerMeta = ticker
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    views,
		"stats":   buildNewsStats(items, ticker, now, days),
		"meta": gin.H{
			"limit":       limit,
			"days":        days,
			"ticker":      tickerMeta,
			"generatedAt": now.UTC().Format(time.RFC3339),
		},
	})
}

// buildNewsStats 未打分的文章按 0 分计入均值与中性计数
func buildNewsStats(items []storage.NewsItem, ticker string, now time.Time, days int) newsStats {
	st := newsStats{
		TotalArticles: len(items),
		DateRange: map[string]string{
			"from": now.AddDate(0, 0, -days).UTC().Format("2006-01-02"),
			"to":   now.UTC().Format("2006-01-02"),
		},
		SentimentDistribution: map[string]int{nlp.Positive: 0, nlp.Negative: 0, nlp.Neutral: 0},
		Sources:               []string{},
		RelatedTickers:        []string{},
	}

	sources := map[string]bool{}
	tickers := map[string]bool{}
	var total float64
	for _, it := range items {
		var v float64
		if it.SentimentScore != nil {
			v = *it.SentimentScore
		}
		st.SentimentDistribution[nlp.Label(v)]++
		total += v
		if it.Source != "" && !sources[it.Source] {
			sources[it.Source] = true
			st.Sources = append(st.Sources, it.Source)
		}
		for _, t := range it.RelatedTickers {
			tickers[t] = true
		}
	}
	if len(items) > 0 {
		st.AvgSentiment = total / float64(len(items))
	}

	if ticker != "" {
		st.RelatedTickers = []string{ticker}
	} else {
		for t := range tickers {
			st.RelatedTickers = append(st.RelatedTickers, t)
		}
		sort.Strings(st.RelatedTickers)
	}
	return st
}

func sentimentLabel(score *float64) string {
	if score == nil {
		return "unknown"
	}
	return nlp.Label(*score)
}

func timeAgo(now, t time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
