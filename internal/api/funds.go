package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/LJTian/FundDash/internal/chat"
	"github.com/LJTian/FundDash/internal/collector"
	"github.com/LJTian/FundDash/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fundWithSentiment struct {
	storage.Fund
	Sentiment storage.SentimentSummary `json:"sentiment"`
}

func (s *Server) listFunds(c *gin.Context) {
	ctx := c.Request.Context()
	funds, err := s.store.ListFunds(ctx)
	if err != nil {
		zap.S().Errorf("list funds: %v", err)
		internalError(c)
		return
	}

	out := make([]fundWithSentiment, 0, len(funds))
	for _, f := range funds {
		// 情绪汇总失败不影响基金列表
		sum, err := s.store.FundSentiment(ctx, f.ID, 10)
		if err != nil {
			zap.S().Warnf("sentiment for %s: %v", f.Ticker, err)
		}
		out = append(out, fundWithSentiment{Fund: f, Sentiment: sum})
	}
	ok(c, out)
}

func (s *Server) getFund(c *gin.Context) {
	ctx := c.Request.Context()
	ticker := strings.ToUpper(c.Param("ticker"))

	f, err := s.store.GetFundByTicker(ctx, ticker)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", "fund not found")
		return
	}
	if err != nil {
		zap.S().Errorf("get fund %s: %v", ticker, err)
		internalError(c)
		return
	}

	news, err := s.store.FundNews(ctx, f.ID, 10)
	if err != nil {
		zap.S().Errorf("fund news %s: %v", ticker, err)
		internalError(c)
		return
	}
	sum, err := s.store.FundSentiment(ctx, f.ID, 10)
	if err != nil {
		zap.S().Warnf("sentiment for %s: %v", ticker, err)
	}

	articles := make([]storage.NewsArticle, 0, len(news))
	for _, n := range news {
		articles = append(articles, n.NewsArticle)
	}

	ok(c, gin.H{
		"fund":      f,
		"news":      news,
		"sentiment": sum,
		"summary":   chat.Summarize(f.Ticker, articles),
	})
}

func (s *Server) fundHistory(c *gin.Context) {
	ticker := strings.ToUpper(c.Param("ticker"))
	if !collector.IsValidTicker(ticker) {
		fail(c, http.StatusBadRequest, "invalid_ticker", "invalid ticker")
		return
	}
	if s.history == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "historical data source not configured")
		return
	}

	days := queryInt(c, "days", 30, 365)
	points, err := s.history.FetchHistory(c.Request.Context(), ticker, days)
	if errors.Is(err, collector.ErrNoData) {
		fail(c, http.StatusNotFound, "not_found", "no historical data found")
		return
	}
	if err != nil {
		zap.S().Errorf("history %s: %v", ticker, err)
		fail(c, http.StatusBadGateway, "upstream_error", "failed to fetch historical data")
		return
	}
	ok(c, points)
}
