package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/LJTian/FundDash/internal/nlp"
	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	Question string `json:"question" binding:"required"`
}

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		fail(c, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}
	if s.assistant == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "chat not configured")
		return
	}
	// 兜底回答同样返回 200
	c.JSON(http.StatusOK, s.assistant.Ask(c.Request.Context(), strings.TrimSpace(req.Question)))
}

type analyzeRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		fail(c, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	ctx := c.Request.Context()

	keyword := nlp.KeywordSentiment(req.Text)
	out := gin.H{
		"keyword": gin.H{
			"score": keyword,
			"label": nlp.Label(keyword),
		},
		"configured": s.nlp.Configured(),
	}

	// result 与入库时的打分规则一致：模型可用用模型，否则关键词
	result := nlp.Result{Score: keyword, Label: nlp.Label(keyword), Method: nlp.MethodKeyword}
	if sent, err := s.nlp.Sentiment(ctx, req.Text); err == nil {
		out["sentiment"] = sent
		result = nlp.Result{Score: sent.Score, Label: sent.Label, Method: sent.Model}
	} else {
		out["sentiment"] = nil
		out["sentimentError"] = describeNLPError(err)
	}
	if ents, err := s.nlp.Entities(ctx, req.Text); err == nil {
		out["entities"] = ents
	} else {
		out["entities"] = []nlp.Entity{}
		out["entitiesError"] = describeNLPError(err)
	}
	out["result"] = result
	ok(c, out)
}

func describeNLPError(err error) string {
	switch {
	case errors.Is(err, nlp.ErrNotConfigured):
		return "hosted inference not configured"
	case errors.Is(err, nlp.ErrAllModelsFailed):
		return "all hosted models failed"
	default:
		return err.Error()
	}
}
