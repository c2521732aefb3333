package api

import (
	"net/http"
	"time"

	"github.com/LJTian/FundDash/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) setup(c *gin.Context) {
	data, err := storage.LoadSeed(s.seedFile)
	if err != nil {
		zap.S().Errorf("load seed: %v", err)
		internalError(c)
		return
	}
	res, err := s.store.Seed(c.Request.Context(), data)
	if err != nil {
		zap.S().Errorf("seed database: %v", err)
		internalError(c)
		return
	}
	ok(c, res)
}

func (s *Server) adminRead(c *gin.Context) {
	ctx := c.Request.Context()
	now := s.now().UTC()

	switch c.Query("action") {
	case "health":
		comps := s.store.Health(ctx)
		ok(c, gin.H{
			"timestamp":      now,
			"components":     comps,
			"overall_status": storage.OverallStatus(comps),
		})

	case "statistics":
		day := now
		if d := c.Query("date"); d != "" {
			t, err := time.Parse("2006-01-02", d)
			if err != nil {
				fail(c, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			day = t
		}
		stats, err := s.store.DailyStatistics(ctx, day)
		if err != nil {
			zap.S().Errorf("daily statistics: %v", err)
			internalError(c)
			return
		}
		ok(c, gin.H{"date": day.Format("2006-01-02"), "statistics": stats})

	case "integrity":
		checks, err := s.store.CheckIntegrity(ctx)
		if err != nil {
			zap.S().Errorf("integrity check: %v", err)
			internalError(c)
			return
		}
		issues := 0
		critical := []storage.IntegrityCheck{}
		for _, ch := range checks {
			if ch.IssueCount > 0 {
				issues++
			}
			if ch.IsCritical() {
				critical = append(critical, ch)
			}
		}
		ok(c, gin.H{
			"timestamp":       now,
			"checks":          checks,
			"issues_found":    issues,
			"critical_issues": critical,
		})

	case "performance":
		sizes, err := s.store.TableSizes(ctx)
		if err != nil {
			zap.S().Errorf("table sizes: %v", err)
			internalError(c)
			return
		}
		act, err := s.store.ActivityMetrics(ctx)
		if err != nil {
			zap.S().Errorf("activity metrics: %v", err)
			internalError(c)
			return
		}
		ok(c, gin.H{
			"timestamp": now,
			"metrics": gin.H{
				"table_sizes":  sizes,
				"activity_24h": act,
			},
		})

	default:
		fail(c, http.StatusBadRequest, "invalid_action", "action must be one of health, statistics, integrity, performance")
	}
}

type adminRequest struct {
	Action string `json:"action" binding:"required"`
	Params struct {
		Days  int `json:"days"`
		Limit int `json:"limit"`
	} `json:"params"`
}

func (s *Server) adminWrite(c *gin.Context) {
	var req adminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", "action is required")
		return
	}
	ctx := c.Request.Context()

	switch req.Action {
	case "cleanup":
		days := req.Params.Days
		if days <= 0 {
			days = 30
		}
		n, err := s.store.PruneNews(ctx, days)
		if err != nil {
			zap.S().Errorf("cleanup: %v", err)
			internalError(c)
			return
		}
		zap.S().Infof("admin cleanup removed %d articles older than %d days", n, days)
		ok(c, gin.H{"deleted_articles": n, "days": days})

	case "update_sentiment":
		pending, err := s.store.ArticlesWithoutSentiment(ctx, req.Params.Limit)
		if err != nil {
			zap.S().Errorf("list unscored articles: %v", err)
			internalError(c)
			return
		}
		updated := 0
		for _, a := range pending {
			r := s.analyzer.Score(ctx, a.Title+" "+a.Content)
			if err := s.store.SetSentiment(ctx, a.ID, r.Score, r.Method); err != nil {
				zap.S().Warnf("set sentiment %d: %v", a.ID, err)
				continue
			}
			updated++
		}
		ok(c, gin.H{"updated_articles": updated, "pending": len(pending)})

	default:
		fail(c, http.StatusBadRequest, "invalid_action", "action must be one of cleanup, update_sentiment")
	}
}
