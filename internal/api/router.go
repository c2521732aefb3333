package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/LJTian/FundDash/internal/chat"
	"github.com/LJTian/FundDash/internal/collector"
	"github.com/LJTian/FundDash/internal/nlp"
	"github.com/LJTian/FundDash/internal/scheduler"
	"github.com/LJTian/FundDash/internal/storage"
	"github.com/gin-gonic/gin"
)

// SyncRunner 手动触发同步与查询状态
type SyncRunner interface {
	RunOnce(ctx context.Context) (scheduler.Report, error)
	Status(ctx context.Context) scheduler.Status
}

// MarketStatusFetcher 远程交易所状态，不可用时退回本地计算
type MarketStatusFetcher interface {
	FetchMarketStatus(ctx context.Context) (*collector.MarketStatus, error)
}

// Deps 路由依赖，除 Store 外均可为空
type Deps struct {
	Store     *storage.Store
	History   collector.HistoryFetcher
	Market    MarketStatusFetcher
	Sync      SyncRunner
	Assistant *chat.Assistant
	NLP       *nlp.Client
	Analyzer  *nlp.Analyzer
	SeedFile  string
}

type Server struct {
	store     *storage.Store
	history   collector.HistoryFetcher
	market    MarketStatusFetcher
	sync      SyncRunner
	assistant *chat.Assistant
	nlp       *nlp.Client
	analyzer  *nlp.Analyzer
	seedFile  string
	now       func() time.Time
}

func NewServer(d Deps) *Server {
	analyzer := d.Analyzer
	if analyzer == nil {
		analyzer = nlp.NewAnalyzer(d.NLP)
	}
	return &Server{
		store:     d.Store,
		history:   d.History,
		market:    d.Market,
		sync:      d.Sync,
		assistant: d.Assistant,
		nlp:       d.NLP,
		analyzer:  analyzer,
		seedFile:  d.SeedFile,
		now:       time.Now,
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/funds", s.listFunds)
		v1.GET("/funds/:ticker", s.getFund)
		v1.GET("/funds/:ticker/historical", s.fundHistory)
		v1.GET("/news", s.listNews)
		v1.GET("/market-status", s.marketStatus)

		v1.POST("/sync", s.runSync)
		v1.GET("/sync/status", s.syncStatus)

		v1.POST("/chat", s.chat)
		v1.POST("/nlp/analyze", s.analyze)

		v1.POST("/setup", s.setup)
		v1.GET("/admin/database", s.adminRead)
		v1.POST("/admin/database", s.adminWrite)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func internalError(c *gin.Context) {
	fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
}

// queryInt 解析正整数参数，非法或越界时使用默认值
func queryInt(c *gin.Context, key string, def, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
