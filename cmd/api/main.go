package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/LJTian/FundDash/internal/api"
	"github.com/LJTian/FundDash/internal/app"
	"github.com/LJTian/FundDash/internal/collector"
	"github.com/LJTian/FundDash/internal/config"
	"github.com/LJTian/FundDash/internal/logging"
	"github.com/LJTian/FundDash/internal/scheduler"
	"github.com/LJTian/FundDash/internal/storage"
	"github.com/LJTian/FundDash/internal/trace"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	undo, err := logging.Init(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer undo()

	if err := cfg.Validate(); err != nil {
		zap.S().Fatalf("%v", err)
	}
	if err := trace.Init(cfg.Log.TracingEnabled); err != nil {
		zap.S().Warnf("init tracing failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		zap.S().Fatalf("init app failed: %v", err)
	}
	defer a.Close()

	// 数据库为空时写入种子基金，保证首次启动即可同步
	if funds, err := a.Store.ListFunds(ctx); err == nil && len(funds) == 0 {
		data, err := storage.LoadSeed(cfg.SeedFile)
		if err != nil {
			zap.S().Warnf("load seed: %v", err)
		} else if res, err := a.Store.Seed(ctx, data); err != nil {
			zap.S().Warnf("seed database: %v", err)
		} else {
			zap.S().Infof("seeded %d funds, %d articles", res.Funds, res.Articles)
		}
	}

	s, err := scheduler.New(a.Syncer, a.Store, scheduler.Options{
		PriceSpec:    cfg.PriceCronSpec,
		NewsSpec:     cfg.NewsCronSpec,
		StartupDelay: cfg.StartupDelay,
		Provider:     a.Syncer.NewsSource(),
	})
	if err != nil {
		zap.S().Fatalf("init scheduler failed: %v", err)
	}
	s.Start()
	defer s.Stop()

	// API
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	// 未配置 Polygon 时历史行情返回 503，市场状态退回本地计算
	var (
		history collector.HistoryFetcher
		market  api.MarketStatusFetcher
	)
	if a.Polygon.Configured() {
		history, market = a.Polygon, a.Polygon
	}
	apiServer := api.NewServer(api.Deps{
		Store:     a.Store,
		History:   history,
		Market:    market,
		Sync:      s,
		Assistant: a.Assistant,
		NLP:       a.NLP,
		Analyzer:  a.Analyzer,
		SeedFile:  cfg.SeedFile,
	})
	apiServer.RegisterRoutes(r)

	// 若配置了前端目录，则托管 SPA 静态文件并做 fallback
	if cfg.WebRoot != "" {
		assetsDir := filepath.Join(cfg.WebRoot, "assets")
		indexFile := filepath.Join(cfg.WebRoot, "index.html")
		r.Static("/assets", assetsDir)
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet {
				c.Status(http.StatusNotFound)
				return
			}
			// SPA：未匹配 API 的 GET 均返回 index.html
			c.File(indexFile)
		})
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zap.S().Infof("starting api server at %s ...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalf("server exit: %v", err)
		}
	}()

	<-ctx.Done()
	zap.S().Info("shutting down ...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.S().Warnf("http shutdown: %v", err)
	}
	if err := trace.Shutdown(shutdownCtx); err != nil {
		zap.S().Warnf("trace shutdown: %v", err)
	}
}

// requestLogger 用 zap 记录每个请求
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.S().Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// basicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// /health 不做认证，便于健康检查。
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
