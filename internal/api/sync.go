package api

import (
	"errors"
	"net/http"

	"github.com/LJTian/FundDash/internal/collector"
	"github.com/LJTian/FundDash/internal/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) marketStatus(c *gin.Context) {
	if s.market != nil {
		st, err := s.market.FetchMarketStatus(c.Request.Context())
		if err == nil {
			ok(c, st)
			return
		}
		zap.S().Debugf("remote market status: %v", err)
	}
	st := collector.MarketStatusAt(s.now())
	ok(c, st)
}

func (s *Server) runSync(c *gin.Context) {
	if s.sync == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "sync not configured")
		return
	}
	// 客户端断开不会中断同步，见 Scheduler.RunOnce
	rep, err := s.sync.RunOnce(c.Request.Context())
	if errors.Is(err, scheduler.ErrRunning) {
		fail(c, http.StatusConflict, "sync_running", "a sync is already running")
		return
	}
	if errors.Is(err, scheduler.ErrStopped) {
		fail(c, http.StatusServiceUnavailable, "unavailable", "server is shutting down")
		return
	}
	// 部分失败仍返回报告，错误写在 report.error
	if err != nil {
		zap.S().Warnf("manual sync finished with errors: %v", err)
	}
	ok(c, rep)
}

func (s *Server) syncStatus(c *gin.Context) {
	if s.sync == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "sync not configured")
		return
	}
	ok(c, s.sync.Status(c.Request.Context()))
}
