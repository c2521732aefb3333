package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LJTian/FundDash/internal/collector"
	"github.com/LJTian/FundDash/internal/trace"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	// ErrRunning 已有同步任务在执行
	ErrRunning = errors.New("sync already running")
	// ErrStopped 调度器已停止，不再接受手动同步
	ErrStopped = errors.New("scheduler stopped")
)

// Job 同步任务的两个阶段
type Job interface {
	SyncPrices(ctx context.Context) (int, error)
	SyncNews(ctx context.Context) (int, error)
}

// UpdateTracker 提供最近更新时间
type UpdateTracker interface {
	LatestUpdates(ctx context.Context) (stock, news *time.Time, err error)
	PricedToday(ctx context.Context, now time.Time) (bool, error)
}

// 任务类型
const (
	KindFull   = "full"
	KindPrices = "prices"
	KindNews   = "news"
)

// Report 单次同步结果
type Report struct {
	RunID             string        `json:"runId"`
	Kind              string        `json:"kind"`
	UpdatedFunds      int           `json:"updatedFunds"`
	ProcessedArticles int           `json:"processedArticles"`
	Provider          string        `json:"provider,omitempty"`
	StartedAt         time.Time     `json:"startedAt"`
	Duration          time.Duration `json:"duration"`
	Error             string        `json:"error,omitempty"`
}

// Status 对外展示的调度状态
type Status struct {
	Running         bool       `json:"running"`
	LastReport      *Report    `json:"lastReport,omitempty"`
	LastStockUpdate *time.Time `json:"lastStockUpdate"`
	LastNewsUpdate  *time.Time `json:"lastNewsUpdate"`
	PriceSpec       string     `json:"priceSpec"`
	NewsSpec        string     `json:"newsSpec"`
}

type Options struct {
	PriceSpec    string
	NewsSpec     string
	StartupDelay time.Duration
	// Provider 写入报告的新闻来源名
	Provider string
}

type Scheduler struct {
	cron    *cron.Cron
	job     Job
	tracker UpdateTracker
	opts    Options

	// 测试中替换
	now    func() time.Time
	market func(time.Time) collector.MarketStatus

	mu      sync.Mutex
	running bool
	stopped bool
	last    *Report

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	timer  *time.Timer
}

func New(job Job, tracker UpdateTracker, opts Options) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(),
		job:     job,
		tracker: tracker,
		opts:    opts,
		now:     time.Now,
		market:  collector.MarketStatusAt,
		ctx:     ctx,
		cancel:  cancel,
	}

	if opts.PriceSpec != "" {
		if _, err := s.cron.AddFunc(opts.PriceSpec, s.priceTick); err != nil {
			cancel()
			return nil, err
		}
	}
	if opts.NewsSpec != "" {
		if _, err := s.cron.AddFunc(opts.NewsSpec, s.newsTick); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮同步，避免与用户首次打开页面的请求争抢资源
	s.mu.Lock()
	s.timer = time.AfterFunc(s.opts.StartupDelay, func() {
		s.background(KindFull)
	})
	s.mu.Unlock()
}

// Stop 停止定时任务并等待正在执行的同步退出
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// RunOnce 手动触发一次完整同步（价格 + 新闻），已有任务在执行时返回 ErrRunning
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	return s.RunKind(ctx, KindFull)
}

// RunKind 手动触发 full / prices / news 同步。
// 同步不随 ctx 取消而中断（只保留其中的值），Stop 时取消并等待其退出。
func (s *Scheduler) RunKind(ctx context.Context, kind string) (Report, error) {
	switch kind {
	case KindFull, KindPrices, KindNews:
	default:
		return Report{}, fmt.Errorf("unknown sync kind %q", kind)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Report{}, ErrStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	return s.run(runCtx, kind)
}

// Status 当前状态与最近一次报告
func (s *Scheduler) Status(ctx context.Context) Status {
	s.mu.Lock()
	st := Status{
		Running:   s.running,
		PriceSpec: s.opts.PriceSpec,
		NewsSpec:  s.opts.NewsSpec,
	}
	if s.last != nil {
		r := *s.last
		st.LastReport = &r
	}
	s.mu.Unlock()

	if s.tracker != nil {
		stock, news, err := s.tracker.LatestUpdates(ctx)
		if err != nil {
			zap.S().Warnf("latest updates: %v", err)
		}
		st.LastStockUpdate, st.LastNewsUpdate = stock, news
	}
	return st
}

func (s *Scheduler) priceTick() {
	if skip, why := s.skipPrices(); skip {
		zap.S().Debugf("skip price sync: %s", why)
		return
	}
	s.runLogged(KindPrices)
}

func (s *Scheduler) newsTick() {
	s.runLogged(KindNews)
}

// skipPrices 休市时跳过价格同步，但当天还没有价格时照常执行
func (s *Scheduler) skipPrices() (bool, string) {
	st := s.market(s.now())
	if st.Status != collector.MarketClosed {
		return false, ""
	}
	if s.tracker == nil {
		return true, "market closed"
	}
	ok, err := s.tracker.PricedToday(s.ctx, s.now())
	if err != nil {
		zap.S().Warnf("check today's prices: %v", err)
		return false, ""
	}
	if ok {
		return true, "market closed"
	}
	return false, ""
}

func (s *Scheduler) background(kind string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		s.runLogged(kind)
	}()
}

func (s *Scheduler) runLogged(kind string) {
	_, err := s.run(s.ctx, kind)
	if errors.Is(err, ErrRunning) {
		zap.S().Infof("%s sync skipped: previous run still active", kind)
	}
}

func (s *Scheduler) run(ctx context.Context, kind string) (Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Report{}, ErrRunning
	}
	s.running = true
	s.mu.Unlock()

	rep := Report{
		RunID:     uuid.NewString(),
		Kind:      kind,
		Provider:  s.opts.Provider,
		StartedAt: s.now(),
	}

	ctx, span := trace.StartSpan(ctx, "sync."+kind)
	zap.S().Infof("start %s sync run=%s", kind, rep.RunID)

	var errs []error
	if kind == KindFull || kind == KindPrices {
		n, err := s.job.SyncPrices(ctx)
		rep.UpdatedFunds = n
		errs = append(errs, err)
	}
	if kind == KindFull || kind == KindNews {
		n, err := s.job.SyncNews(ctx)
		rep.ProcessedArticles = n
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if err != nil {
		rep.Error = err.Error()
	}
	rep.Duration = s.now().Sub(rep.StartedAt)
	trace.End(span, err)

	zap.S().Infof("%s sync done run=%s funds=%d articles=%d took=%s",
		kind, rep.RunID, rep.UpdatedFunds, rep.ProcessedArticles, rep.Duration)
	if err != nil {
		zap.S().Warnf("%s sync run=%s finished with errors: %v", kind, rep.RunID, err)
	}

	s.mu.Lock()
	s.running = false
	r := rep
	s.last = &r
	s.mu.Unlock()
	return rep, err
}
