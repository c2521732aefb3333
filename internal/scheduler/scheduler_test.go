package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/FundDash/internal/collector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeJob struct {
	prices, news atomic.Int32
	block        chan struct{}
	newsErr      error
}

func (j *fakeJob) SyncPrices(ctx context.Context) (int, error) {
	j.prices.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return 3, nil
}

func (j *fakeJob) SyncNews(context.Context) (int, error) {
	j.news.Add(1)
	return 5, j.newsErr
}

type fakeTracker struct {
	stock, news *time.Time
	pricedToday bool
}

func (f *fakeTracker) LatestUpdates(context.Context) (*time.Time, *time.Time, error) {
	return f.stock, f.news, nil
}

func (f *fakeTracker) PricedToday(context.Context, time.Time) (bool, error) {
	return f.pricedToday, nil
}

func TestRunOnceProducesReport(t *testing.T) {
	job := &fakeJob{}
	s, err := New(job, nil, Options{Provider: "static"})
	require.NoError(t, err)

	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, KindFull, rep.Kind)
	assert.Equal(t, 3, rep.UpdatedFunds)
	assert.Equal(t, 5, rep.ProcessedArticles)
	assert.Equal(t, "static", rep.Provider)
	assert.Empty(t, rep.Error)

	st := s.Status(context.Background())
	assert.False(t, st.Running)
	require.NotNil(t, st.LastReport)
	assert.Equal(t, rep.RunID, st.LastReport.RunID)
}

func TestRunOnceRecordsErrors(t *testing.T) {
	job := &fakeJob{newsErr: errors.New("boom")}
	s, err := New(job, nil, Options{})
	require.NoError(t, err)

	rep, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, rep.UpdatedFunds)
	assert.Contains(t, rep.Error, "boom")
}

func TestConcurrentRunIsRejected(t *testing.T) {
	job := &fakeJob{block: make(chan struct{})}
	s, err := New(job, nil, Options{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return s.Status(context.Background()).Running }, time.Second, 5*time.Millisecond)
	_, err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunning)

	close(job.block)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, job.prices.Load())
}

func TestInvalidCronSpec(t *testing.T) {
	_, err := New(&fakeJob{}, nil, Options{PriceSpec: "not a spec"})
	require.Error(t, err)
}

func TestPriceTickSkipsWhenClosedAndPriced(t *testing.T) {
	tracker := &fakeTracker{pricedToday: true}
	job := &fakeJob{}
	s, err := New(job, tracker, Options{})
	require.NoError(t, err)
	s.market = func(time.Time) collector.MarketStatus {
		return collector.MarketStatus{Status: collector.MarketClosed}
	}

	s.priceTick()
	assert.EqualValues(t, 0, job.prices.Load())

	// 当天还没有价格时即使休市也要拉取
	tracker.pricedToday = false
	s.priceTick()
	assert.EqualValues(t, 1, job.prices.Load())
	assert.EqualValues(t, 0, job.news.Load())

	s.market = func(time.Time) collector.MarketStatus {
		return collector.MarketStatus{Status: collector.MarketOpen}
	}
	tracker.pricedToday = true
	s.priceTick()
	assert.EqualValues(t, 2, job.prices.Load())
}

func TestStatusIncludesLatestUpdates(t *testing.T) {
	now := time.Now()
	s, err := New(&fakeJob{}, &fakeTracker{stock: &now}, Options{PriceSpec: "*/10 * * * *", NewsSpec: "*/30 * * * *"})
	require.NoError(t, err)

	st := s.Status(context.Background())
	require.NotNil(t, st.LastStockUpdate)
	assert.True(t, st.LastStockUpdate.Equal(now))
	assert.Nil(t, st.LastNewsUpdate)
	assert.Equal(t, "*/10 * * * *", st.PriceSpec)
}

func TestStartStopDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	job := &fakeJob{}
	s, err := New(job, nil, Options{PriceSpec: "*/10 * * * *", NewsSpec: "*/30 * * * *", StartupDelay: 10 * time.Millisecond})
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return job.news.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestStopBeforeStartupRunCancelsIt(t *testing.T) {
	job := &fakeJob{}
	s, err := New(job, nil, Options{StartupDelay: time.Hour})
	require.NoError(t, err)

	s.Start()
	s.Stop()
	assert.EqualValues(t, 0, job.prices.Load())
}

func TestRunOnceOutlivesCallerContext(t *testing.T) {
	job := &fakeJob{block: make(chan struct{})}
	s, err := New(job, nil, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		rep Report
		err error
	}
	done := make(chan result, 1)
	go func() {
		rep, err := s.RunOnce(ctx)
		done <- result{rep, err}
	}()

	require.Eventually(t, func() bool { return job.prices.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	// 调用方取消后同步仍在进行
	time.Sleep(20 * time.Millisecond)
	assert.True(t, s.Status(context.Background()).Running)

	close(job.block)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 3, res.rep.UpdatedFunds)
	assert.Equal(t, 5, res.rep.ProcessedArticles)
}

func TestStopCancelsAndWaitsForManualRun(t *testing.T) {
	job := &fakeJob{block: make(chan struct{})}
	s, err := New(job, nil, Options{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return job.prices.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	// Stop 返回时手动同步已经结束
	assert.False(t, s.Status(context.Background()).Running)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("manual run did not return")
	}

	_, err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestRunKindRunsSinglePhase(t *testing.T) {
	job := &fakeJob{}
	s, err := New(job, nil, Options{})
	require.NoError(t, err)

	rep, err := s.RunKind(context.Background(), KindNews)
	require.NoError(t, err)
	assert.Equal(t, KindNews, rep.Kind)
	assert.Equal(t, 5, rep.ProcessedArticles)
	assert.EqualValues(t, 0, job.prices.Load())

	_, err = s.RunKind(context.Background(), "weather")
	require.Error(t, err)
}
