package predictor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-predictor/internal/collector"
	"smc-predictor/internal/model"
	"smc-predictor/internal/recorder"
	"smc-predictor/internal/strategy"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// priceFetcher 每个品种返回一根收盘价可控的 K 线
type priceFetcher struct {
	mu     sync.Mutex
	prices map[string]float64
	fail   map[string]bool
	calls  int32
}

func (f *priceFetcher) Name() string { return "price" }

func (f *priceFetcher) FetchBars(_ context.Context, symbol, _ string, _ int) ([]model.Bar, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[symbol] {
		return nil, collector.ErrNoData
	}
	p := f.prices[symbol]
	return []model.Bar{{Time: now, Open: p, High: p, Low: p, Close: p}}, nil
}

// fixedAnalyzer 按品种给出固定方向
type fixedAnalyzer struct {
	dirs     map[string]model.Direction
	inflight int32
	peak     int32
}

func (a *fixedAnalyzer) Analyze(req strategy.Request) (*model.Prediction, error) {
	n := atomic.AddInt32(&a.inflight, 1)
	defer atomic.AddInt32(&a.inflight, -1)
	for {
		p := atomic.LoadInt32(&a.peak)
		if n <= p || atomic.CompareAndSwapInt32(&a.peak, p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	dir, ok := a.dirs[req.Symbol]
	if !ok {
		return nil, fmt.Errorf("analyze %s: boom", req.Symbol)
	}
	last, _ := req.LTF.Last()
	p := &model.Prediction{Symbol: req.Symbol, Timeframe: req.LTF.Timeframe, Direction: dir, Confidence: 80, Price: last.Close, Timestamp: last.Time}
	if dir == model.DirNone {
		p.NoSignal = model.NoSignalBelowThreshold
	}
	return p, nil
}

func newRecorder(t *testing.T) *recorder.SQLiteRecorder {
	t.Helper()
	r, err := recorder.NewSQLiteRecorder(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func opts(symbols ...string) Options {
	return Options{Symbols: symbols, HTF: "4h", LTF: "1h", Workers: 2, RunTimeout: time.Second, DefaultHorizon: 5 * time.Minute}
}

func TestRunRecordsPrediction(t *testing.T) {
	rec := newRecorder(t)
	f := &priceFetcher{prices: map[string]float64{"EURUSD": 1.1}}
	svc := NewService(f, &fixedAnalyzer{dirs: map[string]model.Direction{"EURUSD": model.DirUp}}, rec, nil, opts("EURUSD"), nil)
	svc.now = func() time.Time { return now }
	svc.newID = func() string { return "id-1" }

	pred, err := svc.Run(context.Background(), "EURUSD", nil)
	require.NoError(t, err)
	assert.Equal(t, "id-1", pred.ID)
	assert.Equal(t, int32(2), f.calls) // HTF + LTF

	sp, err := rec.Get(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, model.DirUp, sp.Prediction.Direction)
	assert.Equal(t, now.Add(5*time.Minute), sp.DueAt)
}

func TestRunUsesEntryDurationAsHorizon(t *testing.T) {
	svc := NewService(nil, nil, recorder.NewNoopRecorder(), nil, opts(), nil)
	assert.Equal(t, 5*time.Minute, svc.horizon(&model.Prediction{}))
	assert.Equal(t, 10*time.Minute, svc.horizon(&model.Prediction{Entry: &model.EntryPlan{DurationMinutes: 10}}))
}

func TestRunAllIsolatesFailuresAndBoundsWorkers(t *testing.T) {
	rec := newRecorder(t)
	f := &priceFetcher{
		prices: map[string]float64{"EURUSD": 1.1, "GBPUSD": 1.27, "USDJPY": 150, "AUDUSD": 0.66},
		fail:   map[string]bool{"XAUUSD": true},
	}
	an := &fixedAnalyzer{dirs: map[string]model.Direction{
		"EURUSD": model.DirUp, "GBPUSD": model.DirDown, "AUDUSD": model.DirNone,
	}}
	svc := NewService(f, an, rec, nil, opts("EURUSD", "XAUUSD", "GBPUSD", "USDJPY", "AUDUSD"), nil)

	out := svc.RunAll(context.Background())
	require.Len(t, out, 5)

	assert.Equal(t, "EURUSD", out[0].Symbol)
	require.NoError(t, out[0].Err)
	assert.Equal(t, model.DirUp, out[0].Prediction.Direction)

	assert.ErrorIs(t, out[1].Err, collector.ErrNoData)
	assert.Nil(t, out[1].Prediction)

	require.NoError(t, out[2].Err)
	assert.Equal(t, model.DirDown, out[2].Prediction.Direction)

	assert.ErrorContains(t, out[3].Err, "boom")

	require.NoError(t, out[4].Err)
	assert.False(t, out[4].Prediction.HasSignal())

	assert.LessOrEqual(t, atomic.LoadInt32(&an.peak), int32(2))

	recent, err := rec.Recent(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestRunAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewService(&priceFetcher{}, &fixedAnalyzer{}, recorder.NewNoopRecorder(), nil, opts("EURUSD"), nil)
	out := svc.RunAll(ctx)
	require.Len(t, out, 1)
	assert.Error(t, out[0].Err)
}

func TestIsCorrect(t *testing.T) {
	assert.True(t, IsCorrect(model.DirUp, 1.1, 1.2))
	assert.False(t, IsCorrect(model.DirUp, 1.1, 1.1))
	assert.True(t, IsCorrect(model.DirDown, 1.1, 1.0))
	assert.False(t, IsCorrect(model.DirDown, 1.1, 1.2))
	assert.False(t, IsCorrect(model.DirNone, 1.1, 1.2))
}

func TestResolvePending(t *testing.T) {
	rec := newRecorder(t)
	ctx := context.Background()

	record := func(id, symbol string, dir model.Direction, price float64, due time.Time) {
		p := &model.Prediction{ID: id, Symbol: symbol, Timeframe: "1h", Direction: dir, Price: price, Timestamp: now}
		require.NoError(t, rec.RecordPrediction(ctx, p, now, due))
	}
	record("up-hit", "EURUSD", model.DirUp, 1.10, now)
	record("down-miss", "EURUSD", model.DirDown, 1.10, now)
	record("no-price", "XAUUSD", model.DirUp, 2000, now)
	record("not-due", "EURUSD", model.DirUp, 1.10, now.Add(time.Hour))

	f := &priceFetcher{prices: map[string]float64{"EURUSD": 1.12}, fail: map[string]bool{"XAUUSD": true}}
	r := NewResolver(f, rec, nil, nil)

	n, err := r.ResolvePending(ctx, now.Add(time.Minute))
	assert.Equal(t, 2, n)
	require.Error(t, err)
	assert.True(t, errors.Is(err, collector.ErrNoData))
	// EURUSD 只取一次价格
	assert.Equal(t, int32(2), f.calls)

	hit, err := rec.Get(ctx, "up-hit")
	require.NoError(t, err)
	require.NotNil(t, hit.Resolution)
	assert.True(t, hit.Resolution.Correct)
	assert.Equal(t, 1.12, hit.Resolution.ActualPrice)

	miss, err := rec.Get(ctx, "down-miss")
	require.NoError(t, err)
	assert.False(t, miss.Resolution.Correct)

	acc, err := rec.Accuracy(ctx)
	require.NoError(t, err)
	require.Len(t, acc, 1)
	assert.Equal(t, 50.0, acc[0].Percent)

	pending, err := rec.Pending(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, pending, 2) // no-price 和 not-due
}
