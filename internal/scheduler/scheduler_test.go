package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-predictor/internal/model"
	"smc-predictor/internal/predictor"
)

type countingRunner struct{ calls int32 }

func (c *countingRunner) RunAll(context.Context) []predictor.Outcome {
	atomic.AddInt32(&c.calls, 1)
	return []predictor.Outcome{
		{Symbol: "EURUSD", Prediction: &model.Prediction{Direction: model.DirUp}},
		{Symbol: "XAUUSD", Err: errors.New("no data")},
	}
}

type countingResolver struct {
	calls int32
	err   error
}

func (c *countingResolver) ResolvePending(context.Context, time.Time) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	return 1, c.err
}

func TestRegisterAllRejectsBadSpec(t *testing.T) {
	s := NewScheduler(context.Background(), &countingRunner{}, &countingResolver{}, nil)
	assert.Error(t, s.RegisterAll("not a cron", "* * * * * *"))

	s = NewScheduler(context.Background(), &countingRunner{}, &countingResolver{}, nil)
	// 秒字段格式
	require.NoError(t, s.RegisterAll("0 */5 * * * *", "30 * * * * *"))
	assert.Len(t, s.Cron.Entries(), 2)
}

func TestSchedulerRunsJobs(t *testing.T) {
	runner := &countingRunner{}
	resolver := &countingResolver{err: errors.New("partial")}
	s := NewScheduler(context.Background(), runner, resolver, nil)
	require.NoError(t, s.RegisterAll("* * * * * *", "* * * * * *"))

	s.Start()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runner.calls) > 0 && atomic.LoadInt32(&resolver.calls) > 0
	}, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestRunNow(t *testing.T) {
	runner := &countingRunner{}
	resolver := &countingResolver{}
	s := NewScheduler(context.Background(), runner, resolver, nil)
	s.AnalyzeNow()
	s.ResolveNow()
	assert.Equal(t, int32(1), runner.calls)
	assert.Equal(t, int32(1), resolver.calls)
}
