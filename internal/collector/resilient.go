package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"smc-predictor/internal/model"
)

// ResilientOptions 控制限流与熔断
type ResilientOptions struct {
	RatePerSecond   float64
	Burst           int
	MaxFailures     uint32        // 连续失败多少次后熔断
	BreakerCooldown time.Duration // 熔断后多久进入半开
}

// ResilientFetcher 给主数据源加上令牌桶限流和熔断器，
// 主数据源失败或熔断时按顺序尝试备用数据源。
type ResilientFetcher struct {
	primary   Fetcher
	fallbacks []Fetcher
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

func NewResilientFetcher(primary Fetcher, opts ResilientOptions, logger *zap.Logger, fallbacks ...Fetcher) *ResilientFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	rf := &ResilientFetcher{
		primary:   primary,
		fallbacks: fallbacks,
		limiter:   rate.NewLimiter(limit, opts.Burst),
		logger:    logger,
	}
	rf.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        primary.Name(),
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Provider circuit breaker state changed",
				zap.String("Provider", name), zap.String("From", from.String()), zap.String("To", to.String()))
		},
	})
	return rf
}

func (r *ResilientFetcher) Name() string { return r.primary.Name() }

// State 返回熔断器当前状态，供监控使用
func (r *ResilientFetcher) State() gobreaker.State {
	return r.breaker.State()
}

func (r *ResilientFetcher) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]model.Bar, error) {
	bars, err := r.fetchPrimary(ctx, symbol, timeframe, limit)
	if err == nil {
		return bars, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	errs := []error{fmt.Errorf("%s: %w", r.primary.Name(), err)}
	for _, fb := range r.fallbacks {
		r.logger.Warn("Primary provider failed, trying fallback",
			zap.String("Symbol", symbol), zap.String("Fallback", fb.Name()), zap.Error(err))
		bars, ferr := fb.FetchBars(ctx, symbol, timeframe, limit)
		if ferr == nil && len(bars) > 0 {
			return bars, nil
		}
		if ferr == nil {
			ferr = ErrNoData
		}
		errs = append(errs, fmt.Errorf("%s: %w", fb.Name(), ferr))
	}
	return nil, errors.Join(errs...)
}

func (r *ResilientFetcher) fetchPrimary(ctx context.Context, symbol, timeframe string, limit int) ([]model.Bar, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	out, err := r.breaker.Execute(func() (interface{}, error) {
		bars, err := r.primary.FetchBars(ctx, symbol, timeframe, limit)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			return nil, ErrNoData
		}
		return bars, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]model.Bar), nil
}
