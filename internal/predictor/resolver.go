package predictor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"smc-predictor/internal/collector"
	"smc-predictor/internal/metrics"
	"smc-predictor/internal/model"
	"smc-predictor/internal/recorder"
)

// Resolver 用最新收盘价结算到期的预测
type Resolver struct {
	fetcher collector.Fetcher
	rec     recorder.Recorder
	metrics *metrics.Registry
	logger  *zap.Logger
}

func NewResolver(fetcher collector.Fetcher, rec recorder.Recorder, m *metrics.Registry, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &Resolver{fetcher: fetcher, rec: rec, metrics: m, logger: logger}
}

// IsCorrect 判断方向是否正确，价格不变算错
func IsCorrect(dir model.Direction, entry, actual float64) bool {
	switch dir {
	case model.DirUp:
		return actual > entry
	case model.DirDown:
		return actual < entry
	default:
		return false
	}
}

// ResolvePending 结算所有到期预测，返回成功结算的条数。
// 单条失败不会中断，所有失败合并返回。
func (r *Resolver) ResolvePending(ctx context.Context, now time.Time) (int, error) {
	pending, err := r.rec.Pending(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	// 同一轮内每个品种/周期只取一次价格
	prices := make(map[string]float64)
	var errs []error
	resolved := 0

	for _, p := range pending {
		key := p.Symbol + "|" + p.Timeframe
		price, ok := prices[key]
		if !ok {
			bars, err := r.fetcher.FetchBars(ctx, p.Symbol, p.Timeframe, 2)
			if err != nil || len(bars) == 0 {
				if err == nil {
					err = collector.ErrNoData
				}
				r.metrics.ObserveError(p.Symbol, "resolve")
				errs = append(errs, fmt.Errorf("price %s: %w", p.Symbol, err))
				continue
			}
			price = bars[len(bars)-1].Close
			prices[key] = price
		}

		correct := IsCorrect(p.Direction, p.Price, price)
		res := model.Resolution{PredictionID: p.ID, ActualPrice: price, Correct: correct, ResolvedAt: now}
		if err := r.rec.Resolve(ctx, res); err != nil {
			if !errors.Is(err, recorder.ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		resolved++
		r.metrics.ObserveResolution(p.Symbol, correct)
		r.logger.Info("Prediction resolved",
			zap.String("ID", p.ID), zap.String("Symbol", p.Symbol), zap.String("Direction", string(p.Direction)),
			zap.Float64("Entry", p.Price), zap.Float64("Actual", price), zap.Bool("Correct", correct))
	}

	if resolved > 0 {
		stats, err := r.rec.Accuracy(ctx)
		if err != nil {
			errs = append(errs, err)
		} else {
			r.metrics.SetAccuracy(stats)
		}
	}
	return resolved, errors.Join(errs...)
}
