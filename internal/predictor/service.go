package predictor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"smc-predictor/internal/collector"
	"smc-predictor/internal/metrics"
	"smc-predictor/internal/model"
	"smc-predictor/internal/recorder"
	"smc-predictor/internal/strategy"
)

// Analyzer 是信号引擎的最小接口
type Analyzer interface {
	Analyze(req strategy.Request) (*model.Prediction, error)
}

// Options 控制批量分析
type Options struct {
	Symbols        []string
	HTF            string
	LTF            string
	BarLimit       int
	Workers        int
	RunTimeout     time.Duration
	DefaultHorizon time.Duration // 没有入场建议时的结算周期
}

// Outcome 是单个品种一次分析的结果
type Outcome struct {
	Symbol     string
	Prediction *model.Prediction
	Err        error
}

// Service 取数、分析、记录，一个品种一次
type Service struct {
	fetcher collector.Fetcher
	engine  Analyzer
	rec     recorder.Recorder
	metrics *metrics.Registry
	opts    Options
	logger  *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewService(fetcher collector.Fetcher, engine Analyzer, rec recorder.Recorder, m *metrics.Registry, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BarLimit <= 0 {
		opts.BarLimit = 200
	}
	if opts.DefaultHorizon <= 0 {
		opts.DefaultHorizon = 5 * time.Minute
	}
	return &Service{
		fetcher: fetcher,
		engine:  engine,
		rec:     rec,
		metrics: m,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Run 分析单个品种。hint 可以为空。
func (s *Service) Run(ctx context.Context, symbol string, hint *model.VisualHint) (*model.Prediction, error) {
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}
	start := s.now()

	htf, err := s.fetcher.FetchBars(ctx, symbol, s.opts.HTF, s.opts.BarLimit)
	if err != nil {
		s.metrics.ObserveError(symbol, "fetch")
		return nil, fmt.Errorf("fetch %s %s: %w", symbol, s.opts.HTF, err)
	}
	ltf, err := s.fetcher.FetchBars(ctx, symbol, s.opts.LTF, s.opts.BarLimit)
	if err != nil {
		s.metrics.ObserveError(symbol, "fetch")
		return nil, fmt.Errorf("fetch %s %s: %w", symbol, s.opts.LTF, err)
	}

	pred, err := s.engine.Analyze(strategy.Request{
		Symbol: symbol,
		HTF:    model.Series{Symbol: symbol, Timeframe: s.opts.HTF, Bars: htf},
		LTF:    model.Series{Symbol: symbol, Timeframe: s.opts.LTF, Bars: ltf},
		Hint:   hint,
	})
	if err != nil {
		s.metrics.ObserveError(symbol, "analyze")
		return nil, err
	}

	pred.ID = s.newID()
	recordedAt := s.now()
	if err := s.rec.RecordPrediction(ctx, pred, recordedAt, recordedAt.Add(s.horizon(pred))); err != nil {
		// 记录失败不影响返回结果
		s.metrics.ObserveError(symbol, "record")
		s.logger.Error("Failed to record prediction", zap.String("Symbol", symbol), zap.Error(err))
	}
	s.metrics.ObservePrediction(pred, s.now().Sub(start))

	s.logger.Info(pred.String(), zap.String("ID", pred.ID))
	return pred, nil
}

func (s *Service) horizon(pred *model.Prediction) time.Duration {
	if pred.Entry != nil && pred.Entry.DurationMinutes > 0 {
		return time.Duration(pred.Entry.DurationMinutes) * time.Minute
	}
	return s.opts.DefaultHorizon
}

// RunAll 并发分析所有配置的品种，并发数受 Workers 限制。
// 结果顺序与 Symbols 一致；单个品种失败不影响其它品种。
func (s *Service) RunAll(ctx context.Context) []Outcome {
	out := make([]Outcome, len(s.opts.Symbols))
	sem := make(chan struct{}, s.opts.Workers)
	var wg sync.WaitGroup

	for i, symbol := range s.opts.Symbols {
		out[i].Symbol = symbol
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			out[i].Err = ctx.Err()
			continue
		}
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			defer func() { <-sem }()
			pred, err := s.Run(ctx, symbol, nil)
			out[i].Prediction, out[i].Err = pred, err
			if err != nil {
				s.logger.Warn("Analysis failed", zap.String("Symbol", symbol), zap.Error(err))
			}
		}(i, symbol)
	}
	wg.Wait()
	return out
}

// Symbols 返回配置的品种列表
func (s *Service) Symbols() []string {
	return s.opts.Symbols
}
