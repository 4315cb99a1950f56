package collector

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"smc-predictor/internal/model"
)

// StreamFetcher 保存由实时 Tick 聚合而来的最近 K 线
type StreamFetcher struct {
	mu      sync.RWMutex
	maxBars int
	series  map[string][]model.Bar // symbol|timeframe -> bars
	logger  *zap.Logger
}

func NewStreamFetcher(maxBars int, logger *zap.Logger) *StreamFetcher {
	if maxBars <= 0 {
		maxBars = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamFetcher{maxBars: maxBars, series: make(map[string][]model.Bar), logger: logger}
}

func (s *StreamFetcher) Name() string { return "stream" }

func seriesKey(symbol, timeframe string) string { return symbol + "|" + timeframe }

// Add 追加一根已完成 K 线，时间不晚于最后一根的直接丢弃
func (s *StreamFetcher) Add(ev model.BarEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey(ev.Symbol, ev.Timeframe)
	bars := s.series[key]
	if n := len(bars); n > 0 && !ev.Bar.Time.After(bars[n-1].Time) {
		return
	}
	bars = append(bars, ev.Bar)
	if len(bars) > s.maxBars {
		bars = bars[len(bars)-s.maxBars:]
	}
	s.series[key] = bars
}

func (s *StreamFetcher) FetchBars(_ context.Context, symbol, timeframe string, limit int) ([]model.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bars := s.series[seriesKey(symbol, timeframe)]
	if len(bars) == 0 {
		return nil, fmt.Errorf("stream %s %s: %w", symbol, timeframe, ErrNoData)
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]model.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// Run 把 Tick 流按品种分发给各自的 DataEngine，并收集完成的 K 线。
// ticks 关闭或 ctx 结束后返回。
func (s *StreamFetcher) Run(ctx context.Context, ticks <-chan model.Tick, symbols, timeframes []string) error {
	inputs := make(map[string]chan model.Tick, len(symbols))
	var wg sync.WaitGroup

	for _, symbol := range symbols {
		in := make(chan model.Tick, 256)
		engine, err := model.NewDataEngine(in, symbol, timeframes, s.logger)
		if err != nil {
			return err
		}
		inputs[symbol] = in

		wg.Add(2)
		go func() {
			defer wg.Done()
			engine.Start(ctx)
		}()
		go func() {
			defer wg.Done()
			for ev := range engine.Bars() {
				s.Add(ev)
			}
		}()
	}

	defer func() {
		for _, in := range inputs {
			close(in)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-ticks:
			if !ok {
				return nil
			}
			in, ok := inputs[t.Symbol]
			if !ok {
				continue
			}
			select {
			case in <- t:
			default:
				s.logger.Warn("Symbol tick queue full, dropping tick", zap.String("Symbol", t.Symbol))
			}
		}
	}
}
