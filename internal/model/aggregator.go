package model

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"smc-predictor/internal/service"

	"go.uber.org/zap"
)

// BarEvent 是聚合器输出的一根已完成 K 线
type BarEvent struct {
	Symbol    string
	Timeframe string
	Bar       Bar
}

// DataEngine 负责接收 Tick，按多个周期聚合 K 线，并发送给下游
type DataEngine struct {
	tickChan    <-chan Tick
	barChan     chan BarEvent
	aggregators map[string]*BarAggregator // 存储不同周期的聚合器
	symbol      string
	logger      *zap.Logger
}

// NewDataEngine 创建并初始化 DataEngine，timeframes 形如 "15m", "1h"
func NewDataEngine(tickChan <-chan Tick, symbol string, timeframes []string, logger *zap.Logger) (*DataEngine, error) {
	de := &DataEngine{
		tickChan:    tickChan,
		barChan:     make(chan BarEvent, 100),
		aggregators: make(map[string]*BarAggregator, len(timeframes)),
		symbol:      symbol,
		logger:      logger,
	}

	for _, tf := range timeframes {
		agg, err := NewBarAggregator(symbol, tf)
		if err != nil {
			return nil, err
		}
		de.aggregators[tf] = agg
	}
	return de, nil
}

// Start 启动数据处理循环，ctx 取消或 tickChan 关闭时退出
func (de *DataEngine) Start(ctx context.Context) {
	de.logger.Info("Data Engine started, monitoring tick stream...", zap.String("Symbol", de.symbol))
	defer close(de.barChan)

	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-de.tickChan:
			if !ok {
				return
			}
			// 只处理与本实例 Symbol 匹配的数据
			if tick.Symbol != de.symbol {
				continue
			}
			for tf, agg := range de.aggregators {
				bar, done := agg.ProcessTick(tick)
				if !done {
					continue
				}
				select {
				case de.barChan <- BarEvent{Symbol: de.symbol, Timeframe: tf, Bar: bar}:
				default:
					de.logger.Warn("Bar output channel full! Dropping completed bar.",
						zap.String("Symbol", de.symbol), zap.String("Timeframe", tf))
				}
			}
		}
	}
}

// Bars 供下游读取已完成的 K 线
func (de *DataEngine) Bars() <-chan BarEvent {
	return de.barChan
}

// BarAggregator 根据 Tick 聚合特定周期和品种的 K 线
type BarAggregator struct {
	mu        sync.Mutex
	Symbol    string
	Timeframe string
	interval  time.Duration
	current   Bar
	started   bool
}

// NewBarAggregator 创建一个新的聚合器
func NewBarAggregator(symbol, timeframe string) (*BarAggregator, error) {
	d, err := service.ParseIntervalDuration(timeframe)
	if err != nil {
		return nil, err
	}
	return &BarAggregator{Symbol: symbol, Timeframe: timeframe, interval: d}, nil
}

// ProcessTick 把 Tick 聚合到当前 K 线。
// 当 Tick 属于新的周期时，返回上一根已完成的 K 线和 true。
func (agg *BarAggregator) ProcessTick(tick Tick) (Bar, bool) {
	agg.mu.Lock()
	defer agg.mu.Unlock()

	// 将 Tick 时间戳对齐到 K 线起始时间
	start := time.UnixMilli(tick.Timestamp).UTC().Truncate(agg.interval)

	// 迟到的 Tick 直接丢弃，保证输出时间严格递增
	if agg.started && start.Before(agg.current.Time) {
		return Bar{}, false
	}

	var completed Bar
	var done bool
	if agg.started && start.After(agg.current.Time) {
		completed, done = agg.current, true
		agg.started = false
	}

	if !agg.started {
		agg.current = Bar{
			Time:  start,
			Open:  tick.Price,
			High:  tick.Price,
			Low:   tick.Price,
			Close: tick.Price,
		}
		agg.started = true
	}

	agg.current.Close = tick.Price
	agg.current.High = math.Max(agg.current.High, tick.Price)
	agg.current.Low = math.Min(agg.current.Low, tick.Price)
	agg.current.Volume += tick.Volume

	return completed, done
}

// Resample 把低周期 K 线合并为高周期 K 线 (例如 1h -> 4h)。
// 输入需按时间升序；最后一个不完整的桶同样输出。
func Resample(bars []Bar, interval time.Duration) []Bar {
	if len(bars) == 0 || interval <= 0 {
		return nil
	}

	buckets := make(map[int64]*Bar)
	var keys []int64
	for _, b := range bars {
		start := b.Time.UTC().Truncate(interval)
		key := start.UnixMilli()
		agg, ok := buckets[key]
		if !ok {
			nb := Bar{Time: start, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			buckets[key] = &nb
			keys = append(keys, key)
			continue
		}
		agg.High = math.Max(agg.High, b.High)
		agg.Low = math.Min(agg.Low, b.Low)
		agg.Close = b.Close
		agg.Volume += b.Volume
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]Bar, 0, len(keys))
	for _, k := range keys {
		out = append(out, *buckets[k])
	}
	return out
}
