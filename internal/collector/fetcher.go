package collector

import (
	"context"
	"errors"
	"math"
	"time"

	"smc-predictor/internal/model"
	"smc-predictor/internal/service"
)

// ErrNoData 数据源没有返回任何 K 线
var ErrNoData = errors.New("collector: no data")

// Fetcher 定义了获取 K 线的接口。返回的 K 线按时间升序，可能少于 limit。
type Fetcher interface {
	FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]model.Bar, error)
	Name() string
}

// MockFetcher 生成可控的合成数据，用于开发和测试
type MockFetcher struct {
	Price float64
	Bars  []model.Bar // 非空时直接返回
	Now   func() time.Time
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(_ context.Context, _ string, timeframe string, limit int) ([]model.Bar, error) {
	if m.Bars != nil {
		if len(m.Bars) > limit {
			return m.Bars[len(m.Bars)-limit:], nil
		}
		return m.Bars, nil
	}
	interval, err := service.ParseIntervalDuration(timeframe)
	if err != nil {
		return nil, err
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	price := m.Price
	if price <= 0 {
		price = 1.1
	}
	return generateMockBars(price, limit, interval, now()), nil
}

// generateMockBars 生成一段正弦波动的 K 线，最后一根收盘于 basePrice 附近
func generateMockBars(basePrice float64, count int, interval time.Duration, now time.Time) []model.Bar {
	end := now.Truncate(interval)
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		drift := float64(i-count) * 0.0002
		wave := 0.004 * math.Sin(float64(i)/6)
		p := basePrice * (1 + drift + wave)
		prev := basePrice * (1 + float64(i-1-count)*0.0002 + 0.004*math.Sin(float64(i-1)/6))
		hi, lo := math.Max(p, prev), math.Min(p, prev)
		bars[i] = model.Bar{
			Time:   end.Add(-time.Duration(count-i) * interval),
			Open:   prev,
			High:   hi * 1.0005,
			Low:    lo * 0.9995,
			Close:  p,
			Volume: 1000,
		}
	}
	return bars
}
