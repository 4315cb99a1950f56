package strategy

import (
	"time"

	"smc-predictor/internal/model"
)

// reversalBars: 上涨的更高高点/更高低点序列，最后跌破最后一个更高低点
func reversalBars() []model.Bar {
	pivots := []float64{1.1000, 1.1100, 1.1050, 1.1150, 1.1100, 1.1200, 1.1150, 1.1250, 1.0900}
	steps := []int{5, 5, 5, 5, 5, 5, 5, 14}

	mids := []float64{pivots[0]}
	for s := 1; s < len(pivots); s++ {
		from, to, n := pivots[s-1], pivots[s], steps[s-1]
		for j := 1; j <= n; j++ {
			mids = append(mids, from+(to-from)*float64(j)/float64(n))
		}
	}

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(mids))
	for i, v := range mids {
		b := model.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			High:   v + 0.0005,
			Low:    v - 0.0005,
			Volume: 100,
		}
		if i == 0 || v >= mids[i-1] {
			b.Open, b.Close = v-0.0002, v+0.0002
		} else {
			b.Open, b.Close = v+0.0002, v-0.0002
		}
		bars[i] = b
	}
	return bars
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SMC.SwingWindow = 2
	return cfg
}

func reversalRequest() Request {
	return Request{
		Symbol: "EURUSD",
		HTF:    model.Series{Symbol: "EURUSD", Timeframe: "4h", Bars: reversalBars()},
		LTF:    model.Series{Symbol: "EURUSD", Timeframe: "1h", Bars: reversalBars()},
	}
}

func factor(name string, cat model.FactorCategory, dir model.Direction, strength float64) model.Factor {
	return model.Factor{Name: name, Category: cat, Direction: dir, Strength: strength}
}

// flatBars: 价格完全不动的 K 线
func flatBars(n int, step time.Duration) []model.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		bars[i] = model.Bar{Time: start.Add(time.Duration(i) * step), Open: 1.1, High: 1.1, Low: 1.1, Close: 1.1, Volume: 100}
	}
	return bars
}
