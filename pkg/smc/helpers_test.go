package smc

import (
	"time"

	"smc-predictor/internal/model"
)

var baseTime = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// barsFromMids 用中间价生成 K 线：上涨 K 线收在中间价上方，下跌 K 线收在下方
func barsFromMids(mids []float64) []model.Bar {
	bars := make([]model.Bar, len(mids))
	for i, v := range mids {
		up := i == 0 || v >= mids[i-1]
		b := model.Bar{
			Time:   baseTime.Add(time.Duration(i) * time.Hour),
			High:   v + 0.0005,
			Low:    v - 0.0005,
			Volume: 100,
		}
		if up {
			b.Open, b.Close = v-0.0002, v+0.0002
		} else {
			b.Open, b.Close = v+0.0002, v-0.0002
		}
		bars[i] = b
	}
	return bars
}

// zigzag 在转折点之间线性插值，steps[i] 是第 i 段新增的 K 线数
func zigzag(pivots []float64, steps []int) []float64 {
	mids := []float64{pivots[0]}
	for s := 1; s < len(pivots); s++ {
		from, to, n := pivots[s-1], pivots[s], steps[s-1]
		for j := 1; j <= n; j++ {
			mids = append(mids, from+(to-from)*float64(j)/float64(n))
		}
	}
	return mids
}

// reversalSeries 是 50 根 K 线：三次更高的高点和更高的低点，然后跌破最后一个更高低点
func reversalSeries() []model.Bar {
	pivots := []float64{1.1000, 1.1100, 1.1050, 1.1150, 1.1100, 1.1200, 1.1150, 1.1250, 1.0900}
	steps := []int{5, 5, 5, 5, 5, 5, 5, 14}
	return barsFromMids(zigzag(pivots, steps))
}

func bar(i int, o, h, l, c float64) model.Bar {
	return model.Bar{Time: baseTime.Add(time.Duration(i) * time.Hour), Open: o, High: h, Low: l, Close: c, Volume: 1}
}

// mirror 把价格关于 1.1 翻转，多空互换
func mirror(bars []model.Bar) []model.Bar {
	out := make([]model.Bar, len(bars))
	for i, b := range bars {
		out[i] = model.Bar{Time: b.Time, Open: 2.2 - b.Open, High: 2.2 - b.Low, Low: 2.2 - b.High, Close: 2.2 - b.Close, Volume: b.Volume}
	}
	return out
}
