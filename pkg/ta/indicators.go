package ta

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"smc-predictor/internal/model"
	"smc-predictor/pkg/smc"
)

// Kind 是指标类型。指标集合是封闭的，新增类型需要在 Vote 中增加分支。
type Kind string

const (
	KindRSI           Kind = "rsi"
	KindEMACross      Kind = "ema_cross"
	KindMACD          Kind = "macd"
	KindBollinger     Kind = "bollinger"
	KindStochastic    Kind = "stochastic"
	KindRSIDivergence Kind = "rsi_divergence"
)

// Vote 是单个指标对方向的投票
type Vote struct {
	Kind      Kind               `json:"kind" yaml:"kind"`
	Name      string             `json:"name" yaml:"name"`
	Direction model.Direction    `json:"direction" yaml:"direction"`
	Strength  float64            `json:"strength" yaml:"strength"` // 0..1
	Values    map[string]float64 `json:"values" yaml:"values"`
}

// Indicator 是一个带参数的指标实例
type Indicator struct {
	Kind   Kind
	Period int // RSI / 布林带 / 随机指标 K 周期
	Fast   int // EMA 快线 / MACD 快线 / 随机指标 SlowK
	Slow   int // EMA 慢线 / MACD 慢线 / 随机指标 SlowD
	Signal int
	StdDev float64
	Lower  float64 // 超卖阈值
	Upper  float64 // 超买阈值
	Shift  int     // 背离比较的 K 线距离
}

func RSI(period int) Indicator {
	return Indicator{Kind: KindRSI, Period: period, Lower: 30, Upper: 70}
}

func EMACross(fast, slow int) Indicator {
	return Indicator{Kind: KindEMACross, Fast: fast, Slow: slow}
}

func MACD(fast, slow, signal int) Indicator {
	return Indicator{Kind: KindMACD, Fast: fast, Slow: slow, Signal: signal}
}

func Bollinger(period int, stdDev float64) Indicator {
	return Indicator{Kind: KindBollinger, Period: period, StdDev: stdDev}
}

func Stochastic(k, slowK, slowD int) Indicator {
	return Indicator{Kind: KindStochastic, Period: k, Fast: slowK, Slow: slowD, Lower: 20, Upper: 80}
}

func RSIDivergence(period, shift int) Indicator {
	return Indicator{Kind: KindRSIDivergence, Period: period, Shift: shift}
}

// Name 用于因子命名，例如 "rsi_14"
func (ind Indicator) Name() string {
	switch ind.Kind {
	case KindRSI:
		return fmt.Sprintf("rsi_%d", ind.Period)
	case KindEMACross:
		return fmt.Sprintf("ema_%d_%d", ind.Fast, ind.Slow)
	case KindMACD:
		return fmt.Sprintf("macd_%d_%d_%d", ind.Fast, ind.Slow, ind.Signal)
	case KindBollinger:
		return fmt.Sprintf("bbands_%d", ind.Period)
	case KindStochastic:
		return fmt.Sprintf("stoch_%d", ind.Period)
	case KindRSIDivergence:
		return fmt.Sprintf("rsi_divergence_%d", ind.Period)
	default:
		return string(ind.Kind)
	}
}

// MinBars 返回产生第一个有效值所需的 K 线数
func (ind Indicator) MinBars() int {
	switch ind.Kind {
	case KindRSI:
		return ind.Period + 1
	case KindEMACross:
		return ind.Slow
	case KindMACD:
		return ind.Slow + ind.Signal - 1
	case KindBollinger:
		return ind.Period
	case KindStochastic:
		return ind.Period + ind.Fast + ind.Slow - 2
	case KindRSIDivergence:
		return ind.Period + 1 + ind.Shift
	default:
		return 0
	}
}

// Vote 计算指标并投票。窗口不足时返回 *smc.InsufficientDataError。
func (ind Indicator) Vote(bars []model.Bar) (Vote, error) {
	need := ind.MinBars()
	if need == 0 {
		return Vote{}, fmt.Errorf("ta: unknown indicator kind %q", ind.Kind)
	}
	if len(bars) < need {
		return Vote{}, &smc.InsufficientDataError{Component: ind.Name(), Need: need, Have: len(bars)}
	}

	closes := model.Closes(bars)
	v := Vote{Kind: ind.Kind, Name: ind.Name(), Direction: model.DirNone, Values: map[string]float64{}}
	price := closes[len(closes)-1]

	switch ind.Kind {
	case KindRSI:
		rsi := last(talib.Rsi(closes, ind.Period))
		v.Values["rsi"] = rsi
		// 窗口内收盘价没有变化时 talib 返回 0，不能当作超卖
		switch {
		case flat(closes[len(closes)-ind.Period-1:]):
		case rsi < ind.Lower:
			v.Direction, v.Strength = model.DirUp, clamp01(0.5+(ind.Lower-rsi)/ind.Lower)
		case rsi > ind.Upper:
			v.Direction, v.Strength = model.DirDown, clamp01(0.5+(rsi-ind.Upper)/(100-ind.Upper))
		}

	case KindEMACross:
		fast := last(talib.Ema(closes, ind.Fast))
		slow := last(talib.Ema(closes, ind.Slow))
		v.Values["fast"], v.Values["slow"] = fast, slow
		strength := clamp01(math.Abs(fast-slow) / slow * 100 / 0.25)
		switch {
		case price > fast && fast > slow:
			v.Direction, v.Strength = model.DirUp, strength
		case price < fast && fast < slow:
			v.Direction, v.Strength = model.DirDown, strength
		}

	case KindMACD:
		macd, signal, hist := talib.Macd(closes, ind.Fast, ind.Slow, ind.Signal)
		m, s, h := last(macd), last(signal), last(hist)
		v.Values["macd"], v.Values["signal"], v.Values["hist"] = m, s, h
		strength := clamp01(math.Abs(h) / price * 100 / 0.05)
		switch {
		case m > s:
			v.Direction, v.Strength = model.DirUp, strength
		case m < s:
			v.Direction, v.Strength = model.DirDown, strength
		}

	case KindBollinger:
		upper, middle, lower := talib.BBands(closes, ind.Period, ind.StdDev, ind.StdDev, talib.SMA)
		u, m, l := last(upper), last(middle), last(lower)
		v.Values["upper"], v.Values["middle"], v.Values["lower"] = u, m, l
		width := u - l
		// 价格跌破下轨视为超卖 (向上)，突破上轨视为超买 (向下)
		switch {
		case width <= 0:
		case price < l:
			v.Direction, v.Strength = model.DirUp, clamp01(0.5+(l-price)/width)
		case price > u:
			v.Direction, v.Strength = model.DirDown, clamp01(0.5+(price-u)/width)
		}

	case KindStochastic:
		k, d := talib.Stoch(model.Highs(bars), model.Lows(bars), closes, ind.Period, ind.Fast, talib.SMA, ind.Slow, talib.SMA)
		sk, sd := last(k), last(d)
		v.Values["k"], v.Values["d"] = sk, sd
		window := bars[len(bars)-ind.Period:]
		switch {
		case maxOf(model.Highs(window)) <= minOf(model.Lows(window)):
		case sk < ind.Lower:
			v.Direction, v.Strength = model.DirUp, clamp01(0.5+(ind.Lower-sk)/ind.Lower)
		case sk > ind.Upper:
			v.Direction, v.Strength = model.DirDown, clamp01(0.5+(sk-ind.Upper)/(100-ind.Upper))
		}

	case KindRSIDivergence:
		rsi := talib.Rsi(closes, ind.Period)
		n := len(closes)
		now, then := rsi[n-1], rsi[n-1-ind.Shift]
		v.Values["rsi"], v.Values["rsi_prev"] = now, then
		priceNow, priceThen := closes[n-1], closes[n-1-ind.Shift]
		switch {
		case priceNow > priceThen && now < then:
			v.Direction, v.Strength = model.DirDown, 0.6
		case priceNow < priceThen && now > then:
			v.Direction, v.Strength = model.DirUp, 0.6
		}
	}
	return v, nil
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

func flat(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

func maxOf(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		m = math.Max(m, x)
	}
	return m
}

func minOf(xs []float64) float64 {
	m := math.Inf(1)
	for _, x := range xs {
		m = math.Min(m, x)
	}
	return m
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
