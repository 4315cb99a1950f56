package model

import "time"

// Tick 代表最小粒度的行情数据（成交或报价快照）
type Tick struct {
	Symbol    string  // 交易品种，例如 "EURUSD"
	Timestamp int64   // 毫秒时间戳
	Price     float64 // 价格
	Volume    float64 // 成交量 (0 表示报价快照)
}

// Bar 代表一根已完成的 K 线。引擎只读，不会修改。
type Bar struct {
	Time   time.Time `json:"time" yaml:"time"`
	Open   float64   `json:"open" yaml:"open"`
	High   float64   `json:"high" yaml:"high"`
	Low    float64   `json:"low" yaml:"low"`
	Close  float64   `json:"close" yaml:"close"`
	Volume float64   `json:"volume" yaml:"volume"`
}

// Body 返回实体的上下沿
func (b Bar) Body() (bottom, top float64) {
	if b.Open < b.Close {
		return b.Open, b.Close
	}
	return b.Close, b.Open
}

// Range 返回最高价与最低价之差
func (b Bar) Range() float64 {
	return b.High - b.Low
}

func (b Bar) IsUp() bool   { return b.Close > b.Open }
func (b Bar) IsDown() bool { return b.Close < b.Open }

// Series 是一组按时间升序排列的 K 线以及其所属的品种和周期
type Series struct {
	Symbol    string
	Timeframe string // 周期，例如 "1h", "4h"
	Bars      []Bar
}

// Last 返回最后一根 K 线，序列为空时 ok=false
func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Closes 提取收盘价序列
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs 提取最高价序列
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows 提取最低价序列
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}
