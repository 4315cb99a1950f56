package smc

import (
	"fmt"
	"math"

	"smc-predictor/internal/model"
)

// Bias 是市场结构方向
type Bias string

const (
	Bullish Bias = "bullish"
	Bearish Bias = "bearish"
	Neutral Bias = "neutral"
)

// Direction 转换为预测方向
func (b Bias) Direction() model.Direction {
	switch b {
	case Bullish:
		return model.DirUp
	case Bearish:
		return model.DirDown
	default:
		return model.DirNone
	}
}

func (b Bias) opposite() Bias {
	switch b {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	default:
		return Neutral
	}
}

// EventKind 结构事件类型
type EventKind string

const (
	BOS   EventKind = "BOS"
	CHoCH EventKind = "CHoCH"
)

// StructureEvent 是一次结构突破。创建后只读。
type StructureEvent struct {
	Kind       EventKind `json:"kind" yaml:"kind"`
	Direction  Bias      `json:"direction" yaml:"direction"`
	SwingIndex int       `json:"swing_index" yaml:"swing_index"` // 被突破的摆动点所在 K 线
	BarIndex   int       `json:"bar_index" yaml:"bar_index"`     // 收盘突破的 K 线
	Level      float64   `json:"level" yaml:"level"`
	Strength   float64   `json:"strength" yaml:"strength"` // 0..1
}

// Structure 是结构分析的输出
type Structure struct {
	Events []StructureEvent `json:"events" yaml:"events"`
	Bias   Bias             `json:"bias" yaml:"bias"`
}

// Last 返回最新的结构事件
func (s Structure) Last() (StructureEvent, bool) {
	if len(s.Events) == 0 {
		return StructureEvent{}, false
	}
	return s.Events[len(s.Events)-1], true
}

// reference 是当前可被突破的摆动价位
type reference struct {
	swing  SwingPoint
	set    bool
	broken bool
}

type structureState struct {
	bias               Bias
	lastHigh, prevHigh reference
	lastLow, prevLow   reference
}

// confirm 在摆动点被确认 (s+k) 时更新参考价位和方向
func (st *structureState) confirm(sw SwingPoint) {
	switch sw.Kind {
	case SwingHigh:
		// 新高点低于上一个摆动低点：空头
		if st.lastLow.set && sw.Price < st.lastLow.swing.Price {
			st.bias = Bearish
		}
		st.prevHigh = st.lastHigh
		st.lastHigh = reference{swing: sw, set: true}
	case SwingLow:
		// 新低点高于上一个摆动高点：多头
		if st.lastHigh.set && sw.Price > st.lastHigh.swing.Price {
			st.bias = Bullish
		}
		st.prevLow = st.lastLow
		st.lastLow = reference{swing: sw, set: true}
	}

	if st.bias != Neutral || !st.prevHigh.set || !st.prevLow.set {
		return
	}
	hh := st.lastHigh.swing.Price > st.prevHigh.swing.Price
	hl := st.lastLow.swing.Price > st.prevLow.swing.Price
	lh := st.lastHigh.swing.Price < st.prevHigh.swing.Price
	ll := st.lastLow.swing.Price < st.prevLow.swing.Price
	switch {
	case hh && hl:
		st.bias = Bullish
	case lh && ll:
		st.bias = Bearish
	}
}

// AnalyzeStructure 按顺序遍历 K 线，识别 BOS 和 CHoCH。
// 摆动点在 Index+k 处被确认，确认后才成为可被突破的参考价位；
// 每根 K 线先处理确认，再用收盘价检查突破。每个参考价位只能被突破一次，每根 K 线最多一个事件。
func AnalyzeStructure(bars []model.Bar, swings []SwingPoint, k int) (Structure, error) {
	if k < 1 {
		return Structure{}, fmt.Errorf("smc: swing window must be >= 1, got %d", k)
	}
	if need := 2*k + 1; len(bars) < need {
		return Structure{}, &InsufficientDataError{Component: "structure", Need: need, Have: len(bars)}
	}

	st := &structureState{bias: Neutral}
	var events []StructureEvent
	next := 0

	for i, bar := range bars {
		for next < len(swings) && swings[next].Index+k <= i {
			st.confirm(swings[next])
			next++
		}

		var candidates []StructureEvent
		if h := &st.lastHigh; h.set && !h.broken && bar.Close > h.swing.Price {
			candidates = append(candidates, breakEvent(Bullish, h.swing, i, bar.Close))
		}
		if l := &st.lastLow; l.set && !l.broken && bar.Close < l.swing.Price {
			candidates = append(candidates, breakEvent(Bearish, l.swing, i, bar.Close))
		}
		if len(candidates) == 0 {
			continue
		}

		ev := candidates[0]
		for _, c := range candidates[1:] {
			if c.Strength > ev.Strength || (c.Strength == ev.Strength && c.SwingIndex > ev.SwingIndex) {
				ev = c
			}
		}

		if ev.Direction == Bullish {
			st.lastHigh.broken = true
		} else {
			st.lastLow.broken = true
		}

		if st.bias == ev.Direction.opposite() {
			ev.Kind = CHoCH
		} else {
			ev.Kind = BOS
		}
		st.bias = ev.Direction
		events = append(events, ev)
	}

	return Structure{Events: events, Bias: st.bias}, nil
}

func breakEvent(dir Bias, sw SwingPoint, barIndex int, closePrice float64) StructureEvent {
	pct := math.Abs(closePrice-sw.Price) / sw.Price * 100
	return StructureEvent{
		Direction:  dir,
		SwingIndex: sw.Index,
		BarIndex:   barIndex,
		Level:      sw.Price,
		Strength:   math.Min(pct, 1),
	}
}
