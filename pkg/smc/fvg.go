package smc

import "smc-predictor/internal/model"

// FairValueGap 是三根 K 线 (A, B, C) 之间未重叠的价格缺口
type FairValueGap struct {
	Top         float64 `json:"top" yaml:"top"`
	Bottom      float64 `json:"bottom" yaml:"bottom"`
	Direction   Bias    `json:"direction" yaml:"direction"`
	OriginIndex int     `json:"origin_index" yaml:"origin_index"` // A 的索引
	Filled      bool    `json:"filled" yaml:"filled"`
	FilledAt    int     `json:"filled_at,omitempty" yaml:"filled_at,omitempty"`
}

// Mid 返回缺口中点
func (g FairValueGap) Mid() float64 {
	return (g.Top + g.Bottom) / 2
}

// DetectFairValueGaps 找出所有缺口，按 OriginIndex 排序，不合并相邻缺口。
// 多头：A.High < C.Low，区间 [A.High, C.Low]；空头：A.Low > C.High，区间 [C.High, A.Low]。
// C 之后任意一根 K 线完整覆盖区间即视为回补。
func DetectFairValueGaps(bars []model.Bar) ([]FairValueGap, error) {
	if len(bars) < 3 {
		return nil, &InsufficientDataError{Component: "fair_value_gap", Need: 3, Have: len(bars)}
	}

	var gaps []FairValueGap
	for i := 2; i < len(bars); i++ {
		a, c := bars[i-2], bars[i]
		var gap FairValueGap
		switch {
		case a.High < c.Low:
			gap = FairValueGap{Bottom: a.High, Top: c.Low, Direction: Bullish, OriginIndex: i - 2}
		case a.Low > c.High:
			gap = FairValueGap{Bottom: c.High, Top: a.Low, Direction: Bearish, OriginIndex: i - 2}
		default:
			continue
		}

		for m := i + 1; m < len(bars); m++ {
			if bars[m].Low <= gap.Bottom && bars[m].High >= gap.Top {
				gap.Filled = true
				gap.FilledAt = m
				break
			}
		}
		gaps = append(gaps, gap)
	}
	return gaps, nil
}
