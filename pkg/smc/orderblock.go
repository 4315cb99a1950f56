package smc

import (
	"math"
	"sort"

	"smc-predictor/internal/model"
)

// OrderBlock 是强势冲击前最后一根反向 K 线的实体区间。
// Mitigated 是唯一会被改写的字段，且只会从 false 变为 true。
type OrderBlock struct {
	Top          float64 `json:"top" yaml:"top"`
	Bottom       float64 `json:"bottom" yaml:"bottom"`
	Direction    Bias    `json:"direction" yaml:"direction"`
	OriginIndex  int     `json:"origin_index" yaml:"origin_index"`
	ImpulseIndex int     `json:"impulse_index" yaml:"impulse_index"`
	Strength     float64 `json:"strength" yaml:"strength"`
	Mitigated    bool    `json:"mitigated" yaml:"mitigated"`
	MitigatedAt  int     `json:"mitigated_at,omitempty" yaml:"mitigated_at,omitempty"`
}

// Contains 判断价格是否位于区间内
func (ob OrderBlock) Contains(price float64) bool {
	return price >= ob.Bottom && price <= ob.Top
}

// DetectOrderBlocks 识别订单块。
// 冲击 K 线：实体 >= ImpulseMultiplier * 前 RangeLookback 根 K 线的平均波幅。
// 向上冲击取之前 OriginLookback 根内最后一根阴线作为多头订单块，向下冲击取最后一根阳线作为空头订单块。
func DetectOrderBlocks(bars []model.Bar, cfg Config) ([]OrderBlock, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if need := cfg.RangeLookback + 1; len(bars) < need {
		return nil, &InsufficientDataError{Component: "order_block", Need: need, Have: len(bars)}
	}

	// 同一根起始 K 线只生成一个订单块，先出现的冲击优先
	used := make(map[int]bool)
	var blocks []OrderBlock

	var rangeSum float64
	for j := 0; j < cfg.RangeLookback; j++ {
		rangeSum += bars[j].Range()
	}

	for i := cfg.RangeLookback; i < len(bars); i++ {
		avgRange := rangeSum / float64(cfg.RangeLookback)
		// 滑动窗口，为下一根 K 线准备
		rangeSum += bars[i].Range() - bars[i-cfg.RangeLookback].Range()

		bar := bars[i]
		body := math.Abs(bar.Close - bar.Open)
		if avgRange <= 0 || body < cfg.ImpulseMultiplier*avgRange {
			continue
		}

		bullish := bar.IsUp()
		origin := -1
		for j := i - 1; j >= 0 && j >= i-cfg.OriginLookback; j-- {
			if (bullish && bars[j].IsDown()) || (!bullish && bars[j].IsUp()) {
				origin = j
				break
			}
		}
		if origin < 0 || used[origin] {
			continue
		}
		used[origin] = true

		bottom, top := bars[origin].Body()
		dir := Bearish
		if bullish {
			dir = Bullish
		}
		blocks = append(blocks, OrderBlock{
			Top:          top,
			Bottom:       bottom,
			Direction:    dir,
			OriginIndex:  origin,
			ImpulseIndex: i,
			Strength:     math.Min(body/avgRange/(2*cfg.ImpulseMultiplier), 1),
		})
	}

	for idx := range blocks {
		markMitigated(blocks, idx, bars)
	}

	sort.SliceStable(blocks, func(a, b int) bool { return blocks[a].OriginIndex < blocks[b].OriginIndex })
	return blocks, nil
}

// markMitigated 冲击之后第一根与区间重叠的 K 线使订单块失效
func markMitigated(blocks []OrderBlock, idx int, bars []model.Bar) {
	ob := &blocks[idx]
	if ob.Mitigated {
		return
	}
	for m := ob.ImpulseIndex + 1; m < len(bars); m++ {
		if bars[m].Low <= ob.Top && bars[m].High >= ob.Bottom {
			ob.Mitigated = true
			ob.MitigatedAt = m
			return
		}
	}
}
