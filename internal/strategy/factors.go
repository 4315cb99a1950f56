package strategy

import (
	"fmt"
	"math"

	"smc-predictor/internal/model"
	"smc-predictor/pkg/smc"
)

// buildFactors 把单周期的检测结果转换为有序的因子列表。
// 顺序固定：结构方向、最新结构事件、订单块、缺口、扫单、支撑阻力、指标。
func buildFactors(tr *TimeframeResult, barCount int, cfg Config) []model.Factor {
	name := func(base string) string { return tr.Timeframe + "." + base }
	var factors []model.Factor

	factors = append(factors, model.Factor{
		Name:      name("structure_bias"),
		Category:  model.CategoryStructureBias,
		Direction: tr.Structure.Bias.Direction(),
		Strength:  1,
		Detail:    string(tr.Structure.Bias),
	})

	if ev, ok := tr.Structure.Last(); ok {
		factors = append(factors, model.Factor{
			Name:      name("structure_event"),
			Category:  model.CategoryStructureEvent,
			Direction: ev.Direction.Direction(),
			Strength:  ev.Strength,
			Detail:    fmt.Sprintf("%s %s @ %.5f", ev.Kind, ev.Direction, ev.Level),
		})
	}

	if ob, dist, ok := nearestOrderBlock(tr.OrderBlocks, tr.Price); ok {
		if prox := proximity(dist, cfg.ProximityPct); prox > 0 {
			factors = append(factors, model.Factor{
				Name:      name("order_block"),
				Category:  model.CategoryOrderBlock,
				Direction: ob.Direction.Direction(),
				Strength:  prox * ob.Strength,
				Detail:    fmt.Sprintf("%s [%.5f, %.5f]", ob.Direction, ob.Bottom, ob.Top),
			})
		}
	}

	if g, dist, ok := nearestGap(tr.Gaps, tr.Price); ok {
		if prox := proximity(dist, cfg.ProximityPct); prox > 0 {
			factors = append(factors, model.Factor{
				Name:      name("fair_value_gap"),
				Category:  model.CategoryFairValueGap,
				Direction: g.Direction.Direction(),
				Strength:  prox,
				Detail:    fmt.Sprintf("%s [%.5f, %.5f]", g.Direction, g.Bottom, g.Top),
			})
		}
	}

	if sw, ok := tr.Liquidity.LastSweep(); ok && cfg.SweepDecayBars > 0 {
		age := barCount - 1 - sw.ReclaimIndex
		if strength := 1 - float64(age)/float64(cfg.SweepDecayBars); strength > 0 {
			factors = append(factors, model.Factor{
				Name:      name("liquidity_sweep"),
				Category:  model.CategoryLiquiditySweep,
				Direction: sw.Direction.Direction(),
				Strength:  strength,
				Detail:    fmt.Sprintf("%s sweep @ %.5f", sw.Side, sw.Level),
			})
		}
	}

	if f, ok := levelFactor(tr.Levels.Proximity(tr.Price), cfg.ProximityPct); ok {
		f.Name = name(f.Name)
		factors = append(factors, f)
	}

	for _, v := range tr.Indicators.Votes {
		factors = append(factors, model.Factor{
			Name:      name(v.Name),
			Category:  model.CategoryIndicator,
			Direction: v.Direction,
			Strength:  v.Strength,
		})
	}
	return factors
}

// hintFactor 把图片分析提示转换为因子，ok=false 表示不参与
func hintFactor(h *model.VisualHint, mode HintMode) (model.Factor, bool) {
	if h == nil || mode == HintOmit {
		return model.Factor{}, false
	}
	f := model.Factor{
		Name:      "visual_hint",
		Category:  model.CategoryVisualHint,
		Direction: model.DirNone,
		Detail:    h.Quality,
	}
	// 低质量图片按中性处理
	if mode == HintInclude && h.Usable() {
		f.Direction = h.Direction
		f.Strength = clampUnit(h.Confidence / 100)
	}
	return f, true
}

// proximity 距离为 0 时为 1，达到 limitPct 时为 0
func proximity(distPct, limitPct float64) float64 {
	if limitPct <= 0 {
		return 0
	}
	return clampUnit(1 - distPct/limitPct)
}

// zoneDistance 价格到区间的百分比距离，区间内为 0
func zoneDistance(price, bottom, top float64) float64 {
	if price <= 0 {
		return math.Inf(1)
	}
	switch {
	case price < bottom:
		return (bottom - price) / price * 100
	case price > top:
		return (price - top) / price * 100
	default:
		return 0
	}
}

func nearestOrderBlock(blocks []smc.OrderBlock, price float64) (smc.OrderBlock, float64, bool) {
	best, bestDist, found := smc.OrderBlock{}, math.Inf(1), false
	for _, ob := range blocks {
		if ob.Mitigated {
			continue
		}
		// 距离相同时取更新的订单块
		if d := zoneDistance(price, ob.Bottom, ob.Top); d <= bestDist {
			best, bestDist, found = ob, d, true
		}
	}
	return best, bestDist, found
}

func nearestGap(gaps []smc.FairValueGap, price float64) (smc.FairValueGap, float64, bool) {
	best, bestDist, found := smc.FairValueGap{}, math.Inf(1), false
	for _, g := range gaps {
		if g.Filled {
			continue
		}
		if d := zoneDistance(price, g.Bottom, g.Top); d <= bestDist {
			best, bestDist, found = g, d, true
		}
	}
	return best, bestDist, found
}

// levelFactor 靠近支撑看涨，靠近阻力看跌，两者都近时取更近的一个
func levelFactor(p smc.Proximity, limitPct float64) (model.Factor, bool) {
	sup := -1.0
	if p.HasSupport {
		sup = proximity(p.SupportDistPct, limitPct)
	}
	res := -1.0
	if p.HasResistance {
		res = proximity(p.ResistanceDistPct, limitPct)
	}

	switch {
	case sup > 0 && sup >= res:
		return model.Factor{
			Name:      "support_resistance",
			Category:  model.CategorySupportResistance,
			Direction: model.DirUp,
			Strength:  sup,
			Detail:    fmt.Sprintf("support %.5f (%d touches)", p.Support.Price, p.Support.Touches),
		}, true
	case res > 0:
		return model.Factor{
			Name:      "support_resistance",
			Category:  model.CategorySupportResistance,
			Direction: model.DirDown,
			Strength:  res,
			Detail:    fmt.Sprintf("resistance %.5f (%d touches)", p.Resistance.Price, p.Resistance.Touches),
		}, true
	default:
		return model.Factor{}, false
	}
}
