package strategy

import (
	"math"

	"smc-predictor/internal/model"
	"smc-predictor/pkg/smc"
)

// 入场时机
const (
	TimingImmediate = "IMMEDIATE"
	TimingNext30s   = "NEXT_30S"
	TimingNext2m    = "NEXT_2M"
	TimingWait      = "WAIT"
)

// PlanEntry 根据预测方向、置信度和最近的支撑阻力给出入场建议。没有信号时返回 nil。
func PlanEntry(pred *model.Prediction, levels smc.Levels) *model.EntryPlan {
	if !pred.HasSignal() || pred.Price <= 0 {
		return nil
	}
	current := pred.Price
	plan := &model.EntryPlan{CurrentPrice: current}

	// 置信度越高，持仓时间越长
	switch {
	case pred.Confidence >= 90:
		plan.DurationMinutes, plan.RiskLevel = 10, "LOW"
	case pred.Confidence >= 80:
		plan.DurationMinutes, plan.RiskLevel = 5, "MEDIUM"
	default:
		plan.DurationMinutes, plan.RiskLevel = 1, "HIGH"
	}

	p := levels.Proximity(current)
	switch pred.Direction {
	case model.DirUp:
		if p.HasSupport && current > p.Support.Price*1.001 {
			plan.EntryPrice = current
		} else {
			plan.EntryPrice = current * 1.0002
		}
	case model.DirDown:
		if p.HasResistance && current < p.Resistance.Price*0.999 {
			plan.EntryPrice = current
		} else {
			plan.EntryPrice = current * 0.9998
		}
	}

	plan.DistancePct = math.Abs(current-plan.EntryPrice) / current * 100
	switch {
	case plan.DistancePct < 0.05:
		plan.Timing = TimingImmediate
	case plan.DistancePct < 0.1:
		plan.Timing = TimingNext30s
	case plan.DistancePct < 0.2:
		plan.Timing = TimingNext2m
	default:
		plan.Timing = TimingWait
	}
	return plan
}
