package strategy

import (
	"math"

	"smc-predictor/internal/model"
)

// tieEpsilon 以内视为多空平局
const tieEpsilon = 1e-9

// Scorer 把因子加权求和得到方向和置信度。无状态，相同输入总是得到相同输出。
type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) Scorer {
	return Scorer{cfg: cfg}
}

// Weight 返回因子的权重
func (s Scorer) Weight(f model.Factor) float64 {
	return s.cfg.Weights[f.Category]
}

// Score 计算共振结果。
// 贡献 = 权重 * 强度，中性因子不计入。置信度 =
// Base + (AgreementBonus*(2W/(Up+Down)-1) + CoverageBonus) * cov + (aligned ? AlignmentBonus : 0)，
// W 为获胜方向的支持度，cov = min(W/CoverageNorm,1)，结果限制在 [0,100]。
// 一致性奖励也按 cov 缩放，只有零星弱因子时置信度停留在 Base 附近。
func (s Scorer) Score(factors []model.Factor, aligned bool) model.ConfluenceResult {
	res := model.ConfluenceResult{
		Direction: model.DirNone,
		Aligned:   aligned,
		Breakdown: make(map[string]float64, len(factors)),
		Factors:   append([]model.Factor(nil), factors...),
	}

	contrib := make([]float64, len(factors))
	for i, f := range factors {
		c := s.Weight(f) * clampUnit(f.Strength)
		switch f.Direction {
		case model.DirUp:
			res.Up += c
		case model.DirDown:
			res.Down += c
		default:
			c = 0
		}
		contrib[i] = c
		res.Breakdown[f.Name] += c
	}

	var win float64
	switch diff := res.Up - res.Down; {
	case diff > tieEpsilon:
		res.Direction, win = model.DirUp, res.Up
	case diff < -tieEpsilon:
		res.Direction, win = model.DirDown, res.Down
	default:
		res.NoSignal = model.NoSignalTie
		return res
	}
	total := res.Up + res.Down

	for i, f := range factors {
		if f.Direction == res.Direction && contrib[i] > 0 {
			res.Supporting = append(res.Supporting, f.Name)
		}
	}

	cov := 1.0
	if s.cfg.CoverageNorm > 0 {
		cov = math.Min(win/s.cfg.CoverageNorm, 1)
	}
	conf := s.cfg.BaseConfidence + (s.cfg.AgreementBonus*(2*win/total-1)+s.cfg.CoverageBonus)*cov
	if aligned {
		conf += s.cfg.AlignmentBonus
	}
	res.Confidence = math.Max(0, math.Min(100, conf))
	return res
}

func clampUnit(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
