package strategy

import (
	"smc-predictor/internal/model"
	"smc-predictor/internal/service"
	"smc-predictor/pkg/smc"
	"smc-predictor/pkg/ta"
)

// HintMode 定义图片分析提示如何参与打分
type HintMode string

const (
	HintInclude HintMode = "include" // 作为普通因子参与
	HintNeutral HintMode = "neutral" // 记录但按中性处理
	HintOmit    HintMode = "omit"    // 完全忽略
)

// Weights 是各类因子的权重，指标类权重按单个指标计算
type Weights map[model.FactorCategory]float64

// DefaultWeights 返回默认权重
func DefaultWeights() Weights {
	return Weights{
		model.CategoryStructureBias:     0.30,
		model.CategoryStructureEvent:    0.20,
		model.CategoryOrderBlock:        0.12,
		model.CategoryLiquiditySweep:    0.12,
		model.CategoryFairValueGap:      0.10,
		model.CategorySupportResistance: 0.08,
		model.CategoryVisualHint:        0.05,
		model.CategoryIndicator:         0.02,
	}
}

// Config 是引擎的全部参数。构建后只读，可以被多个 goroutine 共享。
type Config struct {
	SMC        smc.Config
	Indicators []ta.Indicator
	Weights    Weights

	BaseConfidence float64
	AgreementBonus float64
	CoverageBonus  float64
	CoverageNorm   float64 // 获胜方支持度达到该值时覆盖奖励封顶
	AlignmentBonus float64

	PublishThreshold  float64 // 低于该置信度不发布信号
	OverrideThreshold float64 // LTF 反向且置信度超过该值时推翻 HTF

	ProximityPct   float64 // 订单块/缺口/支撑阻力的有效距离 (%)
	SweepDecayBars int     // 扫单因子在多少根 K 线内衰减到 0
	HintMode       HintMode
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromService(service.DefaultEngineConfig())
}

// ConfigFromService 把配置文件中的引擎参数转换为策略配置
func ConfigFromService(ec service.EngineConfig) Config {
	weights := DefaultWeights()
	for name, w := range ec.Weights {
		weights[model.FactorCategory(name)] = w
	}
	return Config{
		SMC: smc.Config{
			SwingWindow:        ec.SwingWindow,
			ImpulseMultiplier:  ec.ImpulseMultiplier,
			RangeLookback:      ec.RangeLookback,
			OriginLookback:     ec.OriginLookback,
			LiquidityTolerance: ec.LiquidityTolerance,
			SweepMargin:        ec.SweepMargin,
			SweepWindow:        ec.SweepWindow,
			LevelTolerance:     ec.LevelTolerance,
			RecencyHalfLife:    ec.RecencyHalfLife,
		},
		Indicators:        ta.DefaultIndicators(ec.EnableDivergence),
		Weights:           weights,
		BaseConfidence:    ec.BaseConfidence,
		AgreementBonus:    ec.AgreementBonus,
		CoverageBonus:     ec.CoverageBonus,
		CoverageNorm:      ec.CoverageNorm,
		AlignmentBonus:    ec.AlignmentBonus,
		PublishThreshold:  ec.PublishThresh,
		OverrideThreshold: ec.OverrideThresh,
		ProximityPct:      ec.ProximityPct,
		SweepDecayBars:    ec.SweepDecayBars,
		HintMode:          HintMode(ec.VisualHintMode),
	}
}

// Request 是一次分析请求：HTF 判断方向，LTF 确认
type Request struct {
	Symbol string
	HTF    model.Series
	LTF    model.Series
	Hint   *model.VisualHint
}

// TimeframeResult 保存单个周期的全部中间结果
type TimeframeResult struct {
	Timeframe   string                 `json:"timeframe" yaml:"timeframe"`
	Swings      []smc.SwingPoint       `json:"swings" yaml:"swings"`
	Structure   smc.Structure          `json:"structure" yaml:"structure"`
	OrderBlocks []smc.OrderBlock       `json:"order_blocks" yaml:"order_blocks"`
	Gaps        []smc.FairValueGap     `json:"gaps" yaml:"gaps"`
	Liquidity   smc.Liquidity          `json:"liquidity" yaml:"liquidity"`
	Levels      smc.Levels             `json:"levels" yaml:"levels"`
	Indicators  ta.Snapshot            `json:"indicators" yaml:"indicators"`
	Factors     []model.Factor         `json:"factors" yaml:"factors"`
	Confluence  model.ConfluenceResult `json:"confluence" yaml:"confluence"`
	Skipped     []string               `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Price       float64                `json:"price" yaml:"price"`
}

// Decision 是多周期合并的结果
type Decision struct {
	Result     model.ConfluenceResult
	Overridden bool
}
