package model

import (
	"fmt"
	"time"
)

// Direction 是预测方向
type Direction string

const (
	DirUp   Direction = "up"
	DirDown Direction = "down"
	DirNone Direction = "none"
)

func (d Direction) String() string {
	return string(d)
}

// Opposite 返回相反方向，DirNone 的相反方向仍是 DirNone
func (d Direction) Opposite() Direction {
	switch d {
	case DirUp:
		return DirDown
	case DirDown:
		return DirUp
	default:
		return DirNone
	}
}

// NoSignalReason 说明为什么没有发布信号。没有信号是正常结果，不是错误。
type NoSignalReason string

const (
	NoSignalNone           NoSignalReason = ""
	NoSignalTie            NoSignalReason = "tie"
	NoSignalBelowThreshold NoSignalReason = "below_threshold"
)

// FactorCategory 决定因子权重
type FactorCategory string

const (
	CategoryStructureBias     FactorCategory = "structure_bias"
	CategoryStructureEvent    FactorCategory = "structure_event"
	CategoryOrderBlock        FactorCategory = "order_block"
	CategoryFairValueGap      FactorCategory = "fair_value_gap"
	CategoryLiquiditySweep    FactorCategory = "liquidity_sweep"
	CategorySupportResistance FactorCategory = "support_resistance"
	CategoryIndicator         FactorCategory = "indicator"
	CategoryVisualHint        FactorCategory = "visual_hint"
)

// Factor 是参与共振打分的一个独立信号
type Factor struct {
	Name      string         `json:"name" yaml:"name"`
	Category  FactorCategory `json:"category" yaml:"category"`
	Direction Direction      `json:"direction" yaml:"direction"`
	Strength  float64        `json:"strength" yaml:"strength"` // 0..1
	Detail    string         `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// ConfluenceResult 是共振打分的结果
type ConfluenceResult struct {
	Direction  Direction          `json:"direction" yaml:"direction"`
	Confidence float64            `json:"confidence" yaml:"confidence"` // 0..100
	Up         float64            `json:"up" yaml:"up"`
	Down       float64            `json:"down" yaml:"down"`
	Aligned    bool               `json:"aligned" yaml:"aligned"`
	Breakdown  map[string]float64 `json:"breakdown" yaml:"breakdown"` // 因子名 -> 加权贡献
	Supporting []string           `json:"supporting" yaml:"supporting"`
	Factors    []Factor           `json:"factors" yaml:"factors"`
	NoSignal   NoSignalReason     `json:"no_signal,omitempty" yaml:"no_signal,omitempty"`
}

// FactorContribution 是对外展示的因子摘要
type FactorContribution struct {
	Name      string    `json:"name" yaml:"name"`
	Weight    float64   `json:"weight" yaml:"weight"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// KeyLevel 是预测中引用的关键价位
type KeyLevel struct {
	Price float64 `json:"price" yaml:"price"`
	Kind  string  `json:"kind" yaml:"kind"`
}

// 图表质量
const (
	QualityGood       = "GOOD"
	QualityAcceptable = "ACCEPTABLE"
	QualityBlurry     = "BLURRY"
	QualityTooSmall   = "TOO_SMALL"
	QualityUnknown    = "UNKNOWN"
)

// VisualHint 是图片分析协作方提供的提示
type VisualHint struct {
	Direction  Direction `json:"direction" yaml:"direction"`
	Confidence float64   `json:"confidence" yaml:"confidence"` // 0..100
	Quality    string    `json:"quality" yaml:"quality"`
}

// Usable 低质量图片的提示按中性处理
func (h VisualHint) Usable() bool {
	return h.Quality == QualityGood || h.Quality == QualityAcceptable
}

// EntryPlan 是基于预测给出的入场建议
type EntryPlan struct {
	EntryPrice      float64 `json:"entry_price" yaml:"entry_price"`
	CurrentPrice    float64 `json:"current_price" yaml:"current_price"`
	DurationMinutes int     `json:"duration_minutes" yaml:"duration_minutes"`
	RiskLevel       string  `json:"risk_level" yaml:"risk_level"`
	Timing          string  `json:"timing" yaml:"timing"`
	DistancePct     float64 `json:"distance_pct" yaml:"distance_pct"`
}

// Prediction 是引擎对外的最终结果
type Prediction struct {
	ID           string               `json:"id,omitempty" yaml:"id,omitempty"`
	Symbol       string               `json:"symbol" yaml:"symbol"`
	Timeframe    string               `json:"timeframe" yaml:"timeframe"`
	Direction    Direction            `json:"direction" yaml:"direction"`
	Confidence   float64              `json:"confidence" yaml:"confidence"`
	Timestamp    time.Time            `json:"timestamp" yaml:"timestamp"`
	Price        float64              `json:"price" yaml:"price"`
	Factors      []FactorContribution `json:"factors" yaml:"factors"`
	KeyLevels    []KeyLevel           `json:"key_levels" yaml:"key_levels"`
	Confluence   *ConfluenceResult    `json:"confluence,omitempty" yaml:"confluence,omitempty"`
	VisualHint   *VisualHint          `json:"visual_hint,omitempty" yaml:"visual_hint,omitempty"`
	HTFDirection Direction            `json:"htf_direction" yaml:"htf_direction"`
	LTFDirection Direction            `json:"ltf_direction" yaml:"ltf_direction"`
	Overridden   bool                 `json:"overridden" yaml:"overridden"`
	NoSignal     NoSignalReason       `json:"no_signal,omitempty" yaml:"no_signal,omitempty"`
	Entry        *EntryPlan           `json:"entry,omitempty" yaml:"entry,omitempty"`
}

// HasSignal 没有信号时 Direction 为 DirNone
func (p *Prediction) HasSignal() bool {
	return p != nil && p.NoSignal == NoSignalNone && p.Direction != DirNone
}

func (p Prediction) String() string {
	if p.NoSignal != NoSignalNone {
		return fmt.Sprintf("PREDICTION [%s %s] NO SIGNAL (%s) | Confidence: %.1f", p.Symbol, p.Timeframe, p.NoSignal, p.Confidence)
	}
	return fmt.Sprintf("PREDICTION [%s %s] %s @ %.5f | Confidence: %.1f | HTF: %s | LTF: %s | Override: %t",
		p.Symbol, p.Timeframe, p.Direction, p.Price, p.Confidence, p.HTFDirection, p.LTFDirection, p.Overridden)
}

// Resolution 记录一次预测的结算结果
type Resolution struct {
	PredictionID string    `json:"prediction_id"`
	ActualPrice  float64   `json:"actual_price"`
	Correct      bool      `json:"correct"`
	ResolvedAt   time.Time `json:"resolved_at"`
}

// Accuracy 是某个品种在某个周期上的命中率统计
type Accuracy struct {
	Symbol    string  `json:"symbol" db:"symbol"`
	Timeframe string  `json:"timeframe" db:"timeframe"`
	Total     int     `json:"total" db:"total"`
	Correct   int     `json:"correct" db:"correct"`
	Percent   float64 `json:"percent" db:"percent"`
}
