package ta

import (
	"errors"

	"go.uber.org/zap"

	"smc-predictor/internal/model"
	"smc-predictor/pkg/smc"
)

// Snapshot 存储一次计算得到的所有指标值和投票
type Snapshot struct {
	Values  map[string]float64 `json:"values" yaml:"values"` // Key: "rsi_14.rsi"
	Votes   []Vote             `json:"votes" yaml:"votes"`
	Skipped []string           `json:"skipped,omitempty" yaml:"skipped,omitempty"` // 数据不足而跳过的指标
}

// Bank 负责管理指标集合并对一段 K 线统一计算
type Bank struct {
	Indicators []Indicator
	Logger     *zap.SugaredLogger
}

// DefaultIndicators 返回默认指标集合
func DefaultIndicators(withDivergence bool) []Indicator {
	inds := []Indicator{
		RSI(14),
		EMACross(21, 50),
		MACD(12, 26, 9),
		Bollinger(20, 2),
		Stochastic(14, 3, 3),
	}
	if withDivergence {
		inds = append(inds, RSIDivergence(14, 4))
	}
	return inds
}

// NewBank 初始化指标库，indicators 为空时使用默认集合
func NewBank(logger *zap.SugaredLogger, indicators ...Indicator) *Bank {
	if len(indicators) == 0 {
		indicators = DefaultIndicators(true)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Bank{Indicators: indicators, Logger: logger}
}

// Compute 集中计算所有指标。单个指标数据不足只会被跳过，不影响其他指标。
// 返回的投票顺序与 Indicators 顺序一致。
func (b *Bank) Compute(bars []model.Bar) Snapshot {
	snap := Snapshot{Values: make(map[string]float64)}

	for _, ind := range b.Indicators {
		vote, err := ind.Vote(bars)
		if err != nil {
			var insufficient *smc.InsufficientDataError
			if errors.As(err, &insufficient) {
				b.Logger.Debugw("Not enough history for indicator", "indicator", ind.Name(), "need", insufficient.Need, "have", insufficient.Have)
			} else {
				b.Logger.Warnw("Indicator calculation failed", "indicator", ind.Name(), "error", err)
			}
			snap.Skipped = append(snap.Skipped, ind.Name())
			continue
		}

		for k, v := range vote.Values {
			snap.Values[vote.Name+"."+k] = v
		}
		snap.Votes = append(snap.Votes, vote)
	}
	return snap
}
