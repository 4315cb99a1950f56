package strategy

import (
	"fmt"

	"go.uber.org/zap"

	"smc-predictor/internal/model"
	"smc-predictor/pkg/ta"
)

// Engine 负责多周期分析并生成最终预测。
// 只持有只读配置和日志，Analyze 可以被并发调用。
type Engine struct {
	cfg    Config
	scorer Scorer
	bank   *ta.Bank
	logger *zap.SugaredLogger
}

// NewEngine 初始化信号引擎
func NewEngine(cfg Config, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		cfg:    cfg,
		scorer: NewScorer(cfg),
		bank:   ta.NewBank(logger, cfg.Indicators...),
		logger: logger,
	}
}

// Config 返回引擎配置的副本
func (e *Engine) Config() Config {
	return e.cfg
}

// Analyze 分别分析 HTF 和 LTF，然后合并为一个预测。
// 没有信号时返回的预测 NoSignal 非空，error 只用于数据问题。
func (e *Engine) Analyze(req Request) (*model.Prediction, error) {
	htf, err := e.analyzeTimeframe(req.HTF, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze %s %s: %w", req.Symbol, req.HTF.Timeframe, err)
	}
	ltf, err := e.analyzeTimeframe(req.LTF, req.Hint)
	if err != nil {
		return nil, fmt.Errorf("analyze %s %s: %w", req.Symbol, req.LTF.Timeframe, err)
	}

	d := Decide(htf.Confluence, ltf.Confluence, e.scorer)
	pred := e.buildPrediction(req, htf, ltf, d)

	if pred.HasSignal() {
		e.logger.Infof("%s", pred)
	} else {
		e.logger.Debugf("%s", pred)
	}
	return pred, nil
}

// AnalyzeTimeframe 只分析单个周期，供调试和报告使用
func (e *Engine) AnalyzeTimeframe(series model.Series) (*TimeframeResult, error) {
	return e.analyzeTimeframe(series, nil)
}

// Decide 合并 HTF 方向和 LTF 确认：
//   - HTF 无方向时由 LTF 决定；
//   - LTF 反向且置信度超过 OverrideThreshold 时 LTF 胜出；
//   - 否则以 HTF 为准，LTF 同向时合并两组因子并加上对齐奖励重新打分。
//
// 最终置信度低于 PublishThreshold 时不发布信号。
func Decide(htf, ltf model.ConfluenceResult, s Scorer) Decision {
	var d Decision
	switch {
	case htf.Direction == model.DirNone:
		d.Result = ltf
	case ltf.Direction != model.DirNone && ltf.Direction != htf.Direction && ltf.Confidence > s.cfg.OverrideThreshold:
		d.Result = ltf
		d.Overridden = true
	case ltf.Direction == htf.Direction:
		union := make([]model.Factor, 0, len(htf.Factors)+len(ltf.Factors))
		union = append(union, htf.Factors...)
		union = append(union, ltf.Factors...)
		d.Result = s.Score(union, true)
	default:
		d.Result = htf
	}

	if d.Result.Direction != model.DirNone && d.Result.Confidence < s.cfg.PublishThreshold {
		d.Result.NoSignal = model.NoSignalBelowThreshold
	}
	return d
}

func (e *Engine) buildPrediction(req Request, htf, ltf *TimeframeResult, d Decision) *model.Prediction {
	last, _ := req.LTF.Last()
	result := d.Result

	pred := &model.Prediction{
		Symbol:       req.Symbol,
		Timeframe:    req.LTF.Timeframe,
		Direction:    result.Direction,
		Confidence:   result.Confidence,
		Timestamp:    last.Time,
		Price:        last.Close,
		KeyLevels:    keyLevels(ltf),
		Confluence:   &result,
		HTFDirection: htf.Confluence.Direction,
		LTFDirection: ltf.Confluence.Direction,
		Overridden:   d.Overridden,
		NoSignal:     result.NoSignal,
	}
	if pred.NoSignal != model.NoSignalNone {
		pred.Direction = model.DirNone
	}
	if req.Hint != nil && e.cfg.HintMode != HintOmit {
		hint := *req.Hint
		pred.VisualHint = &hint
	}

	for _, f := range result.Factors {
		pred.Factors = append(pred.Factors, model.FactorContribution{
			Name:      f.Name,
			Weight:    result.Breakdown[f.Name],
			Direction: f.Direction,
		})
	}

	if pred.HasSignal() {
		pred.Entry = PlanEntry(pred, ltf.Levels)
	}
	return pred
}

// keyLevels 汇总 LTF 上最近的支撑、阻力以及有效的订单块和缺口
func keyLevels(tr *TimeframeResult) []model.KeyLevel {
	var out []model.KeyLevel
	p := tr.Levels.Proximity(tr.Price)
	if p.HasSupport {
		out = append(out, model.KeyLevel{Price: p.Support.Price, Kind: "support"})
	}
	if p.HasResistance {
		out = append(out, model.KeyLevel{Price: p.Resistance.Price, Kind: "resistance"})
	}
	if ob, _, ok := nearestOrderBlock(tr.OrderBlocks, tr.Price); ok {
		out = append(out,
			model.KeyLevel{Price: ob.Top, Kind: string(ob.Direction) + "_order_block_top"},
			model.KeyLevel{Price: ob.Bottom, Kind: string(ob.Direction) + "_order_block_bottom"},
		)
	}
	if g, _, ok := nearestGap(tr.Gaps, tr.Price); ok {
		out = append(out, model.KeyLevel{Price: g.Mid(), Kind: string(g.Direction) + "_fvg"})
	}
	for _, pool := range tr.Liquidity.Pools {
		if pool.Eligible() && !pool.Swept && !pool.Consumed {
			out = append(out, model.KeyLevel{Price: pool.Level, Kind: "liquidity_" + string(pool.Side)})
		}
	}
	return out
}
