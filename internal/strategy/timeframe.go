package strategy

import (
	"errors"
	"fmt"

	"smc-predictor/internal/model"
	"smc-predictor/pkg/smc"
)

// analyzeTimeframe 对单个周期运行全部检测器并打分。
// 数据质量问题和摆动点窗口不足是致命错误；订单块、缺口等子分析数据不足时只跳过该项。
func (e *Engine) analyzeTimeframe(series model.Series, hint *model.VisualHint) (*TimeframeResult, error) {
	bars := series.Bars
	if err := smc.Validate(bars); err != nil {
		return nil, err
	}

	k := e.cfg.SMC.SwingWindow
	swings, err := smc.DetectSwings(bars, k)
	if err != nil {
		return nil, err
	}
	structure, err := smc.AnalyzeStructure(bars, swings, k)
	if err != nil {
		return nil, err
	}

	last, _ := series.Last()
	tr := &TimeframeResult{
		Timeframe: series.Timeframe,
		Swings:    swings,
		Structure: structure,
		Price:     last.Close,
	}

	if tr.OrderBlocks, err = smc.DetectOrderBlocks(bars, e.cfg.SMC); err != nil {
		if err = e.skip(tr, "order_block", err); err != nil {
			return nil, err
		}
	}
	if tr.Gaps, err = smc.DetectFairValueGaps(bars); err != nil {
		if err = e.skip(tr, "fair_value_gap", err); err != nil {
			return nil, err
		}
	}
	if tr.Liquidity, err = smc.AnalyzeLiquidity(bars, swings, e.cfg.SMC); err != nil {
		return nil, err
	}
	if tr.Levels, err = smc.MapLevels(bars, swings, e.cfg.SMC); err != nil {
		return nil, err
	}

	tr.Indicators = e.bank.Compute(bars)
	tr.Skipped = append(tr.Skipped, tr.Indicators.Skipped...)

	tr.Factors = buildFactors(tr, len(bars), e.cfg)
	if f, ok := hintFactor(hint, e.cfg.HintMode); ok {
		tr.Factors = append(tr.Factors, f)
	}
	tr.Confluence = e.scorer.Score(tr.Factors, false)

	e.logger.Debugf("[%s %s] bias=%s events=%d blocks=%d gaps=%d sweeps=%d -> %s %.1f",
		series.Symbol, series.Timeframe, structure.Bias, len(structure.Events), len(tr.OrderBlocks),
		len(tr.Gaps), len(tr.Liquidity.Sweeps), tr.Confluence.Direction, tr.Confluence.Confidence)
	return tr, nil
}

// skip 记录数据不足的子分析，其他错误原样返回
func (e *Engine) skip(tr *TimeframeResult, component string, err error) error {
	var insufficient *smc.InsufficientDataError
	if !errors.As(err, &insufficient) {
		return fmt.Errorf("%s: %w", component, err)
	}
	e.logger.Debugf("Skipping %s on %s: %v", component, tr.Timeframe, err)
	tr.Skipped = append(tr.Skipped, component)
	return nil
}
