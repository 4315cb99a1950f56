package smc

import "fmt"

// Config 是所有 SMC 检测器的阈值，显式传给每个检测函数
type Config struct {
	SwingWindow int // 摆动点左右各需要的 K 线数量 k

	// 订单块
	ImpulseMultiplier float64 // 冲击 K 线实体 >= 倍数 * 平均波幅
	RangeLookback     int     // 平均波幅的回看长度
	OriginLookback    int     // 向前寻找反向 K 线的最大距离

	// 流动性
	LiquidityTolerance float64 // 等高/等低的相对容差
	SweepMargin        float64 // 刺破深度上限 (相对价格)
	SweepWindow        int     // 刺破后需要在多少根 K 线内收回

	// 支撑阻力
	LevelTolerance  float64
	RecencyHalfLife float64 // 触及权重的半衰期 (K 线数)
}

// DefaultConfig 返回默认阈值
func DefaultConfig() Config {
	return Config{
		SwingWindow:        5,
		ImpulseMultiplier:  2.0,
		RangeLookback:      10,
		OriginLookback:     10,
		LiquidityTolerance: 0.0005,
		SweepMargin:        0.002,
		SweepWindow:        3,
		LevelTolerance:     0.001,
		RecencyHalfLife:    50,
	}
}

func (c Config) validate() error {
	if c.SwingWindow < 1 {
		return fmt.Errorf("smc: swing window must be >= 1, got %d", c.SwingWindow)
	}
	if c.ImpulseMultiplier <= 0 || c.RangeLookback < 1 || c.OriginLookback < 1 {
		return fmt.Errorf("smc: invalid order block settings")
	}
	if c.SweepWindow < 1 || c.LiquidityTolerance < 0 || c.SweepMargin < 0 {
		return fmt.Errorf("smc: invalid liquidity settings")
	}
	if c.LevelTolerance < 0 || c.RecencyHalfLife <= 0 {
		return fmt.Errorf("smc: invalid level settings")
	}
	return nil
}
