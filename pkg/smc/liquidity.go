package smc

import (
	"math"
	"sort"

	"smc-predictor/internal/model"
)

// LiquidityPool 是一组价格相近的摆动高点或低点 (等高/等低)
type LiquidityPool struct {
	Level   float64   `json:"level" yaml:"level"`
	Side    SwingKind `json:"side" yaml:"side"`
	Members []int     `json:"members" yaml:"members"` // 摆动点所在 K 线索引
	Swept   bool      `json:"swept" yaml:"swept"`
	SweptAt int       `json:"swept_at,omitempty" yaml:"swept_at,omitempty"`
	// Consumed 表示价格已越过该价位但不构成扫单
	Consumed bool `json:"consumed" yaml:"consumed"`

	sum float64
}

// Eligible 至少两个摆动点才构成流动性池
func (p LiquidityPool) Eligible() bool {
	return len(p.Members) >= 2
}

// Sweep 是一次扫流动性：短暂刺破池子价位后收回
type Sweep struct {
	Pool         int       `json:"pool" yaml:"pool"` // Pools 中的下标
	Side         SwingKind `json:"side" yaml:"side"`
	Level        float64   `json:"level" yaml:"level"`
	PierceIndex  int       `json:"pierce_index" yaml:"pierce_index"`
	ReclaimIndex int       `json:"reclaim_index" yaml:"reclaim_index"`
	Depth        float64   `json:"depth" yaml:"depth"` // 相对刺破深度
	Direction    Bias      `json:"direction" yaml:"direction"`
}

// Liquidity 是流动性分析的输出
type Liquidity struct {
	Pools  []LiquidityPool `json:"pools" yaml:"pools"`
	Sweeps []Sweep         `json:"sweeps" yaml:"sweeps"`
}

// LastSweep 返回最近一次扫单
func (l Liquidity) LastSweep() (Sweep, bool) {
	if len(l.Sweeps) == 0 {
		return Sweep{}, false
	}
	return l.Sweeps[len(l.Sweeps)-1], true
}

// AnalyzeLiquidity 按索引顺序聚类摆动点，并检测扫单。
// 高点池被刺破后在 SweepWindow 根内收盘回到价位下方，视为空头扫单；低点池对称。
func AnalyzeLiquidity(bars []model.Bar, swings []SwingPoint, cfg Config) (Liquidity, error) {
	if err := cfg.validate(); err != nil {
		return Liquidity{}, err
	}

	var pools []LiquidityPool
	for _, sw := range swings {
		joined := false
		for p := range pools {
			pool := &pools[p]
			if pool.Side != sw.Kind {
				continue
			}
			if math.Abs(sw.Price-pool.Level)/pool.Level <= cfg.LiquidityTolerance {
				pool.Members = append(pool.Members, sw.Index)
				pool.sum += sw.Price
				pool.Level = pool.sum / float64(len(pool.Members))
				joined = true
				break
			}
		}
		if !joined {
			pools = append(pools, LiquidityPool{Level: sw.Price, Side: sw.Kind, Members: []int{sw.Index}, sum: sw.Price})
		}
	}

	var sweeps []Sweep
	for p := range pools {
		if !pools[p].Eligible() {
			continue
		}
		if sw, ok := detectSweep(bars, &pools[p], cfg); ok {
			sw.Pool = p
			sweeps = append(sweeps, sw)
		}
	}
	sortSweeps(sweeps)

	return Liquidity{Pools: pools, Sweeps: sweeps}, nil
}

func detectSweep(bars []model.Bar, pool *LiquidityPool, cfg Config) (Sweep, bool) {
	last := pool.Members[len(pool.Members)-1]
	for m := last + 1; m < len(bars); m++ {
		var depth float64
		switch pool.Side {
		case SwingHigh:
			if bars[m].High <= pool.Level {
				continue
			}
			depth = (bars[m].High - pool.Level) / pool.Level
		case SwingLow:
			if bars[m].Low >= pool.Level {
				continue
			}
			depth = (pool.Level - bars[m].Low) / pool.Level
		}

		// 第一次刺破决定池子的命运
		if depth > cfg.SweepMargin {
			pool.Consumed = true
			return Sweep{}, false
		}
		for j := m; j < m+cfg.SweepWindow && j < len(bars); j++ {
			reclaimed := (pool.Side == SwingHigh && bars[j].Close < pool.Level) ||
				(pool.Side == SwingLow && bars[j].Close > pool.Level)
			if !reclaimed {
				continue
			}
			pool.Swept = true
			pool.SweptAt = j
			dir := Bullish
			if pool.Side == SwingHigh {
				dir = Bearish
			}
			return Sweep{
				Side:         pool.Side,
				Level:        pool.Level,
				PierceIndex:  m,
				ReclaimIndex: j,
				Depth:        depth,
				Direction:    dir,
			}, true
		}
		pool.Consumed = true
		return Sweep{}, false
	}
	return Sweep{}, false
}

// sortSweeps 按收回 K 线排序，同一根时按池子下标
func sortSweeps(sweeps []Sweep) {
	sort.SliceStable(sweeps, func(a, b int) bool {
		if sweeps[a].ReclaimIndex != sweeps[b].ReclaimIndex {
			return sweeps[a].ReclaimIndex < sweeps[b].ReclaimIndex
		}
		return sweeps[a].Pool < sweeps[b].Pool
	})
}
