package smc

import (
	"math"
	"sort"

	"smc-predictor/internal/model"
)

// Level 是由多个摆动点聚合而成的支撑/阻力价位
type Level struct {
	Price       float64 `json:"price" yaml:"price"`
	Touches     int     `json:"touches" yaml:"touches"`
	LastTouched int     `json:"last_touched" yaml:"last_touched"`
	Strength    float64 `json:"strength" yaml:"strength"`

	sum float64
}

// Levels 按价格升序排列
type Levels struct {
	Items []Level `json:"items" yaml:"items"`
}

// Proximity 是当前价格与最近支撑/阻力的关系
type Proximity struct {
	Support           Level
	HasSupport        bool
	SupportDistPct    float64 // 价格到支撑的距离 (%)
	Resistance        Level
	HasResistance     bool
	ResistanceDistPct float64
}

// MapLevels 把所有摆动点按 LevelTolerance 聚合为价位。
// 每次触及的权重为 2^(-age/RecencyHalfLife)，age 为距离最后一根 K 线的根数，越近权重越大；
// 权重只加不减，所以触及次数增加时强度不会下降。
func MapLevels(bars []model.Bar, swings []SwingPoint, cfg Config) (Levels, error) {
	if err := cfg.validate(); err != nil {
		return Levels{}, err
	}
	if len(bars) == 0 {
		return Levels{}, &InsufficientDataError{Component: "levels", Need: 1, Have: 0}
	}

	lastIndex := len(bars) - 1
	var items []Level
	for _, sw := range swings {
		weight := math.Exp2(-float64(lastIndex-sw.Index) / cfg.RecencyHalfLife)

		idx := -1
		for i := range items {
			if math.Abs(sw.Price-items[i].Price)/items[i].Price <= cfg.LevelTolerance {
				idx = i
				break
			}
		}
		if idx < 0 {
			items = append(items, Level{})
			idx = len(items) - 1
		}

		lvl := &items[idx]
		lvl.Touches++
		lvl.sum += sw.Price
		lvl.Price = lvl.sum / float64(lvl.Touches)
		lvl.Strength += weight
		if sw.Index > lvl.LastTouched {
			lvl.LastTouched = sw.Index
		}
	}

	sort.SliceStable(items, func(a, b int) bool { return items[a].Price < items[b].Price })
	return Levels{Items: items}, nil
}

// Proximity 找出价格下方最近的支撑和上方最近的阻力，不修改 Levels
func (l Levels) Proximity(price float64) Proximity {
	var p Proximity
	for _, lvl := range l.Items {
		if lvl.Price <= price {
			// 升序遍历，最后一个满足条件的即最近支撑
			p.Support, p.HasSupport = lvl, true
			continue
		}
		if !p.HasResistance {
			p.Resistance, p.HasResistance = lvl, true
		}
	}
	if price > 0 {
		if p.HasSupport {
			p.SupportDistPct = (price - p.Support.Price) / price * 100
		}
		if p.HasResistance {
			p.ResistanceDistPct = (p.Resistance.Price - price) / price * 100
		}
	}
	return p
}
