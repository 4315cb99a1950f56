package smc

import (
	"fmt"
	"time"

	"smc-predictor/internal/model"
)

// SwingKind 摆动点类型
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint 是一个局部极值
type SwingPoint struct {
	Index int       `json:"index" yaml:"index"`
	Time  time.Time `json:"time" yaml:"time"`
	Price float64   `json:"price" yaml:"price"`
	Kind  SwingKind `json:"kind" yaml:"kind"`
}

// DetectSwings 找出所有摆动高点和低点，按索引从旧到新排列。
// 第 i 根 K 线的 High 严格大于左右各 k 根 K 线的 High 时为摆动高点，低点对称。
// 距离序列两端不足 k 根的 K 线不参与判断。同一根 K 线同时是高点和低点时先输出高点。
func DetectSwings(bars []model.Bar, k int) ([]SwingPoint, error) {
	if k < 1 {
		return nil, fmt.Errorf("smc: swing window must be >= 1, got %d", k)
	}
	if need := 2*k + 1; len(bars) < need {
		return nil, &InsufficientDataError{Component: "swing", Need: need, Have: len(bars)}
	}

	var swings []SwingPoint
	for i := k; i < len(bars)-k; i++ {
		isHigh, isLow := true, true
		for j := i - k; j <= i+k; j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				isHigh = false
			}
			if bars[j].Low <= bars[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			swings = append(swings, SwingPoint{Index: i, Time: bars[i].Time, Price: bars[i].High, Kind: SwingHigh})
		}
		if isLow {
			swings = append(swings, SwingPoint{Index: i, Time: bars[i].Time, Price: bars[i].Low, Kind: SwingLow})
		}
	}
	return swings, nil
}
