package smc

import (
	"math"

	"smc-predictor/internal/model"
)

// Validate 检查 K 线序列：时间严格递增、价格有限、High >= Low 且包含开收盘价。
func Validate(bars []model.Bar) error {
	for i, b := range bars {
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &DataQualityError{Index: i, Reason: "non-finite price or volume"}
			}
		}
		if b.High < b.Low {
			return &DataQualityError{Index: i, Reason: "high below low"}
		}
		if b.Open > b.High || b.Open < b.Low || b.Close > b.High || b.Close < b.Low {
			return &DataQualityError{Index: i, Reason: "open/close outside high-low range"}
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return &DataQualityError{Index: i, Reason: "timestamp not strictly increasing"}
		}
	}
	return nil
}
