package smc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-predictor/internal/model"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(reversalSeries()))

	tests := []struct {
		name   string
		mutate func(bars []model.Bar)
		index  int
	}{
		{"duplicate timestamp", func(b []model.Bar) { b[4].Time = b[3].Time }, 4},
		{"nan close", func(b []model.Bar) { b[7].Close = math.NaN() }, 7},
		{"inf volume", func(b []model.Bar) { b[2].Volume = math.Inf(1) }, 2},
		{"high below low", func(b []model.Bar) { b[9].High, b[9].Low = b[9].Low, b[9].High }, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := reversalSeries()
			tt.mutate(bars)
			err := Validate(bars)
			var dq *DataQualityError
			require.ErrorAs(t, err, &dq)
			assert.Equal(t, tt.index, dq.Index)
		})
	}
}
