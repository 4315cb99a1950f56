package smc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSwingsInsufficientData(t *testing.T) {
	bars := reversalSeries()
	for _, k := range []int{2, 3, 5} {
		for n := 0; n < 2*k+1; n++ {
			_, err := DetectSwings(bars[:n], k)
			var insufficient *InsufficientDataError
			require.True(t, errors.As(err, &insufficient), "k=%d n=%d", k, n)
			assert.Equal(t, 2*k+1, insufficient.Need)
			assert.Equal(t, n, insufficient.Have)
		}
		_, err := DetectSwings(bars[:2*k+1], k)
		assert.NoError(t, err)
	}
}

func TestDetectSwingsThreeBarsWindowFive(t *testing.T) {
	_, err := DetectSwings(reversalSeries()[:3], 5)
	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "swing", insufficient.Component)
}

func TestDetectSwingsRejectsBadWindow(t *testing.T) {
	_, err := DetectSwings(reversalSeries(), 0)
	assert.Error(t, err)
}

func TestDetectSwingsZigzag(t *testing.T) {
	swings, err := DetectSwings(reversalSeries(), 2)
	require.NoError(t, err)

	type want struct {
		idx  int
		kind SwingKind
	}
	expected := []want{
		{5, SwingHigh}, {10, SwingLow}, {15, SwingHigh}, {20, SwingLow},
		{25, SwingHigh}, {30, SwingLow}, {35, SwingHigh},
	}
	require.Len(t, swings, len(expected))
	for i, w := range expected {
		assert.Equal(t, w.idx, swings[i].Index)
		assert.Equal(t, w.kind, swings[i].Kind)
	}
	assert.InDelta(t, 1.1255, swings[6].Price, 1e-9)
	assert.InDelta(t, 1.1145, swings[5].Price, 1e-9)
}

func TestDetectSwingsStrictComparison(t *testing.T) {
	// 第 2、3 根最高价相同，都不是摆动高点
	bars := []float64{1.0, 1.1, 1.2, 1.2, 1.1, 1.0}
	out := barsFromMids(bars)
	out[3].High = out[2].High
	swings, err := DetectSwings(out, 1)
	require.NoError(t, err)
	for _, s := range swings {
		assert.NotEqual(t, SwingHigh, s.Kind)
	}
}

func TestDetectSwingsOutsideBarEmitsHighFirst(t *testing.T) {
	bars := barsFromMids([]float64{1.10, 1.10, 1.10, 1.10, 1.10})
	for i := range bars {
		bars[i].High = 1.1010
		bars[i].Low = 1.0990
	}
	bars[2].High = 1.1050
	bars[2].Low = 1.0950

	swings, err := DetectSwings(bars, 2)
	require.NoError(t, err)
	require.Len(t, swings, 2)
	assert.Equal(t, SwingHigh, swings[0].Kind)
	assert.Equal(t, SwingLow, swings[1].Kind)
	assert.Equal(t, 2, swings[0].Index)
	assert.Equal(t, 2, swings[1].Index)
}
