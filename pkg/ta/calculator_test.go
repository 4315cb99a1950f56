package ta

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-predictor/internal/model"
	"smc-predictor/pkg/smc"
)

func barsFromCloses(closes []float64) []model.Bar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = model.Bar{
			Time:  start.Add(time.Duration(i) * time.Hour),
			Open:  open,
			High:  math.Max(open, c) + 0.0003,
			Low:   math.Min(open, c) - 0.0003,
			Close: c,
		}
	}
	return bars
}

// flatBars: 开高低收完全相同
func flatBars(n int) []model.Bar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		bars[i] = model.Bar{Time: start.Add(time.Duration(i) * time.Hour), Open: 1.1, High: 1.1, Low: 1.1, Close: 1.1}
	}
	return bars
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.1 + 0.001*float64(i)
	}
	return out
}

// divergenceCloses: 持续上涨后回落再反弹，价格高于 4 根前但 RSI 更低
func divergenceCloses() []float64 {
	c := rising(30)
	x := c[len(c)-1]
	for _, d := range []float64{-0.002, -0.002, 0.0015, 0.0015, 0.0015} {
		x += d
		c = append(c, x)
	}
	return c
}

func TestIndicatorInsufficientData(t *testing.T) {
	for _, ind := range DefaultIndicators(true) {
		_, err := ind.Vote(barsFromCloses(rising(ind.MinBars() - 1)))
		var insufficient *smc.InsufficientDataError
		require.ErrorAs(t, err, &insufficient, ind.Name())
		assert.Equal(t, ind.MinBars(), insufficient.Need)
	}
}

func TestIndicatorUnknownKind(t *testing.T) {
	_, err := Indicator{Kind: "vwap"}.Vote(barsFromCloses(rising(60)))
	assert.Error(t, err)
}

func TestRSIOverboughtOnSteadyRise(t *testing.T) {
	v, err := RSI(14).Vote(barsFromCloses(rising(40)))
	require.NoError(t, err)
	assert.InDelta(t, 100, v.Values["rsi"], 1e-6)
	assert.Equal(t, model.DirDown, v.Direction)
	assert.Equal(t, 1.0, v.Strength)
}

func TestEMACrossTrendUp(t *testing.T) {
	v, err := EMACross(21, 50).Vote(barsFromCloses(rising(80)))
	require.NoError(t, err)
	assert.Equal(t, model.DirUp, v.Direction)
	assert.Greater(t, v.Values["fast"], v.Values["slow"])
	assert.Greater(t, v.Strength, 0.0)
}

func TestEMACrossTrendDown(t *testing.T) {
	closes := rising(80)
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}
	v, err := EMACross(21, 50).Vote(barsFromCloses(closes))
	require.NoError(t, err)
	assert.Equal(t, model.DirDown, v.Direction)
}

func TestStochasticOverbought(t *testing.T) {
	v, err := Stochastic(14, 3, 3).Vote(barsFromCloses(rising(40)))
	require.NoError(t, err)
	assert.Greater(t, v.Values["k"], 80.0)
	assert.Equal(t, model.DirDown, v.Direction)
}

func TestRSIDivergence(t *testing.T) {
	v, err := RSIDivergence(14, 4).Vote(barsFromCloses(divergenceCloses()))
	require.NoError(t, err)
	assert.Equal(t, model.DirDown, v.Direction)
	assert.Less(t, v.Values["rsi"], v.Values["rsi_prev"])

	mirrored := divergenceCloses()
	for i := range mirrored {
		mirrored[i] = 2.2 - mirrored[i]
	}
	v, err = RSIDivergence(14, 4).Vote(barsFromCloses(mirrored))
	require.NoError(t, err)
	assert.Equal(t, model.DirUp, v.Direction)
}

func TestBankComputeSkipsShortIndicators(t *testing.T) {
	bank := NewBank(nil)
	snap := bank.Compute(barsFromCloses(rising(30)))

	assert.ElementsMatch(t, []string{"ema_21_50", "macd_12_26_9"}, snap.Skipped)
	require.Len(t, snap.Votes, 4)
	assert.Equal(t, KindRSI, snap.Votes[0].Kind)
	assert.Equal(t, KindBollinger, snap.Votes[1].Kind)
	assert.Equal(t, KindStochastic, snap.Votes[2].Kind)
	assert.Equal(t, KindRSIDivergence, snap.Votes[3].Kind)
	assert.Contains(t, snap.Values, "rsi_14.rsi")

	for _, v := range snap.Votes {
		assert.GreaterOrEqual(t, v.Strength, 0.0)
		assert.LessOrEqual(t, v.Strength, 1.0)
	}
}

func TestBankComputeFullWindow(t *testing.T) {
	snap := NewBank(nil).Compute(barsFromCloses(rising(120)))
	assert.Empty(t, snap.Skipped)
	assert.Len(t, snap.Votes, len(DefaultIndicators(true)))
	assert.Contains(t, snap.Values, "macd_12_26_9.hist")
}

func TestOscillatorsNeutralOnFlatWindow(t *testing.T) {
	tests := []struct {
		name string
		ind  Indicator
	}{
		{"rsi", RSI(14)},
		{"stochastic", Stochastic(14, 3, 3)},
		{"bollinger", Bollinger(20, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.ind.Vote(flatBars(60))
			require.NoError(t, err)
			assert.Equal(t, model.DirNone, v.Direction)
			assert.Equal(t, 0.0, v.Strength)
		})
	}
}

func TestRSIFlatTailAfterMoveIsNeutral(t *testing.T) {
	closes := rising(30)
	for i := 0; i < 15; i++ {
		closes = append(closes, closes[len(closes)-1])
	}
	v, err := RSI(14).Vote(barsFromCloses(closes))
	require.NoError(t, err)
	assert.Equal(t, model.DirNone, v.Direction)
}
