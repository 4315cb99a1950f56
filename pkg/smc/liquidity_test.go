package smc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-predictor/internal/model"
)

func flatBars(n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		bars[i] = bar(i, 1.1025, 1.1040, 1.1020, 1.1030)
	}
	return bars
}

func equalHighs() []SwingPoint {
	return []SwingPoint{
		{Index: 2, Price: 1.10500, Kind: SwingHigh},
		{Index: 5, Price: 1.10505, Kind: SwingHigh},
	}
}

func TestAnalyzeLiquiditySweepOfEqualHighs(t *testing.T) {
	bars := flatBars(10)
	bars[7] = bar(7, 1.1030, 1.1056, 1.1025, 1.1045)

	liq, err := AnalyzeLiquidity(bars, equalHighs(), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, liq.Pools, 1)
	assert.Equal(t, []int{2, 5}, liq.Pools[0].Members)
	assert.InDelta(t, 1.105025, liq.Pools[0].Level, 1e-9)
	assert.True(t, liq.Pools[0].Swept)

	sw, ok := liq.LastSweep()
	require.True(t, ok)
	assert.Equal(t, Bearish, sw.Direction)
	assert.Equal(t, 7, sw.PierceIndex)
	assert.Equal(t, 7, sw.ReclaimIndex)
	assert.LessOrEqual(t, sw.Depth, DefaultConfig().SweepMargin)
}

func TestAnalyzeLiquidityReclaimWithinWindow(t *testing.T) {
	bars := flatBars(12)
	bars[7] = bar(7, 1.1030, 1.1058, 1.1025, 1.1055) // 收在价位上方
	bars[8] = bar(8, 1.1055, 1.1058, 1.1040, 1.1042) // 收回

	liq, err := AnalyzeLiquidity(bars, equalHighs(), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, liq.Sweeps, 1)
	assert.Equal(t, 7, liq.Sweeps[0].PierceIndex)
	assert.Equal(t, 8, liq.Sweeps[0].ReclaimIndex)
}

func TestAnalyzeLiquidityDeepBreakConsumesPool(t *testing.T) {
	bars := flatBars(10)
	bars[7] = bar(7, 1.1030, 1.1120, 1.1025, 1.1040)

	liq, err := AnalyzeLiquidity(bars, equalHighs(), DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, liq.Sweeps)
	assert.False(t, liq.Pools[0].Swept)
	assert.True(t, liq.Pools[0].Consumed)
}

func TestAnalyzeLiquiditySingleSwingIsNotAPool(t *testing.T) {
	bars := flatBars(10)
	bars[7] = bar(7, 1.1030, 1.1056, 1.1025, 1.1045)

	liq, err := AnalyzeLiquidity(bars, equalHighs()[:1], DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, liq.Sweeps)
	assert.False(t, liq.Pools[0].Eligible())
}

func TestAnalyzeLiquidityLowSideSweepIsBullish(t *testing.T) {
	bars := flatBars(10)
	bars[8] = bar(8, 1.1025, 1.1035, 1.0995, 1.1030)
	swings := []SwingPoint{
		{Index: 1, Price: 1.1000, Kind: SwingLow},
		{Index: 4, Price: 1.1000, Kind: SwingLow},
	}

	liq, err := AnalyzeLiquidity(bars, swings, DefaultConfig())
	require.NoError(t, err)
	sw, ok := liq.LastSweep()
	require.True(t, ok)
	assert.Equal(t, Bullish, sw.Direction)
	assert.Equal(t, SwingLow, sw.Side)
}

func TestAnalyzeLiquiditySweptFlagIsMonotonic(t *testing.T) {
	bars := flatBars(12)
	bars[7] = bar(7, 1.1030, 1.1056, 1.1025, 1.1045)
	seen := false
	for n := 6; n <= len(bars); n++ {
		liq, err := AnalyzeLiquidity(bars[:n], equalHighs(), DefaultConfig())
		require.NoError(t, err)
		if seen {
			assert.True(t, liq.Pools[0].Swept, "sweep reverted at n=%d", n)
		}
		seen = seen || liq.Pools[0].Swept
	}
	assert.True(t, seen)
}
