package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-predictor/internal/model"
	"smc-predictor/pkg/smc"
)

func TestPlanEntryDurationByConfidence(t *testing.T) {
	tests := []struct {
		conf     float64
		duration int
		risk     string
	}{
		{95, 10, "LOW"},
		{90, 10, "LOW"},
		{85, 5, "MEDIUM"},
		{72, 1, "HIGH"},
	}
	for _, tt := range tests {
		pred := &model.Prediction{Direction: model.DirUp, Confidence: tt.conf, Price: 1.1}
		plan := PlanEntry(pred, smc.Levels{})
		require.NotNil(t, plan)
		assert.Equal(t, tt.duration, plan.DurationMinutes)
		assert.Equal(t, tt.risk, plan.RiskLevel)
	}
}

func TestPlanEntryPrice(t *testing.T) {
	levels := smc.Levels{Items: []smc.Level{{Price: 1.0900, Touches: 2}, {Price: 1.1200, Touches: 3}}}

	up := PlanEntry(&model.Prediction{Direction: model.DirUp, Confidence: 80, Price: 1.1000}, levels)
	require.NotNil(t, up)
	assert.Equal(t, 1.1000, up.EntryPrice)
	assert.Equal(t, TimingImmediate, up.Timing)

	// 紧贴支撑时加一点缓冲
	near := PlanEntry(&model.Prediction{Direction: model.DirUp, Confidence: 80, Price: 1.0905}, levels)
	assert.InDelta(t, 1.0905*1.0002, near.EntryPrice, 1e-12)

	down := PlanEntry(&model.Prediction{Direction: model.DirDown, Confidence: 80, Price: 1.1195}, levels)
	assert.InDelta(t, 1.1195*0.9998, down.EntryPrice, 1e-12)
	assert.Equal(t, TimingImmediate, down.Timing)
}

func TestPlanEntryNoSignal(t *testing.T) {
	pred := &model.Prediction{Direction: model.DirNone, NoSignal: model.NoSignalTie}
	assert.Nil(t, PlanEntry(pred, smc.Levels{}))
}
