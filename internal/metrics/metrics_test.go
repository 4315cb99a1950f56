package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-predictor/internal/model"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObservePrediction(t *testing.T) {
	r := NewRegistry()

	r.ObservePrediction(&model.Prediction{Symbol: "EURUSD", Direction: model.DirUp, Confidence: 81}, 20*time.Millisecond)
	r.ObservePrediction(&model.Prediction{Symbol: "EURUSD", Direction: model.DirNone, NoSignal: model.NoSignalTie}, time.Millisecond)

	body := scrape(t, r)
	assert.Contains(t, body, `smc_predictions_total{direction="up",symbol="EURUSD"} 1`)
	assert.Contains(t, body, `smc_no_signal_total{reason="tie",symbol="EURUSD"} 1`)
	assert.Contains(t, body, `smc_prediction_confidence{symbol="EURUSD"} 0`)
	assert.Contains(t, body, `smc_analysis_duration_seconds_count{symbol="EURUSD"} 2`)
}

func TestResolutionAndAccuracy(t *testing.T) {
	r := NewRegistry()
	r.ObserveResolution("XAUUSD", true)
	r.ObserveResolution("XAUUSD", false)
	r.ObserveResolution("XAUUSD", true)
	r.SetAccuracy([]model.Accuracy{{Symbol: "XAUUSD", Timeframe: "1h", Total: 3, Correct: 2, Percent: 66.5}})
	r.ObserveError("XAUUSD", "fetch")

	body := scrape(t, r)
	assert.Contains(t, body, `smc_resolutions_total{result="hit",symbol="XAUUSD"} 2`)
	assert.Contains(t, body, `smc_resolutions_total{result="miss",symbol="XAUUSD"} 1`)
	assert.Contains(t, body, `smc_accuracy_percent{symbol="XAUUSD",timeframe="1h"} 66.5`)
	assert.Contains(t, body, `smc_errors_total{stage="fetch",symbol="XAUUSD"} 1`)
}
