package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smc-predictor/internal/model"
)

// Registry 持有预测服务的全部 Prometheus 指标
type Registry struct {
	reg *prometheus.Registry

	Predictions      *prometheus.CounterVec
	NoSignals        *prometheus.CounterVec
	Errors           *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	Confidence       *prometheus.GaugeVec
	Resolutions      *prometheus.CounterVec
	Accuracy         *prometheus.GaugeVec
}

// NewRegistry 创建独立的 registry，不使用全局默认 registry
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smc_predictions_total",
				Help: "Published predictions by symbol and direction",
			},
			[]string{"symbol", "direction"},
		),

		NoSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smc_no_signal_total",
				Help: "Analyses that produced no signal, by reason",
			},
			[]string{"symbol", "reason"},
		),

		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smc_errors_total",
				Help: "Failed runs by pipeline stage",
			},
			[]string{"symbol", "stage"},
		),

		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smc_analysis_duration_seconds",
				Help:    "Fetch plus analysis duration per symbol",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"symbol"},
		),

		Confidence: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "smc_prediction_confidence",
				Help: "Confidence of the latest analysis (0-100)",
			},
			[]string{"symbol"},
		),

		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smc_resolutions_total",
				Help: "Resolved predictions by outcome",
			},
			[]string{"symbol", "result"},
		),

		Accuracy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "smc_accuracy_percent",
				Help: "Hit rate of resolved predictions",
			},
			[]string{"symbol", "timeframe"},
		),
	}

	r.reg.MustRegister(
		r.Predictions, r.NoSignals, r.Errors, r.AnalysisDuration,
		r.Confidence, r.Resolutions, r.Accuracy,
	)
	return r
}

// Handler 返回 /metrics 的 HTTP handler
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObservePrediction 记录一次分析结果
func (r *Registry) ObservePrediction(p *model.Prediction, took time.Duration) {
	r.AnalysisDuration.WithLabelValues(p.Symbol).Observe(took.Seconds())
	r.Confidence.WithLabelValues(p.Symbol).Set(p.Confidence)
	if p.HasSignal() {
		r.Predictions.WithLabelValues(p.Symbol, string(p.Direction)).Inc()
		return
	}
	r.NoSignals.WithLabelValues(p.Symbol, string(p.NoSignal)).Inc()
}

func (r *Registry) ObserveError(symbol, stage string) {
	r.Errors.WithLabelValues(symbol, stage).Inc()
}

func (r *Registry) ObserveResolution(symbol string, correct bool) {
	result := "miss"
	if correct {
		result = "hit"
	}
	r.Resolutions.WithLabelValues(symbol, result).Inc()
}

// SetAccuracy 用最新统计覆盖命中率
func (r *Registry) SetAccuracy(stats []model.Accuracy) {
	for _, a := range stats {
		r.Accuracy.WithLabelValues(a.Symbol, a.Timeframe).Set(a.Percent)
	}
}
