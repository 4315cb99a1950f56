package recorder

import (
	"context"
	"time"

	"smc-predictor/internal/model"
)

// NoopRecorder 在未配置 SQLite 时使用
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordPrediction(context.Context, *model.Prediction, time.Time, time.Time) error {
	return nil
}
func (n *NoopRecorder) Pending(context.Context, time.Time) ([]Pending, error) { return nil, nil }
func (n *NoopRecorder) Resolve(context.Context, model.Resolution) error       { return ErrNotFound }
func (n *NoopRecorder) Get(context.Context, string) (*StoredPrediction, error) {
	return nil, ErrNotFound
}
func (n *NoopRecorder) Recent(context.Context, string, int) ([]StoredPrediction, error) {
	return nil, nil
}
func (n *NoopRecorder) Accuracy(context.Context) ([]model.Accuracy, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                       { return nil }
