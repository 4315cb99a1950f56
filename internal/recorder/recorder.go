package recorder

import (
	"context"
	"errors"
	"time"

	"smc-predictor/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("recorder: not found")

// StoredPrediction 是落库后的预测，附带到期时间与结算结果
type StoredPrediction struct {
	Prediction model.Prediction  `json:"prediction"`
	RecordedAt time.Time         `json:"recorded_at"`
	DueAt      time.Time         `json:"due_at"`
	Resolution *model.Resolution `json:"resolution,omitempty"`
}

// Pending 是一条等待结算的预测
type Pending struct {
	ID        string          `db:"id"`
	Symbol    string          `db:"symbol"`
	Timeframe string          `db:"timeframe"`
	Direction model.Direction `db:"direction"`
	Price     float64         `db:"price"`
	DueAtMs   int64           `db:"due_at"`
}

func (p Pending) DueAt() time.Time { return time.UnixMilli(p.DueAtMs).UTC() }

// Recorder 持久化预测及其结算结果
type Recorder interface {
	// RecordPrediction 保存一次预测，dueAt 为结算时间。没有信号的预测同样保存，但不会进入待结算队列。
	RecordPrediction(ctx context.Context, pred *model.Prediction, recordedAt, dueAt time.Time) error
	// Pending 返回到期 (dueAt <= now) 且尚未结算的有信号预测
	Pending(ctx context.Context, now time.Time) ([]Pending, error)
	Resolve(ctx context.Context, res model.Resolution) error
	Get(ctx context.Context, id string) (*StoredPrediction, error)
	// Recent 按记录时间倒序返回，symbol 为空时不过滤
	Recent(ctx context.Context, symbol string, limit int) ([]StoredPrediction, error)
	Accuracy(ctx context.Context) ([]model.Accuracy, error)
	Close() error
}
