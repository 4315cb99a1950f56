package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"smc-predictor/internal/model"
)

// SQLiteRecorder 把预测写入 SQLite
type SQLiteRecorder struct {
	db     *sqlx.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder 打开 (或创建) 数据库并执行迁移。dsn 可以是 ":memory:"。
func NewSQLiteRecorder(dsn string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dsn); dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单连接：内存库每个连接都是独立的数据库
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("SQLite recorder opened", zap.String("DSN", dsn))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			id            TEXT PRIMARY KEY,
			symbol        TEXT NOT NULL,
			timeframe     TEXT NOT NULL,
			direction     TEXT NOT NULL,
			confidence    REAL NOT NULL,
			price         REAL NOT NULL,
			bar_time      INTEGER NOT NULL,
			htf_direction TEXT,
			ltf_direction TEXT,
			overridden    INTEGER NOT NULL DEFAULT 0,
			no_signal     TEXT NOT NULL DEFAULT '',
			factors       TEXT,
			payload       TEXT NOT NULL,
			recorded_at   INTEGER NOT NULL,
			due_at        INTEGER NOT NULL,
			actual_price  REAL,
			correct       INTEGER,
			resolved_at   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_symbol ON predictions(symbol, recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_pending ON predictions(resolved_at, due_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordPrediction(ctx context.Context, pred *model.Prediction, recordedAt, dueAt time.Time) error {
	if pred.ID == "" {
		return errors.New("record prediction: empty id")
	}
	payload, err := json.Marshal(pred)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}
	factors, err := json.Marshal(pred.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.ExecContext(ctx, `INSERT INTO predictions
		(id, symbol, timeframe, direction, confidence, price, bar_time,
		 htf_direction, ltf_direction, overridden, no_signal, factors, payload,
		 recorded_at, due_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		pred.ID, pred.Symbol, pred.Timeframe, string(pred.Direction), pred.Confidence, pred.Price,
		pred.Timestamp.UnixMilli(), string(pred.HTFDirection), string(pred.LTFDirection),
		boolToInt(pred.Overridden), string(pred.NoSignal), string(factors), string(payload),
		recordedAt.UnixMilli(), dueAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert prediction %s: %w", pred.ID, err)
	}
	return nil
}

func (r *SQLiteRecorder) Pending(ctx context.Context, now time.Time) ([]Pending, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Pending
	err := r.db.SelectContext(ctx, &out, `SELECT id, symbol, timeframe, direction, price, due_at
		FROM predictions
		WHERE resolved_at IS NULL AND no_signal = '' AND direction IN ('up', 'down') AND due_at <= ?
		ORDER BY due_at`, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	return out, nil
}

// Resolve 写入结算结果。预测不存在或已结算时返回 ErrNotFound。
func (r *SQLiteRecorder) Resolve(ctx context.Context, res model.Resolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.ExecContext(ctx, `UPDATE predictions
		SET actual_price = ?, correct = ?, resolved_at = ?
		WHERE id = ? AND resolved_at IS NULL`,
		res.ActualPrice, boolToInt(res.Correct), res.ResolvedAt.UnixMilli(), res.PredictionID)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", res.PredictionID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("resolve %s: %w", res.PredictionID, ErrNotFound)
	}
	return nil
}

type predictionRow struct {
	ID          string          `db:"id"`
	Payload     string          `db:"payload"`
	RecordedAt  int64           `db:"recorded_at"`
	DueAt       int64           `db:"due_at"`
	ActualPrice sql.NullFloat64 `db:"actual_price"`
	Correct     sql.NullInt64   `db:"correct"`
	ResolvedAt  sql.NullInt64   `db:"resolved_at"`
}

const selectPrediction = `SELECT id, payload, recorded_at, due_at, actual_price, correct, resolved_at FROM predictions`

func (row predictionRow) stored() (StoredPrediction, error) {
	var sp StoredPrediction
	if err := json.Unmarshal([]byte(row.Payload), &sp.Prediction); err != nil {
		return sp, fmt.Errorf("decode prediction %s: %w", row.ID, err)
	}
	sp.RecordedAt = time.UnixMilli(row.RecordedAt).UTC()
	sp.DueAt = time.UnixMilli(row.DueAt).UTC()
	if row.ResolvedAt.Valid {
		sp.Resolution = &model.Resolution{
			PredictionID: row.ID,
			ActualPrice:  row.ActualPrice.Float64,
			Correct:      row.Correct.Int64 == 1,
			ResolvedAt:   time.UnixMilli(row.ResolvedAt.Int64).UTC(),
		}
	}
	return sp, nil
}

func (r *SQLiteRecorder) Get(ctx context.Context, id string) (*StoredPrediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var row predictionRow
	err := r.db.GetContext(ctx, &row, selectPrediction+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction %s: %w", id, err)
	}
	sp, err := row.stored()
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (r *SQLiteRecorder) Recent(ctx context.Context, symbol string, limit int) ([]StoredPrediction, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var rows []predictionRow
	var err error
	if symbol == "" {
		err = r.db.SelectContext(ctx, &rows, selectPrediction+` ORDER BY recorded_at DESC, id LIMIT ?`, limit)
	} else {
		err = r.db.SelectContext(ctx, &rows, selectPrediction+` WHERE symbol = ? ORDER BY recorded_at DESC, id LIMIT ?`, symbol, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("select recent: %w", err)
	}

	out := make([]StoredPrediction, 0, len(rows))
	for _, row := range rows {
		sp, err := row.stored()
		if err != nil {
			r.logger.Warn("Skipping undecodable prediction", zap.String("ID", row.ID), zap.Error(err))
			continue
		}
		out = append(out, sp)
	}
	return out, nil
}

// Accuracy 按品种和周期统计已结算预测的命中率
func (r *SQLiteRecorder) Accuracy(ctx context.Context) ([]model.Accuracy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Accuracy
	err := r.db.SelectContext(ctx, &out, `SELECT symbol, timeframe, COUNT(*) AS total, COALESCE(SUM(correct), 0) AS correct
		FROM predictions
		WHERE resolved_at IS NOT NULL
		GROUP BY symbol, timeframe
		ORDER BY symbol, timeframe`)
	if err != nil {
		return nil, fmt.Errorf("select accuracy: %w", err)
	}
	for i := range out {
		if out[i].Total > 0 {
			out[i].Percent = float64(out[i].Correct) / float64(out[i].Total) * 100
		}
	}
	return out, nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("Closing SQLite recorder")
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
