package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"smc-predictor/internal/predictor"
)

// BatchRunner 批量分析所有品种
type BatchRunner interface {
	RunAll(ctx context.Context) []predictor.Outcome
}

// PendingResolver 结算到期的预测
type PendingResolver interface {
	ResolvePending(ctx context.Context, now time.Time) (int, error)
}

// Scheduler 管理所有定时任务
type Scheduler struct {
	Cron     *cron.Cron
	Runner   BatchRunner
	Resolver PendingResolver
	Ctx      context.Context
	logger   *zap.Logger
}

// NewScheduler 创建支持秒字段的调度器
func NewScheduler(ctx context.Context, runner BatchRunner, resolver PendingResolver, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		// 上一轮未结束时跳过本轮
		Cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		Runner:   runner,
		Resolver: resolver,
		Ctx:      ctx,
		logger:   logger,
	}
}

// RegisterAll 注册分析和结算任务
func (s *Scheduler) RegisterAll(analyzeCron, resolveCron string) error {
	if _, err := s.Cron.AddFunc(analyzeCron, s.AnalyzeNow); err != nil {
		return fmt.Errorf("register analyze task: %w", err)
	}
	if _, err := s.Cron.AddFunc(resolveCron, s.ResolveNow); err != nil {
		return fmt.Errorf("register resolve task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("Scheduler started", zap.Int("Jobs", len(s.Cron.Entries())))
}

// Stop 停止调度并等待正在运行的任务结束
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// AnalyzeNow 立即执行一轮批量分析
func (s *Scheduler) AnalyzeNow() {
	s.logger.Info("Running analyze task")
	outcomes := s.Runner.RunAll(s.Ctx)

	published, failed := 0, 0
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
		case o.Prediction.HasSignal():
			published++
		}
	}
	s.logger.Info("Analyze task finished",
		zap.Int("Symbols", len(outcomes)), zap.Int("Signals", published), zap.Int("Failed", failed))
}

// ResolveNow 立即结算到期预测
func (s *Scheduler) ResolveNow() {
	n, err := s.Resolver.ResolvePending(s.Ctx, time.Now())
	if err != nil {
		s.logger.Error("Resolve task failed", zap.Int("Resolved", n), zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Resolve task finished", zap.Int("Resolved", n))
	}
}
