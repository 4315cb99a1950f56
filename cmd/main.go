package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"smc-predictor/internal/api"
	"smc-predictor/internal/collector"
	"smc-predictor/internal/metrics"
	"smc-predictor/internal/model"
	"smc-predictor/internal/predictor"
	"smc-predictor/internal/recorder"
	"smc-predictor/internal/scheduler"
	"smc-predictor/internal/server"
	"smc-predictor/internal/service"
	"smc-predictor/internal/strategy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(ctx).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd(ctx context.Context) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "smc-predictor",
		Short:         "Smart-money-concepts direction predictor",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config", "directory containing config.yaml")

	root.AddCommand(serveCmd(ctx, &configPath))
	root.AddCommand(analyzeCmd(ctx, &configPath))
	root.AddCommand(resolveCmd(ctx, &configPath))
	return root
}

// app 持有一次进程生命周期内的全部组件
type app struct {
	cfg      *service.Config
	stream   *collector.StreamFetcher
	fetcher  collector.Fetcher
	rec      recorder.Recorder
	metrics  *metrics.Registry
	service  *predictor.Service
	resolver *predictor.Resolver
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			service.Logger.Warn("Close failed", zap.Error(err))
		}
	}
	_ = service.Logger.Sync()
}

func setup(configPath string, withStream bool) (*app, error) {
	cfg, err := service.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	service.InitLogger(cfg.App.LogLevel)
	logger := service.Logger

	a := &app{cfg: cfg, metrics: metrics.NewRegistry()}

	if withStream && cfg.Stream.Enabled {
		a.stream = collector.NewStreamFetcher(cfg.Stream.MaxBars, logger)
	}

	// rdb 保持 nil 接口时不启用缓存
	var rdb redis.Cmdable
	if cfg.Cache.Enabled {
		client := collector.NewRedisClient(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		rdb = client
		a.closers = append(a.closers, client.Close)
	}

	a.fetcher, err = collector.Build(cfg, a.stream, rdb, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	switch cfg.Recorder.Driver {
	case "sqlite":
		rec, err := recorder.NewSQLiteRecorder(cfg.Recorder.DSN, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.rec = rec
		a.closers = append(a.closers, rec.Close)
	default:
		a.rec = recorder.NewNoopRecorder()
	}

	engine := strategy.NewEngine(strategy.ConfigFromService(cfg.Engine), logger.Sugar())
	a.service = predictor.NewService(a.fetcher, engine, a.rec, a.metrics, predictor.Options{
		Symbols:        cfg.Symbols,
		HTF:            cfg.Timeframe.HTF,
		LTF:            cfg.Timeframe.LTF,
		BarLimit:       cfg.Provider.BarLimit,
		Workers:        cfg.Predictor.Workers,
		RunTimeout:     cfg.Predictor.RunTimeout,
		DefaultHorizon: cfg.Predictor.DefaultHorizon,
	}, logger)
	a.resolver = predictor.NewResolver(a.fetcher, a.rec, a.metrics, logger)
	return a, nil
}

func serveCmd(ctx context.Context, configPath *string) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, live feed and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(*configPath, true)
			if err != nil {
				return err
			}
			defer a.Close()
			logger := service.Logger

			if a.stream != nil {
				connector := api.NewConnector(a.cfg.Stream.WSURL, a.cfg.Stream.Channel, a.cfg.Symbols)
				go func() {
					if err := connector.Start(ctx); err != nil {
						logger.Error("Connector stopped", zap.Error(err))
					}
				}()
				go func() {
					timeframes := []string{a.cfg.Timeframe.HTF, a.cfg.Timeframe.LTF}
					if err := a.stream.Run(ctx, connector.Ticks(), a.cfg.Symbols, timeframes); err != nil {
						logger.Error("Stream aggregation stopped", zap.Error(err))
					}
				}()
			}

			sched := scheduler.NewScheduler(ctx, a.service, a.resolver, logger)
			if err := sched.RegisterAll(a.cfg.Schedule.Analyze, a.cfg.Schedule.Resolve); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
			if runOnStart {
				go sched.AnalyzeNow()
			}

			srv := server.New(a.cfg.App.HTTPAddr, a.rec, a.service, a.metrics.Handler(), logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			logger.Info("SMC predictor running",
				zap.Strings("Symbols", a.cfg.Symbols),
				zap.String("HTF", a.cfg.Timeframe.HTF), zap.String("LTF", a.cfg.Timeframe.LTF))

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run one analysis pass immediately")
	return cmd
}

func analyzeCmd(ctx context.Context, configPath *string) *cobra.Command {
	var (
		output         string
		hintDirection  string
		hintConfidence float64
		hintQuality    string
	)
	cmd := &cobra.Command{
		Use:   "analyze <symbol>",
		Short: "Analyze one symbol and print the prediction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "yaml" && output != "json" {
				return fmt.Errorf("unknown output format %q", output)
			}
			a, err := setup(*configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			var hint *model.VisualHint
			if hintDirection != "" {
				hint = &model.VisualHint{
					Direction:  model.Direction(hintDirection),
					Confidence: hintConfidence,
					Quality:    hintQuality,
				}
			}

			pred, err := a.service.Run(ctx, args[0], hint)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), output, pred)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml | json")
	cmd.Flags().StringVar(&hintDirection, "hint-direction", "", "visual hint direction: up | down")
	cmd.Flags().Float64Var(&hintConfidence, "hint-confidence", 0, "visual hint confidence (0-100)")
	cmd.Flags().StringVar(&hintQuality, "hint-quality", model.QualityGood, "visual hint chart quality")
	return cmd
}

func resolveCmd(ctx context.Context, configPath *string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve due predictions and print accuracy",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(*configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.resolver.ResolvePending(ctx, time.Now())
			if err != nil {
				service.Logger.Warn("Some predictions could not be resolved", zap.Error(err))
			}
			stats, err := a.rec.Accuracy(ctx)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), output, map[string]interface{}{
				"resolved": n,
				"accuracy": stats,
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml | json")
	return cmd
}

func printResult(w io.Writer, format string, v interface{}) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
