// internal/service/config.go
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是整个服务的配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Symbols   []string        `mapstructure:"symbols"`
	Timeframe TimeframeConfig `mapstructure:"timeframe"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Predictor PredictorConfig `mapstructure:"predictor"`
	Engine    EngineConfig    `mapstructure:"engine"`
}

type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
}

// TimeframeConfig HTF 用于判断方向，LTF 用于确认
type TimeframeConfig struct {
	HTF string `mapstructure:"htf"`
	LTF string `mapstructure:"ltf"`
}

// ProviderConfig 定义了行情数据源
type ProviderConfig struct {
	Name            string        `mapstructure:"name"` // yahoo | mock | stream
	YahooURL        string        `mapstructure:"yahoo_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BarLimit        int           `mapstructure:"bar_limit"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	Burst           int           `mapstructure:"burst"`
	MaxFailures     uint32        `mapstructure:"max_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
	FallbackToMock  bool          `mapstructure:"fallback_to_mock"`
}

// StreamConfig 是实时 Tick 推送的 WebSocket 连接信息
type StreamConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	WSURL   string `mapstructure:"ws_url"`
	Channel string `mapstructure:"channel"`
	MaxBars int    `mapstructure:"max_bars"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type RecorderConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | noop
	DSN    string `mapstructure:"dsn"`
}

// ScheduleConfig 使用 cron 表达式 (支持秒字段)
type ScheduleConfig struct {
	Analyze string `mapstructure:"analyze"`
	Resolve string `mapstructure:"resolve"`
}

type PredictorConfig struct {
	Workers        int           `mapstructure:"workers"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
	DefaultHorizon time.Duration `mapstructure:"default_horizon"`
}

// EngineConfig 定义了信号引擎的全部阈值
type EngineConfig struct {
	SwingWindow        int     `mapstructure:"swing_window"`
	ImpulseMultiplier  float64 `mapstructure:"impulse_multiplier"`
	RangeLookback      int     `mapstructure:"range_lookback"`
	OriginLookback     int     `mapstructure:"origin_lookback"`
	LiquidityTolerance float64 `mapstructure:"liquidity_tolerance"`
	SweepMargin        float64 `mapstructure:"sweep_margin"`
	SweepWindow        int     `mapstructure:"sweep_window"`
	LevelTolerance     float64 `mapstructure:"level_tolerance"`
	RecencyHalfLife    float64 `mapstructure:"recency_half_life"`
	ProximityPct       float64 `mapstructure:"proximity_pct"`
	SweepDecayBars     int     `mapstructure:"sweep_decay_bars"`

	Weights          map[string]float64 `mapstructure:"weights"`
	BaseConfidence   float64            `mapstructure:"base_confidence"`
	AgreementBonus   float64            `mapstructure:"agreement_bonus"`
	CoverageBonus    float64            `mapstructure:"coverage_bonus"`
	CoverageNorm     float64            `mapstructure:"coverage_norm"`
	AlignmentBonus   float64            `mapstructure:"alignment_bonus"`
	PublishThresh    float64            `mapstructure:"publish_threshold"`
	OverrideThresh   float64            `mapstructure:"override_threshold"`
	VisualHintMode   string             `mapstructure:"visual_hint_mode"` // include | neutral | omit
	EnableDivergence bool               `mapstructure:"enable_divergence"`
}

// GlobalConfig 存储加载后的全局配置
var GlobalConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.http_addr", ":8080")
	v.SetDefault("symbols", []string{"EURUSD", "GBPUSD", "XAUUSD"})
	v.SetDefault("timeframe.htf", "4h")
	v.SetDefault("timeframe.ltf", "1h")

	v.SetDefault("provider.name", "yahoo")
	v.SetDefault("provider.yahoo_url", "https://query1.finance.yahoo.com")
	v.SetDefault("provider.timeout", 10*time.Second)
	v.SetDefault("provider.bar_limit", 200)
	v.SetDefault("provider.rate_per_second", 2.0)
	v.SetDefault("provider.burst", 4)
	v.SetDefault("provider.max_failures", 5)
	v.SetDefault("provider.breaker_cooldown", 30*time.Second)
	v.SetDefault("provider.fallback_to_mock", false)

	v.SetDefault("stream.enabled", false)
	v.SetDefault("stream.max_bars", 500)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.prefix", "smc:bars:")
	v.SetDefault("cache.ttl", time.Minute)

	v.SetDefault("recorder.driver", "sqlite")
	v.SetDefault("recorder.dsn", "data/predictions.db")

	v.SetDefault("schedule.analyze", "0 */5 * * * *")
	v.SetDefault("schedule.resolve", "30 * * * * *")

	v.SetDefault("predictor.workers", 4)
	v.SetDefault("predictor.run_timeout", 30*time.Second)
	v.SetDefault("predictor.default_horizon", 5*time.Minute)

	d := DefaultEngineConfig()
	v.SetDefault("engine.swing_window", d.SwingWindow)
	v.SetDefault("engine.impulse_multiplier", d.ImpulseMultiplier)
	v.SetDefault("engine.range_lookback", d.RangeLookback)
	v.SetDefault("engine.origin_lookback", d.OriginLookback)
	v.SetDefault("engine.liquidity_tolerance", d.LiquidityTolerance)
	v.SetDefault("engine.sweep_margin", d.SweepMargin)
	v.SetDefault("engine.sweep_window", d.SweepWindow)
	v.SetDefault("engine.level_tolerance", d.LevelTolerance)
	v.SetDefault("engine.recency_half_life", d.RecencyHalfLife)
	v.SetDefault("engine.proximity_pct", d.ProximityPct)
	v.SetDefault("engine.sweep_decay_bars", d.SweepDecayBars)
	v.SetDefault("engine.base_confidence", d.BaseConfidence)
	v.SetDefault("engine.agreement_bonus", d.AgreementBonus)
	v.SetDefault("engine.coverage_bonus", d.CoverageBonus)
	v.SetDefault("engine.coverage_norm", d.CoverageNorm)
	v.SetDefault("engine.alignment_bonus", d.AlignmentBonus)
	v.SetDefault("engine.publish_threshold", d.PublishThresh)
	v.SetDefault("engine.override_threshold", d.OverrideThresh)
	v.SetDefault("engine.visual_hint_mode", d.VisualHintMode)
	v.SetDefault("engine.enable_divergence", d.EnableDivergence)
}

// DefaultEngineConfig 返回引擎默认阈值。Weights 为空时使用策略层的默认权重。
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SwingWindow:        5,
		ImpulseMultiplier:  2.0,
		RangeLookback:      10,
		OriginLookback:     10,
		LiquidityTolerance: 0.0005,
		SweepMargin:        0.002,
		SweepWindow:        3,
		LevelTolerance:     0.001,
		RecencyHalfLife:    50,
		ProximityPct:       0.5,
		SweepDecayBars:     10,
		BaseConfidence:     55,
		AgreementBonus:     20,
		CoverageBonus:      15,
		CoverageNorm:       0.5,
		AlignmentBonus:     10,
		PublishThresh:      70,
		OverrideThresh:     85,
		VisualHintMode:     "include",
		EnableDivergence:   true,
	}
}

// LoadConfig 读取并解析配置文件。
// configPath 是 config.yaml 所在目录；环境变量 SMC_ 前缀可以覆盖任意键 (例如 SMC_ENGINE_SWING_WINDOW)。
func LoadConfig(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix("SMC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// 没有配置文件时使用默认值
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	GlobalConfig = cfg
	return &cfg, nil
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("config: at least one symbol is required")
	}
	htf, err := NormalizeTimeframe(c.Timeframe.HTF)
	if err != nil {
		return fmt.Errorf("config: timeframe.htf: %w", err)
	}
	ltf, err := NormalizeTimeframe(c.Timeframe.LTF)
	if err != nil {
		return fmt.Errorf("config: timeframe.ltf: %w", err)
	}
	// "60m" 与 "1h" 视为同一周期
	c.Timeframe.HTF, c.Timeframe.LTF = htf, ltf
	switch c.Provider.Name {
	case "yahoo", "mock", "stream":
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider.Name)
	}
	switch c.Recorder.Driver {
	case "sqlite", "noop":
	default:
		return fmt.Errorf("config: unknown recorder driver %q", c.Recorder.Driver)
	}
	if c.Predictor.Workers < 1 {
		return errors.New("config: predictor.workers must be >= 1")
	}
	return c.Engine.Validate()
}

// Validate 检查引擎阈值
func (e EngineConfig) Validate() error {
	if e.SwingWindow < 1 {
		return fmt.Errorf("config: engine.swing_window must be >= 1, got %d", e.SwingWindow)
	}
	if e.ImpulseMultiplier <= 0 {
		return errors.New("config: engine.impulse_multiplier must be > 0")
	}
	if e.RangeLookback < 1 || e.OriginLookback < 1 || e.SweepWindow < 1 {
		return errors.New("config: engine lookbacks must be >= 1")
	}
	if e.PublishThresh < 0 || e.PublishThresh > 100 || e.OverrideThresh < 0 || e.OverrideThresh > 100 {
		return errors.New("config: engine thresholds must be within [0, 100]")
	}
	switch e.VisualHintMode {
	case "include", "neutral", "omit":
	default:
		return fmt.Errorf("config: unknown visual_hint_mode %q", e.VisualHintMode)
	}
	for name, w := range e.Weights {
		if w < 0 {
			return fmt.Errorf("config: weight %s must be >= 0", name)
		}
	}
	return nil
}
