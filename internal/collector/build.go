package collector

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"smc-predictor/internal/service"
)

// Build 按配置组装数据源：主数据源 + 备用链 + 限流熔断，可选 Redis 缓存。
// stream 仅在启用实时推送时非空；rdb 为空时不缓存。
func Build(cfg *service.Config, stream *StreamFetcher, rdb redis.Cmdable, logger *zap.Logger) (Fetcher, error) {
	mock := &MockFetcher{Price: 1.1}

	var primary Fetcher
	switch cfg.Provider.Name {
	case "yahoo":
		primary = NewYahooFetcher(cfg.Provider.YahooURL, cfg.Provider.Timeout)
	case "mock":
		primary = mock
	case "stream":
		if stream == nil {
			return nil, fmt.Errorf("provider stream requires stream.enabled")
		}
		primary = stream
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}

	var fallbacks []Fetcher
	if stream != nil && primary != Fetcher(stream) {
		fallbacks = append(fallbacks, stream)
	}
	if cfg.Provider.FallbackToMock && primary != Fetcher(mock) {
		fallbacks = append(fallbacks, mock)
	}

	var f Fetcher = NewResilientFetcher(primary, ResilientOptions{
		RatePerSecond:   cfg.Provider.RatePerSecond,
		Burst:           cfg.Provider.Burst,
		MaxFailures:     cfg.Provider.MaxFailures,
		BreakerCooldown: cfg.Provider.BreakerCooldown,
	}, logger, fallbacks...)

	if rdb != nil {
		f = NewCachedFetcher(f, rdb, cfg.Cache.Prefix, cfg.Cache.TTL, logger)
	}
	return f, nil
}
