package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"smc-predictor/internal/model"
)

// CachedFetcher 在 Redis 中缓存 K 线，未命中时回源。
// Redis 故障不会阻断取数，只记录告警。
type CachedFetcher struct {
	next   Fetcher
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisClient 按配置创建客户端
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewCachedFetcher(next Fetcher, client redis.Cmdable, prefix string, ttl time.Duration, logger *zap.Logger) *CachedFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedFetcher{next: next, client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *CachedFetcher) Name() string { return "cached:" + c.next.Name() }

func (c *CachedFetcher) key(symbol, timeframe string, limit int) string {
	return fmt.Sprintf("%s%s:%s:%d", c.prefix, symbol, timeframe, limit)
}

func (c *CachedFetcher) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]model.Bar, error) {
	key := c.key(symbol, timeframe, limit)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var bars []model.Bar
		if uerr := json.Unmarshal(data, &bars); uerr == nil && len(bars) > 0 {
			c.logger.Debug("Bar cache hit", zap.String("Key", key), zap.Int("Bars", len(bars)))
			return bars, nil
		}
		c.logger.Warn("Corrupt bar cache entry, refetching", zap.String("Key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("Bar cache read failed", zap.String("Key", key), zap.Error(err))
	}

	bars, err := c.next.FetchBars(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(bars)
	if err != nil {
		return bars, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Bar cache write failed", zap.String("Key", key), zap.Error(err))
	}
	return bars, nil
}
