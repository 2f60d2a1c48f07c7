package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
)

// ReportCache invalidates cached aggregate report views when a tenant's
// classification job completes. Eviction is idempotent: evicting an
// already-empty keyspace is a no-op.
type ReportCache interface {
	Invalidate(ctx context.Context, tenantID string) (int, error)
	Close() error
}

type reportCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewReportCache(log *logger.Logger) (ReportCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(os.Getenv("REDIS_REPORT_PREFIX"))
	if prefix == "" {
		prefix = "report"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &reportCache{
		log:    log.With("service", "RedisReportCache"),
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

func (c *reportCache) Invalidate(ctx context.Context, tenantID string) (int, error) {
	if c == nil || c.rdb == nil {
		return 0, fmt.Errorf("redis report cache not initialized")
	}

	pattern := fmt.Sprintf("%s:%s:*", c.prefix, tenantID)
	evicted := 0

	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	keys := make([]string, 0, 100)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 100 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return evicted, err
			}
			evicted += int(n)
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return evicted, err
	}
	if len(keys) > 0 {
		n, err := c.rdb.Del(ctx, keys...).Result()
		if err != nil {
			return evicted, err
		}
		evicted += int(n)
	}

	c.log.Info("report cache invalidated", "tenant_id", tenantID, "evicted", evicted)
	return evicted, nil
}

func (c *reportCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
