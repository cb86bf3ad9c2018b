package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/totegamma/logbook/internal/domain"
)

const (
	logKeyPrefix = "logbook:log:"
	logTTL       = 60 * 60
)

// Client is the subset of the memcached client the cache needs.
type Client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

// LogCache keeps serialized log entries in memcached. Writers that change an entry
// drop it with Invalidate. Every failure degrades to a miss.
type LogCache struct {
	mc Client
}

func NewLogCache(mc Client) *LogCache {
	return &LogCache{mc: mc}
}

func (c *LogCache) Get(ctx context.Context, id int64) (domain.Log, bool) {
	item, err := c.mc.Get(logKey(id))
	if err != nil {
		if err != memcache.ErrCacheMiss {
			slog.DebugContext(
				ctx, "log cache get failed",
				slog.String("error", err.Error()),
				slog.String("module", "cache"),
			)
		}
		return domain.Log{}, false
	}

	var log domain.Log
	if err := json.Unmarshal(item.Value, &log); err != nil {
		return domain.Log{}, false
	}
	return log, true
}

func (c *LogCache) Set(ctx context.Context, log domain.Log) {
	value, err := json.Marshal(log)
	if err != nil {
		return
	}
	err = c.mc.Set(&memcache.Item{Key: logKey(log.ID), Value: value, Expiration: logTTL})
	if err != nil {
		slog.DebugContext(
			ctx, "log cache set failed",
			slog.String("error", err.Error()),
			slog.String("module", "cache"),
		)
	}
}

func (c *LogCache) Invalidate(ctx context.Context, id int64) {
	err := c.mc.Delete(logKey(id))
	if err != nil && err != memcache.ErrCacheMiss {
		slog.WarnContext(
			ctx, "log cache invalidate failed",
			slog.String("error", err.Error()),
			slog.String("module", "cache"),
		)
	}
}

func logKey(id int64) string {
	return logKeyPrefix + strconv.FormatInt(id, 10)
}
