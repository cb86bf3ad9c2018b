package counter

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// raiseScript moves a counter up to a floor without ever lowering it.
var raiseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if current < floor then
	redis.call('SET', KEYS[1], floor)
	return floor
end
return current
`)

// RedisCounter draws values with INCR, which is atomic on the server.
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func (c *RedisCounter) Increment(ctx context.Context, key string) (int64, error) {
	value, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "incr %s", key)
	}
	return value, nil
}

// Raise makes sure the next value drawn from key is above floor.
// It is used at startup so ids keep increasing after the counter store was reset.
func (c *RedisCounter) Raise(ctx context.Context, key string, floor int64) (int64, error) {
	value, err := raiseScript.Run(ctx, c.rdb, []string{key}, floor).Int64()
	if err != nil {
		return 0, errors.Wrapf(err, "raise %s", key)
	}
	return value, nil
}
