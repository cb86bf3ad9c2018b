package counter

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryCounter keeps counters in process. Values are lost on restart.
type MemoryCounter struct {
	counters sync.Map
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{}
}

func (c *MemoryCounter) Increment(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, _ := c.counters.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64).Add(1), nil
}

// Raise makes sure the next value drawn from key is above floor.
func (c *MemoryCounter) Raise(ctx context.Context, key string, floor int64) (int64, error) {
	v, _ := c.counters.LoadOrStore(key, new(atomic.Int64))
	counter := v.(*atomic.Int64)
	for {
		current := counter.Load()
		if current >= floor {
			return current, nil
		}
		if counter.CompareAndSwap(current, floor) {
			return floor, nil
		}
	}
}
