package usecase

import (
	"context"

	"github.com/pkg/errors"

	"github.com/totegamma/logbook/internal/domain"
	"github.com/totegamma/logbook/internal/search"
)

// LogSequenceKey is the counter record log ids are drawn from.
const LogSequenceKey = "logbook:sequence:log"

// Raiser is implemented by counters that can be moved forward to a known value.
type Raiser interface {
	Raise(ctx context.Context, key string, floor int64) (int64, error)
}

// Generator hands out log ids from a shared counter.
type Generator struct {
	counter Counter
	key     string
}

func NewGenerator(counter Counter) *Generator {
	return &Generator{counter: counter, key: LogSequenceKey}
}

// NextID advances the counter and returns the new value.
// Ids returned by calls that do not overlap in time are strictly increasing.
func (g *Generator) NextID(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "Usecase.Generator.NextID")
	defer span.End()

	id, err := g.counter.Increment(ctx, g.key)
	if err != nil {
		span.RecordError(err)
		return 0, errors.Wrapf(domain.ErrSequenceUnavailable, "increment %s: %v", g.key, err)
	}
	if id <= 0 {
		err := errors.Wrapf(domain.ErrSequenceUnavailable, "counter %s returned %d", g.key, id)
		span.RecordError(err)
		return 0, err
	}
	return id, nil
}

// Recover moves the counter to the highest id already present in index.
// Counters that cannot be raised are left alone.
func (g *Generator) Recover(ctx context.Context, index DocumentIndex, conf search.Config) (int64, error) {
	ctx, span := tracer.Start(ctx, "Usecase.Generator.Recover")
	defer span.End()

	raiser, ok := g.counter.(Raiser)
	if !ok {
		return 0, nil
	}

	req, err := search.BuildSearchRequest(nil, conf)
	if err != nil {
		return 0, err
	}
	req.Size = 1
	req.Sort = []search.SortField{{Field: search.FieldID, Order: search.SortDescending}}

	result, err := index.Search(ctx, req)
	if err != nil {
		span.RecordError(err)
		return 0, errors.Wrap(err, "find highest log id")
	}
	if len(result.Logs) == 0 {
		return 0, nil
	}
	highest := result.Logs[0].ID

	value, err := raiser.Raise(ctx, g.key, highest)
	if err != nil {
		span.RecordError(err)
		return 0, errors.Wrapf(domain.ErrSequenceUnavailable, "raise %s: %v", g.key, err)
	}
	return value, nil
}
