package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/logbook/internal/domain"
)

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, channel string, payload any) error {

	jsonstr, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channel, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime relays log creation signals to response until ctx is done.
// Each value received on request replaces the set of logbooks the caller listens to;
// an empty set means every logbook.
func (s *SignalService) Realtime(ctx context.Context, request <-chan []string, response chan<- domain.LogCreatedEvent) {
	pubsub := s.rdb.Subscribe(ctx, domain.LogCreatedChannel)
	defer pubsub.Close()

	messages := pubsub.Channel()
	var filter LogbookFilter

	for {
		select {
		case <-ctx.Done():
			return
		case logbooks, ok := <-request:
			if !ok {
				return
			}
			filter = NewLogbookFilter(logbooks)
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event domain.LogCreatedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.WarnContext(
					ctx, "invalid signal payload",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			if !filter.Match(event) {
				continue
			}

			select {
			case response <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// LogbookFilter selects events filed in any of a set of logbooks. The zero value selects everything.
type LogbookFilter map[string]struct{}

func NewLogbookFilter(logbooks []string) LogbookFilter {
	if len(logbooks) == 0 {
		return nil
	}
	filter := make(LogbookFilter, len(logbooks))
	for _, l := range logbooks {
		filter[l] = struct{}{}
	}
	return filter
}

func (f LogbookFilter) Match(event domain.LogCreatedEvent) bool {
	if len(f) == 0 {
		return true
	}
	for _, l := range event.Logbooks {
		if _, ok := f[l]; ok {
			return true
		}
	}
	return false
}
