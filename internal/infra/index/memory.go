package index

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/logbook/internal/domain"
	"github.com/totegamma/logbook/internal/search"
	"github.com/totegamma/logbook/internal/usecase"
)

// MemoryIndex keeps log documents in process and evaluates search queries itself.
// Documents are stored in their serialized form so reads never alias writes.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[int64][]byte
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[int64][]byte)}
}

func (m *MemoryIndex) Index(ctx context.Context, log domain.Log) error {
	body, err := json.Marshal(log)
	if err != nil {
		return errors.Wrap(err, "marshal log")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[log.ID]; exists {
		return errors.Errorf("document %d already exists", log.ID)
	}
	m.docs[log.ID] = body
	return nil
}

func (m *MemoryIndex) Get(ctx context.Context, id int64) (domain.Log, error) {
	m.mu.RLock()
	body, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return domain.Log{}, domain.NotFoundError{Resource: "log"}
	}

	var log domain.Log
	if err := json.Unmarshal(body, &log); err != nil {
		return domain.Log{}, errors.Wrap(err, "unmarshal log")
	}
	return log, nil
}

func (m *MemoryIndex) Update(ctx context.Context, id int64, partial map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	body, ok := m.docs[id]
	if !ok {
		return domain.NotFoundError{Resource: "log"}
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return errors.Wrap(err, "unmarshal log")
	}
	for k, v := range partial {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "marshal log")
	}

	// reject partial documents that no longer decode as a log entry
	var check domain.Log
	if err := json.Unmarshal(merged, &check); err != nil {
		return errors.Wrap(err, "invalid partial document")
	}
	m.docs[id] = merged
	return nil
}

type hit struct {
	created time.Time
	id      int64
	body    []byte
}

func (m *MemoryIndex) Search(ctx context.Context, req search.Request) (domain.SearchResult, error) {
	if req.Query == nil {
		req.Query = search.MatchAllQuery{}
	}

	m.mu.RLock()
	var hits []hit
	for id, body := range m.docs {
		if err := ctx.Err(); err != nil {
			m.mu.RUnlock()
			return domain.SearchResult{}, err
		}
		var doc map[string]any
		if err := json.Unmarshal(body, &doc); err != nil {
			m.mu.RUnlock()
			return domain.SearchResult{}, errors.Wrapf(err, "unmarshal log %d", id)
		}
		if !matches(req.Query, scope{obj: doc}) {
			continue
		}
		created, _ := doc[search.FieldCreatedDate].(string)
		t, _ := time.Parse(time.RFC3339Nano, created)
		hits = append(hits, hit{created: t, id: id, body: body})
	}
	m.mu.RUnlock()

	ascending := len(req.Sort) > 0 && req.Sort[0].Order == search.SortAscending
	byID := len(req.Sort) > 0 && req.Sort[0].Field == search.FieldID
	sort.Slice(hits, func(i, j int) bool {
		if !byID && !hits[i].created.Equal(hits[j].created) {
			if ascending {
				return hits[i].created.Before(hits[j].created)
			}
			return hits[i].created.After(hits[j].created)
		}
		if ascending {
			return hits[i].id < hits[j].id
		}
		return hits[i].id > hits[j].id
	})

	result := domain.SearchResult{HitCount: int64(len(hits)), Logs: []domain.Log{}}

	from := max(req.From, 0)
	if from >= len(hits) {
		return result, nil
	}
	end := len(hits)
	if req.Size > 0 && from+req.Size < end {
		end = from + req.Size
	}

	for _, h := range hits[from:end] {
		var log domain.Log
		if err := json.Unmarshal(h.body, &log); err != nil {
			return domain.SearchResult{}, errors.Wrapf(err, "unmarshal log %d", h.id)
		}
		result.Logs = append(result.Logs, log)
	}
	return result, nil
}

var _ usecase.DocumentIndex = (*MemoryIndex)(nil)
