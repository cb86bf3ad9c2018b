package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/totegamma/logbook/internal/domain"
	"github.com/totegamma/logbook/internal/search"
)

type mockCounter struct {
	value atomic.Int64
	err   error
	fixed *int64
}

func (m *mockCounter) Increment(ctx context.Context, key string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if m.fixed != nil {
		return *m.fixed, nil
	}
	return m.value.Add(1), nil
}

type mockIndex struct {
	mu        sync.Mutex
	docs      map[int64]domain.Log
	indexErr  error
	getErr    error
	searchReq *search.Request
}

func newMockIndex() *mockIndex {
	return &mockIndex{docs: map[int64]domain.Log{}}
}

func (m *mockIndex) Index(ctx context.Context, log domain.Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexErr != nil {
		return m.indexErr
	}
	if _, ok := m.docs[log.ID]; ok {
		return fmt.Errorf("duplicate %d", log.ID)
	}
	m.docs[log.ID] = log
	return nil
}

func (m *mockIndex) Get(ctx context.Context, id int64) (domain.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.Log{}, m.getErr
	}
	log, ok := m.docs[id]
	if !ok {
		return domain.Log{}, domain.NotFoundError{Resource: "log"}
	}
	return log, nil
}

func (m *mockIndex) Search(ctx context.Context, req search.Request) (domain.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchReq = &req
	result := domain.SearchResult{}
	for _, log := range m.docs {
		result.Logs = append(result.Logs, log)
	}
	result.HitCount = int64(len(result.Logs))
	sort.Slice(result.Logs, func(i, j int) bool { return result.Logs[i].ID > result.Logs[j].ID })
	if len(req.Sort) > 0 && req.Sort[0].Field == search.FieldID && req.Size > 0 && req.Size < len(result.Logs) {
		result.Logs = result.Logs[:req.Size]
	}
	return result, nil
}

func (m *mockIndex) Update(ctx context.Context, id int64, partial map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.docs[id]
	if !ok {
		return domain.NotFoundError{Resource: "log"}
	}
	if level, ok := partial["level"].(string); ok {
		log.Level = level
	}
	m.docs[id] = log
	return nil
}

type mockBlobs struct {
	mu      sync.Mutex
	stored  map[string][]byte
	removed []string
	failOn  string
	next    int
	// lateOn stores only after failOn has failed and then reports ctx.Err()
	lateOn string
	failed chan struct{}
}

func newMockBlobs() *mockBlobs {
	return &mockBlobs{stored: map[string][]byte{}}
}

func (m *mockBlobs) Store(ctx context.Context, meta domain.Attachment, content io.Reader) (domain.Attachment, error) {
	if meta.Filename == m.failOn {
		if m.failed != nil {
			close(m.failed)
		}
		return domain.Attachment{}, fmt.Errorf("disk full")
	}
	if meta.Filename == m.lateOn && m.failed != nil {
		<-m.failed
	}
	body, err := io.ReadAll(content)
	if err != nil {
		return domain.Attachment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	meta.ID = fmt.Sprintf("blob-%d", m.next)
	m.stored[meta.ID] = body
	if meta.Filename == m.lateOn {
		return meta, ctx.Err()
	}
	return meta, nil
}

func (m *mockBlobs) Fetch(ctx context.Context, id string) (domain.Attachment, io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.stored[id]
	if !ok {
		return domain.Attachment{}, nil, domain.NotFoundError{Resource: "attachment"}
	}
	return domain.Attachment{ID: id}, io.NopCloser(bytes.NewReader(body)), nil
}

func (m *mockBlobs) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stored, id)
	m.removed = append(m.removed, id)
	return nil
}

type mockTags struct {
	tags map[string]domain.Tag
}

func (m *mockTags) List(ctx context.Context) ([]domain.Tag, error) {
	var out []domain.Tag
	for _, t := range m.tags {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTags) Get(ctx context.Context, name string) (domain.Tag, error) {
	t, ok := m.tags[name]
	if !ok {
		return domain.Tag{}, domain.NotFoundError{Resource: "tag"}
	}
	return t, nil
}

func (m *mockTags) Upsert(ctx context.Context, tag domain.Tag) (domain.Tag, error) {
	m.tags[tag.Name] = tag
	return tag, nil
}

func (m *mockTags) SetState(ctx context.Context, name string, state domain.State) (domain.Tag, error) {
	t, ok := m.tags[name]
	if !ok {
		return domain.Tag{}, domain.NotFoundError{Resource: "tag"}
	}
	t.State = state
	m.tags[name] = t
	return t, nil
}

type mockLogbooks struct {
	logbooks map[string]domain.Logbook
}

func (m *mockLogbooks) List(ctx context.Context) ([]domain.Logbook, error) {
	var out []domain.Logbook
	for _, l := range m.logbooks {
		out = append(out, l)
	}
	return out, nil
}

func (m *mockLogbooks) Get(ctx context.Context, name string) (domain.Logbook, error) {
	l, ok := m.logbooks[name]
	if !ok {
		return domain.Logbook{}, domain.NotFoundError{Resource: "logbook"}
	}
	return l, nil
}

func (m *mockLogbooks) Upsert(ctx context.Context, logbook domain.Logbook) (domain.Logbook, error) {
	m.logbooks[logbook.Name] = logbook
	return logbook, nil
}

func (m *mockLogbooks) SetState(ctx context.Context, name string, state domain.State) (domain.Logbook, error) {
	l, ok := m.logbooks[name]
	if !ok {
		return domain.Logbook{}, domain.NotFoundError{Resource: "logbook"}
	}
	l.State = state
	m.logbooks[name] = l
	return l, nil
}

type mockProperties struct {
	properties map[string]domain.Property
}

func (m *mockProperties) List(ctx context.Context) ([]domain.Property, error) {
	var out []domain.Property
	for _, p := range m.properties {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProperties) Get(ctx context.Context, name string) (domain.Property, error) {
	p, ok := m.properties[name]
	if !ok {
		return domain.Property{}, domain.NotFoundError{Resource: "property"}
	}
	return p.Clone(), nil
}

func (m *mockProperties) Upsert(ctx context.Context, property domain.Property) (domain.Property, error) {
	m.properties[property.Name] = property
	return property, nil
}

func (m *mockProperties) SetState(ctx context.Context, name string, state domain.State) (domain.Property, error) {
	p, ok := m.properties[name]
	if !ok {
		return domain.Property{}, domain.NotFoundError{Resource: "property"}
	}
	p.State = state
	m.properties[name] = p
	return p, nil
}

func (m *mockProperties) SetAttributeState(ctx context.Context, property, attribute string, state domain.State) (domain.Property, error) {
	p, ok := m.properties[property]
	if !ok {
		return domain.Property{}, domain.NotFoundError{Resource: "property"}
	}
	updated, found := p.DeactivateAttribute(attribute)
	if !found {
		return domain.Property{}, domain.NotFoundError{Resource: "attribute"}
	}
	m.properties[property] = updated
	return updated, nil
}

type mockCache struct {
	logs map[int64]domain.Log
	hits int
}

func (m *mockCache) Get(ctx context.Context, id int64) (domain.Log, bool) {
	log, ok := m.logs[id]
	if ok {
		m.hits++
	}
	return log, ok
}

func (m *mockCache) Set(ctx context.Context, log domain.Log) {
	m.logs[log.ID] = log
}

func (m *mockCache) Invalidate(ctx context.Context, id int64) {
	delete(m.logs, id)
}

type mockSignal struct {
	channel string
	payload any
	err     error
}

func (m *mockSignal) Publish(ctx context.Context, channel string, payload any) error {
	m.channel = channel
	m.payload = payload
	return m.err
}

type prefixMarkup struct{}

func (prefixMarkup) Process(draft domain.LogDraft) domain.LogDraft {
	draft.Source = draft.Description
	draft.Description = "processed: " + draft.Description
	return draft
}
