package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/totegamma/logbook/internal/domain"
)

type mockMemcache struct {
	items map[string]*memcache.Item
	err   error
}

func (m *mockMemcache) Get(key string) (*memcache.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	item, ok := m.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return item, nil
}

func (m *mockMemcache) Set(item *memcache.Item) error {
	if m.err != nil {
		return m.err
	}
	m.items[item.Key] = item
	return nil
}

func (m *mockMemcache) Delete(key string) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.items[key]; !ok {
		return memcache.ErrCacheMiss
	}
	delete(m.items, key)
	return nil
}

func TestLogCacheRoundTrip(t *testing.T) {
	mc := &mockMemcache{items: map[string]*memcache.Item{}}
	c := NewLogCache(mc)
	ctx := context.Background()

	if _, ok := c.Get(ctx, 1); ok {
		t.Fatalf("expected miss")
	}

	log := domain.NewLog(1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), domain.LogDraft{
		Description: "hello",
		Tags:        []domain.Tag{domain.NewTag("alpha")},
	}, nil)
	c.Set(ctx, log)

	if item := mc.items["logbook:log:1"]; item == nil || item.Expiration != logTTL {
		t.Fatalf("unexpected item %+v", item)
	}

	got, ok := c.Get(ctx, 1)
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.Description != "hello" || !got.CreatedDate.Equal(log.CreatedDate) || got.Tags[0].Name != "alpha" {
		t.Fatalf("unexpected log %+v", got)
	}
}

func TestLogCacheFailureIsMiss(t *testing.T) {
	mc := &mockMemcache{items: map[string]*memcache.Item{}, err: errors.New("connection refused")}
	c := NewLogCache(mc)

	c.Set(context.Background(), domain.Log{ID: 2})
	if _, ok := c.Get(context.Background(), 2); ok {
		t.Fatalf("expected miss on backend failure")
	}

	mc.err = nil
	mc.items["logbook:log:3"] = &memcache.Item{Key: "logbook:log:3", Value: []byte("{broken")}
	if _, ok := c.Get(context.Background(), 3); ok {
		t.Fatalf("expected miss on undecodable entry")
	}
}

func TestLogCacheInvalidate(t *testing.T) {
	mc := &mockMemcache{items: map[string]*memcache.Item{}}
	c := NewLogCache(mc)
	ctx := context.Background()

	c.Set(ctx, domain.Log{ID: 4, Level: "Info"})
	c.Invalidate(ctx, 4)
	if _, ok := c.Get(ctx, 4); ok {
		t.Fatalf("expected miss after invalidate")
	}

	// missing keys and backend failures are tolerated
	c.Invalidate(ctx, 5)
	mc.err = errors.New("connection refused")
	c.Invalidate(ctx, 4)
}
