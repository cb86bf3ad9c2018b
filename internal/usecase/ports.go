package usecase

import (
	"context"
	"io"

	"github.com/totegamma/logbook/internal/domain"
	"github.com/totegamma/logbook/internal/search"
)

// Counter is a durable counter store. Increment must be an atomic fetch-and-increment.
type Counter interface {
	Increment(ctx context.Context, key string) (int64, error)
}

// DocumentIndex stores and searches log documents.
type DocumentIndex interface {
	// Index writes a new document. Writing an id that already exists is an error.
	Index(ctx context.Context, log domain.Log) error
	Get(ctx context.Context, id int64) (domain.Log, error)
	Search(ctx context.Context, req search.Request) (domain.SearchResult, error)
	Update(ctx context.Context, id int64, partial map[string]any) error
}

// BlobStore persists attachment payloads.
type BlobStore interface {
	Store(ctx context.Context, meta domain.Attachment, content io.Reader) (domain.Attachment, error)
	Fetch(ctx context.Context, id string) (domain.Attachment, io.ReadCloser, error)
	Remove(ctx context.Context, id string) error
}

// TagRepository stores tags. There is no delete; state changes replace it.
type TagRepository interface {
	List(ctx context.Context) ([]domain.Tag, error)
	Get(ctx context.Context, name string) (domain.Tag, error)
	Upsert(ctx context.Context, tag domain.Tag) (domain.Tag, error)
	SetState(ctx context.Context, name string, state domain.State) (domain.Tag, error)
}

// LogbookRepository stores logbooks. There is no delete; state changes replace it.
type LogbookRepository interface {
	List(ctx context.Context) ([]domain.Logbook, error)
	Get(ctx context.Context, name string) (domain.Logbook, error)
	Upsert(ctx context.Context, logbook domain.Logbook) (domain.Logbook, error)
	SetState(ctx context.Context, name string, state domain.State) (domain.Logbook, error)
}

// PropertyRepository stores properties and their attributes.
type PropertyRepository interface {
	List(ctx context.Context) ([]domain.Property, error)
	Get(ctx context.Context, name string) (domain.Property, error)
	Upsert(ctx context.Context, property domain.Property) (domain.Property, error)
	SetState(ctx context.Context, name string, state domain.State) (domain.Property, error)
	SetAttributeState(ctx context.Context, property, attribute string, state domain.State) (domain.Property, error)
}

// LogCache holds stored log entries by id. Writers that change an entry must Invalidate it.
type LogCache interface {
	Get(ctx context.Context, id int64) (domain.Log, bool)
	Set(ctx context.Context, log domain.Log)
	Invalidate(ctx context.Context, id int64)
}

// SignalPublisher broadcasts events to realtime subscribers.
type SignalPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// MarkupProcessor derives the stored description and source of a draft from its markup.
type MarkupProcessor interface {
	Process(draft domain.LogDraft) domain.LogDraft
}
