package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/totegamma/logbook/internal/domain"
	"github.com/totegamma/logbook/internal/search"
)

var tracer = otel.Tracer("usecase")

// LogDeps are the collaborators of LogUsecase. Cache and Signal are optional.
type LogDeps struct {
	Sequence   *Generator
	Index      DocumentIndex
	Blobs      BlobStore
	Tags       TagRepository
	Logbooks   LogbookRepository
	Properties PropertyRepository
	Markup     MarkupProcessor
	Cache      LogCache
	Signal     SignalPublisher
	Search     search.Config
	Clock      func() time.Time
}

type LogUsecase struct {
	sequence   *Generator
	index      DocumentIndex
	blobs      BlobStore
	tags       TagRepository
	logbooks   LogbookRepository
	properties PropertyRepository
	markup     MarkupProcessor
	cache      LogCache
	signal     SignalPublisher
	search     search.Config
	clock      func() time.Time
}

func NewLogUsecase(deps LogDeps) *LogUsecase {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &LogUsecase{
		sequence:   deps.Sequence,
		index:      deps.Index,
		blobs:      deps.Blobs,
		tags:       deps.Tags,
		logbooks:   deps.Logbooks,
		properties: deps.Properties,
		markup:     deps.Markup,
		cache:      deps.Cache,
		signal:     deps.Signal,
		search:     deps.Search,
		clock:      clock,
	}
}

// Create validates the draft, assigns id and creation time, stores its attachments and
// indexes the entry. The returned log is the copy read back from the index.
func (uc *LogUsecase) Create(ctx context.Context, draft domain.LogDraft, uploads []domain.AttachmentUpload) (domain.Log, error) {
	ctx, span := tracer.Start(ctx, "Usecase.Log.Create")
	defer span.End()

	draft, err := uc.resolve(ctx, draft)
	if err != nil {
		span.RecordError(err)
		return domain.Log{}, err
	}
	if uc.markup != nil {
		draft = uc.markup.Process(draft)
	}

	id, err := uc.sequence.NextID(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.Log{}, err
	}
	span.SetAttributes(attribute.Int64("id", id))
	created := uc.clock().UTC().Truncate(time.Millisecond)

	attachments, err := uc.persistAttachments(ctx, uploads)
	if err != nil {
		span.RecordError(err)
		return domain.Log{}, err
	}

	log := domain.NewLog(id, created, draft, attachments)
	if err := uc.index.Index(ctx, log); err != nil {
		uc.removeAttachments(context.WithoutCancel(ctx), attachments)
		err = pkgerrors.Wrapf(domain.ErrIndexingFailed, "index log %d: %v", id, err)
		span.RecordError(err)
		return domain.Log{}, err
	}

	stored, err := uc.index.Get(ctx, id)
	if err != nil {
		err = pkgerrors.Wrapf(domain.ErrIndexingFailed, "read back log %d: %v", id, err)
		span.RecordError(err)
		return domain.Log{}, err
	}

	if uc.cache != nil {
		uc.cache.Set(ctx, stored)
	}
	uc.publish(ctx, stored)

	return stored, nil
}

func (uc *LogUsecase) Get(ctx context.Context, id int64) (domain.Log, error) {
	ctx, span := tracer.Start(ctx, "Usecase.Log.Get")
	defer span.End()

	if uc.cache != nil {
		if log, ok := uc.cache.Get(ctx, id); ok {
			return log, nil
		}
	}

	log, err := uc.index.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
		}
		return domain.Log{}, err
	}

	if uc.cache != nil {
		uc.cache.Set(ctx, log)
	}
	return log, nil
}

// Update merges partial into the indexed entry and drops any cached copy.
func (uc *LogUsecase) Update(ctx context.Context, id int64, partial map[string]any) error {
	ctx, span := tracer.Start(ctx, "Usecase.Log.Update")
	defer span.End()

	err := uc.index.Update(ctx, id, partial)
	if uc.cache != nil {
		uc.cache.Invalidate(ctx, id)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
		}
		return err
	}
	return nil
}

// Search runs the query described by params. Malformed parameters fail before the index is contacted.
func (uc *LogUsecase) Search(ctx context.Context, params map[string][]string) (domain.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Usecase.Log.Search")
	defer span.End()

	req, err := search.BuildSearchRequest(params, uc.search)
	if err != nil {
		return domain.SearchResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout+5*time.Second)
	defer cancel()

	result, err := uc.index.Search(ctx, req)
	if err != nil {
		span.RecordError(err)
		return domain.SearchResult{}, pkgerrors.Wrap(err, "search logs")
	}
	return result, nil
}

// resolve checks every referenced entity and replaces logbooks and tags with their stored form.
// Properties keep the submitted attribute values.
func (uc *LogUsecase) resolve(ctx context.Context, draft domain.LogDraft) (domain.LogDraft, error) {
	if len(draft.Logbooks) == 0 {
		return draft, pkgerrors.Wrap(domain.ErrInvalidLog, "at least one logbook is required")
	}

	logbooks := make([]domain.Logbook, 0, len(draft.Logbooks))
	for _, l := range draft.Logbooks {
		stored, err := uc.logbooks.Get(ctx, l.Name)
		if err = referenceError("logbook", l.Name, err, stored.State); err != nil {
			return draft, err
		}
		logbooks = append(logbooks, stored)
	}

	tags := make([]domain.Tag, 0, len(draft.Tags))
	for _, t := range draft.Tags {
		stored, err := uc.tags.Get(ctx, t.Name)
		if err = referenceError("tag", t.Name, err, stored.State); err != nil {
			return draft, err
		}
		tags = append(tags, stored)
	}

	properties := make([]domain.Property, 0, len(draft.Properties))
	for _, p := range draft.Properties {
		stored, err := uc.properties.Get(ctx, p.Name)
		if err = referenceError("property", p.Name, err, stored.State); err != nil {
			return draft, err
		}
		p = p.Clone()
		p.Owner = stored.Owner
		p.State = stored.State
		properties = append(properties, p)
	}

	draft.Logbooks = logbooks
	draft.Tags = tags
	draft.Properties = properties
	draft.Attachments = nil
	return draft, nil
}

func referenceError(kind, name string, err error, state domain.State) error {
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return pkgerrors.Wrapf(domain.ErrInvalidLog, "%s %q does not exist", kind, name)
		}
		return pkgerrors.Wrapf(err, "lookup %s %q", kind, name)
	}
	if !state.IsActive() {
		return pkgerrors.Wrapf(domain.ErrInvalidLog, "%s %q is inactive", kind, name)
	}
	return nil
}

// persistAttachments stores all uploads concurrently. Either every upload is stored or none is.
func (uc *LogUsecase) persistAttachments(ctx context.Context, uploads []domain.AttachmentUpload) ([]domain.Attachment, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	stored := make([]domain.Attachment, len(uploads))
	done := make([]bool, len(uploads))

	// siblings never cancel each other; every committed store is recorded for rollback
	storeCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	for i, upload := range uploads {
		i, upload := i, upload
		g.Go(func() error {
			attachment, err := uc.blobs.Store(storeCtx, upload.Attachment, upload.Content)
			if err != nil {
				return pkgerrors.Wrapf(err, "store %q", upload.Attachment.Filename)
			}
			stored[i] = attachment
			done[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var persisted []domain.Attachment
		for i, ok := range done {
			if ok {
				persisted = append(persisted, stored[i])
			}
		}
		uc.removeAttachments(context.WithoutCancel(ctx), persisted)
		return nil, pkgerrors.Wrapf(domain.ErrAttachmentPersistFailed, "%v", err)
	}
	return stored, nil
}

func (uc *LogUsecase) removeAttachments(ctx context.Context, attachments []domain.Attachment) {
	for _, a := range attachments {
		if err := uc.blobs.Remove(ctx, a.ID); err != nil {
			slog.ErrorContext(
				ctx, "failed to remove attachment",
				slog.String("attachment", a.ID),
				slog.String("error", err.Error()),
				slog.String("module", "log"),
			)
		}
	}
}

func (uc *LogUsecase) publish(ctx context.Context, log domain.Log) {
	if uc.signal == nil {
		return
	}
	err := uc.signal.Publish(ctx, domain.LogCreatedChannel, domain.LogCreatedEvent{
		ID:          log.ID,
		Owner:       log.Owner,
		Logbooks:    logbookNames(log.Logbooks),
		CreatedDate: log.CreatedDate,
	})
	if err != nil {
		slog.WarnContext(
			ctx, "failed to publish log signal",
			slog.Int64("id", log.ID),
			slog.String("error", err.Error()),
			slog.String("module", "log"),
		)
	}
}

func logbookNames(logbooks []domain.Logbook) []string {
	names := make([]string, 0, len(logbooks))
	for _, l := range logbooks {
		names = append(names, l.Name)
	}
	return names
}
