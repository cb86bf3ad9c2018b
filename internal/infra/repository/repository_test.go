package repository

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/totegamma/logbook/internal/domain"
	"github.com/totegamma/logbook/internal/infra/database"
	"github.com/totegamma/logbook/internal/infra/database/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestTagRepositoryLifecycle(t *testing.T) {
	repo := NewTagRepository(newTestDB(t))
	ctx := context.Background()

	if _, err := repo.Get(ctx, "alpha"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := repo.Upsert(ctx, domain.NewTag("alpha")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, err := repo.Upsert(ctx, domain.NewTag("beta")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		tag, err := repo.SetState(ctx, "alpha", domain.StateInactive)
		if err != nil {
			t.Fatalf("soft delete %d failed: %v", i, err)
		}
		if tag.State != domain.StateInactive {
			t.Fatalf("soft delete %d: got state %s", i, tag.State)
		}
	}

	tag, err := repo.Get(ctx, "alpha")
	if err != nil || tag.State != domain.StateInactive {
		t.Fatalf("soft deleted tag must stay retrievable: %+v %v", tag, err)
	}

	tags, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "alpha" || tags[1].Name != "beta" {
		t.Fatalf("unexpected list: %+v", tags)
	}

	tag, err = repo.Upsert(ctx, domain.NewTag("alpha"))
	if err != nil || tag.State != domain.StateActive {
		t.Fatalf("upsert must reactivate: %+v %v", tag, err)
	}
	if tag, _ := repo.Get(ctx, "alpha"); tag.State != domain.StateActive {
		t.Fatalf("cache not refreshed: %+v", tag)
	}

	if _, err := repo.SetState(ctx, "gamma", domain.StateInactive); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReferenceCacheRejectsReadsOverlappingWrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tags := NewTagRepository(db)
	if _, err := tags.Upsert(ctx, domain.NewTag("alpha")); err != nil {
		t.Fatalf("upsert tag: %v", err)
	}
	// a reader misses and reads the Active row, then the state flips before it fills
	generation := tags.cache.begin("alpha")
	if _, err := tags.SetState(ctx, "alpha", domain.StateInactive); err != nil {
		t.Fatalf("set state: %v", err)
	}
	tags.cache.fill("alpha", generation, domain.NewTag("alpha"))
	if tag, err := tags.Get(ctx, "alpha"); err != nil || tag.State != domain.StateInactive {
		t.Fatalf("stale tag cached: %+v %v", tag, err)
	}

	logbooks := NewLogbookRepository(db)
	if _, err := logbooks.Upsert(ctx, domain.NewLogbook("ops", "admin")); err != nil {
		t.Fatalf("upsert logbook: %v", err)
	}
	generation = logbooks.cache.begin("ops")
	if _, err := logbooks.SetState(ctx, "ops", domain.StateInactive); err != nil {
		t.Fatalf("set state: %v", err)
	}
	logbooks.cache.fill("ops", generation, domain.NewLogbook("ops", "admin"))
	if logbook, err := logbooks.Get(ctx, "ops"); err != nil || logbook.State != domain.StateInactive {
		t.Fatalf("stale logbook cached: %+v %v", logbook, err)
	}

	properties := NewPropertyRepository(db)
	active := domain.Property{Name: "shift", State: domain.StateActive}
	if _, err := properties.Upsert(ctx, active); err != nil {
		t.Fatalf("upsert property: %v", err)
	}
	generation = properties.cache.begin("shift")
	if _, err := properties.SetState(ctx, "shift", domain.StateInactive); err != nil {
		t.Fatalf("set state: %v", err)
	}
	properties.cache.fill("shift", generation, active)
	if property, err := properties.Get(ctx, "shift"); err != nil || property.State != domain.StateInactive {
		t.Fatalf("stale property cached: %+v %v", property, err)
	}

	// reads that start after the write are cached
	if _, err := tags.Get(ctx, "alpha"); err != nil {
		t.Fatalf("get tag: %v", err)
	}
	if cached, ok := tags.cache.get("alpha"); !ok || cached.(domain.Tag).State != domain.StateInactive {
		t.Fatalf("expected inactive tag in cache, got %+v %v", cached, ok)
	}
}

func TestLogbookRepositoryUpsertReplacesOwner(t *testing.T) {
	repo := NewLogbookRepository(newTestDB(t))
	ctx := context.Background()

	if _, err := repo.Upsert(ctx, domain.NewLogbook("ops", "alice")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, err := repo.Get(ctx, "ops"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if _, err := repo.Upsert(ctx, domain.NewLogbook("ops", "bob")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	logbook, err := repo.Get(ctx, "ops")
	if err != nil || logbook.Owner != "bob" {
		t.Fatalf("expected owner bob, got %+v %v", logbook, err)
	}

	logbook, err = repo.SetState(ctx, "ops", domain.StateInactive)
	if err != nil || logbook.State != domain.StateInactive || logbook.Owner != "bob" {
		t.Fatalf("unexpected soft delete result: %+v %v", logbook, err)
	}
}

func TestPropertyRepositoryAttributes(t *testing.T) {
	repo := NewPropertyRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Upsert(ctx, domain.Property{
		Name:  "shift",
		Owner: "admin",
		Attributes: []domain.Attribute{
			{Name: "lead", Value: "alice"},
			{Name: "crew", Value: "3"},
		},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	stored, err := repo.Upsert(ctx, domain.Property{
		Name:       "shift",
		Owner:      "admin",
		Attributes: []domain.Attribute{{Name: "lead", Value: "bob"}},
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if len(stored.Attributes) != 2 {
		t.Fatalf("attributes must never be removed: %+v", stored.Attributes)
	}
	lead, _ := stored.Attribute("lead")
	crew, _ := stored.Attribute("crew")
	if lead.Value != "bob" || crew.Value != "3" {
		t.Fatalf("unexpected attributes: %+v", stored.Attributes)
	}

	property, err := repo.SetAttributeState(ctx, "shift", "crew", domain.StateInactive)
	if err != nil {
		t.Fatalf("delete attribute failed: %v", err)
	}
	crew, ok := property.Attribute("crew")
	if !ok || crew.State != domain.StateInactive || property.State != domain.StateActive {
		t.Fatalf("unexpected property after attribute delete: %+v", property)
	}

	if _, err := repo.SetAttributeState(ctx, "shift", "nope", domain.StateInactive); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for attribute, got %v", err)
	}
	if _, err := repo.SetAttributeState(ctx, "nope", "crew", domain.StateInactive); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for property, got %v", err)
	}

	property, err = repo.SetState(ctx, "shift", domain.StateInactive)
	if err != nil || property.State != domain.StateInactive || len(property.Attributes) != 2 {
		t.Fatalf("unexpected property after delete: %+v %v", property, err)
	}

	// cached values must not alias what callers modify
	got, _ := repo.Get(ctx, "shift")
	got.Attributes[0].Value = "mutated"
	again, _ := repo.Get(ctx, "shift")
	if again.Attributes[0].Value == "mutated" {
		t.Fatalf("cache returned shared attribute storage")
	}
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

func TestAttachmentRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttachmentRepository(db, 16)
	ctx := context.Background()

	stored, err := repo.Store(ctx, domain.Attachment{Filename: "../../etc/plot.png", FileMetadataDescription: "image/png"}, strings.NewReader("png bytes"))
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if stored.ID == "" || stored.Filename != "plot.png" {
		t.Fatalf("unexpected stored attachment: %+v", stored)
	}

	meta, body, err := repo.Fetch(ctx, stored.ID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	content, _ := io.ReadAll(body)
	body.Close()
	if string(content) != "png bytes" || meta.FileMetadataDescription != "image/png" {
		t.Fatalf("unexpected fetch: %+v %q", meta, content)
	}

	_, err = repo.Store(ctx, domain.Attachment{Filename: "big"}, strings.NewReader(strings.Repeat("x", 17)))
	if err == nil {
		t.Fatalf("expected oversized attachment to fail")
	}
	if _, ok := err.(stackTracer); !ok {
		t.Fatalf("expected error with stack trace, got %T", err)
	}
	if _, err := repo.Store(ctx, domain.Attachment{Filename: "empty"}, nil); err == nil {
		t.Fatalf("expected missing content to fail")
	} else if _, ok := err.(stackTracer); !ok {
		t.Fatalf("expected error with stack trace, got %T", err)
	}

	db.Model(&models.Attachment{}).Where("id = ?", stored.ID).Update("content", []byte("tampered"))
	if _, _, err := repo.Fetch(ctx, stored.ID); err == nil {
		t.Fatalf("expected checksum mismatch")
	} else if _, ok := err.(stackTracer); !ok {
		t.Fatalf("expected error with stack trace, got %T", err)
	}

	if err := repo.Remove(ctx, stored.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, _, err := repo.Fetch(ctx, stored.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
}

func TestCounterRepository(t *testing.T) {
	repo := NewCounterRepository(newTestDB(t))
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := repo.Increment(ctx, "log")
		if err != nil {
			t.Fatalf("increment failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
	if got, _ := repo.Increment(ctx, "other"); got != 1 {
		t.Fatalf("keys must be independent, got %d", got)
	}

	var mu sync.Mutex
	seen := map[int64]bool{}
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				v, err := repo.Increment(ctx, "log")
				if err != nil {
					t.Errorf("increment failed: %v", err)
					return
				}
				mu.Lock()
				if seen[v] {
					t.Errorf("duplicate value %d", v)
				}
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 200 {
		t.Fatalf("expected 200 distinct values, got %d", len(seen))
	}
}
