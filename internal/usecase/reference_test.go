package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/totegamma/logbook/internal/domain"
)

func TestTagDeleteIsIdempotent(t *testing.T) {
	repo := &mockTags{tags: map[string]domain.Tag{}}
	uc := NewTagUsecase(repo)
	ctx := context.Background()

	if _, err := uc.Upsert(ctx, domain.Tag{Name: " alpha "}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		tag, err := uc.Delete(ctx, "alpha")
		if err != nil {
			t.Fatalf("delete %d failed: %v", i, err)
		}
		if tag.State != domain.StateInactive {
			t.Fatalf("delete %d: expected inactive, got %s", i, tag.State)
		}
	}

	tag, err := uc.Get(ctx, "alpha")
	if err != nil {
		t.Fatalf("deleted tag must remain retrievable: %v", err)
	}
	if tag.State != domain.StateInactive {
		t.Fatalf("expected inactive, got %s", tag.State)
	}

	active, err := uc.List(ctx, false)
	if err != nil || len(active) != 0 {
		t.Fatalf("inactive tags must be hidden by default: %v %v", active, err)
	}
	all, err := uc.List(ctx, true)
	if err != nil || len(all) != 1 {
		t.Fatalf("inactive tags must be listed on request: %v %v", all, err)
	}
}

func TestTagUpsertValidation(t *testing.T) {
	uc := NewTagUsecase(&mockTags{tags: map[string]domain.Tag{}})

	if _, err := uc.Upsert(context.Background(), domain.Tag{Name: "  "}); !errors.Is(err, domain.ErrInvalidEntity) {
		t.Fatalf("expected invalid entity, got %v", err)
	}
	if _, err := uc.Upsert(context.Background(), domain.Tag{Name: "x", State: "Gone"}); !errors.Is(err, domain.ErrInvalidEntity) {
		t.Fatalf("expected invalid entity, got %v", err)
	}

	tag, err := uc.Upsert(context.Background(), domain.Tag{Name: "x"})
	if err != nil || tag.State != domain.StateActive {
		t.Fatalf("expected active tag, got %+v %v", tag, err)
	}
}

func TestLogbookDeleteUnknown(t *testing.T) {
	uc := NewLogbookUsecase(&mockLogbooks{logbooks: map[string]domain.Logbook{}})
	if _, err := uc.Delete(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPropertyUpsertCollapsesAttributes(t *testing.T) {
	repo := &mockProperties{properties: map[string]domain.Property{}}
	uc := NewPropertyUsecase(repo)

	stored, err := uc.Upsert(context.Background(), domain.Property{
		Name: "shift",
		Attributes: []domain.Attribute{
			{Name: "lead", Value: "alice"},
			{Name: "crew", Value: "3"},
			{Name: "lead", Value: "bob"},
		},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if len(stored.Attributes) != 2 {
		t.Fatalf("expected 2 attributes, got %+v", stored.Attributes)
	}
	if stored.Attributes[0].Name != "lead" || stored.Attributes[0].Value != "bob" {
		t.Fatalf("last duplicate must win in first position: %+v", stored.Attributes)
	}
	if stored.State != domain.StateActive || stored.Attributes[1].State != domain.StateActive {
		t.Fatalf("states must default to active: %+v", stored)
	}

	if _, err := uc.Upsert(context.Background(), domain.Property{Name: "p", Attributes: []domain.Attribute{{Value: "v"}}}); !errors.Is(err, domain.ErrInvalidEntity) {
		t.Fatalf("expected invalid entity, got %v", err)
	}
}

func TestPropertyDeleteAttribute(t *testing.T) {
	repo := &mockProperties{properties: map[string]domain.Property{
		"shift": {
			Name:  "shift",
			State: domain.StateActive,
			Attributes: []domain.Attribute{
				{Name: "lead", Value: "bob", State: domain.StateActive},
				{Name: "crew", Value: "3", State: domain.StateActive},
			},
		},
	}}
	uc := NewPropertyUsecase(repo)

	property, err := uc.DeleteAttribute(context.Background(), "shift", "lead")
	if err != nil {
		t.Fatalf("delete attribute failed: %v", err)
	}
	lead, ok := property.Attribute("lead")
	if !ok || lead.State != domain.StateInactive {
		t.Fatalf("attribute must stay in the set as inactive: %+v", property.Attributes)
	}
	crew, _ := property.Attribute("crew")
	if crew.State != domain.StateActive || property.State != domain.StateActive {
		t.Fatalf("other state must not change: %+v", property)
	}

	property, err = uc.Delete(context.Background(), "shift")
	if err != nil || property.State != domain.StateInactive {
		t.Fatalf("expected inactive property, got %+v %v", property, err)
	}
}

func TestAttachmentFetch(t *testing.T) {
	blobs := newMockBlobs()
	uc := NewAttachmentUsecase(blobs)

	if _, _, err := uc.Fetch(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
