package usecase

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/totegamma/logbook/internal/domain"
)

type TagUsecase struct {
	repo TagRepository
}

func NewTagUsecase(repo TagRepository) *TagUsecase {
	return &TagUsecase{repo: repo}
}

func (uc *TagUsecase) List(ctx context.Context, includeInactive bool) ([]domain.Tag, error) {
	tags, err := uc.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return tags, nil
	}
	active := make([]domain.Tag, 0, len(tags))
	for _, t := range tags {
		if t.State.IsActive() {
			active = append(active, t)
		}
	}
	return active, nil
}

func (uc *TagUsecase) Get(ctx context.Context, name string) (domain.Tag, error) {
	return uc.repo.Get(ctx, name)
}

// Upsert creates the tag or replaces the stored one with the same name.
func (uc *TagUsecase) Upsert(ctx context.Context, tag domain.Tag) (domain.Tag, error) {
	tag.Name = strings.TrimSpace(tag.Name)
	if tag.Name == "" {
		return domain.Tag{}, errors.Wrap(domain.ErrInvalidEntity, "tag name is required")
	}
	if !tag.State.Valid() {
		return domain.Tag{}, errors.Wrapf(domain.ErrInvalidEntity, "unknown state %q", tag.State)
	}
	tag.State = tag.State.Normalize()
	return uc.repo.Upsert(ctx, tag)
}

// Delete marks the tag inactive. Deleting an inactive tag is a no-op.
func (uc *TagUsecase) Delete(ctx context.Context, name string) (domain.Tag, error) {
	return uc.repo.SetState(ctx, name, domain.StateInactive)
}
