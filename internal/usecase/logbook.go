package usecase

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/totegamma/logbook/internal/domain"
)

type LogbookUsecase struct {
	repo LogbookRepository
}

func NewLogbookUsecase(repo LogbookRepository) *LogbookUsecase {
	return &LogbookUsecase{repo: repo}
}

func (uc *LogbookUsecase) List(ctx context.Context, includeInactive bool) ([]domain.Logbook, error) {
	logbooks, err := uc.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return logbooks, nil
	}
	active := make([]domain.Logbook, 0, len(logbooks))
	for _, l := range logbooks {
		if l.State.IsActive() {
			active = append(active, l)
		}
	}
	return active, nil
}

func (uc *LogbookUsecase) Get(ctx context.Context, name string) (domain.Logbook, error) {
	return uc.repo.Get(ctx, name)
}

func (uc *LogbookUsecase) Upsert(ctx context.Context, logbook domain.Logbook) (domain.Logbook, error) {
	logbook.Name = strings.TrimSpace(logbook.Name)
	if logbook.Name == "" {
		return domain.Logbook{}, errors.Wrap(domain.ErrInvalidEntity, "logbook name is required")
	}
	if !logbook.State.Valid() {
		return domain.Logbook{}, errors.Wrapf(domain.ErrInvalidEntity, "unknown state %q", logbook.State)
	}
	logbook.State = logbook.State.Normalize()
	return uc.repo.Upsert(ctx, logbook)
}

// Delete marks the logbook inactive. Entries already filed in it are not touched.
func (uc *LogbookUsecase) Delete(ctx context.Context, name string) (domain.Logbook, error) {
	return uc.repo.SetState(ctx, name, domain.StateInactive)
}
