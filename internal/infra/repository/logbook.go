package repository

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/logbook/internal/domain"
	"github.com/totegamma/logbook/internal/infra/database/models"
)

type LogbookRepository struct {
	db    *gorm.DB
	cache *referenceCache
}

func NewLogbookRepository(db *gorm.DB) *LogbookRepository {
	return &LogbookRepository{db: db, cache: newReferenceCache()}
}

func (r *LogbookRepository) List(ctx context.Context) ([]domain.Logbook, error) {
	var rows []models.Logbook
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list logbooks")
	}
	logbooks := make([]domain.Logbook, 0, len(rows))
	for _, row := range rows {
		logbooks = append(logbooks, logbookFromModel(row))
	}
	return logbooks, nil
}

func (r *LogbookRepository) Get(ctx context.Context, name string) (domain.Logbook, error) {
	if cached, ok := r.cache.get(name); ok {
		return cached.(domain.Logbook), nil
	}

	generation := r.cache.begin(name)
	logbook, err := r.load(ctx, name)
	if err != nil {
		return domain.Logbook{}, err
	}
	r.cache.fill(name, generation, logbook)
	return logbook, nil
}

func (r *LogbookRepository) load(ctx context.Context, name string) (domain.Logbook, error) {
	var row models.Logbook
	err := r.db.WithContext(ctx).Where("name = ?", name).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Logbook{}, domain.NotFoundError{Resource: "logbook"}
		}
		return domain.Logbook{}, pkgerrors.Wrapf(err, "get logbook %q", name)
	}

	return logbookFromModel(row), nil
}

func (r *LogbookRepository) Upsert(ctx context.Context, logbook domain.Logbook) (domain.Logbook, error) {
	row := models.Logbook{
		Name:  logbook.Name,
		Owner: logbook.Owner,
		State: string(logbook.State.Normalize()),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner", "state", "m_date"}),
		}).
		Create(&row).Error
	r.cache.invalidate(logbook.Name)
	if err != nil {
		return domain.Logbook{}, pkgerrors.Wrapf(err, "upsert logbook %q", logbook.Name)
	}
	return logbookFromModel(row), nil
}

func (r *LogbookRepository) SetState(ctx context.Context, name string, state domain.State) (domain.Logbook, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Logbook{}).
		Where("name = ?", name).
		Update("state", string(state))
	r.cache.invalidate(name)
	if result.Error != nil {
		return domain.Logbook{}, pkgerrors.Wrapf(result.Error, "set state of logbook %q", name)
	}
	if result.RowsAffected == 0 {
		return domain.Logbook{}, domain.NotFoundError{Resource: "logbook"}
	}
	return r.load(ctx, name)
}

func logbookFromModel(row models.Logbook) domain.Logbook {
	return domain.Logbook{
		Name:  row.Name,
		Owner: row.Owner,
		State: domain.State(row.State).Normalize(),
	}
}
