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

type TagRepository struct {
	db    *gorm.DB
	cache *referenceCache
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db, cache: newReferenceCache()}
}

func (r *TagRepository) List(ctx context.Context) ([]domain.Tag, error) {
	var rows []models.Tag
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list tags")
	}
	tags := make([]domain.Tag, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, tagFromModel(row))
	}
	return tags, nil
}

func (r *TagRepository) Get(ctx context.Context, name string) (domain.Tag, error) {
	if cached, ok := r.cache.get(name); ok {
		return cached.(domain.Tag), nil
	}

	generation := r.cache.begin(name)
	tag, err := r.load(ctx, name)
	if err != nil {
		return domain.Tag{}, err
	}
	r.cache.fill(name, generation, tag)
	return tag, nil
}

func (r *TagRepository) load(ctx context.Context, name string) (domain.Tag, error) {
	var row models.Tag
	err := r.db.WithContext(ctx).Where("name = ?", name).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Tag{}, domain.NotFoundError{Resource: "tag"}
		}
		return domain.Tag{}, pkgerrors.Wrapf(err, "get tag %q", name)
	}

	return tagFromModel(row), nil
}

func (r *TagRepository) Upsert(ctx context.Context, tag domain.Tag) (domain.Tag, error) {
	row := models.Tag{Name: tag.Name, State: string(tag.State.Normalize())}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "m_date"}),
		}).
		Create(&row).Error
	r.cache.invalidate(tag.Name)
	if err != nil {
		return domain.Tag{}, pkgerrors.Wrapf(err, "upsert tag %q", tag.Name)
	}
	return tagFromModel(row), nil
}

func (r *TagRepository) SetState(ctx context.Context, name string, state domain.State) (domain.Tag, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Tag{}).
		Where("name = ?", name).
		Update("state", string(state))
	r.cache.invalidate(name)
	if result.Error != nil {
		return domain.Tag{}, pkgerrors.Wrapf(result.Error, "set state of tag %q", name)
	}
	if result.RowsAffected == 0 {
		return domain.Tag{}, domain.NotFoundError{Resource: "tag"}
	}
	return r.load(ctx, name)
}

func tagFromModel(row models.Tag) domain.Tag {
	return domain.Tag{Name: row.Name, State: domain.State(row.State).Normalize()}
}
