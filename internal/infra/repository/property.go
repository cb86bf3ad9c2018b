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

type PropertyRepository struct {
	db    *gorm.DB
	cache *referenceCache
}

func NewPropertyRepository(db *gorm.DB) *PropertyRepository {
	return &PropertyRepository{db: db, cache: newReferenceCache()}
}

func orderedAttributes(db *gorm.DB) *gorm.DB {
	return db.Order("position, name")
}

func (r *PropertyRepository) List(ctx context.Context) ([]domain.Property, error) {
	var rows []models.Property
	err := r.db.WithContext(ctx).
		Preload("Attributes", orderedAttributes).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list properties")
	}
	properties := make([]domain.Property, 0, len(rows))
	for _, row := range rows {
		properties = append(properties, propertyFromModel(row))
	}
	return properties, nil
}

func (r *PropertyRepository) Get(ctx context.Context, name string) (domain.Property, error) {
	if cached, ok := r.cache.get(name); ok {
		return cached.(domain.Property).Clone(), nil
	}

	generation := r.cache.begin(name)
	property, err := r.load(ctx, r.db, name)
	if err != nil {
		return domain.Property{}, err
	}
	r.cache.fill(name, generation, property.Clone())
	return property, nil
}

func (r *PropertyRepository) load(ctx context.Context, db *gorm.DB, name string) (domain.Property, error) {
	var row models.Property
	err := db.WithContext(ctx).
		Preload("Attributes", orderedAttributes).
		Where("name = ?", name).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Property{}, domain.NotFoundError{Resource: "property"}
		}
		return domain.Property{}, pkgerrors.Wrapf(err, "get property %q", name)
	}

	return propertyFromModel(row), nil
}

// Upsert writes the property row and each submitted attribute. Stored attributes that are
// not part of the submission are left as they are.
func (r *PropertyRepository) Upsert(ctx context.Context, property domain.Property) (domain.Property, error) {
	property = property.Normalize()

	var stored domain.Property
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.Property{
			Name:  property.Name,
			Owner: property.Owner,
			State: string(property.State),
		}
		err := tx.
			Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"owner", "state", "m_date"}),
			}).
			Create(&row).Error
		if err != nil {
			return pkgerrors.Wrap(err, "upsert property row")
		}

		if len(property.Attributes) > 0 {
			attributes := make([]models.PropertyAttribute, 0, len(property.Attributes))
			for i, a := range property.Attributes {
				attributes = append(attributes, models.PropertyAttribute{
					PropertyName: property.Name,
					Name:         a.Name,
					Value:        a.Value,
					State:        string(a.State),
					Position:     i,
				})
			}
			err = tx.
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "property_name"}, {Name: "name"}},
					DoUpdates: clause.AssignmentColumns([]string{"value", "state", "position", "m_date"}),
				}).
				Create(&attributes).Error
			if err != nil {
				return pkgerrors.Wrap(err, "upsert property attributes")
			}
		}

		stored, err = r.load(ctx, tx, property.Name)
		return err
	})
	r.cache.invalidate(property.Name)
	if err != nil {
		return domain.Property{}, pkgerrors.Wrapf(err, "upsert property %q", property.Name)
	}
	return stored, nil
}

func (r *PropertyRepository) SetState(ctx context.Context, name string, state domain.State) (domain.Property, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Property{}).
		Where("name = ?", name).
		Update("state", string(state))
	r.cache.invalidate(name)
	if result.Error != nil {
		return domain.Property{}, pkgerrors.Wrapf(result.Error, "set state of property %q", name)
	}
	if result.RowsAffected == 0 {
		return domain.Property{}, domain.NotFoundError{Resource: "property"}
	}
	return r.load(ctx, r.db, name)
}

func (r *PropertyRepository) SetAttributeState(ctx context.Context, property, attribute string, state domain.State) (domain.Property, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PropertyAttribute{}).
		Where("property_name = ? AND name = ?", property, attribute).
		Update("state", string(state))
	r.cache.invalidate(property)
	if result.Error != nil {
		return domain.Property{}, pkgerrors.Wrapf(result.Error, "set state of attribute %q.%q", property, attribute)
	}
	if result.RowsAffected == 0 {
		if _, err := r.load(ctx, r.db, property); err != nil {
			return domain.Property{}, err
		}
		return domain.Property{}, domain.NotFoundError{Resource: "attribute"}
	}
	return r.load(ctx, r.db, property)
}

func propertyFromModel(row models.Property) domain.Property {
	property := domain.Property{
		Name:       row.Name,
		Owner:      row.Owner,
		State:      domain.State(row.State).Normalize(),
		Attributes: make([]domain.Attribute, 0, len(row.Attributes)),
	}
	for _, a := range row.Attributes {
		property.Attributes = append(property.Attributes, domain.Attribute{
			Name:  a.Name,
			Value: a.Value,
			State: domain.State(a.State).Normalize(),
		})
	}
	return property
}
