package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/logbook/internal/infra/database/models"
)

// CounterRepository keeps sequences in a table. The increment and the read-back run in one
// transaction, so the row lock taken by the update serializes concurrent callers.
type CounterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

func (r *CounterRepository) Increment(ctx context.Context, key string) (int64, error) {
	var counter models.Counter
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Counter{Name: key}).Error
		if err != nil {
			return err
		}

		err = tx.
			Model(&models.Counter{}).
			Where("name = ?", key).
			Update("value", gorm.Expr("value + 1")).Error
		if err != nil {
			return err
		}

		return tx.Where("name = ?", key).Take(&counter).Error
	})
	if err != nil {
		return 0, errors.Wrapf(err, "increment counter %s", key)
	}
	return counter.Value, nil
}
