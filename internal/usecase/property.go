package usecase

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/totegamma/logbook/internal/domain"
)

type PropertyUsecase struct {
	repo PropertyRepository
}

func NewPropertyUsecase(repo PropertyRepository) *PropertyUsecase {
	return &PropertyUsecase{repo: repo}
}

func (uc *PropertyUsecase) List(ctx context.Context, includeInactive bool) ([]domain.Property, error) {
	properties, err := uc.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return properties, nil
	}
	active := make([]domain.Property, 0, len(properties))
	for _, p := range properties {
		if p.State.IsActive() {
			active = append(active, p)
		}
	}
	return active, nil
}

func (uc *PropertyUsecase) Get(ctx context.Context, name string) (domain.Property, error) {
	return uc.repo.Get(ctx, name)
}

// Upsert stores the property with its attribute set. Attributes missing from the
// submission keep their stored value.
func (uc *PropertyUsecase) Upsert(ctx context.Context, property domain.Property) (domain.Property, error) {
	property.Name = strings.TrimSpace(property.Name)
	if property.Name == "" {
		return domain.Property{}, errors.Wrap(domain.ErrInvalidEntity, "property name is required")
	}
	if !property.State.Valid() {
		return domain.Property{}, errors.Wrapf(domain.ErrInvalidEntity, "unknown state %q", property.State)
	}
	for _, a := range property.Attributes {
		if strings.TrimSpace(a.Name) == "" {
			return domain.Property{}, errors.Wrapf(domain.ErrInvalidEntity, "property %q has an unnamed attribute", property.Name)
		}
		if !a.State.Valid() {
			return domain.Property{}, errors.Wrapf(domain.ErrInvalidEntity, "attribute %q has unknown state %q", a.Name, a.State)
		}
	}
	return uc.repo.Upsert(ctx, property.Clone().Normalize())
}

// Delete marks the property inactive. Its attributes keep their own state.
func (uc *PropertyUsecase) Delete(ctx context.Context, name string) (domain.Property, error) {
	return uc.repo.SetState(ctx, name, domain.StateInactive)
}

// DeleteAttribute marks one attribute of the property inactive.
func (uc *PropertyUsecase) DeleteAttribute(ctx context.Context, property, attribute string) (domain.Property, error) {
	return uc.repo.SetAttributeState(ctx, property, attribute, domain.StateInactive)
}
