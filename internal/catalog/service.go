package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service exposes the priced model catalog.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.ModelDescriptor, error)
	List(ctx context.Context) ([]models.ModelDescriptor, error)
}

type service struct {
	repo Repository
}

// NewService wires a catalog service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ModelDescriptor, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "model id required")
	}
	descriptor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown model id")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load model descriptor")
	}
	return descriptor, nil
}

func (s *service) List(ctx context.Context) ([]models.ModelDescriptor, error) {
	descriptors, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list model descriptors")
	}
	return descriptors, nil
}
