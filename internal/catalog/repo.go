package catalog

import (
	"context"

	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads the model catalog. Descriptors are reference data managed
// by migrations; nothing in the serving path writes them.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ModelDescriptor, error)
	List(ctx context.Context) ([]models.ModelDescriptor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ModelDescriptor, error) {
	var descriptor models.ModelDescriptor
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&descriptor).Error; err != nil {
		return nil, err
	}
	return &descriptor, nil
}

func (r *repository) List(ctx context.Context) ([]models.ModelDescriptor, error) {
	var descriptors []models.ModelDescriptor
	if err := r.db.WithContext(ctx).
		Order("cost ASC, name ASC").
		Find(&descriptors).Error; err != nil {
		return nil, err
	}
	return descriptors, nil
}
