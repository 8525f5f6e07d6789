package jobs

import (
	"context"
	"encoding/json"

	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/enums"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for prediction jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, job *models.PredictionJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PredictionJob, error)
	FindByIDAndAccount(ctx context.Context, id, accountID uuid.UUID) (*models.PredictionJob, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PredictionJob, error)
	UpdateResult(ctx context.Context, id uuid.UUID, result json.RawMessage, status enums.JobStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a jobs repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, job *models.PredictionJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PredictionJob, error) {
	var job models.PredictionJob
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) FindByIDAndAccount(ctx context.Context, id, accountID uuid.UUID) (*models.PredictionJob, error) {
	var job models.PredictionJob
	if err := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, accountID).
		First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PredictionJob, error) {
	query := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var list []models.PredictionJob
	if err := query.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) UpdateResult(ctx context.Context, id uuid.UUID, result json.RawMessage, status enums.JobStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.PredictionJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"result": result,
			"status": status,
		}).Error
}
