package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/enums"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service owns the prediction job lifecycle record. Jobs are created pending,
// driven to exactly one terminal status by the worker, and only readable by
// the account that submitted them.
type Service interface {
	// CreateTx inserts a pending job inside the caller's transaction so the
	// job row and the admission debit commit together.
	CreateTx(ctx context.Context, tx *gorm.DB, accountID, modelID uuid.UUID, input json.RawMessage) (*models.PredictionJob, error)
	// UpdateResult moves a job to a terminal status. Re-invoking with the same
	// terminal status is a no-op; a different terminal status overwrites, which
	// lets a retry succeed after an earlier failed attempt was recorded.
	UpdateResult(ctx context.Context, jobID uuid.UUID, result []string, status enums.JobStatus) error
	Get(ctx context.Context, jobID, accountID uuid.UUID) (*models.PredictionJob, error)
	GetByID(ctx context.Context, jobID uuid.UUID) (*models.PredictionJob, error)
	// ListByAccount returns one page of the account's jobs, newest first,
	// plus the cursor for the next page ("" on the last page).
	ListByAccount(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.PredictionJob, string, error)
}

type service struct {
	repo Repository
}

// NewService wires a jobs service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("jobs repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateTx(ctx context.Context, tx *gorm.DB, accountID, modelID uuid.UUID, input json.RawMessage) (*models.PredictionJob, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	if modelID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "model id required")
	}
	if len(input) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "input rows required")
	}

	job := &models.PredictionJob{
		AccountID: accountID,
		ModelID:   modelID,
		Input:     input,
		Status:    enums.JobStatusPending,
	}
	if err := s.repo.WithTx(tx).Create(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create prediction job")
	}
	return job, nil
}

func (s *service) UpdateResult(ctx context.Context, jobID uuid.UUID, result []string, status enums.JobStatus) error {
	if jobID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "job id required")
	}
	if !status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("status %q is not terminal", status))
	}

	if result == nil {
		result = []string{}
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode result")
	}

	if err := s.repo.UpdateResult(ctx, jobID, payload, status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update prediction job")
	}
	return nil
}

func (s *service) Get(ctx context.Context, jobID, accountID uuid.UUID) (*models.PredictionJob, error) {
	if jobID == uuid.Nil || accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id and account id required")
	}
	job, err := s.repo.FindByIDAndAccount(ctx, jobID, accountID)
	if err != nil {
		// Ownership mismatch is indistinguishable from a missing job on purpose.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "prediction job not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load prediction job")
	}
	return job, nil
}

func (s *service) GetByID(ctx context.Context, jobID uuid.UUID) (*models.PredictionJob, error) {
	if jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id required")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "prediction job not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load prediction job")
	}
	return job, nil
}

func (s *service) ListByAccount(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.PredictionJob, string, error) {
	if accountID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	list, err := s.repo.ListByAccount(ctx, accountID, limit+1, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list prediction jobs")
	}

	list, next := pagination.TrimPage(list, limit, func(j models.PredictionJob) pagination.Cursor {
		return pagination.Cursor{CreatedAt: j.CreatedAt, ID: j.ID}
	})
	return list, next, nil
}
