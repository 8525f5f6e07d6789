// Package admission is the front door for prediction submissions. It
// validates the request, charges the account and creates the job in one
// database transaction, then enqueues the work. The charge is taken at
// admission and is not refunded if the job later fails.
package admission

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SpiritGreen/mushroom-checker-backend/internal/preprocess"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/tabular"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.ModelDescriptor, error)
}

type ledgerService interface {
	DebitTx(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, amount decimal.Decimal, description string) error
}

type jobService interface {
	CreateTx(ctx context.Context, tx *gorm.DB, accountID, modelID uuid.UUID, input json.RawMessage) (*models.PredictionJob, error)
}

type artifactVerifier interface {
	Verify(descriptor *models.ModelDescriptor) error
}

type jobPublisher interface {
	PublishJob(ctx context.Context, jobID uuid.UUID) error
}

// Service admits prediction submissions.
type Service interface {
	// Submit validates the rows, debits the model cost and creates a pending
	// job atomically, then enqueues it. The returned job is pending; results
	// arrive asynchronously.
	Submit(ctx context.Context, accountID, modelID uuid.UUID, rows []tabular.Row) (*models.PredictionJob, error)
}

type service struct {
	tx        txRunner
	catalog   catalogService
	ledger    ledgerService
	jobs      jobService
	artifacts artifactVerifier
	publisher jobPublisher
	logg      *logger.Logger
}

// NewService wires the admission pipeline.
func NewService(
	tx txRunner,
	catalog catalogService,
	ledgerSvc ledgerService,
	jobSvc jobService,
	artifacts artifactVerifier,
	publisher jobPublisher,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if jobSvc == nil {
		return nil, fmt.Errorf("jobs service required")
	}
	if artifacts == nil {
		return nil, fmt.Errorf("artifact store required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("job publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        tx,
		catalog:   catalog,
		ledger:    ledgerSvc,
		jobs:      jobSvc,
		artifacts: artifacts,
		publisher: publisher,
		logg:      logg,
	}, nil
}

func (s *service) Submit(ctx context.Context, accountID, modelID uuid.UUID, rows []tabular.Row) (*models.PredictionJob, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account id required")
	}
	if err := preprocess.ValidateRows(rows, preprocess.RequiredColumns()); err != nil {
		return nil, err
	}

	descriptor, err := s.catalog.Get(ctx, modelID)
	if err != nil {
		return nil, err
	}

	// Reject before charging when the bundle cannot possibly load.
	if err := s.artifacts.Verify(descriptor); err != nil {
		return nil, err
	}

	input, err := json.Marshal(rows)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode input rows")
	}

	var job *models.PredictionJob
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		description := fmt.Sprintf("prediction with %s", descriptor.Name)
		if err := s.ledger.DebitTx(ctx, tx, accountID, descriptor.Cost, description); err != nil {
			return err
		}
		created, err := s.jobs.CreateTx(ctx, tx, accountID, descriptor.ID, input)
		if err != nil {
			return err
		}
		job = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithJobID(s.logg.WithAccountID(ctx, accountID.String()), job.ID.String())
	s.logg.Info(logCtx, "prediction job admitted")

	// The debit is already committed. A publish failure leaves the job
	// pending and surfaces as a dependency error so the caller can retry
	// the enqueue path out of band.
	if err := s.publisher.PublishJob(ctx, job.ID); err != nil {
		s.logg.Error(logCtx, "failed to enqueue prediction job", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue prediction job")
	}

	s.logg.Info(logCtx, "prediction job enqueued")
	return job, nil
}
