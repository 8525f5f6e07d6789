package admission

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/SpiritGreen/mushroom-checker-backend/internal/preprocess"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/tabular"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakeTxRunner struct {
	calls int
	err   error
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn(&gorm.DB{})
}

type fakeCatalog struct {
	descriptor *models.ModelDescriptor
	err        error
}

func (f *fakeCatalog) Get(ctx context.Context, id uuid.UUID) (*models.ModelDescriptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.descriptor, nil
}

type fakeLedger struct {
	calls int
	err   error
}

func (f *fakeLedger) DebitTx(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, amount decimal.Decimal, description string) error {
	f.calls++
	return f.err
}

type fakeJobs struct {
	calls int
	job   *models.PredictionJob
	err   error
}

func (f *fakeJobs) CreateTx(ctx context.Context, tx *gorm.DB, accountID, modelID uuid.UUID, input json.RawMessage) (*models.PredictionJob, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

type fakeVerifier struct {
	err error
}

func (f *fakeVerifier) Verify(descriptor *models.ModelDescriptor) error {
	return f.err
}

type fakePublisher struct {
	calls int
	err   error
}

func (f *fakePublisher) PublishJob(ctx context.Context, jobID uuid.UUID) error {
	f.calls++
	return f.err
}

type fixture struct {
	tx        *fakeTxRunner
	catalog   *fakeCatalog
	ledger    *fakeLedger
	jobs      *fakeJobs
	verifier  *fakeVerifier
	publisher *fakePublisher
	service   Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	modelID := uuid.New()
	f := &fixture{
		tx: &fakeTxRunner{},
		catalog: &fakeCatalog{descriptor: &models.ModelDescriptor{
			ID:   modelID,
			Name: "RandomForest",
			Cost: decimal.RequireFromString("1.00"),
		}},
		ledger:    &fakeLedger{},
		jobs:      &fakeJobs{job: &models.PredictionJob{ID: uuid.New()}},
		verifier:  &fakeVerifier{},
		publisher: &fakePublisher{},
	}
	svc, err := NewService(f.tx, f.catalog, f.ledger, f.jobs, f.verifier, f.publisher, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.service = svc
	return f
}

func validRow() tabular.Row {
	row := tabular.Row{}
	for _, col := range preprocess.RequiredColumns() {
		row[col] = "x"
	}
	row["cap-diameter"] = 4.2
	row["stem-height"] = 6.0
	row["stem-width"] = 11.3
	return row
}

func TestSubmitHappyPath(t *testing.T) {
	f := newFixture(t)

	job, err := f.service.Submit(context.Background(), uuid.New(), f.catalog.descriptor.ID, []tabular.Row{validRow()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job == nil || job.ID != f.jobs.job.ID {
		t.Fatalf("unexpected job: %+v", job)
	}
	if f.ledger.calls != 1 || f.jobs.calls != 1 || f.publisher.calls != 1 {
		t.Errorf("unexpected call counts: ledger=%d jobs=%d publisher=%d", f.ledger.calls, f.jobs.calls, f.publisher.calls)
	}
}

func TestSubmitRequiresAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Submit(context.Background(), uuid.Nil, uuid.New(), []tabular.Row{validRow()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestSubmitRejectsMissingColumnBeforeCharging(t *testing.T) {
	f := newFixture(t)
	row := validRow()
	delete(row, "cap-shape")

	_, err := f.service.Submit(context.Background(), uuid.New(), uuid.New(), []tabular.Row{row})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.tx.calls != 0 || f.ledger.calls != 0 {
		t.Error("no charge may happen for invalid input")
	}
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Submit(context.Background(), uuid.New(), uuid.New(), nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitUnknownModel(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = pkgerrors.New(pkgerrors.CodeValidation, "unknown model id")

	_, err := f.service.Submit(context.Background(), uuid.New(), uuid.New(), []tabular.Row{validRow()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.tx.calls != 0 {
		t.Error("no transaction may start for an unknown model")
	}
}

func TestSubmitBrokenArtifactsBlockCharge(t *testing.T) {
	f := newFixture(t)
	f.verifier.err = pkgerrors.New(pkgerrors.CodeArtifact, "model.json missing")

	_, err := f.service.Submit(context.Background(), uuid.New(), f.catalog.descriptor.ID, []tabular.Row{validRow()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeArtifact) {
		t.Fatalf("expected artifact error, got %v", err)
	}
	if f.ledger.calls != 0 {
		t.Error("no charge may happen when the bundle is unavailable")
	}
}

func TestSubmitInsufficientFundsAbortsJobCreation(t *testing.T) {
	f := newFixture(t)
	f.ledger.err = pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance is below the model cost")

	_, err := f.service.Submit(context.Background(), uuid.New(), f.catalog.descriptor.ID, []tabular.Row{validRow()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if f.jobs.calls != 0 {
		t.Error("no job row may be created when the debit fails")
	}
	if f.publisher.calls != 0 {
		t.Error("nothing may be enqueued when the debit fails")
	}
}

func TestSubmitPublishFailureIsDependencyError(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker unavailable")

	_, err := f.service.Submit(context.Background(), uuid.New(), f.catalog.descriptor.ID, []tabular.Row{validRow()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if f.ledger.calls != 1 || f.jobs.calls != 1 {
		t.Error("the charge and the pending job must already be committed before the publish attempt")
	}
}
