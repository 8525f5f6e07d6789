package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
)

type fakeRepo struct {
	descriptors []models.ModelDescriptor
	err         error
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ModelDescriptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.descriptors {
		if f.descriptors[i].ID == id {
			return &f.descriptors[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) List(ctx context.Context) ([]models.ModelDescriptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.descriptors, nil
}

func TestGetKnownModel(t *testing.T) {
	descriptor := models.ModelDescriptor{ID: uuid.New(), Name: "RandomForest"}
	svc, err := NewService(&fakeRepo{descriptors: []models.ModelDescriptor{descriptor}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	got, err := svc.Get(context.Background(), descriptor.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "RandomForest" {
		t.Errorf("unexpected descriptor %+v", got)
	}
}

func TestGetUnknownModelIsValidationError(t *testing.T) {
	svc, err := NewService(&fakeRepo{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Get(context.Background(), uuid.New())
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", typed.Code())
	}
}

func TestGetRequiresModelID(t *testing.T) {
	svc, err := NewService(&fakeRepo{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Get(context.Background(), uuid.Nil); err == nil {
		t.Fatal("expected nil model id to be rejected")
	}
}

func TestListWrapsRepositoryFailure(t *testing.T) {
	svc, err := NewService(&fakeRepo{err: errors.New("connection reset")})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.List(context.Background())
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %s", typed.Code())
	}
}
