package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
)

func testDescriptor() *models.ModelDescriptor {
	return &models.ModelDescriptor{
		ID:                 uuid.New(),
		Name:               "RandomForest",
		ArtifactPath:       "random_forest",
		NumericColumns:     pq.StringArray{"cap-diameter"},
		CategoricalColumns: pq.StringArray{"cap-shape"},
	}
}

func writeJSON(t *testing.T, path string, value any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeBundle(t *testing.T, baseDir string, descriptor *models.ModelDescriptor) {
	t.Helper()
	root := filepath.Join(baseDir, descriptor.ArtifactPath)

	forest := Forest{
		NClasses:     2,
		FeatureOrder: []string{"cap-diameter", "cap-shape"},
		Trees: []Tree{{
			ChildrenLeft:  []int{-1},
			ChildrenRight: []int{-1},
			Feature:       []int{-2},
			Threshold:     []float64{0},
			Value:         [][]float64{{10, 2}},
		}},
	}
	writeJSON(t, filepath.Join(root, "model.json"), forest)

	writeJSON(t, filepath.Join(root, "imputers", "imputer_cap-diameter.json"), NumericImputer{Strategy: "median", Fill: 4.0})
	writeJSON(t, filepath.Join(root, "imputers", "imputer_cap-shape.json"), CategoricalImputer{Strategy: "constant", Fill: "unknown"})
	writeJSON(t, filepath.Join(root, "encoders", "le_cap-shape.json"), LabelEncoder{Classes: []string{"b", "x", "unknown"}})
	writeJSON(t, filepath.Join(root, "encoders", "le_class.json"), LabelEncoder{Classes: []string{"e", "p"}})
}

func TestVerifyReportsEveryMissingFile(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	err = store.Verify(testDescriptor())
	if err == nil {
		t.Fatal("expected verify to fail for empty directory")
	}

	var typed *pkgerrors.Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != pkgerrors.CodeArtifact {
		t.Fatalf("expected artifact code, got %s", typed.Code())
	}
}

func TestVerifyPassesForCompleteBundle(t *testing.T) {
	baseDir := t.TempDir()
	descriptor := testDescriptor()
	writeBundle(t, baseDir, descriptor)

	store, err := NewStore(baseDir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Verify(descriptor); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestLoadCachesBundle(t *testing.T) {
	baseDir := t.TempDir()
	descriptor := testDescriptor()
	writeBundle(t, baseDir, descriptor)

	store, err := NewStore(baseDir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	first, err := store.Load(context.Background(), descriptor)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if first.ModelName != descriptor.Name {
		t.Errorf("unexpected model name %q", first.ModelName)
	}
	if !first.Encoders["cap-shape"].Contains("x") {
		t.Error("encoder index not built on load")
	}

	// Deleting the files must not evict a loaded bundle.
	if err := os.RemoveAll(filepath.Join(baseDir, descriptor.ArtifactPath)); err != nil {
		t.Fatalf("remove artifacts: %v", err)
	}

	second, err := store.Load(context.Background(), descriptor)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if second != first {
		t.Error("expected cached bundle instance on second load")
	}
}

func TestLoadConcurrentCallersShareOneBundle(t *testing.T) {
	baseDir := t.TempDir()
	descriptor := testDescriptor()
	writeBundle(t, baseDir, descriptor)

	store, err := NewStore(baseDir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	const callers = 16
	bundles := make([]*Bundle, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			bundle, err := store.Load(context.Background(), descriptor)
			if err != nil {
				t.Errorf("load %d: %v", slot, err)
				return
			}
			bundles[slot] = bundle
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if bundles[i] != bundles[0] {
			t.Fatalf("caller %d observed a different bundle instance", i)
		}
	}
}

func TestLoadRejectsCorruptModel(t *testing.T) {
	baseDir := t.TempDir()
	descriptor := testDescriptor()
	writeBundle(t, baseDir, descriptor)

	modelPath := filepath.Join(baseDir, descriptor.ArtifactPath, "model.json")
	if err := os.WriteFile(modelPath, []byte("not json"), 0o644); err != nil {
		t.Fatalf("corrupt model file: %v", err)
	}

	store, err := NewStore(baseDir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, err = store.Load(context.Background(), descriptor)
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != pkgerrors.CodeArtifact {
		t.Fatalf("expected artifact code, got %s", typed.Code())
	}
}

func TestLoadAbsoluteArtifactPath(t *testing.T) {
	baseDir := t.TempDir()
	bundleDir := t.TempDir()
	descriptor := testDescriptor()
	descriptor.ArtifactPath = filepath.Join(bundleDir, "rf")

	// writeBundle joins base and relative path; build the layout directly.
	writeBundle(t, bundleDir, &models.ModelDescriptor{
		Name:               descriptor.Name,
		ArtifactPath:       "rf",
		NumericColumns:     descriptor.NumericColumns,
		CategoricalColumns: descriptor.CategoricalColumns,
	})

	store, err := NewStore(baseDir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Verify(descriptor); err != nil {
		t.Fatalf("verify absolute path: %v", err)
	}
}
