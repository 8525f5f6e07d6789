package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
)

const (
	modelFile    = "model.json"
	imputerDir   = "imputers"
	encoderDir   = "encoders"
	classEncoder = "le_class.json"
)

// Store loads and caches artifact bundles keyed by model id. Bundles are
// produced by an out-of-band training step and never invalidated, so a loaded
// bundle lives for the process lifetime. Concurrent first loads of the same
// model collapse into a single read.
type Store struct {
	baseDir string

	mu      sync.RWMutex
	bundles map[string]*Bundle
	group   singleflight.Group
}

// NewStore creates a store rooted at the artifacts directory.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("artifacts directory required")
	}
	return &Store{
		baseDir: baseDir,
		bundles: make(map[string]*Bundle),
	}, nil
}

// Verify checks that every file the descriptor's bundle needs exists on disk
// without loading it. Admission uses this to fail closed before billing.
func (s *Store) Verify(descriptor *models.ModelDescriptor) error {
	var missing error
	for _, path := range s.requiredFiles(descriptor) {
		if _, err := os.Stat(path); err != nil {
			missing = multierr.Append(missing, fmt.Errorf("%s: %w", path, err))
		}
	}
	if missing != nil {
		return pkgerrors.Wrap(pkgerrors.CodeArtifact, missing, fmt.Sprintf("artifacts missing for model %s", descriptor.Name))
	}
	return nil
}

// Load returns the cached bundle for the model, reading it from disk on first
// access. Safe for concurrent use; every caller observes the same instance.
func (s *Store) Load(ctx context.Context, descriptor *models.ModelDescriptor) (*Bundle, error) {
	if descriptor == nil {
		return nil, fmt.Errorf("model descriptor required")
	}

	key := descriptor.ID.String()

	s.mu.RLock()
	bundle, ok := s.bundles[key]
	s.mu.RUnlock()
	if ok {
		return bundle, nil
	}

	loaded, err, _ := s.group.Do(key, func() (any, error) {
		s.mu.RLock()
		cached, ok := s.bundles[key]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		bundle, err := s.read(descriptor)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.bundles[key] = bundle
		s.mu.Unlock()
		return bundle, nil
	})
	if err != nil {
		return nil, err
	}
	return loaded.(*Bundle), nil
}

func (s *Store) read(descriptor *models.ModelDescriptor) (*Bundle, error) {
	if err := s.Verify(descriptor); err != nil {
		return nil, err
	}

	root := s.bundleDir(descriptor)

	bundle := &Bundle{
		ModelName:           descriptor.Name,
		NumericImputers:     make(map[string]*NumericImputer, len(descriptor.NumericColumns)),
		CategoricalImputers: make(map[string]*CategoricalImputer, len(descriptor.CategoricalColumns)),
		Encoders:            make(map[string]*LabelEncoder, len(descriptor.CategoricalColumns)),
	}

	forest := &Forest{}
	if err := readJSON(filepath.Join(root, modelFile), forest); err != nil {
		return nil, corrupt(descriptor.Name, err)
	}
	bundle.Forest = forest

	for _, col := range descriptor.NumericColumns {
		imputer := &NumericImputer{}
		if err := readJSON(imputerPath(root, col), imputer); err != nil {
			return nil, corrupt(descriptor.Name, err)
		}
		bundle.NumericImputers[col] = imputer
	}

	for _, col := range descriptor.CategoricalColumns {
		imputer := &CategoricalImputer{}
		if err := readJSON(imputerPath(root, col), imputer); err != nil {
			return nil, corrupt(descriptor.Name, err)
		}
		bundle.CategoricalImputers[col] = imputer

		encoder := &LabelEncoder{}
		if err := readJSON(encoderPath(root, col), encoder); err != nil {
			return nil, corrupt(descriptor.Name, err)
		}
		encoder.BuildIndex()
		bundle.Encoders[col] = encoder
	}

	decoder := &LabelEncoder{}
	if err := readJSON(filepath.Join(root, encoderDir, classEncoder), decoder); err != nil {
		return nil, corrupt(descriptor.Name, err)
	}
	decoder.BuildIndex()
	bundle.LabelDecoder = decoder

	return bundle, nil
}

func (s *Store) bundleDir(descriptor *models.ModelDescriptor) string {
	if filepath.IsAbs(descriptor.ArtifactPath) {
		return descriptor.ArtifactPath
	}
	return filepath.Join(s.baseDir, descriptor.ArtifactPath)
}

func (s *Store) requiredFiles(descriptor *models.ModelDescriptor) []string {
	root := s.bundleDir(descriptor)
	files := []string{filepath.Join(root, modelFile)}
	for _, col := range descriptor.NumericColumns {
		files = append(files, imputerPath(root, col))
	}
	for _, col := range descriptor.CategoricalColumns {
		files = append(files, imputerPath(root, col), encoderPath(root, col))
	}
	files = append(files, filepath.Join(root, encoderDir, classEncoder))
	return files
}

func imputerPath(root, column string) string {
	return filepath.Join(root, imputerDir, fmt.Sprintf("imputer_%s.json", column))
}

func encoderPath(root, column string) string {
	return filepath.Join(root, encoderDir, fmt.Sprintf("le_%s.json", column))
}

func readJSON(path string, dest any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func corrupt(modelName string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeArtifact, err, fmt.Sprintf("artifact bundle for model %s is unreadable", modelName))
}
