package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conveyorci/conveyor/internal/ctxlog"
	"github.com/conveyorci/conveyor/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Store is a keyed on-disk blob store shared by job instances, typically used
// for build artifacts passed between pipeline stages.
type Store struct {
	dir string
}

// Input defines the arguments for creating a cache service.
type Input struct {
	Dir string `cv:"dir"`
}

// CreateCache is the 'create' handler for the service.
func CreateCache(ctx context.Context, input *Input) (*Store, error) {
	logger := ctxlog.FromContext(ctx)

	dir := input.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "conveyor-cache")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	logger.Debug("Cache store ready.", "dir", dir)
	return &Store{dir: dir}, nil
}

// DestroyCache is the 'destroy' handler for the service. The on-disk content
// is deliberately kept so later runs can reuse it.
func DestroyCache(s *Store) error {
	return nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Put stores a blob under the given key, replacing any previous content.
func (s *Store) Put(key string, data []byte) error {
	return os.WriteFile(s.keyPath(key), data, 0o644)
}

// Get retrieves the blob stored under the given key. The second return value
// reports whether the key was present.
func (s *Store) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.keyPath(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// keyPath maps an arbitrary key onto a safe file name.
func (s *Store) keyPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:]))
}

// Register registers the service lifecycle handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterServiceHandler("CreateCache", &registry.RegisteredService{
		NewInput: func() any { return new(Input) },
		CreateFn: CreateCache,
	})
	r.RegisterServiceHandler("DestroyCache", &registry.RegisteredService{
		DestroyFn: DestroyCache,
	})
}
