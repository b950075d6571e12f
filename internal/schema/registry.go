package schema

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/tessera-search/tessera/pkg/errors"
)

// Registry resolves index names to schemas.
type Registry interface {
	// Schema returns the schema for the named index, or an error wrapping
	// errors.ErrSchemaNotFound when the index is unknown.
	Schema(index string) (*Schema, error)
}

// DirRegistry loads schemas from a directory of <index>.yaml files and
// caches them. Safe for concurrent use.
type DirRegistry struct {
	dir    string
	mu     sync.RWMutex
	cache  map[string]*Schema
	logger *slog.Logger
}

// NewDirRegistry creates a registry over the given schema directory.
func NewDirRegistry(dir string) *DirRegistry {
	return &DirRegistry{
		dir:    dir,
		cache:  make(map[string]*Schema),
		logger: slog.Default().With("component", "schema-registry"),
	}
}

// Schema returns the cached schema for index, loading it from disk on first
// use.
func (r *DirRegistry) Schema(index string) (*Schema, error) {
	r.mu.RLock()
	s, ok := r.cache[index]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	path := filepath.Join(r.dir, index+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: index %q", apperrors.ErrSchemaNotFound, index)
		}
		return nil, fmt.Errorf("reading schema for index %q: %w", index, err)
	}
	s, err = Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema for index %q: %w", index, err)
	}
	if s.Index != index {
		return nil, fmt.Errorf("schema file %s declares index %q", path, s.Index)
	}

	r.mu.Lock()
	r.cache[index] = s
	r.mu.Unlock()
	r.logger.Info("schema loaded", "index", index, "fields", len(s.Fields))
	return s, nil
}

// StaticRegistry serves a fixed set of schemas. Used in tests and embedded
// setups.
type StaticRegistry struct {
	schemas map[string]*Schema
}

// NewStaticRegistry creates a registry over the given schemas.
func NewStaticRegistry(schemas ...*Schema) *StaticRegistry {
	m := make(map[string]*Schema, len(schemas))
	for _, s := range schemas {
		m[s.Index] = s
	}
	return &StaticRegistry{schemas: m}
}

// Schema returns the schema for index.
func (r *StaticRegistry) Schema(index string) (*Schema, error) {
	s, ok := r.schemas[index]
	if !ok {
		return nil, fmt.Errorf("%w: index %q", apperrors.ErrSchemaNotFound, index)
	}
	return s, nil
}
