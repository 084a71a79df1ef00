// Package schema provides the column schema registry: the single source of
// truth mapping column name to element type, width, and compression policy.
package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prostudio/cortexstore/internal/errors"
	"github.com/prostudio/cortexstore/pkg/types"
)

// Registry maps column names to their schemas. Schemas are registered
// explicitly (by connectors) or inferred from the first batch that mentions
// an unknown column. A schema is immutable once registered; conflicting
// re-registration fails rather than silently reinterpreting data.
type Registry struct {
	mu      sync.RWMutex
	columns map[string]types.ColumnSchema
}

// NewRegistry creates an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{
		columns: make(map[string]types.ColumnSchema),
	}
}

// Register adds a column schema. Registering the same schema twice is a
// no-op; registering a different schema under an existing name fails with
// SCHEMA_CONFLICT.
func (r *Registry) Register(schema types.ColumnSchema) error {
	if err := schema.Validate(); err != nil {
		return errors.Wrap(errors.ErrCategoryValidation, errors.CodeSchemaConflict, "register", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.columns[schema.Name]
	if ok {
		if existing != schema {
			return errors.NewValidationError(errors.CodeSchemaConflict,
				fmt.Sprintf("column %q already registered as %s", schema.Name, existing.Type))
		}
		return nil
	}

	r.columns[schema.Name] = schema
	return nil
}

// InferAndRegister infers a schema from the first value seen for an unknown
// column and registers it. For a known column it returns the existing schema
// unchanged; inference happens once, on first sight of a column name.
func (r *Registry) InferAndRegister(name string, sample interface{}) (types.ColumnSchema, error) {
	r.mu.RLock()
	existing, ok := r.columns[name]
	r.mu.RUnlock()
	if ok {
		return existing, nil
	}

	inferred, err := types.Infer(name, sample)
	if err != nil {
		return types.ColumnSchema{}, errors.Wrap(errors.ErrCategoryValidation, errors.CodeTypeMismatch, "infer", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have won the race since the read above.
	if existing, ok := r.columns[name]; ok {
		return existing, nil
	}
	r.columns[name] = inferred
	return inferred, nil
}

// Get returns the schema for a column name.
func (r *Registry) Get(name string) (types.ColumnSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.columns[name]
	return schema, ok
}

// Names returns all registered column names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.columns))
	for name := range r.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the full name-to-schema mapping.
func (r *Registry) Snapshot() map[string]types.ColumnSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]types.ColumnSchema, len(r.columns))
	for name, schema := range r.columns {
		out[name] = schema
	}
	return out
}
