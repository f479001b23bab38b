package ccdb

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/halld-offline/conddb/internal/model"
)

// Column is one typed column of a table schema.
type Column struct {
	Name string
	Type model.ColumnType
}

// Schema is the ordered column definition for a namespace path. Column
// order is significant and fixed; every row of a resolved table has exactly
// len(Columns) cells.
type Schema struct {
	Columns []Column
}

// ColumnIndex returns the position of the named column.
func (s Schema) ColumnIndex(name string) (int, bool) {
	for i, c := range s.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// SchemaCache resolves and memoizes schemas per path. Schemas are immutable
// for the lifetime of a path in the store, so successful resolutions are
// kept for the process lifetime; failures are not cached and retry on the
// next call.
type SchemaCache struct {
	tr    Transport
	group singleflight.Group

	mu      sync.RWMutex
	schemas map[Path]Schema
}

// NewSchemaCache creates a schema cache over the given transport.
func NewSchemaCache(tr Transport) *SchemaCache {
	return &SchemaCache{tr: tr, schemas: make(map[Path]Schema)}
}

// Resolve returns the schema for path, fetching it at most once per path
// across concurrent callers.
func (c *SchemaCache) Resolve(ctx context.Context, path Path) (Schema, error) {
	c.mu.RLock()
	s, ok := c.schemas[path]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := c.group.Do(string(path), func() (any, error) {
		raw, err := c.tr.FetchSchema(ctx, path)
		if err != nil {
			return nil, err
		}
		schema, err := parseSchema(path, raw)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.schemas[path] = schema
		c.mu.Unlock()
		return schema, nil
	})
	if err != nil {
		return Schema{}, err
	}
	return v.(Schema), nil
}

func parseSchema(path Path, raw []RawColumn) (Schema, error) {
	cols := make([]Column, len(raw))
	for i, rc := range raw {
		typ, ok := model.ParseColumnType(rc.TypeID)
		if !ok {
			return Schema{}, fmt.Errorf("ccdb: %s column %q has unknown type %q", path, rc.Name, rc.TypeID)
		}
		name := rc.Name
		if name == "" {
			// Legacy tables may leave column names empty; fall back to
			// the positional index so lookups stay possible.
			name = fmt.Sprintf("%d", i)
		}
		cols[i] = Column{Name: name, Type: typ}
	}
	return Schema{Columns: cols}, nil
}
