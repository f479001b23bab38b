package ccdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/halld-offline/conddb/internal/model"
)

// DefaultVariation is the trunk variation every table has assignments on.
const DefaultVariation = "default"

// Key identifies one resolved table: a namespace path plus the run context
// that selects exactly one assignment. A zero AsOf means "latest".
type Key struct {
	Path      Path
	Run       model.RunNumber
	Variation string
	AsOf      time.Time
}

func (k Key) String() string {
	asOf := "latest"
	if !k.AsOf.IsZero() {
		asOf = strconv.FormatInt(k.AsOf.Unix(), 10)
	}
	return string(k.Path) + "|" + strconv.FormatUint(uint64(k.Run), 10) + "|" + k.Variation + "|" + asOf
}

// TableCache is a keyed, single-flight, read-through cache from Key to
// decoded Table. Concurrent Gets for the same key perform exactly one
// underlying fetch+decode and all observe the same result. Successful
// results are retained for the process lifetime; failures are never cached,
// so a later Get for the same key retries the transport.
type TableCache struct {
	tr      Transport
	schemas *SchemaCache
	logger  *slog.Logger
	group   singleflight.Group

	mu     sync.RWMutex
	tables map[Key]*Table

	hits    metric.Int64Counter
	misses  metric.Int64Counter
	fetchNs metric.Int64Histogram
}

// NewTableCache creates a cache over the given transport. Schemas resolve
// through their own per-path cache.
func NewTableCache(tr Transport, logger *slog.Logger) *TableCache {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.Meter("github.com/halld-offline/conddb/internal/ccdb")
	hits, _ := meter.Int64Counter("conddb.table_cache.hits")
	misses, _ := meter.Int64Counter("conddb.table_cache.misses")
	fetchNs, _ := meter.Int64Histogram("conddb.table_cache.fetch_ns")
	return &TableCache{
		tr:      tr,
		schemas: NewSchemaCache(tr),
		logger:  logger,
		tables:  make(map[Key]*Table),
		hits:    hits,
		misses:  misses,
		fetchNs: fetchNs,
	}
}

// Schemas exposes the schema cache for callers that only need the shape of
// a table.
func (c *TableCache) Schemas() *SchemaCache { return c.schemas }

// Get returns the table for key, fetching and decoding it on first use.
// The returned table is shared and immutable; callers must not assume
// exclusive ownership.
func (c *TableCache) Get(ctx context.Context, key Key) (*Table, error) {
	if key.Variation == "" {
		key.Variation = DefaultVariation
	}

	c.mu.RLock()
	t, ok := c.tables[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(ctx, 1)
		return t, nil
	}
	c.misses.Add(ctx, 1)

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// Re-check under the flight: a previous flight may have landed
		// between the read above and entering the group.
		c.mu.RLock()
		t, ok := c.tables[key]
		c.mu.RUnlock()
		if ok {
			return t, nil
		}

		start := time.Now()
		t, err := c.fetch(ctx, key)
		c.fetchNs.Record(ctx, time.Since(start).Nanoseconds())
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tables[key] = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

func (c *TableCache) fetch(ctx context.Context, key Key) (*Table, error) {
	schema, err := c.schemas.Resolve(ctx, key.Path)
	if err != nil {
		return nil, err
	}

	best, err := c.resolveAssignment(ctx, key)
	if err != nil {
		return nil, err
	}

	t, err := decodeTable(schema, best.Rows)
	if err != nil {
		return nil, fmt.Errorf("ccdb: decode %s: %w", key.Path, err)
	}
	c.logger.Debug("ccdb: table resolved",
		"path", string(key.Path), "run", key.Run, "variation", key.Variation,
		"rows", t.NumRows(), "created", best.CreatedAt)
	return t, nil
}

// resolveAssignment picks the assignment for the key: among assignments
// whose run range covers the run, the latest-created one not after AsOf
// (or the latest overall when AsOf is zero). A variation with no coverage
// falls back to the default variation before failing.
func (c *TableCache) resolveAssignment(ctx context.Context, key Key) (RawAssignment, error) {
	best, ok, err := c.bestAssignment(ctx, key, key.Variation)
	if err != nil {
		// An unknown non-default variation behaves like one with no
		// coverage: fall through to the default variation.
		var vnf *VariationNotFoundError
		if !errors.As(err, &vnf) || key.Variation == DefaultVariation {
			return RawAssignment{}, err
		}
		ok = false
	}
	if !ok && key.Variation != DefaultVariation {
		best, ok, err = c.bestAssignment(ctx, key, DefaultVariation)
		if err != nil {
			return RawAssignment{}, err
		}
	}
	if !ok {
		return RawAssignment{}, &NoAssignmentError{Path: key.Path, Run: key.Run, Variation: key.Variation}
	}
	return best, nil
}

func (c *TableCache) bestAssignment(ctx context.Context, key Key, variation string) (RawAssignment, bool, error) {
	assignments, err := c.tr.FetchAssignments(ctx, key.Path, variation)
	if err != nil {
		return RawAssignment{}, false, err
	}
	covering := assignments[:0:0]
	for _, a := range assignments {
		if key.Run >= a.RunMin && key.Run <= a.RunMax {
			covering = append(covering, a)
		}
	}
	sort.Slice(covering, func(i, j int) bool {
		return covering[i].CreatedAt.After(covering[j].CreatedAt)
	})
	for _, a := range covering {
		if key.AsOf.IsZero() || !a.CreatedAt.After(key.AsOf) {
			return a, true, nil
		}
	}
	return RawAssignment{}, false, nil
}
