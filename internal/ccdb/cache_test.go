package ccdb

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halld-offline/conddb/internal/model"
)

// fakeTransport serves canned schemas and assignments and counts fetches.
type fakeTransport struct {
	schemas     map[Path][]RawColumn
	assignments map[Path]map[string][]RawAssignment

	schemaCalls atomic.Int64
	assignCalls atomic.Int64

	mu      sync.Mutex
	failErr error // when set, FetchAssignments fails once and clears
}

func (f *fakeTransport) FetchSchema(_ context.Context, path Path) ([]RawColumn, error) {
	f.schemaCalls.Add(1)
	cols, ok := f.schemas[path]
	if !ok {
		return nil, &PathNotFoundError{Path: path}
	}
	return cols, nil
}

func (f *fakeTransport) FetchAssignments(_ context.Context, path Path, variation string) ([]RawAssignment, error) {
	f.assignCalls.Add(1)
	f.mu.Lock()
	if err := f.failErr; err != nil {
		f.failErr = nil
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()
	byVar, ok := f.assignments[path]
	if !ok {
		return nil, &PathNotFoundError{Path: path}
	}
	as, ok := byVar[variation]
	if !ok {
		return nil, &VariationNotFoundError{Variation: variation}
	}
	return as, nil
}

func created(s string) time.Time {
	t, err := model.ParseStoreTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

// newGainsTransport serves /CDC/gains with two assignments on default:
// runs [1,500] created 2024-01-01 and runs [501,1000] created 2024-06-01,
// plus a newer patch over [1,500] created 2024-08-01 on the mc variation.
func newGainsTransport() *fakeTransport {
	path := Path("/CDC/gains")
	return &fakeTransport{
		schemas: map[Path][]RawColumn{
			path: {
				{Name: "channel", TypeID: "int"},
				{Name: "gain", TypeID: "double"},
			},
		},
		assignments: map[Path]map[string][]RawAssignment{
			path: {
				"default": {
					{RunMin: 1, RunMax: 500, CreatedAt: created("2024-01-01 00:00:00"),
						Rows: [][]string{{"0", "1.0"}, {"1", "1.1"}}},
					{RunMin: 501, RunMax: 1000, CreatedAt: created("2024-06-01 00:00:00"),
						Rows: [][]string{{"0", "2.0"}, {"1", "2.1"}}},
				},
				"mc": {
					{RunMin: 1, RunMax: 500, CreatedAt: created("2024-08-01 00:00:00"),
						Rows: [][]string{{"0", "9.0"}, {"1", "9.1"}}},
				},
			},
		},
	}
}

func firstGain(t *testing.T, table *Table) float64 {
	t.Helper()
	row, err := table.Row(0)
	require.NoError(t, err)
	gain, err := row.Float("gain")
	require.NoError(t, err)
	return gain
}

func TestTableCache_ResolvesByRunRange(t *testing.T) {
	c := NewTableCache(newGainsTransport(), nil)
	ctx := context.Background()

	low, err := c.Get(ctx, Key{Path: "/CDC/gains", Run: 100})
	require.NoError(t, err)
	assert.Equal(t, 1.0, firstGain(t, low))

	high, err := c.Get(ctx, Key{Path: "/CDC/gains", Run: 900})
	require.NoError(t, err)
	assert.Equal(t, 2.0, firstGain(t, high))

	// Uncovered run.
	_, err = c.Get(ctx, Key{Path: "/CDC/gains", Run: 5000})
	var noAssign *NoAssignmentError
	require.ErrorAs(t, err, &noAssign)
	assert.Equal(t, model.RunNumber(5000), noAssign.Run)
}

func TestTableCache_AsOfPicksLatestNotAfter(t *testing.T) {
	tr := newGainsTransport()
	// A newer default assignment shadowing [1,500].
	tr.assignments["/CDC/gains"]["default"] = append(
		tr.assignments["/CDC/gains"]["default"],
		RawAssignment{RunMin: 1, RunMax: 500, CreatedAt: created("2024-09-01 00:00:00"),
			Rows: [][]string{{"0", "3.0"}, {"1", "3.1"}}},
	)
	c := NewTableCache(tr, nil)
	ctx := context.Background()

	// Zero AsOf means latest.
	latest, err := c.Get(ctx, Key{Path: "/CDC/gains", Run: 100})
	require.NoError(t, err)
	assert.Equal(t, 3.0, firstGain(t, latest))

	// AsOf before the newer assignment lands on the original.
	old, err := c.Get(ctx, Key{Path: "/CDC/gains", Run: 100,
		AsOf: created("2024-03-01 00:00:00")})
	require.NoError(t, err)
	assert.Equal(t, 1.0, firstGain(t, old))

	// AsOf before anything existed.
	_, err = c.Get(ctx, Key{Path: "/CDC/gains", Run: 100,
		AsOf: created("2023-01-01 00:00:00")})
	var noAssign *NoAssignmentError
	assert.ErrorAs(t, err, &noAssign)
}

func TestTableCache_VariationOverridesAndFallsBack(t *testing.T) {
	c := NewTableCache(newGainsTransport(), nil)
	ctx := context.Background()

	// mc covers [1,500]: the variation's own assignment wins.
	mc, err := c.Get(ctx, Key{Path: "/CDC/gains", Run: 100, Variation: "mc"})
	require.NoError(t, err)
	assert.Equal(t, 9.0, firstGain(t, mc))

	// mc has no coverage for run 900: falls back to default.
	fallback, err := c.Get(ctx, Key{Path: "/CDC/gains", Run: 900, Variation: "mc"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, firstGain(t, fallback))

	// Unknown variation behaves like an empty one and falls back too.
	unknown, err := c.Get(ctx, Key{Path: "/CDC/gains", Run: 900, Variation: "nope"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, firstGain(t, unknown))
}

func TestTableCache_EmptyVariationMeansDefault(t *testing.T) {
	c := NewTableCache(newGainsTransport(), nil)
	ctx := context.Background()

	a, err := c.Get(ctx, Key{Path: "/CDC/gains", Run: 100})
	require.NoError(t, err)
	b, err := c.Get(ctx, Key{Path: "/CDC/gains", Run: 100, Variation: "default"})
	require.NoError(t, err)
	assert.Same(t, a, b, "empty and explicit default share one cache entry")
}

func TestTableCache_SingleFlight(t *testing.T) {
	tr := newGainsTransport()
	c := NewTableCache(tr, nil)
	key := Key{Path: "/CDC/gains", Run: 100}

	const n = 32
	var wg sync.WaitGroup
	tables := make([]*Table, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables[i], errs[i] = c.Get(context.Background(), key)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, tables[0], tables[i], "all callers observe the same table")
	}
	assert.Equal(t, int64(1), tr.assignCalls.Load(), "one underlying fetch")
	assert.Equal(t, int64(1), tr.schemaCalls.Load())
}

func TestTableCache_SecondGetIsCached(t *testing.T) {
	tr := newGainsTransport()
	c := NewTableCache(tr, nil)
	ctx := context.Background()
	key := Key{Path: "/CDC/gains", Run: 100}

	a, err := c.Get(ctx, key)
	require.NoError(t, err)
	b, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, int64(1), tr.assignCalls.Load())
}

func TestTableCache_ErrorsNotCached(t *testing.T) {
	tr := newGainsTransport()
	tr.failErr = errors.New("store briefly down")
	c := NewTableCache(tr, nil)
	ctx := context.Background()
	key := Key{Path: "/CDC/gains", Run: 100}

	_, err := c.Get(ctx, key)
	require.Error(t, err)

	// The failure clears; the retry must reach the transport again.
	table, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1.0, firstGain(t, table))
}

func TestTableCache_DistinctKeysDistinctEntries(t *testing.T) {
	c := NewTableCache(newGainsTransport(), nil)
	ctx := context.Background()

	a, err := c.Get(ctx, Key{Path: "/CDC/gains", Run: 100})
	require.NoError(t, err)
	b, err := c.Get(ctx, Key{Path: "/CDC/gains", Run: 900})
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestTableCache_UnknownPath(t *testing.T) {
	c := NewTableCache(newGainsTransport(), nil)
	_, err := c.Get(context.Background(), Key{Path: "/no/such/table", Run: 1})
	var notFound *PathNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, Path("/no/such/table"), notFound.Path)
}
