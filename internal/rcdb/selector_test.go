package rcdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halld-offline/conddb/internal/model"
)

// fakeRunStore serves a fixed run list with per-run condition values.
type fakeRunStore struct {
	runs   []model.RunNumber
	values map[model.RunNumber]map[string]model.CellValue

	resolveErr error
	fetchErr   error

	fetchedNames []string
	fetchedRuns  []model.RunNumber
}

func (f *fakeRunStore) ResolveRuns(_ context.Context, min, max model.RunNumber) ([]model.RunNumber, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	var out []model.RunNumber
	for _, r := range f.runs {
		if r >= min && r <= max {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRunStore) FetchConditions(_ context.Context, runs []model.RunNumber, names []string) (map[model.RunNumber]map[string]model.CellValue, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.fetchedRuns = runs
	f.fetchedNames = names
	out := make(map[model.RunNumber]map[string]model.CellValue, len(runs))
	for _, r := range runs {
		vals := make(map[string]model.CellValue)
		for _, name := range names {
			if v, ok := f.values[r][name]; ok {
				vals[name] = v
			}
		}
		out[r] = vals
	}
	return out, nil
}

func physicsStore() *fakeRunStore {
	return &fakeRunStore{
		runs: []model.RunNumber{1000, 1001, 1002, 1003},
		values: map[model.RunNumber]map[string]model.CellValue{
			1000: {"run_type": model.Str("hadronic"), "event_count": model.Int(2_000_000)},
			1001: {"run_type": model.Str("hadronic"), "event_count": model.Int(3_000_000)},
			1002: {"event_count": model.Int(9_000_000)}, // run_type missing
			1003: {"run_type": model.Str("hadronic"), "event_count": model.Int(4_000_000)},
		},
	}
}

func physicsPred(t *testing.T) Expr {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register("run_type", model.TypeString))
	require.NoError(t, r.Register("event_count", model.TypeInt))
	runType, err := r.StringCond("run_type")
	require.NoError(t, err)
	events, err := r.IntCond("event_count")
	require.NoError(t, err)
	return All(runType.Eq("hadronic"), events.Gt(1_000_000))
}

func TestSelector_SkipAndMissingDiagnostics(t *testing.T) {
	store := physicsStore()
	s := NewSelector(store, nil)

	sel, err := s.Select(context.Background(), RunRange(1000, 1003), physicsPred(t),
		map[model.RunNumber]bool{1001: true})
	require.NoError(t, err)

	assert.Equal(t, []model.RunNumber{1000, 1003}, sel.Runs)
	require.Len(t, sel.Diagnostics, 1)
	assert.Equal(t, model.RunNumber(1002), sel.Diagnostics[0].Run)
	var missing *MissingValueError
	require.ErrorAs(t, sel.Diagnostics[0].Err, &missing)
	assert.Equal(t, "run_type", missing.Condition)

	// Skipped runs never reach the condition fetch.
	assert.NotContains(t, store.fetchedRuns, model.RunNumber(1001))
	// One batch fetch for exactly the referenced conditions.
	assert.Equal(t, []string{"run_type", "event_count"}, store.fetchedNames)
}

func TestSelector_EmptyPeriod(t *testing.T) {
	s := NewSelector(physicsStore(), nil)
	sel, err := s.Select(context.Background(), RunRange(5000, 6000), physicsPred(t), nil)
	require.NoError(t, err)
	assert.Empty(t, sel.Runs)
	assert.Empty(t, sel.Diagnostics)
}

func TestSelector_InvalidPredicate(t *testing.T) {
	s := NewSelector(physicsStore(), nil)
	_, err := s.Select(context.Background(), RunRange(1000, 1003), Expr{}, nil)
	assert.Error(t, err)
}

func TestSelector_TransportErrorsPropagate(t *testing.T) {
	store := physicsStore()
	store.resolveErr = errors.New("db locked")
	s := NewSelector(store, nil)
	_, err := s.Select(context.Background(), RunRange(1000, 1003), physicsPred(t), nil)
	require.ErrorContains(t, err, "db locked")

	store = physicsStore()
	store.fetchErr = errors.New("db locked")
	s = NewSelector(store, nil)
	_, err = s.Select(context.Background(), RunRange(1000, 1003), physicsPred(t), nil)
	require.ErrorContains(t, err, "db locked")
}

func TestSelector_TypeDisagreementAborts(t *testing.T) {
	store := physicsStore()
	store.values[1000]["run_type"] = model.Int(7) // store data disagrees with the registry
	s := NewSelector(store, nil)

	_, err := s.Select(context.Background(), RunRange(1000, 1003), physicsPred(t), nil)
	var typeErr *ConditionTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "run_type", typeErr.Name)
}
