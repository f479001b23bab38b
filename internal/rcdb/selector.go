package rcdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/halld-offline/conddb/internal/model"
)

// Transport fetches per-run metadata from the run-condition store.
// Implementations must be safe for concurrent use.
type Transport interface {
	// ResolveRuns returns the run numbers the store actually holds within
	// [min, max], in ascending order.
	ResolveRuns(ctx context.Context, min, max model.RunNumber) ([]model.RunNumber, error)

	// FetchConditions returns the values of the named conditions for each
	// requested run. A run missing a condition simply has no entry for
	// that name; a run entirely absent from the store has no entry at all.
	FetchConditions(ctx context.Context, runs []model.RunNumber, names []string) (map[model.RunNumber]map[string]model.CellValue, error)
}

// Diagnostic records a run that was excluded from a selection because its
// predicate could not be evaluated, together with the reason.
type Diagnostic struct {
	Run model.RunNumber
	Err error
}

// Selection is the outcome of evaluating a predicate over a run period:
// the runs that matched, in strictly ascending order, and a diagnostic for
// every run excluded due to missing condition values. Excluded runs are
// never silently dropped.
type Selection struct {
	Runs        []model.RunNumber
	Diagnostics []Diagnostic
}

// Selector evaluates predicates over run periods.
type Selector struct {
	tr     Transport
	logger *slog.Logger
}

// NewSelector creates a selector over the given transport.
func NewSelector(tr Transport, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{tr: tr, logger: logger}
}

// Select resolves the period to its candidate runs, drops the skip list,
// fetches the referenced condition values in one batch, and evaluates the
// predicate per run.
//
// A run whose evaluation fails with a missing condition value is excluded
// and recorded in the selection's diagnostics. Any other evaluation error
// aborts the whole selection: a type disagreement is a configuration bug,
// not a per-run data gap.
func (s *Selector) Select(ctx context.Context, period Period, pred Expr, skip map[model.RunNumber]bool) (Selection, error) {
	if !pred.Valid() {
		return Selection{}, fmt.Errorf("rcdb: select: invalid predicate")
	}
	candidates, err := s.tr.ResolveRuns(ctx, period.Min, period.Max)
	if err != nil {
		return Selection{}, fmt.Errorf("rcdb: resolve period %s: %w", period, err)
	}

	runs := candidates[:0:0]
	for _, run := range candidates {
		if !skip[run] {
			runs = append(runs, run)
		}
	}
	if len(runs) == 0 {
		return Selection{}, nil
	}

	values, err := s.tr.FetchConditions(ctx, runs, pred.Conditions())
	if err != nil {
		return Selection{}, fmt.Errorf("rcdb: fetch conditions for %s: %w", period, err)
	}

	var sel Selection
	for _, run := range runs {
		ok, err := Evaluate(pred, values[run])
		if err != nil {
			var missing *MissingValueError
			if errors.As(err, &missing) {
				sel.Diagnostics = append(sel.Diagnostics, Diagnostic{Run: run, Err: err})
				continue
			}
			return Selection{}, fmt.Errorf("rcdb: evaluate run %d: %w", run, err)
		}
		if ok {
			sel.Runs = append(sel.Runs, run)
		}
	}
	slices.Sort(sel.Runs)
	if len(sel.Diagnostics) > 0 {
		s.logger.Warn("rcdb: runs excluded from selection",
			"period", period.String(), "excluded", len(sel.Diagnostics))
	}
	return sel, nil
}
