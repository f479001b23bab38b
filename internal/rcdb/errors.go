package rcdb

import (
	"fmt"

	"github.com/halld-offline/conddb/internal/model"
)

// UnknownConditionError reports a condition name that has not been
// registered. Raised at expression build time, never at evaluation.
type UnknownConditionError struct {
	Name string
}

func (e *UnknownConditionError) Error() string {
	return fmt.Sprintf("rcdb: unknown condition: %s", e.Name)
}

// ConditionConflictError reports an attempt to re-register a condition name
// under a different value type.
type ConditionConflictError struct {
	Name     string
	Existing model.ColumnType
	New      model.ColumnType
}

func (e *ConditionConflictError) Error() string {
	return fmt.Sprintf("rcdb: condition %q already registered as %s, cannot re-register as %s",
		e.Name, e.Existing, e.New)
}

// ConditionTypeError reports a build-time or evaluation-time disagreement
// between a condition's registered type and the type it is being used as.
type ConditionTypeError struct {
	Name     string
	Expected model.ColumnType
	Actual   model.ColumnType
}

func (e *ConditionTypeError) Error() string {
	return fmt.Sprintf("rcdb: condition %q is %s, not %s", e.Name, e.Actual, e.Expected)
}

// MissingValueError reports that a run has no value for a condition the
// expression references. Evaluation is strict: a missing condition is a
// hard error for that run, never silently treated as false.
type MissingValueError struct {
	Condition string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("rcdb: missing value for condition %q", e.Condition)
}

// UnknownPeriodError reports a run-period name the period table does not
// define.
type UnknownPeriodError struct {
	Name string
}

func (e *UnknownPeriodError) Error() string {
	return fmt.Sprintf("rcdb: unknown run period: %s", e.Name)
}
