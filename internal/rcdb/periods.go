package rcdb

import (
	"fmt"

	"github.com/halld-offline/conddb/internal/model"
)

// Period is a contiguous run range, usually one of the experiment's named
// run periods.
type Period struct {
	Name string
	Min  model.RunNumber
	Max  model.RunNumber
}

func (p Period) String() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("[%d-%d]", p.Min, p.Max)
}

// RunRange builds an anonymous period covering [min, max].
func RunRange(min, max model.RunNumber) Period {
	return Period{Min: min, Max: max}
}

// runPeriods is the experiment's published run-period table. The short
// name is the label used in analysis notes.
var runPeriods = []struct {
	name     string
	short    string
	min, max model.RunNumber
}{
	{"2016-02", "S16", 10000, 19999},
	{"2017-01", "S17", 30000, 39999},
	{"2018-01", "S18", 40000, 49999},
	{"2018-08", "F18", 50000, 59999},
	{"2019-01", "S19", 60000, 69999},
	{"2019-11", "S20", 70000, 79999},
	{"2021-08", "SRC", 80000, 89999},
	{"2021-11", "CPP", 90000, 99999},
	{"2022-05", "S22", 100000, 109999},
	{"2022-08", "F22", 110000, 119999},
	{"2023-01", "S23", 120000, 129999},
	{"2025-01", "S25", 130000, 139999},
}

// PeriodByName resolves a run-period name or short label.
func PeriodByName(name string) (Period, error) {
	for _, p := range runPeriods {
		if p.name == name || p.short == name {
			return Period{Name: p.name, Min: p.min, Max: p.max}, nil
		}
	}
	return Period{}, &UnknownPeriodError{Name: name}
}

// Periods lists every named run period in chronological order.
func Periods() []Period {
	out := make([]Period, len(runPeriods))
	for i, p := range runPeriods {
		out[i] = Period{Name: p.name, Min: p.min, Max: p.max}
	}
	return out
}
