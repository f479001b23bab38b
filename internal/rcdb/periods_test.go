package rcdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halld-offline/conddb/internal/model"
)

func TestPeriodByName(t *testing.T) {
	p, err := PeriodByName("2019-11")
	require.NoError(t, err)
	assert.Equal(t, model.RunNumber(70000), p.Min)
	assert.Equal(t, model.RunNumber(79999), p.Max)

	// Short labels resolve too.
	byLabel, err := PeriodByName("S20")
	require.NoError(t, err)
	assert.Equal(t, p, byLabel)

	_, err = PeriodByName("1999-01")
	var unknown *UnknownPeriodError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "1999-01", unknown.Name)
}

func TestPeriods_ChronologicalAndDisjoint(t *testing.T) {
	periods := Periods()
	require.NotEmpty(t, periods)
	for i := 1; i < len(periods); i++ {
		assert.Greater(t, periods[i].Min, periods[i-1].Max,
			"%s overlaps %s", periods[i].Name, periods[i-1].Name)
	}
	for _, p := range periods {
		assert.LessOrEqual(t, p.Min, p.Max, p.Name)
	}
}

func TestRunRange(t *testing.T) {
	p := RunRange(10, 20)
	assert.Equal(t, "[10-20]", p.String())
	named := Period{Name: "2019-11", Min: 1, Max: 2}
	assert.Equal(t, "2019-11", named.String())
}
