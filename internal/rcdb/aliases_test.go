package rcdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halld-offline/conddb/internal/model"
)

func defaultsRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, RegisterDefaults(r))
	return r
}

// productionValues is a run that satisfies is_production.
func productionValues() map[string]model.CellValue {
	return map[string]model.CellValue{
		"run_type":            model.Str("hd_all.tsg"),
		"beam_current":        model.Float(150.0),
		"event_count":         model.Int(20_000_000),
		"solenoid_current":    model.Float(1350.0),
		"collimator_diameter": model.Str("5.0mm hole"),
	}
}

func TestRegisterDefaults_IdempotentWithStoreSeeding(t *testing.T) {
	r := NewRegistry()
	// A store seeds conditions first; the stock set must coexist.
	require.NoError(t, r.Register("status", model.TypeInt))
	require.NoError(t, r.Register("beam_current", model.TypeFloat))
	require.NoError(t, RegisterDefaults(r))
	assert.NotEmpty(t, r.Aliases())

	// A store that disagrees on a type makes the defaults fail.
	bad := NewRegistry()
	require.NoError(t, bad.Register("status", model.TypeString))
	err := RegisterDefaults(bad)
	var conflict *ConditionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "status", conflict.Name)
}

func TestIsProduction(t *testing.T) {
	r := defaultsRegistry(t)
	pred, ok := r.Alias("is_production")
	require.True(t, ok)

	v, err := Evaluate(pred, productionValues())
	require.NoError(t, err)
	assert.True(t, v)

	tests := []struct {
		name  string
		mod   func(map[string]model.CellValue)
	}{
		{"wrong trigger", func(m map[string]model.CellValue) { m["run_type"] = model.Str("cosmics.tsg") }},
		{"beam off", func(m map[string]model.CellValue) { m["beam_current"] = model.Float(0.0) }},
		{"too few events", func(m map[string]model.CellValue) { m["event_count"] = model.Int(100) }},
		{"field off", func(m map[string]model.CellValue) { m["solenoid_current"] = model.Float(0.0) }},
		{"blocked collimator", func(m map[string]model.CellValue) { m["collimator_diameter"] = model.Str("Blocking") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := productionValues()
			tt.mod(values)
			v, err := Evaluate(pred, values)
			require.NoError(t, err)
			assert.False(t, v)
		})
	}
}

func TestIsProduction_MissingConditionIsAnError(t *testing.T) {
	r := defaultsRegistry(t)
	pred, ok := r.Alias("is_production")
	require.True(t, ok)

	values := productionValues()
	delete(values, "run_type")
	_, err := Evaluate(pred, values)
	var missing *MissingValueError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "run_type", missing.Condition)
}

func TestIsCosmic(t *testing.T) {
	r := defaultsRegistry(t)
	pred, ok := r.Alias("is_cosmic")
	require.True(t, ok)

	values := map[string]model.CellValue{
		"run_config":   model.Str("FCAL_BCAL_cosmic.conf"),
		"beam_current": model.Float(0.0),
		"event_count":  model.Int(100_000),
	}
	v, err := Evaluate(pred, values)
	require.NoError(t, err)
	assert.True(t, v)

	values["run_config"] = model.Str("hd_all.conf")
	v, err = Evaluate(pred, values)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestStatusAliases(t *testing.T) {
	r := defaultsRegistry(t)
	tests := []struct {
		alias  string
		status int64
	}{
		{"status_reject", 0},
		{"status_approved", 1},
		{"status_approved_long", 2},
		{"status_calibration", 3},
		{"status_unchecked", -1},
	}
	for _, tt := range tests {
		pred, ok := r.Alias(tt.alias)
		require.True(t, ok, tt.alias)

		v, err := Evaluate(pred, map[string]model.CellValue{"status": model.Int(tt.status)})
		require.NoError(t, err)
		assert.True(t, v, tt.alias)

		v, err = Evaluate(pred, map[string]model.CellValue{"status": model.Int(99)})
		require.NoError(t, err)
		assert.False(t, v, tt.alias)
	}
}

func TestPolarizationAliasesPartitionAngles(t *testing.T) {
	r := defaultsRegistry(t)
	amorph, ok := r.Alias("is_amorph_radiator")
	require.True(t, ok)
	coherent, ok := r.Alias("is_coherent_beam")
	require.True(t, ok)

	for _, angle := range []float64{-1.0, 0.0, 45.0, 90.0, 135.0} {
		values := map[string]model.CellValue{"polarization_angle": model.Float(angle)}
		a, err := Evaluate(amorph, values)
		require.NoError(t, err)
		c, err := Evaluate(coherent, values)
		require.NoError(t, err)
		assert.NotEqual(t, a, c, "angle %v must match exactly one of the pair", angle)
	}
}
