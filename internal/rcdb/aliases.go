package rcdb

import "github.com/halld-offline/conddb/internal/model"

// DefaultConditions are the condition definitions the standard aliases
// reference. Live stores define the same names with the same types; the
// idempotent Register makes seeding both safe.
var DefaultConditions = []Condition{
	{Name: "run_type", Type: model.TypeString},
	{Name: "daq_run", Type: model.TypeString},
	{Name: "run_config", Type: model.TypeString},
	{Name: "target_type", Type: model.TypeString},
	{Name: "collimator_diameter", Type: model.TypeString},
	{Name: "beam_current", Type: model.TypeFloat},
	{Name: "solenoid_current", Type: model.TypeFloat},
	{Name: "polarization_angle", Type: model.TypeFloat},
	{Name: "event_count", Type: model.TypeInt},
	{Name: "status", Type: model.TypeInt},
}

// RegisterDefaults seeds the registry with the standard condition
// definitions and the selection aliases every analysis uses
// (is_production, is_cosmic, the status_* shortcuts, and so on).
func RegisterDefaults(r *Registry) error {
	for _, c := range DefaultConditions {
		if err := r.Register(c.Name, c.Type); err != nil {
			return err
		}
	}

	b := &aliasBuilder{r: r}
	runType := b.str("run_type")
	daqRun := b.str("daq_run")
	runConfig := b.str("run_config")
	targetType := b.str("target_type")
	collimator := b.str("collimator_diameter")
	beamCurrent := b.float("beam_current")
	solenoid := b.float("solenoid_current")
	polAngle := b.float("polarization_angle")
	eventCount := b.int("event_count")
	status := b.int("status")
	if b.err != nil {
		return b.err
	}

	production := func(daq string, minEvents int64) Expr {
		return All(
			daqRun.Eq(daq),
			beamCurrent.Gt(2.0),
			eventCount.Gt(minEvents),
			solenoid.Gt(100.0),
			collimator.Ne("Blocking"),
		)
	}

	r.RegisterAlias("is_production", All(
		runType.In("hd_all.tsg", "hd_all.tsg_ps", "hd_all.bcal_fcal_st.tsg"),
		beamCurrent.Gt(2.0),
		eventCount.Gt(500_000),
		solenoid.Gt(100.0),
		collimator.Ne("Blocking"),
	))
	r.RegisterAlias("is_2018production", production("PHYSICS", 10_000_000))
	r.RegisterAlias("is_primex_production", All(
		daqRun.Eq("PHYSICS_PRIMEX"),
		eventCount.Gt(1_000_000),
		collimator.Ne("Blocking"),
	))
	r.RegisterAlias("is_dirc_production", production("PHYSICS_DIRC", 5_000_000))
	r.RegisterAlias("is_src_production", production("PHYSICS_SRC", 5_000_000))
	r.RegisterAlias("is_cpp_production", production("PHYSICS_CPP", 5_000_000))
	r.RegisterAlias("is_production_long", production("PHYSICS_raw", 5_000_000))
	r.RegisterAlias("is_cosmic", All(
		runConfig.Contains("cosmic"),
		beamCurrent.Lt(1.0),
		eventCount.Gt(5_000),
	))
	r.RegisterAlias("is_empty_target", targetType.Eq("EMPTY & Ready"))
	r.RegisterAlias("is_amorph_radiator", polAngle.Lt(0.0))
	r.RegisterAlias("is_coherent_beam", polAngle.Ge(0.0))
	r.RegisterAlias("is_field_off", solenoid.Lt(100.0))
	r.RegisterAlias("is_field_on", solenoid.Ge(100.0))
	r.RegisterAlias("status_calibration", status.Eq(3))
	r.RegisterAlias("status_approved_long", status.Eq(2))
	r.RegisterAlias("status_approved", status.Eq(1))
	r.RegisterAlias("status_unchecked", status.Eq(-1))
	r.RegisterAlias("status_reject", status.Eq(0))
	return nil
}

// aliasBuilder threads the first builder error through a batch of
// condition lookups so the happy path above stays readable.
type aliasBuilder struct {
	r   *Registry
	err error
}

func (b *aliasBuilder) int(name string) IntCond {
	c, err := b.r.IntCond(name)
	if err != nil && b.err == nil {
		b.err = err
	}
	return c
}

func (b *aliasBuilder) float(name string) FloatCond {
	c, err := b.r.FloatCond(name)
	if err != nil && b.err == nil {
		b.err = err
	}
	return c
}

func (b *aliasBuilder) str(name string) StringCond {
	c, err := b.r.StringCond(name)
	if err != nil && b.err == nil {
		b.err = err
	}
	return c
}
