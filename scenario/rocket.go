package scenario

import (
	"fmt"

	rocketsim "github.com/0xsamuel-eth/rocket-simulation"
)

func (b builder) dryProperties() (rocketsim.DryProperties, error) {
	v := b.v
	var dry rocketsim.DryProperties
	if err := b.required("motor.dry_mass", "motor.nozzle_radius"); err != nil {
		return dry, err
	}
	var err error
	switch src := v.Get("motor.thrust_source").(type) {
	case nil:
		return dry, fmt.Errorf("%w: missing motor.thrust_source", ErrInvalidScenario)
	case string:
		var path string
		if path, err = b.path(src); err == nil {
			dry.Thrust, err = rocketsim.LoadThrustCurve(path)
		}
	default:
		dry.Thrust = rocketsim.NewConstantFunction(v.GetFloat64("motor.thrust_source"))
	}
	if err != nil {
		return dry, err
	}
	if v.IsSet("motor.dry_inertia") {
		if dry.DryInertia, err = b.float3("motor.dry_inertia"); err != nil {
			return dry, err
		}
	}
	if dry.Orientation, err = rocketsim.ParseMotorOrientation(v.GetString("motor.coordinate_system_orientation")); err != nil {
		return dry, err
	}
	dry.BurnTime = v.GetFloat64("motor.burn_time")
	dry.DryMass = v.GetFloat64("motor.dry_mass")
	dry.CenterOfDryMass = v.GetFloat64("motor.center_of_dry_mass_position")
	dry.NozzleRadius = v.GetFloat64("motor.nozzle_radius")
	dry.NozzlePosition = v.GetFloat64("motor.nozzle_position")
	return dry, nil
}

func (b builder) motor() (rocketsim.Motor, error) {
	v := b.v
	dry, err := b.dryProperties()
	if err != nil {
		return nil, err
	}
	switch kind := v.GetString("motor.kind"); kind {
	case "", "solid":
		return rocketsim.NewSolidMotor(rocketsim.SolidMotorConfig{
			DryProperties:              dry,
			ThroatRadius:               v.GetFloat64("motor.throat_radius"),
			GrainNumber:                v.GetInt("motor.grain_number"),
			GrainDensity:               v.GetFloat64("motor.grain_density"),
			GrainOuterRadius:           v.GetFloat64("motor.grain_outer_radius"),
			GrainInitialInnerRadius:    v.GetFloat64("motor.grain_initial_inner_radius"),
			GrainInitialHeight:         v.GetFloat64("motor.grain_initial_height"),
			GrainSeparation:            v.GetFloat64("motor.grain_separation"),
			GrainsCenterOfMassPosition: v.GetFloat64("motor.grains_center_of_mass_position"),
		})
	case "generic":
		return rocketsim.NewGenericMotor(rocketsim.GenericMotorConfig{
			DryProperties:         dry,
			PropellantInitialMass: v.GetFloat64("motor.propellant_initial_mass"),
			ChamberRadius:         v.GetFloat64("motor.chamber_radius"),
			ChamberHeight:         v.GetFloat64("motor.chamber_height"),
			ChamberPosition:       v.GetFloat64("motor.chamber_position"),
		})
	case "liquid":
		m, err := rocketsim.NewLiquidMotor(dry)
		if err != nil {
			return nil, err
		}
		m.SetLogger(b.loader.logger)
		for tankNo := 0; v.IsSet(fmt.Sprintf("tanks.%d", tankNo)); tankNo++ {
			t, err := b.tank(fmt.Sprintf("tanks.%d", tankNo))
			if err != nil {
				return nil, err
			}
			if err := m.AddTank(t, v.GetFloat64(fmt.Sprintf("tanks.%d.position", tankNo))); err != nil {
				return nil, err
			}
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown motor kind %q", ErrInvalidScenario, kind)
	}
}

func (b builder) tank(key string) (rocketsim.Tank, error) {
	v := b.v
	k := func(s string) string { return key + "." + s }
	geom := rocketsim.CylindricalTank{Radius: v.GetFloat64(k("radius")), Height: v.GetFloat64(k("height")), SphericalCaps: v.GetBool(k("spherical_caps"))}
	liquid := rocketsim.Fluid{Name: v.GetString(k("liquid.name")), Density: v.GetFloat64(k("liquid.density"))}
	gas := rocketsim.Fluid{Name: v.GetString(k("gas.name")), Density: v.GetFloat64(k("gas.density"))}
	name := v.GetString(k("name"))
	if name == "" {
		name = key
	}
	fn := func(s string) (*rocketsim.Function, error) { return b.function(k(s), 0) }
	switch kind := v.GetString(k("kind")); kind {
	case "", "mass_flow_rate":
		cfg := rocketsim.MassFlowRateBasedTankConfig{
			Name: name, Geometry: geom, Liquid: liquid, Gas: gas,
			FluxTime:          v.GetFloat64(k("flux_time")),
			InitialLiquidMass: v.GetFloat64(k("initial_liquid_mass")),
			InitialGasMass:    v.GetFloat64(k("initial_gas_mass")),
		}
		flows := []struct {
			dst **rocketsim.Function
			key string
		}{
			{&cfg.LiquidMassFlowRateIn, "liquid_mass_flow_rate_in"},
			{&cfg.LiquidMassFlowRateOut, "liquid_mass_flow_rate_out"},
			{&cfg.GasMassFlowRateIn, "gas_mass_flow_rate_in"},
			{&cfg.GasMassFlowRateOut, "gas_mass_flow_rate_out"},
		}
		for _, flow := range flows {
			f, err := fn(flow.key)
			if err != nil {
				return nil, err
			}
			*flow.dst = f
		}
		return rocketsim.NewMassFlowRateBasedTank(cfg)
	case "mass":
		liquidMass, err := fn("liquid_mass")
		if err != nil {
			return nil, err
		}
		gasMass, err := fn("gas_mass")
		if err != nil {
			return nil, err
		}
		return rocketsim.NewMassBasedTank(rocketsim.MassBasedTankConfig{
			Name: name, Geometry: geom, Liquid: liquid, Gas: gas,
			FluxTime:   v.GetFloat64(k("flux_time")),
			LiquidMass: liquidMass,
			GasMass:    gasMass,
		})
	default:
		return nil, fmt.Errorf("%w: unknown tank kind %q", ErrInvalidScenario, kind)
	}
}

func (b builder) rocket() (*rocketsim.Rocket, error) {
	v := b.v
	if err := b.required("rocket.radius", "rocket.mass", "rocket.inertia", "motor.position"); err != nil {
		return nil, err
	}
	inertia, err := b.float3("rocket.inertia")
	if err != nil {
		return nil, err
	}
	off, err := b.function("rocket.power_off_drag", 0.5)
	if err != nil {
		return nil, err
	}
	on := off
	if v.IsSet("rocket.power_on_drag") {
		if on, err = b.function("rocket.power_on_drag", 0.5); err != nil {
			return nil, err
		}
	}
	orientation, err := rocketsim.ParseCoordinateOrientation(v.GetString("rocket.coordinate_system_orientation"))
	if err != nil {
		return nil, err
	}
	r := rocketsim.NewRocket(v.GetFloat64("rocket.radius"), v.GetFloat64("rocket.mass"), inertia, off, on, v.GetFloat64("rocket.center_of_mass_without_motor"), orientation)
	r.SetLogger(b.loader.logger)

	m, err := b.motor()
	if err != nil {
		return nil, err
	}
	r.AddMotor(m, v.GetFloat64("motor.position"))

	if v.IsSet("nose") {
		if _, err := r.AddNose(v.GetFloat64("nose.length"), rocketsim.NoseKind(v.GetString("nose.kind")), v.GetFloat64("nose.position")); err != nil {
			return nil, err
		}
	}
	if v.IsSet("fins") {
		cfg := rocketsim.FinsConfig{
			N:           v.GetInt("fins.n"),
			RootChord:   v.GetFloat64("fins.root_chord"),
			TipChord:    v.GetFloat64("fins.tip_chord"),
			Span:        v.GetFloat64("fins.span"),
			SweepLength: v.GetFloat64("fins.sweep_length"),
			SweepAngle:  v.GetFloat64("fins.sweep_angle"),
			CantAngle:   v.GetFloat64("fins.cant_angle"),
		}
		if _, err := r.AddTrapezoidalFins(cfg, v.GetFloat64("fins.position")); err != nil {
			return nil, err
		}
	}
	if v.IsSet("tail") {
		if _, err := r.AddTail(v.GetFloat64("tail.top_radius"), v.GetFloat64("tail.bottom_radius"), v.GetFloat64("tail.length"), v.GetFloat64("tail.position")); err != nil {
			return nil, err
		}
	}
	if v.IsSet("rail_buttons") {
		r.SetRailButtons(v.GetFloat64("rail_buttons.upper_button_position"), v.GetFloat64("rail_buttons.lower_button_position"), v.GetFloat64("rail_buttons.angular_position"))
	}
	for chuteNo := 0; v.IsSet(fmt.Sprintf("parachutes.%d", chuteNo)); chuteNo++ {
		p, err := b.parachute(fmt.Sprintf("parachutes.%d", chuteNo))
		if err != nil {
			return nil, err
		}
		if err := r.AddParachute(p); err != nil {
			return nil, err
		}
	}
	return r, r.Validate()
}

func (b builder) parachute(key string) (*rocketsim.Parachute, error) {
	v := b.v
	k := func(s string) string { return key + "." + s }
	var trigger rocketsim.Trigger
	switch t := v.Get(k("trigger")).(type) {
	case string:
		if t != "apogee" {
			return nil, fmt.Errorf("%w: unknown trigger %q for %s", ErrInvalidScenario, t, key)
		}
		trigger = rocketsim.ApogeeTrigger()
	case nil:
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidScenario, k("trigger"))
	default:
		trigger = rocketsim.AltitudeTrigger(v.GetFloat64(k("trigger")))
	}
	var noise rocketsim.Noise
	if v.IsSet(k("noise")) {
		n, err := b.float3(k("noise"))
		if err != nil {
			return nil, err
		}
		noise = rocketsim.Noise{Mean: n[0], Std: n[1], Correlation: n[2]}
	}
	rate := v.GetFloat64(k("sampling_rate"))
	if rate == 0 {
		rate = 100
	}
	p, err := rocketsim.NewParachute(v.GetString(k("name")), v.GetFloat64(k("cd_s")), trigger, rate, v.GetFloat64(k("lag")), noise)
	if err != nil {
		return nil, err
	}
	p.Seed = uint64(v.GetInt64(k("seed")))
	return p, nil
}
