package rocketsim

import (
	"fmt"
	"math"

	"github.com/go-kit/log"
)

// Fluid is a propellant or pressurant of constant density.
type Fluid struct {
	Name    string
	Density float64 // kg/m^3
}

// CylindricalTank is a cylinder of the given radius and total height, optionally closed by hemispherical caps.
type CylindricalTank struct {
	Radius, Height float64
	SphericalCaps  bool
}

// Validate checks the geometry.
func (g CylindricalTank) Validate() error {
	if g.Radius <= 0 || g.Height <= 0 {
		return fmt.Errorf("tank radius %g and height %g must be positive: %w", g.Radius, g.Height, ErrInvalidMotor)
	}
	if g.SphericalCaps && g.Height < 2*g.Radius {
		return fmt.Errorf("tank height %g smaller than its caps: %w", g.Height, ErrInvalidMotor)
	}
	return nil
}

// radiusAt returns the cross section radius at the height z above the tank bottom.
func (g CylindricalTank) radiusAt(z float64) float64 {
	if z < 0 || z > g.Height {
		return 0
	}
	r := g.Radius
	if !g.SphericalCaps {
		return r
	}
	var d float64
	switch {
	case z < r:
		d = r - z
	case z > g.Height-r:
		d = z - (g.Height - r)
	default:
		return r
	}
	return math.Sqrt(math.Max(0, r*r-d*d))
}

// Volume returns the inner volume of the tank.
func (g CylindricalTank) Volume() float64 {
	r := g.Radius
	if g.SphericalCaps {
		return math.Pi*r*r*(g.Height-2*r) + 4./3*math.Pi*r*r*r
	}
	return math.Pi * r * r * g.Height
}

// slab integrates the geometry between z0 and z1 (from the bottom) and
// returns the volume, the first moment ∫Az, the axial ∫Ar²/2 and the
// lateral (about the bottom) ∫A(r²/4+z²) integrals, per unit density.
func (g CylindricalTank) slab(z0, z1 float64) (vol, mz, iax, ilat float64) {
	const n = 200
	if z1 <= z0 {
		return
	}
	dz := (z1 - z0) / n
	for i := 0; i < n; i++ {
		z := z0 + (float64(i)+0.5)*dz
		r := g.radiusAt(z)
		dv := math.Pi * r * r * dz
		vol += dv
		mz += dv * z
		iax += dv * r * r / 2
		ilat += dv * (r*r/4 + z*z)
	}
	return
}

// heightOf returns the height filled by the volume v from the bottom.
func (g CylindricalTank) heightOf(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if !g.SphericalCaps {
		return math.Min(g.Height, v/(math.Pi*g.Radius*g.Radius))
	}
	lo, hi := 0., g.Height
	for k := 0; k < 50; k++ {
		mid := 0.5 * (lo + hi)
		if vol, _, _, _ := g.slab(0, mid); vol < v {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

// Tank is a propellant tank of a liquid motor. Positions are relative to the
// tank geometric center, positive towards the combustion chamber.
type Tank interface {
	Name() string
	LiquidMass(t float64) float64
	GasMass(t float64) float64
	TotalMass(t float64) float64
	NetMassFlowRate(t float64) float64
	LiquidHeight(t float64) float64
	CenterOfMass(t float64) float64
	Inertia(t float64) (lateral, axial float64)
	base() *tankBase
}

type tankBase struct {
	name                string
	geometry            CylindricalTank
	liquid, gas         Fluid
	fluxTime            float64
	liquidMass, gasMass *Function
	flow                func(t float64) float64
	clamped             bool
}

func newTankBase(name string, geometry CylindricalTank, liquid, gas Fluid, fluxTime float64) (*tankBase, error) {
	if err := geometry.Validate(); err != nil {
		return nil, fmt.Errorf("tank %s: %w", name, err)
	}
	if liquid.Density <= 0 || gas.Density < 0 {
		return nil, fmt.Errorf("tank %s: fluid densities %g and %g: %w", name, liquid.Density, gas.Density, ErrInvalidMotor)
	}
	if fluxTime <= 0 {
		return nil, fmt.Errorf("tank %s: flux time %g must be positive: %w", name, fluxTime, ErrInvalidMotor)
	}
	return &tankBase{name: name, geometry: geometry, liquid: liquid, gas: gas, fluxTime: fluxTime}, nil
}

// checkFill verifies the liquid always fits in the tank.
func (b *tankBase) checkFill() error {
	const n = 200
	vol := b.geometry.Volume()
	for i := 0; i <= n; i++ {
		t := b.fluxTime * float64(i) / n
		if lv := b.liquidMass.At(t) / b.liquid.Density; lv > vol*(1+1e-9) {
			return fmt.Errorf("tank %s: %.6f m^3 of %s at t=%.3f s in %.6f m^3: %w", b.name, lv, b.liquid.Name, t, vol, ErrTankOverfilled)
		}
	}
	return nil
}

func (b *tankBase) base() *tankBase {
	return b
}

// Name returns the tank name.
func (b *tankBase) Name() string {
	return b.name
}

// LiquidMass returns the liquid mass at time t.
func (b *tankBase) LiquidMass(t float64) float64 {
	return b.liquidMass.At(t)
}

// GasMass returns the gas mass at time t.
func (b *tankBase) GasMass(t float64) float64 {
	return b.gasMass.At(t)
}

// TotalMass returns the fluid mass at time t.
func (b *tankBase) TotalMass(t float64) float64 {
	return b.LiquidMass(t) + b.GasMass(t)
}

// NetMassFlowRate returns the rate of change of the fluid mass.
func (b *tankBase) NetMassFlowRate(t float64) float64 {
	if t < 0 || t > b.fluxTime {
		return 0
	}
	return b.flow(t)
}

// LiquidHeight returns the liquid level above the tank bottom.
func (b *tankBase) LiquidHeight(t float64) float64 {
	return b.geometry.heightOf(b.LiquidMass(t) / b.liquid.Density)
}

// fill returns the mass, height of the center of mass above the bottom and inertia about it.
func (b *tankBase) fill(t float64) (mass, zc, lateral, axial float64) {
	ml, mg := b.LiquidMass(t), b.GasMass(t)
	mass = ml + mg
	if mass <= 0 {
		return 0, b.geometry.Height / 2, 0, 0
	}
	hl := b.LiquidHeight(t)
	vl, mzl, iaxl, ilatl := b.geometry.slab(0, hl)
	vg, mzg, iaxg, ilatg := b.geometry.slab(hl, b.geometry.Height)
	var ρl, ρg float64
	if vl > 0 {
		ρl = ml / vl
	}
	if vg > 0 {
		ρg = mg / vg
	}
	zc = (ρl*mzl + ρg*mzg) / mass
	if ρl == 0 && ρg == 0 {
		zc = b.geometry.Height / 2
	}
	lateral = ρl*ilatl + ρg*ilatg - mass*zc*zc
	axial = ρl*iaxl + ρg*iaxg
	return
}

// CenterOfMass returns the fluid center of mass relative to the tank center.
func (b *tankBase) CenterOfMass(t float64) float64 {
	_, zc, _, _ := b.fill(t)
	return zc - b.geometry.Height/2
}

// Inertia returns the fluid inertia about its center of mass.
func (b *tankBase) Inertia(t float64) (lateral, axial float64) {
	_, _, lateral, axial = b.fill(t)
	return
}

// MassFlowRateBasedTankConfig defines a tank from its initial load and flow rates.
type MassFlowRateBasedTankConfig struct {
	Name                  string
	Geometry              CylindricalTank
	Liquid, Gas           Fluid
	FluxTime              float64
	InitialLiquidMass     float64
	InitialGasMass        float64
	LiquidMassFlowRateIn  *Function
	LiquidMassFlowRateOut *Function
	GasMassFlowRateIn     *Function
	GasMassFlowRateOut    *Function
}

// MassFlowRateBasedTank integrates in and out flow rates into liquid and gas masses.
type MassFlowRateBasedTank struct {
	*tankBase
}

// NewMassFlowRateBasedTank returns a new tank. Masses are clamped at zero.
func NewMassFlowRateBasedTank(cfg MassFlowRateBasedTankConfig) (*MassFlowRateBasedTank, error) {
	b, err := newTankBase(cfg.Name, cfg.Geometry, cfg.Liquid, cfg.Gas, cfg.FluxTime)
	if err != nil {
		return nil, err
	}
	zero := NewConstantFunction(0)
	or0 := func(f *Function) *Function {
		if f == nil {
			return zero
		}
		return f
	}
	lin, lout := or0(cfg.LiquidMassFlowRateIn), or0(cfg.LiquidMassFlowRateOut)
	gin, gout := or0(cfg.GasMassFlowRateIn), or0(cfg.GasMassFlowRateOut)
	if b.liquidMass, err = b.accumulate(cfg.InitialLiquidMass, lin, lout); err != nil {
		return nil, err
	}
	if b.gasMass, err = b.accumulate(cfg.InitialGasMass, gin, gout); err != nil {
		return nil, err
	}
	b.flow = func(t float64) float64 {
		return lin.At(t) - lout.At(t) + gin.At(t) - gout.At(t)
	}
	if err := b.checkFill(); err != nil {
		return nil, err
	}
	return &MassFlowRateBasedTank{b}, nil
}

func (b *tankBase) accumulate(m0 float64, in, out *Function) (*Function, error) {
	const n = 400
	xs, ins := in.cumulativeIntegral(0, b.fluxTime, n)
	_, outs := out.cumulativeIntegral(0, b.fluxTime, n)
	ys := make([]float64, len(xs))
	for i := range xs {
		ys[i] = m0 + ins[i] - outs[i]
		if ys[i] < 0 {
			ys[i] = 0
			b.clamped = true
		}
	}
	return NewTabulatedFunction(xs, ys, ConstantExtrapolation)
}

// MassBasedTankConfig defines a tank from its liquid and gas mass curves.
type MassBasedTankConfig struct {
	Name        string
	Geometry    CylindricalTank
	Liquid, Gas Fluid
	FluxTime    float64
	LiquidMass  *Function
	GasMass     *Function
}

// MassBasedTank follows given liquid and gas mass curves.
type MassBasedTank struct {
	*tankBase
}

// NewMassBasedTank returns a new tank. Masses are clamped at zero.
func NewMassBasedTank(cfg MassBasedTankConfig) (*MassBasedTank, error) {
	b, err := newTankBase(cfg.Name, cfg.Geometry, cfg.Liquid, cfg.Gas, cfg.FluxTime)
	if err != nil {
		return nil, err
	}
	if cfg.LiquidMass == nil {
		return nil, fmt.Errorf("tank %s: no liquid mass curve: %w", cfg.Name, ErrInvalidMotor)
	}
	gas := cfg.GasMass
	if gas == nil {
		gas = NewConstantFunction(0)
	}
	const n = 400
	xs := make([]float64, n+1)
	liquid := make([]float64, n+1)
	gasYs := make([]float64, n+1)
	for i := range xs {
		xs[i] = b.fluxTime * float64(i) / n
		liquid[i] = cfg.LiquidMass.At(xs[i])
		gasYs[i] = gas.At(xs[i])
		if liquid[i] < 0 || gasYs[i] < 0 {
			b.clamped = true
			liquid[i], gasYs[i] = math.Max(0, liquid[i]), math.Max(0, gasYs[i])
		}
	}
	if b.liquidMass, err = NewTabulatedFunction(xs, liquid, ConstantExtrapolation); err != nil {
		return nil, err
	}
	if b.gasMass, err = NewTabulatedFunction(xs, gasYs, ConstantExtrapolation); err != nil {
		return nil, err
	}
	b.flow = func(t float64) float64 {
		δ := math.Min(1e-3, b.fluxTime/(2*n))
		lo, hi := math.Max(0, t-δ), math.Min(b.fluxTime, t+δ)
		return (b.TotalMass(hi) - b.TotalMass(lo)) / (hi - lo)
	}
	if err := b.checkFill(); err != nil {
		return nil, err
	}
	return &MassBasedTank{b}, nil
}

type positionedTank struct {
	tank     Tank
	position float64
}

// LiquidMotor is a motor fed by tanks.
type LiquidMotor struct {
	motorBase
	orientation MotorOrientation
	tanks       []positionedTank
	logger      log.Logger
}

// NewLiquidMotor returns a liquid motor without tanks.
func NewLiquidMotor(dry DryProperties) (*LiquidMotor, error) {
	base, err := newMotorBase(dry)
	if err != nil {
		return nil, err
	}
	return &LiquidMotor{motorBase: base, orientation: dry.Orientation, logger: log.NewNopLogger()}, nil
}

// SetLogger sets the logger of this motor.
func (m *LiquidMotor) SetLogger(logger log.Logger) {
	m.logger = log.With(logger, "subsys", "prop")
}

// AddTank adds a tank whose geometric center is at the provided position in the motor coordinates.
func (m *LiquidMotor) AddTank(t Tank, position float64) error {
	if t == nil {
		return fmt.Errorf("nil tank: %w", ErrInvalidMotor)
	}
	b := t.base()
	for _, pt := range m.tanks {
		if pt.tank.Name() == b.name {
			return fmt.Errorf("duplicate tank %q: %w", b.name, ErrInvalidMotor)
		}
	}
	if b.fluxTime+1e-9 < m.burnTime {
		m.logger.Log("level", "warning", "tank", b.name, "flux_time", b.fluxTime, "burn_time", m.burnTime, "message", "tank stops flowing before burnout")
	}
	if b.clamped {
		m.logger.Log("level", "warning", "tank", b.name, "message", "negative fluid mass clamped to zero")
	}
	m.tanks = append(m.tanks, positionedTank{tank: t, position: m.orientation.sign() * position})
	m.logger.Log("level", "info", "tank", b.name, "position", position, "liquid(kg)", t.LiquidMass(0), "gas(kg)", t.GasMass(0))
	return nil
}

// Tanks returns the tanks of this motor.
func (m *LiquidMotor) Tanks() []Tank {
	tanks := make([]Tank, len(m.tanks))
	for i, pt := range m.tanks {
		tanks[i] = pt.tank
	}
	return tanks
}

// PropellantMass implements the Motor interface.
func (m *LiquidMotor) PropellantMass(t float64) (mass float64) {
	for _, pt := range m.tanks {
		mass += pt.tank.TotalMass(t)
	}
	return
}

// TotalMass implements the Motor interface.
func (m *LiquidMotor) TotalMass(t float64) float64 {
	return m.dryMass + m.PropellantMass(t)
}

// MassFlowRate implements the Motor interface.
func (m *LiquidMotor) MassFlowRate(t float64) (rate float64) {
	for _, pt := range m.tanks {
		rate += pt.tank.NetMassFlowRate(t)
	}
	return
}

// propellant returns the tanks' mass, center of mass and inertia about it.
func (m *LiquidMotor) propellant(t float64) (mass, cm, lateral, axial float64) {
	type part struct{ m, z, lat, ax float64 }
	parts := make([]part, 0, len(m.tanks))
	for _, pt := range m.tanks {
		tm := pt.tank.TotalMass(t)
		lat, ax := pt.tank.Inertia(t)
		parts = append(parts, part{tm, pt.position + pt.tank.CenterOfMass(t), lat, ax})
		mass += tm
		cm += tm * (pt.position + pt.tank.CenterOfMass(t))
	}
	if mass <= 0 {
		return 0, 0, 0, 0
	}
	cm /= mass
	for _, p := range parts {
		lateral += p.lat + p.m*(p.z-cm)*(p.z-cm)
		axial += p.ax
	}
	return
}

// CenterOfMass implements the Motor interface.
func (m *LiquidMotor) CenterOfMass(t float64) float64 {
	mp, cmp, _, _ := m.propellant(t)
	cm, _, _ := m.withPropellant(mp, cmp, 0, 0)
	return cm
}

// Inertia implements the Motor interface.
func (m *LiquidMotor) Inertia(t float64) (lateral, axial float64) {
	mp, cmp, lat, ax := m.propellant(t)
	_, lateral, axial = m.withPropellant(mp, cmp, lat, ax)
	return
}
