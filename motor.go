package rocketsim

import (
	"fmt"
	"math"
)

// MotorOrientation is the direction of the motor axis used to express positions.
type MotorOrientation uint8

const (
	// NozzleToCombustionChamber means positions grow from the nozzle towards the chamber.
	NozzleToCombustionChamber MotorOrientation = iota
	// CombustionChamberToNozzle means positions grow from the chamber towards the nozzle.
	CombustionChamberToNozzle
)

func (o MotorOrientation) sign() float64 {
	if o == CombustionChamberToNozzle {
		return -1
	}
	return 1
}

func (o MotorOrientation) String() string {
	if o == CombustionChamberToNozzle {
		return "combustion_chamber_to_nozzle"
	}
	return "nozzle_to_combustion_chamber"
}

// ParseMotorOrientation parses the orientation names used in scenario files.
func ParseMotorOrientation(s string) (MotorOrientation, error) {
	switch s {
	case "", "nozzle_to_combustion_chamber":
		return NozzleToCombustionChamber, nil
	case "combustion_chamber_to_nozzle":
		return CombustionChamberToNozzle, nil
	}
	return 0, fmt.Errorf("unknown motor orientation %q: %w", s, ErrInvalidMotor)
}

// Motor defines a rocket motor. Positions are along the motor axis from the
// motor origin, positive towards the combustion chamber. Thrust is zero
// outside [0, BurnOutTime()].
type Motor interface {
	Thrust(t float64) float64                   // N
	BurnOutTime() float64                       // s
	TotalImpulse() float64                      // N·s
	DryMass() float64                           // kg
	PropellantMass(t float64) float64           // kg
	TotalMass(t float64) float64                // kg
	MassFlowRate(t float64) float64             // kg/s, negative while burning
	CenterOfMass(t float64) float64             // m
	Inertia(t float64) (lateral, axial float64) // kg·m^2 about the motor center of mass
	NozzleRadius() float64                      // m
	NozzlePosition() float64                    // m
}

// DryProperties are shared by all motors.
type DryProperties struct {
	Thrust          *Function
	BurnTime        float64    // s, clips or extends the thrust curve, defaults to its last point
	DryMass         float64    // kg
	DryInertia      [3]float64 // I11, I22, I33 about the center of dry mass
	CenterOfDryMass float64    // m
	NozzleRadius    float64    // m
	NozzlePosition  float64    // m
	Orientation     MotorOrientation
}

// motorBase holds the dry properties of a motor, normalized to NozzleToCombustionChamber.
type motorBase struct {
	thrust          *Function
	burnTime        float64
	dryMass         float64
	dryI11, dryI33  float64
	centerOfDryMass float64
	nozzleRadius    float64
	nozzlePosition  float64
	totalImpulse    float64
}

func newMotorBase(p DryProperties) (motorBase, error) {
	if p.Thrust == nil {
		return motorBase{}, fmt.Errorf("no thrust source: %w", ErrInvalidMotor)
	}
	burn := p.BurnTime
	if burn <= 0 {
		_, hi, ok := p.Thrust.Domain()
		if !ok {
			return motorBase{}, fmt.Errorf("burn time required for %s thrust: %w", p.Thrust, ErrInvalidMotor)
		}
		burn = hi
	}
	if burn <= 0 {
		return motorBase{}, fmt.Errorf("non positive burn time %g: %w", burn, ErrInvalidMotor)
	}
	if p.DryMass < 0 || p.NozzleRadius <= 0 {
		return motorBase{}, fmt.Errorf("dry mass %g and nozzle radius %g: %w", p.DryMass, p.NozzleRadius, ErrInvalidMotor)
	}
	if math.Abs(p.DryInertia[0]-p.DryInertia[1]) > 1e-9 {
		return motorBase{}, fmt.Errorf("motors must be axisymmetric (I11=%g, I22=%g): %w", p.DryInertia[0], p.DryInertia[1], ErrInvalidMotor)
	}
	s := p.Orientation.sign()
	b := motorBase{
		thrust:          p.Thrust,
		burnTime:        burn,
		dryMass:         p.DryMass,
		dryI11:          p.DryInertia[0],
		dryI33:          p.DryInertia[2],
		centerOfDryMass: s * p.CenterOfDryMass,
		nozzleRadius:    p.NozzleRadius,
		nozzlePosition:  s * p.NozzlePosition,
	}
	b.totalImpulse = p.Thrust.Integral(0, burn)
	if b.totalImpulse <= 0 {
		return motorBase{}, fmt.Errorf("total impulse %g: %w", b.totalImpulse, ErrInvalidMotor)
	}
	return b, nil
}

// Thrust implements the Motor interface.
func (m *motorBase) Thrust(t float64) float64 {
	if t < 0 || t > m.burnTime {
		return 0
	}
	return math.Max(0, m.thrust.At(t))
}

// BurnOutTime implements the Motor interface.
func (m *motorBase) BurnOutTime() float64 {
	return m.burnTime
}

// TotalImpulse implements the Motor interface.
func (m *motorBase) TotalImpulse() float64 {
	return m.totalImpulse
}

// DryMass implements the Motor interface.
func (m *motorBase) DryMass() float64 {
	return m.dryMass
}

// NozzleRadius implements the Motor interface.
func (m *motorBase) NozzleRadius() float64 {
	return m.nozzleRadius
}

// NozzlePosition implements the Motor interface.
func (m *motorBase) NozzlePosition() float64 {
	return m.nozzlePosition
}

// withPropellant combines the dry motor with a propellant mass mp located at
// cmp, of inertia (lat, ax) about its own center of mass.
func (m *motorBase) withPropellant(mp, cmp, lat, ax float64) (cm, lateral, axial float64) {
	total := m.dryMass + mp
	if total <= 0 {
		return m.centerOfDryMass, 0, 0
	}
	cm = (m.dryMass*m.centerOfDryMass + mp*cmp) / total
	dd := m.centerOfDryMass - cm
	dp := cmp - cm
	lateral = m.dryI11 + m.dryMass*dd*dd + lat + mp*dp*dp
	axial = m.dryI33 + ax
	return
}

// impulseMass tabulates a propellant mass which decreases proportionally to the delivered impulse.
func (m *motorBase) impulseMass(m0 float64) (*Function, error) {
	const n = 500
	xs, ys := m.thrust.cumulativeIntegral(0, m.burnTime, n)
	for i := range ys {
		ys[i] = math.Max(0, m0*(1-ys[i]/m.totalImpulse))
	}
	ys[n] = 0
	return NewTabulatedFunction(xs, ys, ConstantExtrapolation)
}

// SolidMotorConfig defines a solid motor made of identical cylindrical grains burning inside and at both ends.
type SolidMotorConfig struct {
	DryProperties
	ThroatRadius               float64 // m
	GrainNumber                int
	GrainDensity               float64 // kg/m^3
	GrainOuterRadius           float64 // m
	GrainInitialInnerRadius    float64 // m
	GrainInitialHeight         float64 // m
	GrainSeparation            float64 // m
	GrainsCenterOfMassPosition float64 // m
}

// SolidMotor is a solid motor whose grain geometry regresses as impulse is delivered.
type SolidMotor struct {
	motorBase
	cfg                 SolidMotorConfig
	grainsCM            float64
	propellantInitial   float64
	exhaustVelocity     float64
	propellant          *Function
	innerRadius, height *Function
}

// NewSolidMotor returns a new solid motor.
func NewSolidMotor(cfg SolidMotorConfig) (*SolidMotor, error) {
	base, err := newMotorBase(cfg.DryProperties)
	if err != nil {
		return nil, err
	}
	ro, ri, h := cfg.GrainOuterRadius, cfg.GrainInitialInnerRadius, cfg.GrainInitialHeight
	if cfg.GrainNumber <= 0 || cfg.GrainDensity <= 0 || h <= 0 || ri < 0 || ro <= ri {
		return nil, fmt.Errorf("grain geometry (n=%d, ρ=%g, ro=%g, ri=%g, h=%g): %w", cfg.GrainNumber, cfg.GrainDensity, ro, ri, h, ErrInvalidMotor)
	}
	if cfg.ThroatRadius > cfg.NozzleRadius {
		return nil, fmt.Errorf("throat radius %g larger than nozzle radius %g: %w", cfg.ThroatRadius, cfg.NozzleRadius, ErrInvalidMotor)
	}
	m := &SolidMotor{motorBase: base, cfg: cfg, grainsCM: cfg.Orientation.sign() * cfg.GrainsCenterOfMassPosition}
	m.propellantInitial = float64(cfg.GrainNumber) * grainMass(cfg.GrainDensity, ro, ri, h)
	m.exhaustVelocity = m.totalImpulse / m.propellantInitial
	if m.propellant, err = m.impulseMass(m.propellantInitial); err != nil {
		return nil, err
	}
	// Grain regression: the burnt web ε grows the inner radius by ε and shrinks the height by 2ε.
	xs, masses := m.propellant.Points()
	radii := make([]float64, len(xs))
	heights := make([]float64, len(xs))
	εmax := math.Min(ro-ri, h/2)
	for i, mp := range masses {
		target := mp / float64(cfg.GrainNumber)
		lo, hi := 0., εmax
		for k := 0; k < 60; k++ {
			mid := 0.5 * (lo + hi)
			if grainMass(cfg.GrainDensity, ro, ri+mid, h-2*mid) > target {
				lo = mid
			} else {
				hi = mid
			}
		}
		radii[i] = ri + hi
		heights[i] = h - 2*hi
	}
	if m.innerRadius, err = NewTabulatedFunction(xs, radii, ConstantExtrapolation); err != nil {
		return nil, err
	}
	if m.height, err = NewTabulatedFunction(xs, heights, ConstantExtrapolation); err != nil {
		return nil, err
	}
	return m, nil
}

func grainMass(ρ, ro, ri, h float64) float64 {
	if h <= 0 || ri >= ro {
		return 0
	}
	return ρ * math.Pi * (ro*ro - ri*ri) * h
}

// ExhaustVelocity returns the effective exhaust velocity (m/s).
func (m *SolidMotor) ExhaustVelocity() float64 {
	return m.exhaustVelocity
}

// GrainGeometry returns the grain inner radius and height at time t.
func (m *SolidMotor) GrainGeometry(t float64) (innerRadius, height float64) {
	return m.innerRadius.At(t), m.height.At(t)
}

// ThroatArea returns the nozzle throat area.
func (m *SolidMotor) ThroatArea() float64 {
	return math.Pi * m.cfg.ThroatRadius * m.cfg.ThroatRadius
}

// PropellantMass implements the Motor interface.
func (m *SolidMotor) PropellantMass(t float64) float64 {
	return m.propellant.At(t)
}

// TotalMass implements the Motor interface.
func (m *SolidMotor) TotalMass(t float64) float64 {
	return m.dryMass + m.PropellantMass(t)
}

// MassFlowRate implements the Motor interface.
func (m *SolidMotor) MassFlowRate(t float64) float64 {
	return -m.Thrust(t) / m.exhaustVelocity
}

// CenterOfMass implements the Motor interface.
func (m *SolidMotor) CenterOfMass(t float64) float64 {
	cm, _, _ := m.withPropellant(m.PropellantMass(t), m.grainsCM, 0, 0)
	return cm
}

// Inertia implements the Motor interface.
func (m *SolidMotor) Inertia(t float64) (lateral, axial float64) {
	lat, ax := m.grainsInertia(t)
	_, lateral, axial = m.withPropellant(m.PropellantMass(t), m.grainsCM, lat, ax)
	return
}

// grainsInertia returns the inertia of all grains about the grains center of mass.
func (m *SolidMotor) grainsInertia(t float64) (lateral, axial float64) {
	n := m.cfg.GrainNumber
	ro := m.cfg.GrainOuterRadius
	ri, h := m.GrainGeometry(t)
	mg := grainMass(m.cfg.GrainDensity, ro, ri, h)
	if mg <= 0 {
		return 0, 0
	}
	r2 := ro*ro + ri*ri
	spacing := m.cfg.GrainInitialHeight + m.cfg.GrainSeparation
	offsets := 0.
	for k := 0; k < n; k++ {
		d := (float64(k) - float64(n-1)/2) * spacing
		offsets += d * d
	}
	lateral = float64(n)*mg*(3*r2+h*h)/12 + mg*offsets
	axial = float64(n) * mg * r2 / 2
	return
}

// GenericMotorConfig defines a motor whose propellant is a cylinder in the combustion chamber.
type GenericMotorConfig struct {
	DryProperties
	PropellantInitialMass float64 // kg
	ChamberRadius         float64 // m
	ChamberHeight         float64 // m
	ChamberPosition       float64 // m
}

// GenericMotor is a motor whose propellant mass follows the delivered impulse.
type GenericMotor struct {
	motorBase
	cfg             GenericMotorConfig
	chamber         float64
	exhaustVelocity float64
	propellant      *Function
}

// NewGenericMotor returns a new generic motor.
func NewGenericMotor(cfg GenericMotorConfig) (*GenericMotor, error) {
	base, err := newMotorBase(cfg.DryProperties)
	if err != nil {
		return nil, err
	}
	if cfg.PropellantInitialMass <= 0 || cfg.ChamberRadius <= 0 || cfg.ChamberHeight <= 0 {
		return nil, fmt.Errorf("chamber (m=%g, r=%g, h=%g): %w", cfg.PropellantInitialMass, cfg.ChamberRadius, cfg.ChamberHeight, ErrInvalidMotor)
	}
	m := &GenericMotor{motorBase: base, cfg: cfg, chamber: cfg.Orientation.sign() * cfg.ChamberPosition}
	m.exhaustVelocity = m.totalImpulse / cfg.PropellantInitialMass
	if m.propellant, err = m.impulseMass(cfg.PropellantInitialMass); err != nil {
		return nil, err
	}
	return m, nil
}

// PropellantMass implements the Motor interface.
func (m *GenericMotor) PropellantMass(t float64) float64 {
	return m.propellant.At(t)
}

// TotalMass implements the Motor interface.
func (m *GenericMotor) TotalMass(t float64) float64 {
	return m.dryMass + m.PropellantMass(t)
}

// MassFlowRate implements the Motor interface.
func (m *GenericMotor) MassFlowRate(t float64) float64 {
	return -m.Thrust(t) / m.exhaustVelocity
}

// CenterOfMass implements the Motor interface.
func (m *GenericMotor) CenterOfMass(t float64) float64 {
	cm, _, _ := m.withPropellant(m.PropellantMass(t), m.chamber, 0, 0)
	return cm
}

// Inertia implements the Motor interface.
func (m *GenericMotor) Inertia(t float64) (lateral, axial float64) {
	mp := m.PropellantMass(t)
	r, h := m.cfg.ChamberRadius, m.cfg.ChamberHeight
	_, lateral, axial = m.withPropellant(mp, m.chamber, mp*(3*r*r+h*h)/12, mp*r*r/2)
	return
}
