package rocketsim

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-kit/log"
)

// CoordinateOrientation is the direction of the rocket axis used to express positions.
type CoordinateOrientation uint8

const (
	// TailToNose means positions grow towards the nose.
	TailToNose CoordinateOrientation = iota
	// NoseToTail means positions grow towards the tail.
	NoseToTail
)

func (o CoordinateOrientation) sign() float64 {
	if o == NoseToTail {
		return -1
	}
	return 1
}

func (o CoordinateOrientation) String() string {
	if o == NoseToTail {
		return "nose_to_tail"
	}
	return "tail_to_nose"
}

// ParseCoordinateOrientation parses the orientation names used in scenario files.
func ParseCoordinateOrientation(s string) (CoordinateOrientation, error) {
	switch s {
	case "", "tail_to_nose":
		return TailToNose, nil
	case "nose_to_tail":
		return NoseToTail, nil
	}
	return 0, fmt.Errorf("unknown coordinate system orientation %q: %w", s, ErrInvalidRocket)
}

type positionedSurface struct {
	surface  AeroSurface
	position float64 // along the body axis, positive towards the nose
}

// Rocket is a rigid body with a motor, aerodynamic surfaces and parachutes.
// Internally all positions are along the body axis, positive towards the nose.
// A Rocket is not modified while flown.
type Rocket struct {
	Radius       float64    // m
	Mass         float64    // kg, without motor
	inertia      [3]float64 // I11, I22, I33 about the center of mass without motor
	powerOffDrag *Function
	powerOnDrag  *Function
	cmNoMotor    float64
	orientation  CoordinateOrientation
	motor        Motor
	motorPos     float64
	surfaces     []positionedSurface
	railButtons  *RailButtons
	parachutes   []*Parachute
	logger       log.Logger
}

// NewRocket returns a new rocket without motor. Drag curves are functions of the Mach number.
func NewRocket(radius, mass float64, inertia [3]float64, powerOffDrag, powerOnDrag *Function, centerOfMassWithoutMotor float64, orientation CoordinateOrientation) *Rocket {
	return &Rocket{
		Radius:       radius,
		Mass:         mass,
		inertia:      inertia,
		powerOffDrag: powerOffDrag,
		powerOnDrag:  powerOnDrag,
		orientation:  orientation,
		cmNoMotor:    orientation.sign() * centerOfMassWithoutMotor,
		logger:       log.NewNopLogger(),
	}
}

// SetLogger sets the logger of this rocket.
func (r *Rocket) SetLogger(logger log.Logger) {
	r.logger = logger
}

// internal converts a user position into the internal coordinates.
func (r *Rocket) internal(pos float64) float64 {
	return r.orientation.sign() * pos
}

// external converts an internal position into the user coordinates.
func (r *Rocket) external(pos float64) float64 {
	return r.orientation.sign() * pos
}

// ReferenceArea returns the cross section area of the body.
func (r *Rocket) ReferenceArea() float64 {
	return math.Pi * r.Radius * r.Radius
}

// AddMotor sets the motor whose coordinate origin is at the provided position.
func (r *Rocket) AddMotor(m Motor, position float64) {
	r.motor = m
	r.motorPos = r.internal(position)
	r.logger.Log("level", "info", "subsys", "aero", "motor_position", position, "impulse(N·s)", m.TotalImpulse(), "burnout(s)", m.BurnOutTime())
}

// Motor returns the motor of this rocket.
func (r *Rocket) Motor() Motor {
	return r.motor
}

// AddSurface adds an aerodynamic surface whose reference point is at the provided position.
func (r *Rocket) AddSurface(s AeroSurface, position float64) {
	r.surfaces = append(r.surfaces, positionedSurface{surface: s, position: r.internal(position)})
	r.logger.Log("level", "debug", "subsys", "aero", "surface", s.Name(), "position", position, "clα", s.LiftCoefficientDerivative(0))
}

// AddNose adds a nose cone whose tip is at the provided position.
func (r *Rocket) AddNose(length float64, kind NoseKind, position float64) (*NoseCone, error) {
	n, err := NewNoseCone(length, kind, r.Radius, r.Radius)
	if err != nil {
		return nil, err
	}
	r.AddSurface(n, position)
	return n, nil
}

// AddTrapezoidalFins adds a fin set whose root leading edge is at the provided position.
func (r *Rocket) AddTrapezoidalFins(cfg FinsConfig, position float64) (*TrapezoidalFins, error) {
	f, err := NewTrapezoidalFins(cfg, r.Radius)
	if err != nil {
		return nil, err
	}
	r.AddSurface(f, position)
	return f, nil
}

// AddTail adds a tail whose top is at the provided position.
func (r *Rocket) AddTail(topRadius, bottomRadius, length, position float64) (*Tail, error) {
	t, err := NewTail(topRadius, bottomRadius, length, r.Radius)
	if err != nil {
		return nil, err
	}
	r.AddSurface(t, position)
	return t, nil
}

// SetRailButtons sets the rail buttons.
func (r *Rocket) SetRailButtons(upper, lower, angularPosition float64) {
	r.railButtons = &RailButtons{Upper: upper, Lower: lower, AngularPosition: angularPosition}
}

// RailButtons returns the rail buttons, if any.
func (r *Rocket) RailButtons() *RailButtons {
	return r.railButtons
}

// AddParachute adds a parachute. Parachutes are evaluated in the order they are added.
func (r *Rocket) AddParachute(p *Parachute) error {
	for _, other := range r.parachutes {
		if other.Name == p.Name {
			return fmt.Errorf("duplicate parachute %q: %w", p.Name, ErrInvalidRocket)
		}
	}
	r.parachutes = append(r.parachutes, p)
	r.logger.Log("level", "info", "subsys", "recovery", "parachute", p.Name, "CdS", p.CdS, "trigger", p.Trigger)
	return nil
}

// RemoveParachute removes a parachute by name and returns whether it existed.
func (r *Rocket) RemoveParachute(name string) bool {
	for i, p := range r.parachutes {
		if p.Name == name {
			r.parachutes = append(r.parachutes[:i:i], r.parachutes[i+1:]...)
			return true
		}
	}
	return false
}

// Parachutes returns the parachutes of this rocket.
func (r *Rocket) Parachutes() []*Parachute {
	return append([]*Parachute(nil), r.parachutes...)
}

// WithMass returns a shallow copy of this rocket with another dry mass.
func (r *Rocket) WithMass(mass float64) *Rocket {
	cpy := *r
	cpy.Mass = mass
	return &cpy
}

// Validate checks that this rocket can be flown.
func (r *Rocket) Validate() error {
	var errs []error
	if r.Radius <= 0 {
		errs = append(errs, fmt.Errorf("radius %g", r.Radius))
	}
	if r.Mass <= 0 {
		errs = append(errs, fmt.Errorf("mass %g", r.Mass))
	}
	if r.inertia[0] <= 0 || r.inertia[2] <= 0 {
		errs = append(errs, fmt.Errorf("inertia %v", r.inertia))
	}
	if r.motor == nil {
		errs = append(errs, errors.New("no motor"))
	}
	if r.powerOffDrag == nil || r.powerOnDrag == nil {
		errs = append(errs, errors.New("missing drag curve"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRocket, errors.Join(errs...))
	}
	return nil
}

// TotalMass returns the mass of the rocket with its motor.
func (r *Rocket) TotalMass(t float64) float64 {
	return r.Mass + r.motor.TotalMass(t)
}

// motorCenterOfMass returns the motor center of mass in internal coordinates.
func (r *Rocket) motorCenterOfMass(t float64) float64 {
	return r.motorPos + r.motor.CenterOfMass(t)
}

// centerOfMass returns the center of mass in internal coordinates.
func (r *Rocket) centerOfMass(t float64) float64 {
	mm := r.motor.TotalMass(t)
	return (r.Mass*r.cmNoMotor + mm*r.motorCenterOfMass(t)) / (r.Mass + mm)
}

// CenterOfMass returns the center of mass in the rocket coordinates.
func (r *Rocket) CenterOfMass(t float64) float64 {
	return r.external(r.centerOfMass(t))
}

// ReducedMass returns the reduced mass of the body and motor system.
func (r *Rocket) ReducedMass(t float64) float64 {
	mm := r.motor.TotalMass(t)
	return r.Mass * mm / (r.Mass + mm)
}

// Inertia returns the lateral (I11 = I22) and axial (I33) inertia about the center of mass.
func (r *Rocket) Inertia(t float64) (lateral, axial float64) {
	cm := r.centerOfMass(t)
	mLat, mAx := r.motor.Inertia(t)
	mm := r.motor.TotalMass(t)
	db := r.cmNoMotor - cm
	dm := r.motorCenterOfMass(t) - cm
	lateral = r.inertia[0] + r.Mass*db*db + mLat + mm*dm*dm
	axial = r.inertia[2] + mAx
	return
}

// nozzle returns the nozzle position in internal coordinates.
func (r *Rocket) nozzle() float64 {
	return r.motorPos + r.motor.NozzlePosition()
}

// cp returns the center of pressure of a surface in internal coordinates.
func (ps positionedSurface) cp() float64 {
	return ps.position - ps.surface.CenterOfPressure()
}

// liftSlope returns the total lift coefficient derivative.
func (r *Rocket) liftSlope(mach float64) (total float64) {
	for _, ps := range r.surfaces {
		total += ps.surface.LiftCoefficientDerivative(mach)
	}
	return
}

func (r *Rocket) centerOfPressure(mach float64) float64 {
	var num, den float64
	for _, ps := range r.surfaces {
		clα := ps.surface.LiftCoefficientDerivative(mach)
		num += clα * ps.cp()
		den += clα
	}
	if den == 0 {
		return r.cmNoMotor
	}
	return num / den
}

// CenterOfPressure returns the center of pressure at the Mach number in the rocket coordinates.
func (r *Rocket) CenterOfPressure(mach float64) float64 {
	return r.external(r.centerOfPressure(mach))
}

// StaticMargin returns the static margin in calibers at time t (low speed center of pressure).
func (r *Rocket) StaticMargin(t float64) float64 {
	return r.staticMarginAt(t, 0)
}

func (r *Rocket) staticMarginAt(t, mach float64) float64 {
	return (r.centerOfMass(t) - r.centerOfPressure(mach)) / (2 * r.Radius)
}

// ThrustToWeight returns the thrust to weight ratio for the gravity g.
func (r *Rocket) ThrustToWeight(t, g float64) float64 {
	return r.motor.Thrust(t) / (r.TotalMass(t) * g)
}

// dragCoefficient returns the axial drag coefficient, from the power on curve while thrusting.
func (r *Rocket) dragCoefficient(powered bool, mach float64) float64 {
	if powered {
		return r.powerOnDrag.At(mach)
	}
	return r.powerOffDrag.At(mach)
}

// EffectiveRailLength returns the distance travelled along a rail of the provided length
// before the upper rail button leaves it.
func (r *Rocket) EffectiveRailLength(railLength float64) float64 {
	if r.railButtons == nil || r.motor == nil {
		return railLength
	}
	return railLength - math.Abs(r.internal(r.railButtons.Upper)-r.nozzle())
}

func (r *Rocket) String() string {
	return fmt.Sprintf("rocket r=%.4f m, m=%.3f kg, %d surfaces, %d parachutes", r.Radius, r.Mass, len(r.surfaces), len(r.parachutes))
}
