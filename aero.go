package rocketsim

import (
	"fmt"
	"math"
	"strings"
)

// AeroSurface is an aerodynamic surface using Barrowman's method. Lift
// coefficient derivatives are per radian, normalized by the rocket reference area.
type AeroSurface interface {
	Name() string
	LiftCoefficientDerivative(mach float64) float64
	// CenterOfPressure is the distance from the surface reference point (nose
	// tip, fin root leading edge, tail top) towards the tail.
	CenterOfPressure() float64
}

// NoseKind is the shape of a nose cone.
type NoseKind string

const (
	ConicalNose     NoseKind = "conical"
	OgiveNose       NoseKind = "ogive"
	VonKarmanNose   NoseKind = "vonKarman"
	LVHaackNose     NoseKind = "lvhaack"
	ParabolicNose   NoseKind = "parabolic"
	PowerSeriesNose NoseKind = "powerseries"
	EllipticalNose  NoseKind = "elliptical"
)

// noseCPFactor is the center of pressure position as a fraction of the nose length.
func noseCPFactor(kind NoseKind) (float64, error) {
	switch NoseKind(strings.ToLower(string(kind))) {
	case ConicalNose:
		return 2. / 3, nil
	case OgiveNose, "tangent":
		return 0.466, nil
	case "vonkarman", "von karman":
		return 0.5, nil
	case LVHaackNose:
		return 0.437, nil
	case ParabolicNose:
		return 0.5, nil
	case PowerSeriesNose:
		const n = 0.5
		return n / (n + 1), nil
	case EllipticalNose:
		return 1. / 3, nil
	}
	return 0, fmt.Errorf("unknown nose cone kind %q: %w", kind, ErrInvalidRocket)
}

// NoseCone is a nose cone whose reference point is its tip.
type NoseCone struct {
	Length       float64
	Kind         NoseKind
	BaseRadius   float64
	RocketRadius float64
	k            float64
}

// NewNoseCone returns a new nose cone.
func NewNoseCone(length float64, kind NoseKind, baseRadius, rocketRadius float64) (*NoseCone, error) {
	if length <= 0 || baseRadius <= 0 || rocketRadius <= 0 {
		return nil, fmt.Errorf("nose cone length %g, base radius %g: %w", length, baseRadius, ErrInvalidRocket)
	}
	k, err := noseCPFactor(kind)
	if err != nil {
		return nil, err
	}
	return &NoseCone{Length: length, Kind: kind, BaseRadius: baseRadius, RocketRadius: rocketRadius, k: k}, nil
}

// Name implements the AeroSurface interface.
func (n *NoseCone) Name() string {
	return "nose cone"
}

// LiftCoefficientDerivative implements the AeroSurface interface.
func (n *NoseCone) LiftCoefficientDerivative(mach float64) float64 {
	ratio := n.BaseRadius / n.RocketRadius
	return 2 * ratio * ratio
}

// CenterOfPressure implements the AeroSurface interface.
func (n *NoseCone) CenterOfPressure() float64 {
	return n.k * n.Length
}

// FinsConfig defines a set of trapezoidal fins. When both sweep values are
// zero, the trailing edge is perpendicular to the body.
type FinsConfig struct {
	N           int
	RootChord   float64
	TipChord    float64
	Span        float64
	SweepLength float64 // m, distance from the root to the tip leading edges
	SweepAngle  float64 // deg
	CantAngle   float64 // deg
}

// TrapezoidalFins is a set of N identical trapezoidal fins whose reference point is the root chord leading edge.
type TrapezoidalFins struct {
	FinsConfig
	RocketRadius float64
	sweep        float64
	area         float64
	aspectRatio  float64
	cosΓc        float64
	yma          float64
	rollGeom     float64
	cp           float64
}

// NewTrapezoidalFins returns a new fin set.
func NewTrapezoidalFins(cfg FinsConfig, rocketRadius float64) (*TrapezoidalFins, error) {
	if cfg.N < 1 || cfg.RootChord <= 0 || cfg.TipChord < 0 || cfg.Span <= 0 || rocketRadius <= 0 {
		return nil, fmt.Errorf("fins n=%d root=%g tip=%g span=%g: %w", cfg.N, cfg.RootChord, cfg.TipChord, cfg.Span, ErrInvalidRocket)
	}
	f := &TrapezoidalFins{FinsConfig: cfg, RocketRadius: rocketRadius}
	Cr, Ct, s, r := cfg.RootChord, cfg.TipChord, cfg.Span, rocketRadius
	switch {
	case cfg.SweepAngle != 0:
		f.sweep = s * math.Tan(cfg.SweepAngle*deg2rad)
	case cfg.SweepLength != 0:
		f.sweep = cfg.SweepLength
	default:
		f.sweep = Cr - Ct
	}
	Yr := Cr + Ct
	f.area = Yr * s / 2
	f.aspectRatio = 2 * s * s / f.area
	f.cosΓc = math.Cos(math.Atan((f.sweep + Ct/2 - Cr/2) / s))
	f.yma = s / 3 * (Cr + 2*Ct) / Yr
	f.rollGeom = ((Cr+3*Ct)*s*s*s + 4*(Cr+2*Ct)*r*s*s + 6*(Cr+Ct)*s*r*r) / 12
	f.cp = f.sweep*(Cr+2*Ct)/(3*Yr) + (Yr-Cr*Ct/Yr)/6
	return f, nil
}

// Name implements the AeroSurface interface.
func (f *TrapezoidalFins) Name() string {
	return fmt.Sprintf("%d trapezoidal fins", f.N)
}

// Area returns the planform area of one fin.
func (f *TrapezoidalFins) Area() float64 {
	return f.area
}

// singleFinLiftSlope is Barrowman's lift slope of one fin normalized by the reference area.
func (f *TrapezoidalFins) singleFinLiftSlope(mach float64) float64 {
	β := math.Sqrt(math.Abs(1 - mach*mach))
	aref := math.Pi * f.RocketRadius * f.RocketRadius
	x := β * f.aspectRatio / f.cosΓc
	return 2 * math.Pi * f.aspectRatio * (f.area / aref) / (2 + math.Sqrt(4+x*x))
}

// finCountFactor accounts for the mutual interference of more than four fins.
func finCountFactor(n int) float64 {
	h := float64(n) / 2
	switch {
	case n <= 4:
		return h
	case n == 5:
		return 0.948 * h
	case n == 6:
		return 0.913 * h
	case n == 7:
		return 0.854 * h
	case n == 8:
		return 0.81 * h
	}
	return 0.75 * h
}

// LiftCoefficientDerivative implements the AeroSurface interface.
func (f *TrapezoidalFins) LiftCoefficientDerivative(mach float64) float64 {
	interference := 1 + f.RocketRadius/(f.Span+f.RocketRadius)
	return f.singleFinLiftSlope(mach) * finCountFactor(f.N) * interference
}

// CenterOfPressure implements the AeroSurface interface.
func (f *TrapezoidalFins) CenterOfPressure() float64 {
	return f.cp
}

// RollMoment returns the roll moment (N·m) from the cant angle forcing and the roll damping
// for a freestream speed V (m/s), density ρ and body roll rate ω3.
func (f *TrapezoidalFins) RollMoment(ρ, V, mach, ω3 float64) float64 {
	r := f.RocketRadius
	d := 2 * r
	aref := math.Pi * r * r
	clα1 := f.singleFinLiftSlope(mach)
	δ := f.CantAngle * deg2rad
	clfδ := float64(f.N) * (f.yma + r) * clα1 / d
	cldω := 2 * float64(f.N) * clα1 * math.Cos(δ) * f.rollGeom / (aref * d * d)
	forcing := 0.5 * ρ * V * V * aref * d * clfδ * δ
	damping := 0.5 * ρ * V * aref * d * d * cldω * ω3 / 2
	return forcing - damping
}

// Tail is a conical transition whose reference point is its top.
type Tail struct {
	TopRadius, BottomRadius, Length float64
	RocketRadius                    float64
}

// NewTail returns a new tail.
func NewTail(topRadius, bottomRadius, length, rocketRadius float64) (*Tail, error) {
	if topRadius <= 0 || bottomRadius <= 0 || length <= 0 || rocketRadius <= 0 {
		return nil, fmt.Errorf("tail %g -> %g over %g: %w", topRadius, bottomRadius, length, ErrInvalidRocket)
	}
	return &Tail{TopRadius: topRadius, BottomRadius: bottomRadius, Length: length, RocketRadius: rocketRadius}, nil
}

// Name implements the AeroSurface interface.
func (t *Tail) Name() string {
	return "tail"
}

// LiftCoefficientDerivative implements the AeroSurface interface.
func (t *Tail) LiftCoefficientDerivative(mach float64) float64 {
	ref := t.RocketRadius
	return 2 * (math.Pow(t.BottomRadius/ref, 2) - math.Pow(t.TopRadius/ref, 2))
}

// CenterOfPressure implements the AeroSurface interface.
func (t *Tail) CenterOfPressure() float64 {
	r := t.TopRadius / t.BottomRadius
	if math.Abs(1-r) < 1e-9 {
		return t.Length / 2
	}
	return t.Length / 3 * (1 + (1-r)/(1-r*r))
}

// RailButtons are the two guides sliding on the launch rail.
type RailButtons struct {
	Upper, Lower    float64 // positions in the rocket coordinates
	AngularPosition float64 // deg
}
