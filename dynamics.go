package rocketsim

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type flightPhase uint8

const (
	railPhase flightPhase = iota
	freeFlightPhase
	parachutePhase
)

func (p flightPhase) String() string {
	switch p {
	case railPhase:
		return "rail"
	case freeFlightPhase:
		return "free_flight"
	}
	return "parachute"
}

// thrust returns the motor thrust, zero from the burnout node on.
func (f *Flight) thrust(t float64) float64 {
	if f.burnout {
		return 0
	}
	return f.Rocket.motor.Thrust(t)
}

// massFlowRate returns the motor mass flow rate, zero from the burnout node on.
func (f *Flight) massFlowRate(t float64) float64 {
	if f.burnout {
		return 0
	}
	return f.Rocket.motor.MassFlowRate(t)
}

// uDotRail is the motion along the rail: thrust, axial drag and gravity only.
func (f *Flight) uDotRail(t float64, s []float64) []float64 {
	r, env := f.Rocket, f.Env
	fDot := make([]float64, 13)
	d := f.railDir
	alt := s[2] + env.Elevation
	along := s[3]*d[0] + s[4]*d[1] + s[5]*d[2]
	wu, wv := env.WindVelocity(alt)
	vr := along - (wu*d[0] + wv*d[1])
	mach := math.Abs(vr) / env.SpeedOfSound(alt)
	ρ := env.Density(alt)
	drag := -0.5 * ρ * r.ReferenceArea() * r.dragCoefficient(f.thrust(t) > 0, mach) * vr * math.Abs(vr)
	m := r.TotalMass(t)
	acc := (f.thrust(t)+drag)/m - env.Gravity(alt)*d[2]
	if pert := f.cfg.Perturbations.Perturb(t, State(s), env.Latitude); !f.cfg.Perturbations.isEmpty() {
		acc += dot(pert, d)
	}
	if along <= 0 && acc < 0 {
		// Resting on the rail.
		acc = 0
	}
	for i := 0; i < 3; i++ {
		fDot[i] = along * d[i]
		fDot[i+3] = acc * d[i]
	}
	return fDot
}

// inertiaRate returns the time derivative of the lateral and axial inertia.
func (f *Flight) inertiaRate(t float64) (lateral, axial float64) {
	const h = 1e-3
	if f.burnout {
		return 0, 0
	}
	lo, hi := math.Max(0, t-h), t+h
	lLo, aLo := f.Rocket.Inertia(lo)
	lHi, aHi := f.Rocket.Inertia(hi)
	return (lHi - lLo) / (hi - lo), (aHi - aLo) / (hi - lo)
}

// uDot is the six degrees of freedom rigid body motion.
func (f *Flight) uDot(t float64, s []float64) []float64 {
	r, env := f.Rocket, f.Env
	fDot := make([]float64, 13)
	alt := s[2] + env.Elevation
	q := Quaternion{s[6], s[7], s[8], s[9]}
	ω := []float64{s[10], s[11], s[12]}
	m := r.TotalMass(t)
	cm := r.centerOfMass(t)
	ρ := env.Density(alt)
	a := env.SpeedOfSound(alt)
	wu, wv := env.WindVelocity(alt)
	K := q.DCM()
	// Velocity of the center of mass relative to the air, in the body frame.
	vB := MxV33(K.T(), []float64{s[3] - wu, s[4] - wv, s[5]})
	speed := norm(vB)
	S := r.ReferenceArea()

	R3 := -0.5 * ρ * S * r.dragCoefficient(f.thrust(t) > 0, speed/a) * speed * vB[2]
	var R1, R2, M1, M2, M3 float64
	for _, ps := range r.surfaces {
		dz := ps.cp() - cm
		vx := vB[0] + ω[1]*dz
		vy := vB[1] - ω[0]*dz
		vz := vB[2]
		lateral := math.Hypot(vx, vy)
		vs := math.Sqrt(lateral*lateral + vz*vz)
		if lateral > 1e-9 && vs > 1e-9 {
			α := math.Atan2(lateral, vz)
			L := 0.5 * ρ * vs * vs * S * ps.surface.LiftCoefficientDerivative(vs/a) * α
			fx, fy := -L*vx/lateral, -L*vy/lateral
			R1 += fx
			R2 += fy
			M1 -= dz * fy
			M2 += dz * fx
		}
		if fins, ok := ps.surface.(*TrapezoidalFins); ok && vs > 1e-9 {
			M3 += fins.RollMoment(ρ, vs, vs/a, ω[2])
		}
	}

	// Jet damping.
	mDot := f.massFlowRate(t)
	dn := r.nozzle() - cm
	rn := r.motor.NozzleRadius()
	M1 += mDot * dn * dn * ω[0]
	M2 += mDot * dn * dn * ω[1]
	M3 += mDot * rn * rn / 2 * ω[2]

	// Translation.
	FB := []float64{R1, R2, R3 + f.thrust(t)}
	acc := MxV33(K, FB)
	g := env.Gravity(alt)
	pert := f.cfg.Perturbations.Perturb(t, State(s), env.Latitude)
	for i := 0; i < 3; i++ {
		fDot[i] = s[i+3]
		fDot[i+3] = acc[i]/m + pert[i]
	}
	fDot[5] -= g

	// Rotation: I ω' = M - ω × (I ω) - I' ω
	lat, ax := r.Inertia(t)
	latDot, axDot := f.inertiaRate(t)
	I := mat.NewDense(3, 3, []float64{lat, 0, 0, 0, lat, 0, 0, 0, ax})
	Iω := MxV33(I, ω)
	gyro := cross(ω, Iω)
	rhs := mat.NewVecDense(3, []float64{
		M1 - gyro[0] - latDot*ω[0],
		M2 - gyro[1] - latDot*ω[1],
		M3 - gyro[2] - axDot*ω[2],
	})
	var ωDot mat.VecDense
	if err := ωDot.SolveVec(I, rhs); err != nil {
		for i := 10; i < 13; i++ {
			fDot[i] = math.NaN()
		}
	} else {
		fDot[10], fDot[11], fDot[12] = ωDot.AtVec(0), ωDot.AtVec(1), ωDot.AtVec(2)
	}

	qDot := q.Derivative(ω)
	copy(fDot[6:10], qDot[:])
	return fDot
}

// uDotParachute is the point mass descent under a canopy; the attitude is frozen.
func (f *Flight) uDotParachute(t float64, s []float64) []float64 {
	r, env := f.Rocket, f.Env
	fDot := make([]float64, 13)
	alt := s[2] + env.Elevation
	ρ := env.Density(alt)
	wu, wv := env.WindVelocity(alt)
	vRel := []float64{s[3] - wu, s[4] - wv, s[5]}
	speed := norm(vRel)
	chute := f.activeChute
	mp := r.TotalMass(t)
	ma := chute.AddedMass(ρ)
	g := env.Gravity(alt)
	pert := f.cfg.Perturbations.Perturb(t, State(s), env.Latitude)
	dir := unitVec(vRel)
	for i := 0; i < 3; i++ {
		D := -0.5 * ρ * chute.CdS * speed * speed * dir[i]
		fDot[i] = s[i+3]
		fDot[i+3] = D/(mp+ma) + pert[i]
	}
	fDot[5] -= mp * g / (mp + ma)
	return fDot
}
