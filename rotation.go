package rocketsim

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// EarthRotationRate is the average Earth rotation rate in radians per second.
	EarthRotationRate = 7.2921158553e-5
)

// R1 rotation about the 1st axis.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m mat.Matrix, v []float64) (o []float64) {
	vVec := mat.NewVecDense(len(v), v)
	var rVec mat.VecDense
	rVec.MulVec(m, vVec)
	return []float64{rVec.AtVec(0), rVec.AtVec(1), rVec.AtVec(2)}
}

// Quaternion is a scalar-first attitude quaternion (e0, e1, e2, e3) rotating
// body vectors into the launch site frame.
type Quaternion [4]float64

// Norm returns the Euclidean norm of the quaternion.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
}

// Normalize returns the unit quaternion. The identity is returned for a null quaternion.
func (q Quaternion) Normalize() Quaternion {
	n := q.Norm()
	if n == 0 {
		return Quaternion{1, 0, 0, 0}
	}
	return Quaternion{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

// DCM returns the body to inertial direction cosine matrix.
func (q Quaternion) DCM() *mat.Dense {
	e0, e1, e2, e3 := q[0], q[1], q[2], q[3]
	return mat.NewDense(3, 3, []float64{
		e0*e0 + e1*e1 - e2*e2 - e3*e3, 2 * (e1*e2 - e0*e3), 2 * (e1*e3 + e0*e2),
		2 * (e1*e2 + e0*e3), e0*e0 - e1*e1 + e2*e2 - e3*e3, 2 * (e2*e3 - e0*e1),
		2 * (e1*e3 - e0*e2), 2 * (e2*e3 + e0*e1), e0*e0 - e1*e1 - e2*e2 + e3*e3})
}

// ToInertial rotates a body frame vector into the launch site frame.
func (q Quaternion) ToInertial(v []float64) []float64 {
	return MxV33(q.DCM(), v)
}

// ToBody rotates a launch site frame vector into the body frame.
func (q Quaternion) ToBody(v []float64) []float64 {
	return MxV33(q.DCM().T(), v)
}

// Derivative returns the quaternion rate for the body angular velocity ω.
// The λ term pulls the norm back to one.
func (q Quaternion) Derivative(ω []float64) Quaternion {
	const k = 1.0
	λ := k * (1 - (q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3]))
	w1, w2, w3 := ω[0], ω[1], ω[2]
	return Quaternion{
		0.5*(-w1*q[1]-w2*q[2]-w3*q[3]) + λ*q[0],
		0.5*(w1*q[0]+w3*q[2]-w2*q[3]) + λ*q[1],
		0.5*(w2*q[0]-w3*q[1]+w1*q[3]) + λ*q[2],
		0.5*(w3*q[0]+w2*q[1]-w1*q[2]) + λ*q[3],
	}
}

// QuaternionFromDCM converts a body to inertial direction cosine matrix (Shepperd's method).
func QuaternionFromDCM(m mat.Matrix) Quaternion {
	tr := m.At(0, 0) + m.At(1, 1) + m.At(2, 2)
	var q Quaternion
	switch {
	case tr > 0:
		s := 2 * math.Sqrt(tr+1)
		q = Quaternion{0.25 * s, (m.At(2, 1) - m.At(1, 2)) / s, (m.At(0, 2) - m.At(2, 0)) / s, (m.At(1, 0) - m.At(0, 1)) / s}
	case m.At(0, 0) > m.At(1, 1) && m.At(0, 0) > m.At(2, 2):
		s := 2 * math.Sqrt(1+m.At(0, 0)-m.At(1, 1)-m.At(2, 2))
		q = Quaternion{(m.At(2, 1) - m.At(1, 2)) / s, 0.25 * s, (m.At(0, 1) + m.At(1, 0)) / s, (m.At(0, 2) + m.At(2, 0)) / s}
	case m.At(1, 1) > m.At(2, 2):
		s := 2 * math.Sqrt(1+m.At(1, 1)-m.At(0, 0)-m.At(2, 2))
		q = Quaternion{(m.At(0, 2) - m.At(2, 0)) / s, (m.At(0, 1) + m.At(1, 0)) / s, 0.25 * s, (m.At(1, 2) + m.At(2, 1)) / s}
	default:
		s := 2 * math.Sqrt(1+m.At(2, 2)-m.At(0, 0)-m.At(1, 1))
		q = Quaternion{(m.At(1, 0) - m.At(0, 1)) / s, (m.At(0, 2) + m.At(2, 0)) / s, (m.At(1, 2) + m.At(2, 1)) / s, 0.25 * s}
	}
	if q[0] < 0 {
		q = Quaternion{-q[0], -q[1], -q[2], -q[3]}
	}
	return q.Normalize()
}

// LaunchAttitude returns the attitude of a rocket sitting on a rail with the
// provided inclination (from the horizon) and heading (from north, clockwise), both in radians.
// The inertial to body rotation is R1(θ-π/2)·R3(-ψ).
func LaunchAttitude(inclination, heading float64) Quaternion {
	var c mat.Dense
	c.Mul(R1(inclination-math.Pi/2), R3(-heading))
	return QuaternionFromDCM(c.T())
}

// RailDirection returns the unit vector along the rail in the launch site frame.
func RailDirection(inclination, heading float64) []float64 {
	sθ, cθ := math.Sincos(inclination)
	sψ, cψ := math.Sincos(heading)
	return []float64{cθ * sψ, cθ * cψ, sθ}
}
