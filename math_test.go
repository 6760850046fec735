package rocketsim

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// vectorsEqual returns whether two vectors are equal within 1e-6.
func vectorsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	return floats.EqualApprox(a, b, 1e-6)
}

func TestCross(t *testing.T) {
	i := []float64{1, 0, 0}
	j := []float64{0, 1, 0}
	k := []float64{0, 0, 1}
	if !vectorsEqual(cross(i, j), k) {
		t.Fatal("i x j != k")
	}
	if !vectorsEqual(cross(j, k), i) {
		t.Fatal("j x k != i")
	}
	if !vectorsEqual(cross([]float64{2, 3, 4}, []float64{5, 6, 7}), []float64{-3, 6, -3}) {
		t.Fatal("cross fail")
	}
	if dot(cross([]float64{2, 3, 4}, []float64{5, 6, 7}), []float64{2, 3, 4}) != 0 {
		t.Fatal("cross product not orthogonal")
	}
}

func TestAngles(t *testing.T) {
	for i := 0.0; i < 360; i += 0.5 {
		if !scalar.EqualWithinAbs(Rad2deg(Deg2rad(i)), i, 1e-10) {
			t.Fatalf("incorrect conversion for %3.2f", i)
		}
	}
	if !scalar.EqualWithinAbs(Deg2rad(90)/math.Pi, 0.5, 1e-12) {
		t.Fatal("90 deg != pi/2")
	}
	if !scalar.EqualWithinAbs(Rad2deg(Deg2rad(-359.)), 1, 1e-10) {
		t.Fatal("incorrect conversion for -359")
	}
	if !scalar.EqualWithinAbs(Rad2deg(Deg2rad(-180.)), 180, 1e-10) {
		t.Fatal("incorrect conversion for -180")
	}
	if !scalar.EqualWithinAbs(Rad2deg(Deg2rad(-750.)), 330, 1e-10) {
		t.Fatal("incorrect conversion for -750")
	}
	if !scalar.EqualWithinAbs(Rad2deg(-math.Pi/2), 270, 1e-10) {
		t.Fatal("incorrect conversion for -pi/2")
	}
	s, c := sincosDeg(30)
	if !scalar.EqualWithinAbs(s, 0.5, 1e-12) || !scalar.EqualWithinAbs(c, math.Sqrt(3)/2, 1e-12) {
		t.Fatalf("sincosDeg(30) = %f %f", s, c)
	}
}

func TestMisc(t *testing.T) {
	if vectorsEqual([]float64{1, 0}, []float64{1, 0, 0}) {
		t.Fatal("vectors of different sizes should not be equal")
	}
	if sign(10) != 1 {
		t.Fatal("sign of 10 != 1")
	}
	if sign(-10) != -1 {
		t.Fatal("sign of -10 != 1")
	}
	if sign(0) != 1 {
		t.Fatal("sign of 0 != 1")
	}
	nilVec := []float64{0, 0, 0}
	if norm(nilVec) != 0 {
		t.Fatal("norm of a nil vector was not nil")
	}
	five0 := []float64{5, 6, 7}
	five1 := []float64{7, 6, 5}
	if norm(five0) != math.Sqrt(110) || norm(five0) != norm(five1) {
		t.Fatal("norm of the [5, 6, 7] and permutations is invalid")
	}
	uNilVec := unitVec(nilVec)
	for i := 0; i < 3; i++ {
		if uNilVec[i] != nilVec[i] {
			t.Fatalf("%f != %f @ i=%d", uNilVec[i], nilVec[i], i)
		}
	}
	if !scalar.EqualWithinAbs(norm(unitVec(five0)), 1, 1e-12) {
		t.Fatal("unit vector is not unitary")
	}
	if clamp(5, 0, 1) != 1 || clamp(-5, 0, 1) != 0 || clamp(0.5, 0, 1) != 0.5 {
		t.Fatal("clamp fail")
	}
}
