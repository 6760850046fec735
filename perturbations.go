package rocketsim

import "math"

// Perturbations defines additional accelerations applied in the launch site frame.
type Perturbations struct {
	Coriolis  bool                                // Include the Coriolis acceleration from the Earth rotation.
	Arbitrary func(t float64, y State) []float64 // Additional arbitrary acceleration (m/s^2).
}

func (p Perturbations) isEmpty() bool {
	return !p.Coriolis && p.Arbitrary == nil
}

// Perturb returns the perturbing acceleration at time t for the state y at the provided latitude (deg).
func (p Perturbations) Perturb(t float64, y State, latitude float64) []float64 {
	pert := make([]float64, 3)
	if p.isEmpty() {
		return pert
	}
	if p.Coriolis {
		sφ, cφ := math.Sincos(latitude * deg2rad)
		Ω := []float64{0, EarthRotationRate * cφ, EarthRotationRate * sφ}
		cor := cross(Ω, y.Velocity())
		for i := 0; i < 3; i++ {
			pert[i] -= 2 * cor[i]
		}
	}
	if p.Arbitrary != nil {
		for i, a := range p.Arbitrary(t, y) {
			if i < 3 {
				pert[i] += a
			}
		}
	}
	return pert
}
