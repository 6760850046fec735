package integrator

import (
	"fmt"
	"math"
)

// RK4 defines a fixed step RK4 integrator.
type RK4 struct {
	X0         float64    // The initial x0.
	StepSize   float64    // The step size.
	Integrator Integrable // What is to be integrated.
	Stats      Stats
}

// NewRK4 returns a new RK4 integrator instance.
func NewRK4(x0 float64, stepSize float64, inte Integrable) (r *RK4) {
	if stepSize <= 0 {
		panic("config StepSize must be positive")
	}
	if inte == nil {
		panic("config Integrator may not be nil")
	}
	r = &RK4{X0: x0, StepSize: stepSize, Integrator: inte}
	return
}

// Step performs one RK4 step of size h from (x, state).
func (r *RK4) Step(x float64, state []float64, h float64) []float64 {
	const (
		half     = 1 / 2.0
		oneSixth = 1 / 6.0
		oneThird = 1 / 3.0
	)
	newState := make([]float64, len(state))
	k1 := make([]float64, len(state))
	//k2, k3, k4 are used as buffers AND result variables.
	k2 := make([]float64, len(state))
	k3 := make([]float64, len(state))
	k4 := make([]float64, len(state))
	tState := make([]float64, len(state))

	// Compute the k's.
	for i, y := range r.Integrator.Func(x, state) {
		k1[i] = y * h
		tState[i] = state[i] + k1[i]*half
	}
	for i, y := range r.Integrator.Func(x+h*half, tState) {
		k2[i] = y * h
		tState[i] = state[i] + k2[i]*half
	}
	for i, y := range r.Integrator.Func(x+h*half, tState) {
		k3[i] = y * h
		tState[i] = state[i] + k3[i]
	}
	for i, y := range r.Integrator.Func(x+h, tState) {
		k4[i] = y * h
		newState[i] = state[i] + oneSixth*(k1[i]+k4[i]) + oneThird*(k2[i]+k3[i])
	}
	r.Stats.Evaluations += 4
	return newState
}

// Solve solves the configured RK4. Steps are shortened to land on nodes and
// events are reported at the end of the step where they happen.
// Returns the number of iterations performed and the last X_i, or an error.
func (r *RK4) Solve() (uint64, float64, error) {
	noded, _ := r.Integrator.(Noded)
	evented, _ := r.Integrator.(Evented)
	iterNum := uint64(0)
	xi := r.X0
	for !r.Integrator.Stop(xi) {
		h := r.StepSize
		node := math.Inf(1)
		if noded != nil {
			node = noded.NextNode(xi)
		}
		atNode := xi+h >= node
		if atNode {
			h = node - xi
		}
		state := r.Integrator.GetState()
		newState := r.Step(xi, state, h)
		if !finite(newState) {
			return iterNum, xi, fmt.Errorf("%w at x=%g", ErrNonFinite, xi)
		}
		var fired []Event
		if evented != nil {
			for _, ev := range evented.Events() {
				if ev.crossed(ev.G(xi, state), ev.G(xi+h, newState)) {
					fired = append(fired, ev)
				}
			}
		}
		if atNode {
			xi = node
		} else {
			xi += h
		}
		r.Integrator.SetState(xi, newState)
		for _, ev := range fired {
			evented.OnEvent(ev, xi)
		}
		if atNode {
			noded.OnNode(xi)
		}
		r.Stats.Accepted++
		iterNum++ // Don't forget to increment the number of iterations.
	}

	return iterNum, xi, nil
}
