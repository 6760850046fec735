package integrator

import (
	"errors"
	"math"
)

var (
	// ErrStepTooSmall is returned when the adaptive step falls under the minimum step.
	ErrStepTooSmall = errors.New("step size too small")
	// ErrNonFinite is returned when the state becomes NaN or infinite.
	ErrNonFinite = errors.New("non finite state")
)

// Integrable defines something which can be integrated, i.e. has a state vector.
// WARNING: Implementation must manage its own state based on the time.
type Integrable interface {
	GetState() []float64                   // Get the latest state of this integrable.
	SetState(t float64, s []float64)       // Set the state s reached at time t.
	Stop(t float64) bool                   // Return whether to stop the integration at time t.
	Func(t float64, s []float64) []float64 // ODE function from time t and state s, must return a new state.
}

// Noded is an Integrable with known discontinuity times: steps never cross a node.
type Noded interface {
	NextNode(t float64) float64 // First node strictly after t, +Inf if none.
	OnNode(t float64)           // Called right after the state at the node was set.
}

// Event is a continuous event located where G changes sign.
type Event struct {
	Name      string
	G         func(t float64, s []float64) float64
	Direction int // 1 for rising, -1 for falling, 0 for both
}

func (e Event) crossed(g0, g1 float64) bool {
	rising := g0 < 0 && g1 >= 0
	falling := g0 > 0 && g1 <= 0
	switch {
	case e.Direction > 0:
		return rising
	case e.Direction < 0:
		return falling
	}
	return rising || falling
}

// Evented is an Integrable with continuous events.
type Evented interface {
	Events() []Event            // Events to watch during the next step.
	OnEvent(e Event, t float64) // Called right after the state at the event was set.
}

// Stats counts the work of a solver.
type Stats struct {
	Accepted, Rejected, Evaluations uint64
}

func finite(s []float64) bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
