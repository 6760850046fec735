package integrator

import (
	"fmt"
	"math"
)

// Dormand-Prince 5(4) tableau.
var (
	dpC = [7]float64{0, 1. / 5, 3. / 10, 4. / 5, 8. / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1. / 5},
		{3. / 40, 9. / 40},
		{44. / 45, -56. / 15, 32. / 9},
		{19372. / 6561, -25360. / 2187, 64448. / 6561, -212. / 729},
		{9017. / 3168, -355. / 33, 46732. / 5247, 49. / 176, -5103. / 18656},
		{35. / 384, 0, 500. / 1113, 125. / 192, -2187. / 6784, 11. / 84},
	}
	// Difference between the fifth and fourth order weights.
	dpE = [7]float64{71. / 57600, 0, -71. / 16695, 71. / 1920, -17253. / 339200, 22. / 525, -1. / 40}
)

// DormandPrince is an adaptive Dormand-Prince 5(4) solver with node
// stepping and event location by bisection.
type DormandPrince struct {
	RelTol      float64
	AbsTol      []float64 // Per component; a single value applies to all components.
	MinStep     float64
	MaxStep     float64
	InitialStep float64
	EventTol    float64 // Precision of the event location in the independent variable.
	Stats       Stats
}

// NewDormandPrince returns a solver with the provided tolerances and default step limits.
func NewDormandPrince(rtol, atol float64) *DormandPrince {
	return &DormandPrince{
		RelTol:      rtol,
		AbsTol:      []float64{atol},
		MinStep:     1e-10,
		MaxStep:     math.Inf(1),
		InitialStep: 1e-3,
		EventTol:    1e-6,
	}
}

func (dp *DormandPrince) atol(i int) float64 {
	if i < len(dp.AbsTol) {
		return dp.AbsTol[i]
	}
	return dp.AbsTol[len(dp.AbsTol)-1]
}

// Step performs one step of size h from (t, y) and returns the fifth order
// solution with the scaled RMS norm of the error estimate (accept if <= 1).
func (dp *DormandPrince) Step(f func(t float64, s []float64) []float64, t float64, y []float64, h float64) ([]float64, float64) {
	n := len(y)
	var k [7][]float64
	tmp := make([]float64, n)
	k[0] = f(t, y)
	for s := 1; s < 7; s++ {
		for i := 0; i < n; i++ {
			acc := y[i]
			for j := 0; j < s; j++ {
				acc += h * dpA[s][j] * k[j][i]
			}
			tmp[i] = acc
		}
		if s == 6 {
			// The seventh stage is evaluated at the fifth order solution.
			yNew := make([]float64, n)
			copy(yNew, tmp)
			k[6] = f(t+h, yNew)
			dp.Stats.Evaluations += 7
			errSum := 0.
			for i := 0; i < n; i++ {
				e := 0.
				for j := 0; j < 7; j++ {
					e += dpE[j] * k[j][i]
				}
				sc := dp.atol(i) + dp.RelTol*math.Max(math.Abs(y[i]), math.Abs(yNew[i]))
				r := h * e / sc
				errSum += r * r
			}
			return yNew, math.Sqrt(errSum / float64(n))
		}
		k[s] = f(t+dpC[s]*h, append([]float64(nil), tmp...))
	}
	panic("unreachable")
}

// Solve integrates inte from t0 until it requests to stop.
// Returns the last time reached, or an error.
func (dp *DormandPrince) Solve(inte Integrable, t0 float64) (float64, error) {
	noded, _ := inte.(Noded)
	evented, _ := inte.(Evented)
	t := t0
	h := dp.InitialStep
	for !inte.Stop(t) {
		y := inte.GetState()
		step := math.Min(h, dp.MaxStep)
		node := math.Inf(1)
		if noded != nil {
			node = noded.NextNode(t)
		}
		atNode := t+step >= node
		if atNode {
			step = node - t
		}
		yNew, errNorm := dp.Step(inte.Func, t, y, step)
		if !finite(yNew) || math.IsNaN(errNorm) {
			dp.Stats.Rejected++
			if step <= dp.MinStep {
				return t, fmt.Errorf("%w at t=%g", ErrNonFinite, t)
			}
			h = step / 4
			continue
		}
		if errNorm > 1 {
			dp.Stats.Rejected++
			h = step * math.Max(0.2, 0.9*math.Pow(errNorm, -0.2))
			if h < dp.MinStep {
				return t, fmt.Errorf("%w: h=%g at t=%g", ErrStepTooSmall, h, t)
			}
			continue
		}
		dp.Stats.Accepted++
		if evented != nil {
			if ev, tEv, yEv, ok := dp.locate(inte.Func, evented.Events(), t, y, step, yNew); ok {
				t = tEv
				inte.SetState(t, yEv)
				evented.OnEvent(ev, t)
				h = dp.InitialStep
				continue
			}
		}
		if atNode {
			t = node
		} else {
			t += step
		}
		inte.SetState(t, yNew)
		if atNode {
			noded.OnNode(t)
		}
		grow := 5.
		if errNorm > 0 {
			grow = math.Min(5, 0.9*math.Pow(errNorm, -0.2))
		}
		if atNode && step < h {
			// Clipped to a node: the previous step size is still valid.
			continue
		}
		h = step * grow
	}
	return t, nil
}

// locate returns the earliest event crossed during the step [t, t+h].
func (dp *DormandPrince) locate(f func(t float64, s []float64) []float64, events []Event, t float64, y []float64, h float64, yNew []float64) (Event, float64, []float64, bool) {
	best := -1
	bestH := h
	var bestY []float64
	for i, ev := range events {
		g0 := ev.G(t, y)
		if !ev.crossed(g0, ev.G(t+h, yNew)) {
			continue
		}
		lo, hi := 0., h
		yHi := yNew
		for hi-lo > dp.EventTol {
			mid := 0.5 * (lo + hi)
			yMid, _ := dp.Step(f, t, y, mid)
			if ev.crossed(g0, ev.G(t+mid, yMid)) {
				hi, yHi = mid, yMid
			} else {
				lo = mid
			}
		}
		if best < 0 || hi < bestH {
			best, bestH, bestY = i, hi, yHi
		}
	}
	if best < 0 {
		return Event{}, 0, nil, false
	}
	return events[best], t + bestH, bestY, true
}
