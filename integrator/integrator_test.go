package integrator

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

// decay is y' = -y with y(0) = 1.
type decay struct {
	state []float64
	tf    float64
	t     float64
	times []float64
}

func newDecay(tf float64) *decay {
	return &decay{state: []float64{1}, tf: tf}
}

func (d *decay) GetState() []float64 {
	return d.state
}

func (d *decay) SetState(t float64, s []float64) {
	d.t = t
	d.state = s
	d.times = append(d.times, t)
}

func (d *decay) Stop(t float64) bool {
	return t >= d.tf
}

func (d *decay) Func(t float64, s []float64) []float64 {
	return []float64{-s[0]}
}

// nodedDecay adds nodes every 0.3 and a hard stop at tf.
type nodedDecay struct {
	*decay
	nodes []float64
}

func (d *nodedDecay) NextNode(t float64) float64 {
	next := math.Floor(t/0.3+1e-9)*0.3 + 0.3
	return math.Min(next, d.tf)
}

func (d *nodedDecay) OnNode(t float64) {
	d.nodes = append(d.nodes, t)
}

// oscillator is x'' = -x, x(0) = 1, x'(0) = 0.
type oscillator struct {
	state []float64
	tf    float64
}

func (o *oscillator) GetState() []float64 {
	return o.state
}

func (o *oscillator) SetState(t float64, s []float64) {
	o.state = s
}

func (o *oscillator) Stop(t float64) bool {
	return t >= o.tf
}

func (o *oscillator) Func(t float64, s []float64) []float64 {
	return []float64{s[1], -s[0]}
}

// ball falls from 10 m and stops on impact.
type ball struct {
	state  []float64
	impact float64
	done   bool
}

func (b *ball) GetState() []float64 {
	return b.state
}

func (b *ball) SetState(t float64, s []float64) {
	b.state = s
}

func (b *ball) Stop(t float64) bool {
	return b.done || t > 100
}

func (b *ball) Func(t float64, s []float64) []float64 {
	return []float64{s[1], -9.81}
}

func (b *ball) Events() []Event {
	return []Event{{Name: "impact", Direction: -1, G: func(t float64, s []float64) float64 { return s[0] }}}
}

func (b *ball) OnEvent(e Event, t float64) {
	if e.Name != "impact" {
		panic("unexpected event " + e.Name)
	}
	b.impact = t
	b.done = true
}

func TestDormandPrinceDecay(t *testing.T) {
	d := newDecay(5)
	dp := NewDormandPrince(1e-9, 1e-12)
	tf, err := dp.Solve(d, 0)
	if err != nil {
		t.Fatalf("err: %s", err)
	}
	if tf < 5 {
		t.Fatalf("stopped at %f", tf)
	}
	if exp := math.Exp(-tf); !scalar.EqualWithinAbs(d.state[0], exp, 1e-8) {
		t.Fatalf("y(%f)=%.12f expected %.12f", tf, d.state[0], exp)
	}
	if dp.Stats.Accepted == 0 || dp.Stats.Evaluations < 7*dp.Stats.Accepted {
		t.Fatalf("invalid stats %+v", dp.Stats)
	}
}

func TestDormandPrinceOscillator(t *testing.T) {
	o := &oscillator{state: []float64{1, 0}, tf: 2 * math.Pi}
	dp := NewDormandPrince(1e-10, 1e-10)
	dp.MaxStep = 0.5
	tf, err := dp.Solve(o, 0)
	if err != nil {
		t.Fatalf("err: %s", err)
	}
	if !scalar.EqualWithinAbs(o.state[0], math.Cos(tf), 1e-7) || !scalar.EqualWithinAbs(o.state[1], -math.Sin(tf), 1e-7) {
		t.Fatalf("state %v at %f", o.state, tf)
	}
}

func TestDormandPrinceNodes(t *testing.T) {
	d := &nodedDecay{decay: newDecay(1.0)}
	dp := NewDormandPrince(1e-6, 1e-9)
	dp.InitialStep = 0.7
	if _, err := dp.Solve(d, 0); err != nil {
		t.Fatalf("err: %s", err)
	}
	exp := []float64{0.3, 0.6, 0.9, 1.0}
	if len(d.nodes) != len(exp) {
		t.Fatalf("nodes %v, expected %v", d.nodes, exp)
	}
	for i, n := range d.nodes {
		if !scalar.EqualWithinAbs(n, exp[i], 1e-12) {
			t.Fatalf("node #%d at %f, expected %f", i, n, exp[i])
		}
	}
	for i := 1; i < len(d.times); i++ {
		for _, n := range exp {
			if d.times[i-1] < n-1e-12 && d.times[i] > n+1e-12 {
				t.Fatalf("step [%f, %f] crossed node %f", d.times[i-1], d.times[i], n)
			}
		}
	}
}

func TestDormandPrinceEvent(t *testing.T) {
	b := &ball{state: []float64{10, 0}}
	dp := NewDormandPrince(1e-8, 1e-8)
	if _, err := dp.Solve(b, 0); err != nil {
		t.Fatalf("err: %s", err)
	}
	exp := math.Sqrt(2 * 10 / 9.81)
	if !scalar.EqualWithinAbs(b.impact, exp, 1e-5) {
		t.Fatalf("impact at %f, expected %f", b.impact, exp)
	}
	if b.state[0] > 0 || b.state[0] < -1e-3 {
		t.Fatalf("state at impact %v", b.state)
	}
}

type diverging struct {
	oscillator
}

func (d *diverging) Func(t float64, s []float64) []float64 {
	return []float64{math.Inf(1), math.NaN()}
}

func TestDormandPrinceNonFinite(t *testing.T) {
	d := &diverging{oscillator{state: []float64{1, 0}, tf: 1}}
	_, err := NewDormandPrince(1e-6, 1e-6).Solve(d, 0)
	if !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
}

func TestRK4Decay(t *testing.T) {
	d := newDecay(1)
	iterNum, xi, err := NewRK4(0, 0.01, d).Solve()
	if err != nil {
		t.Fatalf("err: %s", err)
	}
	if iterNum < 99 || iterNum > 101 {
		t.Fatalf("iterNum = %d", iterNum)
	}
	if !scalar.EqualWithinAbs(d.state[0], math.Exp(-xi), 1e-8) {
		t.Fatalf("y(%f)=%f expected %f", xi, d.state[0], math.Exp(-xi))
	}
}

func TestRK4NodesAndEvents(t *testing.T) {
	d := &nodedDecay{decay: newDecay(1.0)}
	NewRK4(0, 0.07, d).Solve()
	if len(d.nodes) != 4 || !scalar.EqualWithinAbs(d.nodes[3], 1, 1e-12) {
		t.Fatalf("nodes %v", d.nodes)
	}
	b := &ball{state: []float64{10, 0}}
	NewRK4(0, 0.001, b).Solve()
	if exp := math.Sqrt(2 * 10 / 9.81); !scalar.EqualWithinAbs(b.impact, exp, 2e-3) {
		t.Fatalf("impact at %f, expected %f", b.impact, exp)
	}
}

func TestRK4Panics(t *testing.T) {
	assertPanic(t, func() { NewRK4(0, 0, newDecay(1)) })
	assertPanic(t, func() { NewRK4(0, 1, nil) })
}

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("code did not panic")
		}
	}()
	f()
}
