package rocketsim

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Trigger decides whether a parachute must be released from the noisy
// pressure (Pa), the height above ground level (m) and the state.
type Trigger interface {
	Fire(pressure, height float64, y State) bool
}

// TriggerFunc is a Trigger callback.
type TriggerFunc func(pressure, height float64, y State) bool

// Fire implements the Trigger interface.
func (f TriggerFunc) Fire(pressure, height float64, y State) bool {
	return f(pressure, height, y)
}

type apogeeTrigger struct{}

func (apogeeTrigger) Fire(_, _ float64, y State) bool {
	return y[5] < 0
}

func (apogeeTrigger) String() string {
	return "apogee"
}

// ApogeeTrigger fires as soon as the rocket descends.
func ApogeeTrigger() Trigger {
	return apogeeTrigger{}
}

// AltitudeTrigger fires when the rocket descends below the given height above ground level (m).
type AltitudeTrigger float64

// Fire implements the Trigger interface.
func (h AltitudeTrigger) Fire(_, height float64, y State) bool {
	return y[5] < 0 && height < float64(h)
}

func (h AltitudeTrigger) String() string {
	return fmt.Sprintf("%.1f m AGL", float64(h))
}

// Noise is the pressure sensor noise: an AR(1) process of the given mean,
// standard deviation (Pa) and time correlation between two samples.
type Noise struct {
	Mean, Std, Correlation float64
}

// Parachute is a recovery device.
type Parachute struct {
	Name         string
	CdS          float64 // m^2
	Trigger      Trigger
	SamplingRate float64 // Hz
	Lag          float64 // s, between the trigger and the full deployment
	Noise        Noise
	Seed         uint64
}

// NewParachute returns a new parachute.
func NewParachute(name string, cdS float64, trigger Trigger, samplingRate, lag float64, noise Noise) (*Parachute, error) {
	if cdS <= 0 {
		return nil, fmt.Errorf("parachute %s: CdS %g must be positive: %w", name, cdS, ErrInvalidRocket)
	}
	if trigger == nil {
		return nil, fmt.Errorf("parachute %s: no trigger: %w", name, ErrInvalidRocket)
	}
	if samplingRate <= 0 || lag < 0 {
		return nil, fmt.Errorf("parachute %s: sampling rate %g and lag %g: %w", name, samplingRate, lag, ErrInvalidRocket)
	}
	if noise.Std < 0 || math.Abs(noise.Correlation) > 1 {
		return nil, fmt.Errorf("parachute %s: noise %+v: %w", name, noise, ErrInvalidRocket)
	}
	return &Parachute{Name: name, CdS: cdS, Trigger: trigger, SamplingRate: samplingRate, Lag: lag, Noise: noise}, nil
}

// EquivalentRadius is the radius of a hemisphere of the same drag area.
func (p *Parachute) EquivalentRadius() float64 {
	return math.Sqrt(p.CdS / math.Pi)
}

// AddedMass is the air mass moved with the canopy, for a density ρ.
func (p *Parachute) AddedMass(ρ float64) float64 {
	r := p.EquivalentRadius()
	return ρ * 2. / 3 * math.Pi * r * r * r
}

// parachuteRun is the state of one parachute during one flight.
type parachuteRun struct {
	*Parachute
	rng         *rand.Rand
	noise       float64
	lag         float64
	triggered   bool
	triggerTime float64
	deployed    bool
	deployTime  float64
}

func newParachuteRun(p *Parachute, seed uint64, lagOffset float64) *parachuteRun {
	s := p.Seed ^ seed
	return &parachuteRun{
		Parachute: p,
		rng:       rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)),
		noise:     p.Noise.Mean,
		lag:       math.Max(0, p.Lag+lagOffset),
	}
}

// sampleNoise advances the AR(1) noise by one sample.
func (r *parachuteRun) sampleNoise() float64 {
	u := r.rng.Float64()
	for u == 0 {
		u = r.rng.Float64()
	}
	w := distuv.Normal{Mu: 0, Sigma: r.Noise.Std}.Quantile(u)
	c := r.Noise.Correlation
	r.noise = r.Noise.Mean + c*(r.noise-r.Noise.Mean) + math.Sqrt(1-c*c)*w
	return r.noise
}

// pending reports whether this parachute still needs to be sampled.
func (r *parachuteRun) pending() bool {
	return !r.triggered
}

// sampleTick returns the first sampling time strictly after t.
func (r *parachuteRun) sampleTick(t float64) float64 {
	k := math.Floor(t*r.SamplingRate+1e-9) + 1
	return k / r.SamplingRate
}
