package rocketsim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/0xsamuel-eth/rocket-simulation/integrator"
	"github.com/0xsamuel-eth/rocket-simulation/observability"
	"github.com/go-kit/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const nodeε = 1e-9

// FlightConfig configures the launch and the integration of a flight.
type FlightConfig struct {
	RailLength        float64 // m
	Inclination       float64 // deg from the horizontal
	Heading           float64 // deg from north, clockwise
	TerminateOnApogee bool
	MaxTime           float64 // s, defaults to 600
	MaxTimeStep       float64 // s, defaults to the library configuration
	MinTimeStep       float64 // s, defaults to 1e-10
	RelTol            float64 // defaults to the library configuration
	AbsTol            float64 // scale of the absolute tolerances, defaults to the library configuration
	FixedStep         float64 // when positive, integrate with RK4 at this step instead of Dormand-Prince
	Seed              uint64  // parachute noise seed
	LagOffset         float64 // s, added to every parachute lag
	Perturbations     Perturbations
	Export            ExportConfig
}

func (c FlightConfig) withDefaults() FlightConfig {
	lib := rocketsimConfig()
	if c.MaxTime <= 0 {
		c.MaxTime = 600
	}
	if c.MaxTimeStep <= 0 {
		c.MaxTimeStep = lib.maxStep
	}
	if c.MinTimeStep <= 0 {
		c.MinTimeStep = 1e-10
	}
	if c.RelTol <= 0 {
		c.RelTol = lib.rtol
	}
	if c.AbsTol <= 0 {
		c.AbsTol = lib.atol
	}
	c.Heading = Rad2deg(Deg2rad(c.Heading))
	return c
}

// Flight is the simulation of one rocket launched from one environment.
// A Flight is run once; the rocket and the environment are only read.
type Flight struct {
	Rocket *Rocket
	Env    *Environment
	cfg    FlightConfig

	phase       flightPhase
	t           float64
	y           State
	railDir     []float64
	effRail     float64
	chutes      []*parachuteRun
	activeChute *parachuteRun
	liftoff     bool
	burnout     bool
	apogee      bool
	done        bool
	ran         bool
	err         error
	nanDetail   string
	sol         *Solution
	stopChan    chan bool
	histChan    chan<- Sample
	ctx         context.Context
	phaseSpan   trace.Span
	logger      log.Logger
	Stats       integrator.Stats
}

// NewFlight returns a new flight of the rocket from the launch rail described by cfg.
func NewFlight(r *Rocket, env *Environment, cfg FlightConfig) (*Flight, error) {
	if r == nil || env == nil {
		return nil, fmt.Errorf("%w: rocket and environment are required", ErrInvalidFlight)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if cfg.RailLength <= 0 {
		return nil, fmt.Errorf("%w: rail length must be positive, got %f", ErrInvalidFlight, cfg.RailLength)
	}
	if cfg.Inclination <= 0 || cfg.Inclination > 90 {
		return nil, fmt.Errorf("%w: inclination must be in (0, 90] deg, got %f", ErrInvalidFlight, cfg.Inclination)
	}
	cfg = cfg.withDefaults()
	f := &Flight{Rocket: r, Env: env, cfg: cfg, stopChan: make(chan bool, 1), logger: log.NewNopLogger()}
	f.effRail = r.EffectiveRailLength(cfg.RailLength)
	if f.effRail <= 0 {
		return nil, fmt.Errorf("%w: effective rail length %f m is not positive", ErrInvalidFlight, f.effRail)
	}
	ψ := Deg2rad(cfg.Heading)
	f.railDir = RailDirection(cfg.Inclination*deg2rad, ψ)
	q := LaunchAttitude(cfg.Inclination*deg2rad, ψ)
	copy(f.y[6:10], q[:])
	for _, p := range r.Parachutes() {
		f.chutes = append(f.chutes, newParachuteRun(p, cfg.Seed, cfg.LagOffset))
	}
	return f, nil
}

// SetLogger sets the logger of this flight.
func (f *Flight) SetLogger(logger log.Logger) {
	f.logger = logger
}

// Config returns the configuration of this flight, defaults included.
func (f *Flight) Config() FlightConfig {
	return f.cfg
}

// Solution returns the solution computed so far.
func (f *Flight) Solution() *Solution {
	return f.sol
}

// StopPropagation requests the integration to stop at the next step.
func (f *Flight) StopPropagation() {
	select {
	case f.stopChan <- true:
	default:
	}
}

// Run integrates the flight until impact, apogee (if configured), the maximum time,
// a stop request or the cancellation of ctx. The partial solution is returned with any error.
func (f *Flight) Run(ctx context.Context) (*Solution, error) {
	if f.ran {
		return nil, fmt.Errorf("%w: flight already run", ErrInvalidFlight)
	}
	f.ran = true
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "flight.run", trace.WithAttributes(
		attribute.Float64("rail_length", f.cfg.RailLength),
		attribute.Float64("inclination", f.cfg.Inclination),
		attribute.Float64("heading", f.cfg.Heading),
	))
	defer span.End()
	f.ctx = ctx

	f.sol = newSolution(f.Env, f.Rocket)
	var wg sync.WaitGroup
	var exportErr error
	if f.cfg.Export.CSV {
		histChan := make(chan Sample, 1000) // a 1k entry buffer
		f.histChan = histChan
		wg.Add(1)
		go func() {
			defer wg.Done()
			exportErr = StreamSamples(f.cfg.Export, f.Env, histChan)
		}()
	}
	f.logger.Log("level", "info", "subsys", "flight", "status", "launch", "rail", f.cfg.RailLength, "effective_rail", f.effRail, "inclination", f.cfg.Inclination, "heading", f.cfg.Heading)
	f.startPhase(railPhase)
	f.SetState(0, f.y[:])

	var err error
	if f.cfg.FixedStep > 0 {
		rk := integrator.NewRK4(0, f.cfg.FixedStep, f)
		_, _, err = rk.Solve()
		f.Stats = rk.Stats
	} else {
		dp := integrator.NewDormandPrince(f.cfg.RelTol, f.cfg.AbsTol)
		dp.AbsTol = f.absTol()
		dp.MaxStep = f.cfg.MaxTimeStep
		dp.MinStep = f.cfg.MinTimeStep
		_, err = dp.Solve(f, 0)
		f.Stats = dp.Stats
	}
	f.endPhase()
	if f.histChan != nil {
		close(f.histChan)
		f.histChan = nil
	}
	wg.Wait() // Don't return until we're done writing the trajectory.

	switch {
	case errors.Is(err, integrator.ErrNonFinite):
		err = fmt.Errorf("%w: %s", ErrNaNState, f.nanDetail)
	case errors.Is(err, integrator.ErrStepTooSmall):
		err = fmt.Errorf("%w: %v", ErrStepTooSmall, err)
	case err == nil:
		err = f.err
	}
	if err == nil && exportErr != nil {
		err = exportErr
	}
	if err == nil && f.cfg.Export.wantsFiles() {
		err = f.cfg.Export.Write(f.sol)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.logger.Log("level", "error", "subsys", "flight", "t", f.t, "err", err)
	} else {
		span.SetAttributes(attribute.Float64("apogee", f.sol.Apogee()), attribute.Int("samples", len(f.sol.samples)))
		observability.Apogee.Observe(f.sol.Apogee() - f.Env.Elevation)
	}
	observability.ObserveFlight(outcome, time.Since(start), f.Stats.Accepted, f.Stats.Rejected)
	f.logger.Log("level", "info", "subsys", "flight", "status", "done", "t", f.t, "apogee", f.sol.Apogee(), "steps", f.Stats.Accepted, "rejected", f.Stats.Rejected, "evaluations", f.Stats.Evaluations)
	return f.sol, err
}

// absTol scales the configured tolerance per component: m and m/s, quaternion, rad/s.
func (f *Flight) absTol() []float64 {
	atol := make([]float64, 13)
	for i := range atol {
		switch {
		case i < 6:
			atol[i] = 1e3 * f.cfg.AbsTol
		case i < 10:
			atol[i] = f.cfg.AbsTol
		default:
			atol[i] = 1e3 * f.cfg.AbsTol
		}
	}
	return atol
}

func (f *Flight) startPhase(p flightPhase) {
	f.endPhase()
	f.phase = p
	_, f.phaseSpan = observability.Tracer().Start(f.ctx, "flight."+p.String(), trace.WithAttributes(attribute.Float64("t", f.t)))
}

func (f *Flight) endPhase() {
	if f.phaseSpan != nil {
		f.phaseSpan.SetAttributes(attribute.Float64("t_end", f.t))
		f.phaseSpan.End()
		f.phaseSpan = nil
	}
}

func (f *Flight) event(kind EventKind, detail string) {
	f.sol.addEvent(FlightEvent{Kind: kind, T: f.t, Y: f.y, Detail: detail})
	observability.FlightEvents.WithLabelValues(kind.String()).Inc()
	if f.phaseSpan != nil {
		f.phaseSpan.AddEvent(kind.String(), trace.WithAttributes(attribute.Float64("t", f.t), attribute.Float64("z", f.y[2])))
	}
}

// GetState returns the state of the flight, as needed by the integrator.
func (f *Flight) GetState() []float64 {
	s := make([]float64, 13)
	copy(s, f.y[:])
	return s
}

// SetState records the state reached at time t.
func (f *Flight) SetState(t float64, s []float64) {
	f.t = t
	copy(f.y[:], s)
	if f.phase == freeFlightPhase {
		q := f.y.Attitude().Normalize()
		copy(f.y[6:10], q[:])
	}
	if f.phase == railPhase && !f.liftoff && dot(f.y.Velocity(), f.railDir) > 0 {
		f.liftoff = true
		f.event(EventLiftoff, "")
		f.logger.Log("level", "info", "subsys", "flight", "event", EventLiftoff, "t", t)
	}
	f.record()
}

// record appends the current state to the solution and streams it.
func (f *Flight) record() {
	var smp Sample
	smp.T, smp.Y = f.t, f.y
	fDot := f.derivative(f.t, f.y[:])
	copy(smp.A[:], fDot[3:6])
	f.sol.append(smp)
	if f.histChan != nil {
		f.histChan <- smp
	}
}

// Stop returns whether the integration must stop at time t.
func (f *Flight) Stop(t float64) bool {
	select {
	case <-f.stopChan:
		f.logger.Log("level", "info", "subsys", "flight", "status", "stopped", "t", t)
		return true
	default:
	}
	if f.done || f.err != nil {
		return true
	}
	if f.ctx != nil && f.ctx.Err() != nil {
		f.err = f.ctx.Err()
		return true
	}
	if t >= f.cfg.MaxTime-nodeε {
		f.event(EventMaxTime, "")
		f.logger.Log("level", "warning", "subsys", "flight", "event", EventMaxTime, "t", t, "z", f.y[2])
		f.done = true
		return true
	}
	return false
}

// Func is the equations of motion of the current phase.
func (f *Flight) Func(t float64, s []float64) []float64 {
	fDot := f.derivative(t, s)
	for i, v := range fDot {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			f.nanDetail = fmt.Sprintf("t=%g phase=%s component=%d", t, f.phase, i)
			break
		}
	}
	return fDot
}

func (f *Flight) derivative(t float64, s []float64) []float64 {
	switch f.phase {
	case railPhase:
		return f.uDotRail(t, s)
	case freeFlightPhase:
		return f.uDot(t, s)
	}
	return f.uDotParachute(t, s)
}

// NextNode returns the next discontinuity: burnout, parachute samples and deployments, maximum time.
func (f *Flight) NextNode(t float64) float64 {
	next := f.cfg.MaxTime
	consider := func(n float64) {
		if n > t+nodeε && n < next {
			next = n
		}
	}
	consider(f.Rocket.motor.BurnOutTime())
	if f.phase != railPhase {
		for _, c := range f.chutes {
			if c.pending() {
				consider(c.sampleTick(t))
			} else if !c.deployed {
				consider(c.deployTime)
			}
		}
	}
	return next
}

// OnNode handles burnout, parachute sampling and deployments at time t.
func (f *Flight) OnNode(t float64) {
	if bo := f.Rocket.motor.BurnOutTime(); !f.burnout && math.Abs(t-bo) < 1e-6 {
		f.burnout = true
		f.event(EventBurnOut, "")
		f.logger.Log("level", "info", "subsys", "flight", "event", EventBurnOut, "t", t, "z", f.y[2], "speed", f.y.Speed())
		if f.phase == railPhase && dot(f.y.Velocity(), f.railDir) <= 0 {
			f.err = fmt.Errorf("%w: thrust to weight ratio never exceeded one on the rail", ErrNoLiftoff)
			return
		}
	}
	if f.phase == railPhase {
		return
	}
	changed := false
	for _, c := range f.chutes {
		if c.pending() && isTick(t, c.SamplingRate) {
			alt := f.y[2] + f.Env.Elevation
			pressure := f.Env.Pressure(alt) + c.sampleNoise()
			if c.Trigger.Fire(pressure, f.y[2], f.y) {
				c.triggered = true
				c.triggerTime = t
				c.deployTime = t + c.lag
				f.event(EventParachuteTrigger, c.Name)
				f.logger.Log("level", "info", "subsys", "recovery", "event", EventParachuteTrigger, "parachute", c.Name, "t", t, "z", f.y[2], "pressure", pressure)
			}
		}
		if c.triggered && !c.deployed && c.deployTime <= t+nodeε {
			f.deploy(c)
			changed = true
		}
	}
	if changed {
		f.record()
	}
}

func isTick(t, rate float64) bool {
	k := t * rate
	return math.Abs(k-math.Round(k)) < 1e-6
}

// deploy switches to the parachute descent, a later parachute replacing an earlier one.
func (f *Flight) deploy(c *parachuteRun) {
	c.deployed = true
	if f.phase != parachutePhase {
		f.startPhase(parachutePhase)
	}
	f.activeChute = c
	for i := 10; i < 13; i++ {
		f.y[i] = 0
	}
	f.event(EventParachuteDeploy, c.Name)
	f.logger.Log("level", "info", "subsys", "recovery", "event", EventParachuteDeploy, "parachute", c.Name, "t", f.t, "z", f.y[2], "CdS", c.CdS)
}

// Events returns the continuous events of the current phase.
func (f *Flight) Events() []integrator.Event {
	if f.phase == railPhase {
		return []integrator.Event{{
			Name: EventRailExit.String(),
			G: func(t float64, s []float64) float64 {
				return s[0]*f.railDir[0] + s[1]*f.railDir[1] + s[2]*f.railDir[2] - f.effRail
			},
			Direction: 1,
		}}
	}
	evts := []integrator.Event{{
		Name:      EventImpact.String(),
		G:         func(t float64, s []float64) float64 { return s[2] },
		Direction: -1,
	}}
	if !f.apogee {
		evts = append(evts, integrator.Event{
			Name:      EventApogee.String(),
			G:         func(t float64, s []float64) float64 { return s[5] },
			Direction: -1,
		})
	}
	return evts
}

// OnEvent handles the rail exit, the apogee and the impact.
func (f *Flight) OnEvent(e integrator.Event, t float64) {
	switch e.Name {
	case EventRailExit.String():
		f.event(EventRailExit, "")
		f.startPhase(freeFlightPhase)
		f.logger.Log("level", "info", "subsys", "flight", "event", EventRailExit, "t", t, "speed", f.y.Speed(), "static_margin", f.Rocket.staticMarginAt(t, f.sol.Mach(f.y)))
	case EventApogee.String():
		f.apogee = true
		f.event(EventApogee, "")
		f.logger.Log("level", "info", "subsys", "flight", "event", EventApogee, "t", t, "z", f.y[2], "x", f.y[0], "y", f.y[1])
		if f.cfg.TerminateOnApogee {
			f.done = true
		}
	case EventImpact.String():
		f.event(EventImpact, "")
		f.logger.Log("level", "info", "subsys", "flight", "event", EventImpact, "t", t, "x", f.y[0], "y", f.y[1], "vz", f.y[5])
		f.done = true
	}
}
