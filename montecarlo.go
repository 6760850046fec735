package rocketsim

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"

	"github.com/0xsamuel-eth/rocket-simulation/observability"
	"github.com/go-kit/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Dispersion holds the standard deviations of the Monte Carlo inputs.
// Every dispersed input is normally distributed around its nominal value.
type Dispersion struct {
	Inclination float64 // deg
	Heading     float64 // deg
	Mass        float64 // kg, rocket without motor
	Lag         float64 // s, parachute lag
	WindScale   float64 // around a nominal scale of one
}

// MonteCarlo runs dispersed flights of one rocket from one environment.
type MonteCarlo struct {
	Rocket     *Rocket
	Env        *Environment
	Flight     FlightConfig
	Dispersion Dispersion
	Runs       int
	Workers    int // defaults to the number of CPUs
	Seed       uint64
	logger     log.Logger
}

// NewMonteCarlo returns a new Monte Carlo analysis of runs dispersed flights.
func NewMonteCarlo(r *Rocket, env *Environment, cfg FlightConfig, d Dispersion, runs int, seed uint64) *MonteCarlo {
	return &MonteCarlo{Rocket: r, Env: env, Flight: cfg, Dispersion: d, Runs: runs, Seed: seed, logger: log.NewNopLogger()}
}

// SetLogger sets the logger of this analysis.
func (mc *MonteCarlo) SetLogger(logger log.Logger) {
	mc.logger = logger
}

// MonteCarloRun is the input and output of one dispersed flight.
type MonteCarloRun struct {
	Index       int     `json:"index"`
	Inclination float64 `json:"inclination_deg"`
	Heading     float64 `json:"heading_deg"`
	Mass        float64 `json:"mass_kg"`
	LagOffset   float64 `json:"lag_offset_s"`
	WindScale   float64 `json:"wind_scale"`
	Summary     Summary `json:"summary"`
	Err         error   `json:"-"`
}

// MonteCarloResult gathers the runs of an analysis, ordered by index.
type MonteCarloResult struct {
	Runs   []MonteCarloRun
	Failed int
}

// MonteCarloStats are the statistics of the successful runs.
type MonteCarloStats struct {
	Runs          int     `json:"runs"`
	Failed        int     `json:"failed"`
	ApogeeMean    float64 `json:"apogee_mean_m"`
	ApogeeStd     float64 `json:"apogee_std_m"`
	ApogeeP05     float64 `json:"apogee_p05_m"`
	ApogeeP95     float64 `json:"apogee_p95_m"`
	ImpactXMean   float64 `json:"impact_x_mean_m"`
	ImpactYMean   float64 `json:"impact_y_mean_m"`
	ImpactXStd    float64 `json:"impact_x_std_m"`
	ImpactYStd    float64 `json:"impact_y_std_m"`
	ImpactCorrXY  float64 `json:"impact_correlation_xy"`
	RailSpeedMean float64 `json:"out_of_rail_velocity_mean_m_s"`
}

// MarshalJSON writes undefined (NaN) statistics as null.
func (s MonteCarloStats) MarshalJSON() ([]byte, error) {
	return marshalNullNaN(s)
}

// normal draws from N(μ, σ) with rng, or returns μ when σ is not positive.
func normal(rng *rand.Rand, μ, σ float64) float64 {
	if σ <= 0 {
		return μ
	}
	u := rng.Float64()
	for u == 0 {
		u = rng.Float64()
	}
	return distuv.Normal{Mu: μ, Sigma: σ}.Quantile(u)
}

// draw returns the dispersed inputs of every run. Draws happen up front so that
// results do not depend on the scheduling of the workers.
func (mc *MonteCarlo) draw() []MonteCarloRun {
	rng := rand.New(rand.NewPCG(mc.Seed, mc.Seed^0x5851f42d4c957f2d))
	runs := make([]MonteCarloRun, mc.Runs)
	for i := range runs {
		d := mc.Dispersion
		runs[i] = MonteCarloRun{
			Index:       i,
			Inclination: clamp(normal(rng, mc.Flight.Inclination, d.Inclination), 1e-3, 90),
			Heading:     normal(rng, mc.Flight.Heading, d.Heading),
			Mass:        math.Max(1e-3, normal(rng, mc.Rocket.Mass, d.Mass)),
			LagOffset:   normal(rng, 0, d.Lag),
			WindScale:   normal(rng, 1, d.WindScale),
		}
	}
	return runs
}

// Run flies every dispersed flight in a worker pool. Failed flights are logged and counted.
// The returned error is only set when ctx is cancelled.
func (mc *MonteCarlo) Run(ctx context.Context) (*MonteCarloResult, error) {
	if mc.Runs <= 0 {
		return nil, fmt.Errorf("%w: Monte Carlo needs at least one run", ErrInvalidFlight)
	}
	workers := mc.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, span := observability.Tracer().Start(ctx, "montecarlo", trace.WithAttributes(attribute.Int("runs", mc.Runs), attribute.Int("workers", workers)))
	defer span.End()

	inputs := mc.draw()
	jobs := make(chan MonteCarloRun, workers*2)
	results := make(chan MonteCarloRun, workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := mc.fly(ctx, job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for _, job := range inputs {
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	res := &MonteCarloResult{Runs: make([]MonteCarloRun, 0, mc.Runs)}
	for result := range results {
		if result.Err != nil {
			res.Failed++
			mc.logger.Log("level", "warning", "subsys", "mc", "run", result.Index, "err", result.Err)
		}
		res.Runs = append(res.Runs, result)
	}
	sort.Slice(res.Runs, func(i, j int) bool { return res.Runs[i].Index < res.Runs[j].Index })
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	mc.logger.Log("level", "info", "subsys", "mc", "runs", len(res.Runs), "failed", res.Failed)
	return res, nil
}

// fly runs one dispersed flight.
func (mc *MonteCarlo) fly(ctx context.Context, run MonteCarloRun) MonteCarloRun {
	ctx, span := observability.Tracer().Start(ctx, "montecarlo.run", trace.WithAttributes(attribute.Int("index", run.Index)))
	defer span.End()
	cfg := mc.Flight
	cfg.Inclination = run.Inclination
	cfg.Heading = run.Heading
	cfg.LagOffset += run.LagOffset
	cfg.Seed = mc.Seed + uint64(run.Index) + 1
	cfg.Export = ExportConfig{}
	f, err := NewFlight(mc.Rocket.WithMass(run.Mass), mc.Env.WithWindScale(run.WindScale), cfg)
	if err != nil {
		run.Err = err
		return run
	}
	sol, err := f.Run(ctx)
	if err != nil {
		span.RecordError(err)
		run.Err = err
		return run
	}
	run.Summary = sol.Summary()
	return run
}

// Stats returns the statistics of the successful runs.
func (r *MonteCarloResult) Stats() MonteCarloStats {
	var apogee, x, y, rail []float64
	for _, run := range r.Runs {
		if run.Err != nil {
			continue
		}
		apogee = append(apogee, run.Summary.Apogee)
		x = append(x, run.Summary.ImpactX)
		y = append(y, run.Summary.ImpactY)
		if !math.IsNaN(run.Summary.OutOfRailVelocity) {
			rail = append(rail, run.Summary.OutOfRailVelocity)
		}
	}
	s := MonteCarloStats{Runs: len(r.Runs), Failed: r.Failed}
	if len(apogee) == 0 {
		nan := math.NaN()
		s.ApogeeMean, s.ApogeeStd, s.ApogeeP05, s.ApogeeP95 = nan, nan, nan, nan
		s.ImpactXMean, s.ImpactYMean, s.ImpactXStd, s.ImpactYStd, s.ImpactCorrXY = nan, nan, nan, nan, nan
		s.RailSpeedMean = nan
		return s
	}
	s.ApogeeMean, s.ApogeeStd = stat.MeanStdDev(apogee, nil)
	sorted := append([]float64(nil), apogee...)
	sort.Float64s(sorted)
	s.ApogeeP05 = stat.Quantile(0.05, stat.Empirical, sorted, nil)
	s.ApogeeP95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	s.ImpactXMean, s.ImpactXStd = stat.MeanStdDev(x, nil)
	s.ImpactYMean, s.ImpactYStd = stat.MeanStdDev(y, nil)
	s.ImpactCorrXY = stat.Correlation(x, y, nil)
	s.RailSpeedMean = math.NaN()
	if len(rail) > 0 {
		s.RailSpeedMean = stat.Mean(rail, nil)
	}
	return s
}
