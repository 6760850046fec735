// Package scenario builds flights from TOML or JSON scenario files.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	rocketsim "github.com/0xsamuel-eth/rocket-simulation"
	"github.com/go-kit/log"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ErrInvalidScenario is returned for incomplete or inconsistent scenarios.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a fully built launch: environment, rocket and flight configuration.
type Scenario struct {
	Name       string
	Env        *rocketsim.Environment
	Rocket     *rocketsim.Rocket
	Flight     rocketsim.FlightConfig
	MonteCarlo MonteCarlo
}

// MonteCarlo is the optional dispersion analysis of a scenario.
type MonteCarlo struct {
	Runs       int
	Workers    int
	Seed       uint64
	Dispersion rocketsim.Dispersion
}

// Loader reads scenarios. Relative file paths are resolved against the directory of the scenario.
type Loader struct {
	Fetcher *rocketsim.SoundingFetcher
	// Confined rejects absolute file paths and paths leaving the base directory,
	// and only fetches soundings from SoundingHosts.
	Confined      bool
	SoundingHosts []string
	// MaxFlightTime caps flight.max_time (s) when positive.
	MaxFlightTime float64
	logger        log.Logger
}

// NewLoader returns a loader fetching soundings with the configured timeout.
func NewLoader(logger log.Logger) *Loader {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Loader{Fetcher: rocketsim.NewSoundingFetcher(0), logger: logger}
}

// Load reads the scenario file at path; its format is deduced from its extension.
func (l *Loader) Load(ctx context.Context, path string) (*Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l.Build(ctx, v, filepath.Dir(path))
}

// Read reads a scenario of the provided format ("toml" or "json") from r.
func (l *Loader) Read(ctx context.Context, r io.Reader, format, baseDir string) (*Scenario, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return l.Build(ctx, v, baseDir)
}

// Build builds a scenario from an already read configuration.
func (l *Loader) Build(ctx context.Context, v *viper.Viper, baseDir string) (*Scenario, error) {
	b := builder{v: v, base: baseDir, loader: l}
	sc := &Scenario{Name: v.GetString("name")}
	if sc.Name == "" {
		sc.Name = "flight"
	}
	var err error
	if sc.Env, err = b.environment(ctx); err != nil {
		return nil, err
	}
	sc.Env.SetLogger(l.logger)
	if sc.Rocket, err = b.rocket(); err != nil {
		return nil, err
	}
	if sc.Flight, err = b.flight(sc.Name); err != nil {
		return nil, err
	}
	sc.MonteCarlo = b.monteCarlo()
	return sc, nil
}

// NewFlight returns the nominal flight of this scenario.
func (sc *Scenario) NewFlight() (*rocketsim.Flight, error) {
	return rocketsim.NewFlight(sc.Rocket, sc.Env, sc.Flight)
}

// NewMonteCarlo returns the dispersion analysis of this scenario with runs flights,
// or the number of runs of the scenario when zero.
func (sc *Scenario) NewMonteCarlo(runs int) *rocketsim.MonteCarlo {
	if runs <= 0 {
		runs = sc.MonteCarlo.Runs
	}
	mc := rocketsim.NewMonteCarlo(sc.Rocket, sc.Env, sc.Flight, sc.MonteCarlo.Dispersion, runs, sc.MonteCarlo.Seed)
	mc.Workers = sc.MonteCarlo.Workers
	return mc
}

type builder struct {
	v      *viper.Viper
	base   string
	loader *Loader
}

func (b builder) path(p string) (string, error) {
	if p == "" {
		return p, nil
	}
	if b.loader.Confined {
		if !filepath.IsLocal(p) {
			return "", fmt.Errorf("%w: %s is outside of the scenario directory", ErrInvalidScenario, p)
		}
		return filepath.Join(b.base, p), nil
	}
	if filepath.IsAbs(p) || b.base == "" {
		return p, nil
	}
	return filepath.Join(b.base, p), nil
}

// soundingURL checks that a confined loader may fetch raw.
func (b builder) soundingURL(raw string) error {
	if !b.loader.Confined {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: sounding url: %v", ErrInvalidScenario, err)
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		for _, host := range b.loader.SoundingHosts {
			if strings.EqualFold(u.Hostname(), host) {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: soundings may not be fetched from %s", ErrInvalidScenario, u.Redacted())
}

// function reads a key which is either a number (constant) or a path to a CSV file.
func (b builder) function(key string, def float64) (*rocketsim.Function, error) {
	raw := b.v.Get(key)
	if raw == nil {
		return rocketsim.NewConstantFunction(def), nil
	}
	if p, ok := raw.(string); ok {
		path, err := b.path(p)
		if err != nil {
			return nil, err
		}
		return rocketsim.LoadFunctionCSV(path, rocketsim.ConstantExtrapolation)
	}
	return rocketsim.NewConstantFunction(b.v.GetFloat64(key)), nil
}

func (b builder) required(keys ...string) error {
	var errs []error
	for _, k := range keys {
		if !b.v.IsSet(k) {
			errs = append(errs, fmt.Errorf("%w: missing %s", ErrInvalidScenario, k))
		}
	}
	return errors.Join(errs...)
}

func (b builder) float3(key string) (out [3]float64, err error) {
	vals, ok := b.v.Get(key).([]interface{})
	if !ok || len(vals) != 3 {
		return out, fmt.Errorf("%w: %s needs three values, got %v", ErrInvalidScenario, key, b.v.Get(key))
	}
	for i, val := range vals {
		if out[i], err = cast.ToFloat64E(val); err != nil {
			return out, fmt.Errorf("%w: %s: %v", ErrInvalidScenario, key, err)
		}
	}
	return out, nil
}

func (b builder) environment(ctx context.Context) (*rocketsim.Environment, error) {
	if err := b.required("environment.latitude", "environment.longitude", "environment.elevation"); err != nil {
		return nil, err
	}
	var opts []rocketsim.EnvironmentOption
	if b.v.IsSet("environment.date") {
		opts = append(opts, rocketsim.WithDate(b.v.GetTime("environment.date")))
	}
	if b.v.IsSet("environment.gravity") {
		opts = append(opts, rocketsim.WithGravity(rocketsim.ConstantGravity(b.v.GetFloat64("environment.gravity"))))
	}
	atmos, err := b.atmosphere(ctx)
	if err != nil {
		return nil, err
	}
	if atmos != nil {
		opts = append(opts, rocketsim.WithAtmosphere(atmos))
	}
	env, err := rocketsim.NewEnvironment(b.v.GetFloat64("environment.latitude"), b.v.GetFloat64("environment.longitude"), b.v.GetFloat64("environment.elevation"), opts...)
	if err != nil {
		return nil, err
	}
	if b.v.IsSet("atmosphere.wind_scale") {
		env = env.WithWindScale(b.v.GetFloat64("atmosphere.wind_scale"))
	}
	return env, nil
}

func (b builder) atmosphere(ctx context.Context) (rocketsim.Atmosphere, error) {
	kind := rocketsim.AtmosphereKind(b.v.GetString("atmosphere.kind"))
	if kind == "" {
		kind = rocketsim.StandardAtmosphereKind
	}
	if err := rocketsim.CheckAtmosphereKind(kind); err != nil {
		return nil, err
	}
	switch kind {
	case rocketsim.CustomAtmosphereKind:
		funcs := make([]*rocketsim.Function, 4)
		for i, key := range []string{"pressure", "temperature", "wind_u", "wind_v"} {
			if !b.v.IsSet("atmosphere." + key) {
				continue
			}
			f, err := b.function("atmosphere."+key, 0)
			if err != nil {
				return nil, err
			}
			funcs[i] = f
		}
		return rocketsim.NewCustomAtmosphere(b.v.GetString("atmosphere.name"), funcs[0], funcs[1], funcs[2], funcs[3])
	case rocketsim.SoundingAtmosphereKind:
		if file := b.v.GetString("atmosphere.file"); file != "" {
			path, err := b.path(file)
			if err != nil {
				return nil, err
			}
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			return rocketsim.ParseSounding(f)
		}
		raw := b.v.GetString("atmosphere.url")
		if raw == "" {
			return nil, fmt.Errorf("%w: a sounding needs atmosphere.url or atmosphere.file", ErrInvalidScenario)
		}
		if err := b.soundingURL(raw); err != nil {
			return nil, err
		}
		return b.loader.Fetcher.Sounding(ctx, raw)
	}
	return nil, nil
}

func (b builder) flight(name string) (rocketsim.FlightConfig, error) {
	v := b.v
	cfg := rocketsim.FlightConfig{
		RailLength:        v.GetFloat64("flight.rail_length"),
		Inclination:       v.GetFloat64("flight.inclination"),
		Heading:           v.GetFloat64("flight.heading"),
		TerminateOnApogee: v.GetBool("flight.terminate_on_apogee"),
		MaxTime:           v.GetFloat64("flight.max_time"),
		MaxTimeStep:       v.GetFloat64("flight.max_time_step"),
		MinTimeStep:       v.GetFloat64("flight.min_time_step"),
		RelTol:            v.GetFloat64("flight.rtol"),
		AbsTol:            v.GetFloat64("flight.atol"),
		FixedStep:         v.GetFloat64("flight.fixed_step"),
		Seed:              uint64(v.GetInt64("flight.seed")),
		Perturbations:     rocketsim.Perturbations{Coriolis: v.GetBool("flight.coriolis")},
	}
	if !v.IsSet("flight.inclination") {
		cfg.Inclination = 80
	}
	if limit := b.loader.MaxFlightTime; limit > 0 && (cfg.MaxTime <= 0 || cfg.MaxTime > limit) {
		cfg.MaxTime = limit
	}
	dir, err := b.path(v.GetString("export.dir"))
	if err != nil {
		return cfg, err
	}
	cfg.Export = rocketsim.ExportConfig{
		Filename:  name,
		Dir:       dir,
		CSV:       v.GetBool("export.csv"),
		Compress:  v.GetBool("export.compress"),
		KML:       v.GetBool("export.kml"),
		Summary:   v.GetBool("export.summary"),
		Timestamp: v.GetBool("export.timestamp"),
	}
	if f := v.GetString("export.filename"); f != "" {
		cfg.Export.Filename = f
	}
	return cfg, nil
}

func (b builder) monteCarlo() MonteCarlo {
	v := b.v
	return MonteCarlo{
		Runs:    v.GetInt("montecarlo.runs"),
		Workers: v.GetInt("montecarlo.workers"),
		Seed:    uint64(v.GetInt64("montecarlo.seed")),
		Dispersion: rocketsim.Dispersion{
			Inclination: v.GetFloat64("montecarlo.dispersion.inclination"),
			Heading:     v.GetFloat64("montecarlo.dispersion.heading"),
			Mass:        v.GetFloat64("montecarlo.dispersion.mass"),
			Lag:         v.GetFloat64("montecarlo.dispersion.lag"),
			WindScale:   v.GetFloat64("montecarlo.dispersion.wind_scale"),
		},
	}
}
