package rocketsim

import (
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/soniakeys/meeus/v3/globe"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/unit"
)

// GravityModel returns the gravitational acceleration (m/s^2) at a latitude (deg) and an altitude above sea level (m).
type GravityModel interface {
	Gravity(latitude, altitude float64) float64
}

// ConstantGravity is a uniform gravity field.
type ConstantGravity float64

// Gravity implements the GravityModel interface.
func (g ConstantGravity) Gravity(latitude, altitude float64) float64 {
	return float64(g)
}

// SomiglianaGravity is the WGS84 normal gravity with a free air correction.
type SomiglianaGravity struct{}

// Gravity implements the GravityModel interface.
func (SomiglianaGravity) Gravity(latitude, altitude float64) float64 {
	const (
		ge = 9.7803253359
		k  = 0.00193185265241
		e2 = 0.00669437999013
		Rm = 6371008.8
	)
	s2 := math.Pow(math.Sin(latitude*deg2rad), 2)
	g0 := ge * (1 + k*s2) / math.Sqrt(1-e2*s2)
	return g0 * math.Pow(Rm/(Rm+altitude), 2)
}

// Environment is the launch site: location, date, atmosphere and gravity.
// It is not modified while flown.
type Environment struct {
	Latitude, Longitude float64 // degrees
	Elevation           float64 // meters above sea level
	Date                time.Time
	atmosphere          Atmosphere
	gravity             GravityModel
	logger              log.Logger
}

// EnvironmentOption configures an Environment.
type EnvironmentOption func(*Environment)

// WithDate sets the launch date.
func WithDate(dt time.Time) EnvironmentOption {
	return func(e *Environment) { e.Date = dt.UTC() }
}

// WithAtmosphere sets the atmospheric model.
func WithAtmosphere(a Atmosphere) EnvironmentOption {
	return func(e *Environment) { e.atmosphere = a }
}

// WithGravity sets the gravity model.
func WithGravity(g GravityModel) EnvironmentOption {
	return func(e *Environment) { e.gravity = g }
}

// NewEnvironment returns a launch site with the standard atmosphere and Somigliana gravity unless overridden.
func NewEnvironment(latitude, longitude, elevation float64, opts ...EnvironmentOption) (*Environment, error) {
	if math.Abs(latitude) > 90 {
		return nil, fmt.Errorf("latitude %f out of [-90, 90]", latitude)
	}
	if longitude < -180 || longitude > 360 {
		return nil, fmt.Errorf("longitude %f out of [-180, 360]", longitude)
	}
	e := &Environment{Latitude: latitude, Longitude: longitude, Elevation: elevation, atmosphere: StandardAtmosphere{}, gravity: SomiglianaGravity{}, logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SetLogger sets the logger of this environment.
func (e *Environment) SetLogger(logger log.Logger) {
	e.logger = log.With(logger, "subsys", "env")
	e.logger.Log("level", "info", "lat", e.Latitude, "lon", e.Longitude, "elevation", e.Elevation, "atmosphere", e.atmosphere)
}

// SetDate sets the launch date.
func (e *Environment) SetDate(dt time.Time) {
	e.Date = dt.UTC()
}

// SetAtmosphere sets the atmospheric model.
func (e *Environment) SetAtmosphere(a Atmosphere) {
	e.atmosphere = a
	e.logger.Log("level", "info", "atmosphere", a)
}

// SetGravity sets the gravity model.
func (e *Environment) SetGravity(g GravityModel) {
	e.gravity = g
}

// Atmosphere returns the atmospheric model.
func (e *Environment) Atmosphere() Atmosphere {
	return e.atmosphere
}

// WithWindScale returns a copy of this environment whose winds are scaled by k.
func (e *Environment) WithWindScale(k float64) *Environment {
	cpy := *e
	cpy.atmosphere = ScaledWindAtmosphere{Atmosphere: e.atmosphere, Factor: k}
	return &cpy
}

// Gravity returns the gravitational acceleration at the altitude h (m ASL).
func (e *Environment) Gravity(h float64) float64 {
	return e.gravity.Gravity(e.Latitude, h)
}

// Pressure returns the pressure (Pa) at the altitude h (m ASL).
func (e *Environment) Pressure(h float64) float64 {
	return e.atmosphere.Pressure(h)
}

// Temperature returns the temperature (K) at the altitude h (m ASL).
func (e *Environment) Temperature(h float64) float64 {
	return e.atmosphere.Temperature(h)
}

// Density returns the air density (kg/m^3) from the ideal gas law.
func (e *Environment) Density(h float64) float64 {
	return e.atmosphere.Pressure(h) / (AirGasConstant * e.atmosphere.Temperature(h))
}

// SpeedOfSound returns the speed of sound (m/s).
func (e *Environment) SpeedOfSound(h float64) float64 {
	return math.Sqrt(AirHeatCapacityRatio * AirGasConstant * e.atmosphere.Temperature(h))
}

// DynamicViscosity returns the dynamic viscosity (Pa·s) from Sutherland's law.
func (e *Environment) DynamicViscosity(h float64) float64 {
	T := e.atmosphere.Temperature(h)
	return 1.458e-6 * math.Pow(T, 1.5) / (T + 110.4)
}

// WindVelocity returns the east and north wind components (m/s).
func (e *Environment) WindVelocity(h float64) (u, v float64) {
	return e.atmosphere.Wind(h)
}

// JulianDate returns the julian date of the launch.
func (e *Environment) JulianDate() float64 {
	return julian.TimeToJD(e.Date)
}

// LocalToGeodetic converts east and north offsets (m) from the launch site
// into a latitude and longitude (deg) using the local radii of the Earth ellipsoid.
func (e *Environment) LocalToGeodetic(east, north float64) (lat, lon float64) {
	φ := unit.AngleFromDeg(e.Latitude)
	meridian := globe.Earth76.RadiusOfCurvature(φ) * 1e3
	parallel := globe.Earth76.RadiusAtLatitude(φ) * 1e3
	lat = e.Latitude + north/meridian/deg2rad
	if parallel > 0 {
		lon = e.Longitude + east/parallel/deg2rad
	} else {
		lon = e.Longitude
	}
	return
}

// SurfaceDistance returns the distance (m) on the Earth ellipsoid between the launch site and a point.
func (e *Environment) SurfaceDistance(latitude, longitude float64) float64 {
	// Longitudes are measured positively westward in globe.
	c1 := globe.Coord{Lat: unit.AngleFromDeg(e.Latitude), Lon: unit.AngleFromDeg(-e.Longitude)}
	c2 := globe.Coord{Lat: unit.AngleFromDeg(latitude), Lon: unit.AngleFromDeg(-longitude)}
	return globe.Earth76.Distance(c1, c2) * 1e3
}

func (e *Environment) String() string {
	return fmt.Sprintf("site (%.6f, %.6f) @ %.1f m, %s", e.Latitude, e.Longitude, e.Elevation, e.atmosphere)
}
