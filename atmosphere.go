package rocketsim

import (
	"fmt"
	"math"
)

const (
	// AirGasConstant is the specific gas constant of dry air in J/(kg·K).
	AirGasConstant = 287.05287
	// AirHeatCapacityRatio is γ for dry air.
	AirHeatCapacityRatio = 1.4
	// isaEarthRadius is the radius used for the geometric to geopotential conversion (m).
	isaEarthRadius = 6356766.0
)

// Atmosphere provides the atmospheric profile as a function of the
// geometric altitude above sea level in meters.
type Atmosphere interface {
	Pressure(h float64) float64    // Pa
	Temperature(h float64) float64 // K
	Wind(h float64) (u, v float64) // m/s, u positive east, v positive north
	fmt.Stringer
}

// isaLayer is one layer of the 1976 U.S. Standard Atmosphere.
type isaLayer struct {
	H, lapse, T, P float64 // base geopotential height (m), lapse rate (K/m), base temperature (K), base pressure (Pa)
}

var isaLayers = []isaLayer{
	{0, -0.0065, 288.15, 101325},
	{11000, 0, 216.65, 22632.06},
	{20000, 0.001, 216.65, 5474.889},
	{32000, 0.0028, 228.65, 868.0187},
	{47000, 0, 270.65, 110.9063},
	{51000, -0.0028, 270.65, 66.93887},
	{71000, -0.002, 214.65, 3.956420},
}

// geopotential converts a geometric altitude into a geopotential height.
func geopotential(h float64) float64 {
	return isaEarthRadius * h / (isaEarthRadius + h)
}

func isaLayerAt(H float64) isaLayer {
	layer := isaLayers[0]
	for _, l := range isaLayers[1:] {
		if H < l.H {
			break
		}
		layer = l
	}
	return layer
}

// StandardAtmosphere is the International Standard Atmosphere (ISA 1976) up to 86 km, without wind.
// Above the last layer the last lapse rate is extrapolated.
type StandardAtmosphere struct{}

// Temperature implements the Atmosphere interface.
func (StandardAtmosphere) Temperature(h float64) float64 {
	H := geopotential(h)
	l := isaLayerAt(H)
	return l.T + l.lapse*(H-l.H)
}

// Pressure implements the Atmosphere interface.
func (StandardAtmosphere) Pressure(h float64) float64 {
	H := geopotential(h)
	l := isaLayerAt(H)
	if l.lapse == 0 {
		return l.P * math.Exp(-StandardGravity*(H-l.H)/(AirGasConstant*l.T))
	}
	return l.P * math.Pow(l.T/(l.T+l.lapse*(H-l.H)), StandardGravity/(AirGasConstant*l.lapse))
}

// Wind implements the Atmosphere interface.
func (StandardAtmosphere) Wind(h float64) (float64, float64) {
	return 0, 0
}

func (StandardAtmosphere) String() string {
	return "standard atmosphere"
}

// CustomAtmosphere is a tabulated atmosphere. A nil pressure or temperature
// profile falls back to the standard atmosphere and a nil wind profile is calm.
type CustomAtmosphere struct {
	Name               string
	PressureProfile    *Function
	TemperatureProfile *Function
	WindU, WindV       *Function
	std                StandardAtmosphere
}

// NewCustomAtmosphere returns a new tabulated atmosphere after checking the profiles.
func NewCustomAtmosphere(name string, pressure, temperature, windU, windV *Function) (*CustomAtmosphere, error) {
	for _, p := range []*Function{pressure, temperature, windU, windV} {
		if p == nil || !p.IsTabulated() {
			continue
		}
		_, ys := p.Points()
		if p == pressure || p == temperature {
			for i, y := range ys {
				if y <= 0 {
					return nil, fmt.Errorf("%s: non positive value %g at point %d", name, y, i)
				}
			}
		}
	}
	return &CustomAtmosphere{Name: name, PressureProfile: pressure, TemperatureProfile: temperature, WindU: windU, WindV: windV}, nil
}

// Pressure implements the Atmosphere interface.
func (a *CustomAtmosphere) Pressure(h float64) float64 {
	if a.PressureProfile == nil {
		return a.std.Pressure(h)
	}
	return a.PressureProfile.At(h)
}

// Temperature implements the Atmosphere interface.
func (a *CustomAtmosphere) Temperature(h float64) float64 {
	if a.TemperatureProfile == nil {
		return a.std.Temperature(h)
	}
	return a.TemperatureProfile.At(h)
}

// Wind implements the Atmosphere interface.
func (a *CustomAtmosphere) Wind(h float64) (u, v float64) {
	if a.WindU != nil {
		u = a.WindU.At(h)
	}
	if a.WindV != nil {
		v = a.WindV.At(h)
	}
	return
}

func (a *CustomAtmosphere) String() string {
	return fmt.Sprintf("custom atmosphere %s", a.Name)
}

// ScaledWindAtmosphere scales the wind of another atmosphere, e.g. for dispersions.
type ScaledWindAtmosphere struct {
	Atmosphere
	Factor float64
}

// Wind implements the Atmosphere interface.
func (a ScaledWindAtmosphere) Wind(h float64) (float64, float64) {
	u, v := a.Atmosphere.Wind(h)
	return a.Factor * u, a.Factor * v
}

func (a ScaledWindAtmosphere) String() string {
	return fmt.Sprintf("%s (wind x%.3f)", a.Atmosphere, a.Factor)
}

// AtmosphereKind names the supported atmospheric models.
type AtmosphereKind string

const (
	StandardAtmosphereKind AtmosphereKind = "standard_atmosphere"
	CustomAtmosphereKind   AtmosphereKind = "custom_atmosphere"
	SoundingAtmosphereKind AtmosphereKind = "NOAARucSounding"
	ForecastAtmosphereKind AtmosphereKind = "Forecast"
	EnsembleAtmosphereKind AtmosphereKind = "Ensemble"
)

// CheckAtmosphereKind returns ErrUnsupportedAtmosphere for forecast and ensemble grids.
func CheckAtmosphereKind(kind AtmosphereKind) error {
	switch kind {
	case StandardAtmosphereKind, CustomAtmosphereKind, SoundingAtmosphereKind:
		return nil
	}
	return fmt.Errorf("%q: %w", kind, ErrUnsupportedAtmosphere)
}
