package rocketsim

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestStandardAtmosphere(t *testing.T) {
	var isa StandardAtmosphere
	if !scalar.EqualWithinAbs(isa.Pressure(0), 101325, 1e-6) {
		t.Fatalf("sea level pressure %f", isa.Pressure(0))
	}
	if !scalar.EqualWithinAbs(isa.Temperature(0), 288.15, 1e-9) {
		t.Fatalf("sea level temperature %f", isa.Temperature(0))
	}
	// 11 km geopotential is the tropopause.
	if !scalar.EqualWithinAbs(isa.Temperature(11019.1), 216.65, 1e-2) {
		t.Fatalf("tropopause temperature %f", isa.Temperature(11019.1))
	}
	if !scalar.EqualWithinAbs(isa.Pressure(11019.1), 22632, 5) {
		t.Fatalf("tropopause pressure %f", isa.Pressure(11019.1))
	}
	env, err := NewEnvironment(32.99, -106.97, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(env.Density(0), 1.225, 1e-3) {
		t.Fatalf("sea level density %f", env.Density(0))
	}
	if !scalar.EqualWithinAbs(env.SpeedOfSound(0), 340.29, 1e-2) {
		t.Fatalf("sea level speed of sound %f", env.SpeedOfSound(0))
	}
	if !scalar.EqualWithinAbs(env.DynamicViscosity(0), 1.789e-5, 1e-8) {
		t.Fatalf("sea level viscosity %g", env.DynamicViscosity(0))
	}
	// Pressure decreases monotonically.
	prev := isa.Pressure(0)
	for h := 500.; h < 80000; h += 500 {
		p := isa.Pressure(h)
		if p >= prev {
			t.Fatalf("pressure increased at %f m", h)
		}
		prev = p
	}
	if u, v := isa.Wind(1000); u != 0 || v != 0 {
		t.Fatal("standard atmosphere should be calm")
	}
}

func TestCustomAtmosphere(t *testing.T) {
	windU, _ := NewTabulatedFunction([]float64{0, 1000}, []float64{0, 10}, ConstantExtrapolation)
	a, err := NewCustomAtmosphere("test", nil, NewConstantFunction(300), windU, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.Temperature(5000) != 300 {
		t.Fatal("temperature profile ignored")
	}
	if a.Pressure(0) != (StandardAtmosphere{}).Pressure(0) {
		t.Fatal("pressure should fall back to the standard atmosphere")
	}
	if u, v := a.Wind(500); u != 5 || v != 0 {
		t.Fatalf("wind (%f, %f)", u, v)
	}
	scaled := ScaledWindAtmosphere{Atmosphere: a, Factor: 2}
	if u, _ := scaled.Wind(2000); u != 20 {
		t.Fatalf("scaled wind %f", u)
	}
	if scaled.Temperature(0) != 300 {
		t.Fatal("scaling changed the temperature")
	}

	bad, _ := NewTabulatedFunction([]float64{0, 1000}, []float64{101325, -1}, ConstantExtrapolation)
	if _, err := NewCustomAtmosphere("bad", bad, nil, nil, nil); err == nil {
		t.Fatal("expected an error for a negative pressure")
	}
}

func TestAtmosphereKind(t *testing.T) {
	for _, k := range []AtmosphereKind{StandardAtmosphereKind, CustomAtmosphereKind, SoundingAtmosphereKind} {
		if err := CheckAtmosphereKind(k); err != nil {
			t.Fatalf("%s: %s", k, err)
		}
	}
	for _, k := range []AtmosphereKind{ForecastAtmosphereKind, EnsembleAtmosphereKind, "foo"} {
		if err := CheckAtmosphereKind(k); !errors.Is(err, ErrUnsupportedAtmosphere) {
			t.Fatalf("%s: expected ErrUnsupportedAtmosphere, got %v", k, err)
		}
	}
}
