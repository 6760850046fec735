package rocketsim

import (
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestSomiglianaGravity(t *testing.T) {
	g := SomiglianaGravity{}
	if !scalar.EqualWithinAbs(g.Gravity(0, 0), 9.7803253359, 1e-10) {
		t.Fatalf("equator gravity %f", g.Gravity(0, 0))
	}
	if !scalar.EqualWithinAbs(g.Gravity(45, 0), 9.806199, 1e-5) {
		t.Fatalf("45 deg gravity %f", g.Gravity(45, 0))
	}
	if g.Gravity(45, 10000) >= g.Gravity(45, 0) {
		t.Fatal("gravity should decrease with altitude")
	}
	if ConstantGravity(9.81).Gravity(10, 1e5) != 9.81 {
		t.Fatal("constant gravity is not constant")
	}
}

func TestNewEnvironment(t *testing.T) {
	for _, c := range [][2]float64{{91, 0}, {-91, 0}, {0, -181}, {0, 361}} {
		if _, err := NewEnvironment(c[0], c[1], 0); err == nil {
			t.Fatalf("(%f, %f) should be invalid", c[0], c[1])
		}
	}
	dt := time.Date(2000, 1, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	env, err := NewEnvironment(32.990254, -106.974998, 1400, WithDate(dt))
	if err != nil {
		t.Fatal(err)
	}
	if env.Date.Location() != time.UTC {
		t.Fatal("date should be stored in UTC")
	}
	if !scalar.EqualWithinAbs(env.JulianDate(), 2451545-1.0/24, 1e-6) {
		t.Fatalf("julian date %f", env.JulianDate())
	}
	if _, ok := env.Atmosphere().(StandardAtmosphere); !ok {
		t.Fatalf("default atmosphere is %T", env.Atmosphere())
	}
	if !strings.HasPrefix(env.String(), "site (32.990254, -106.974998) @ 1400.0 m") {
		t.Fatalf("unexpected string %s", env)
	}
}

func TestEnvironmentWindScale(t *testing.T) {
	wind := NewConstantFunction(3)
	custom, err := NewCustomAtmosphere("windy", nil, nil, wind, wind)
	if err != nil {
		t.Fatal(err)
	}
	env, err := NewEnvironment(0, 0, 0, WithAtmosphere(custom))
	if err != nil {
		t.Fatal(err)
	}
	scaled := env.WithWindScale(2)
	if u, v := scaled.WindVelocity(100); u != 6 || v != 6 {
		t.Fatalf("scaled wind (%f, %f)", u, v)
	}
	if u, _ := env.WindVelocity(100); u != 3 {
		t.Fatal("WithWindScale modified the original environment")
	}
	if scaled.Density(0) != env.Density(0) {
		t.Fatal("scaling the wind changed the density")
	}
}

func TestLocalToGeodetic(t *testing.T) {
	env, err := NewEnvironment(32.990254, -106.974998, 1400)
	if err != nil {
		t.Fatal(err)
	}
	if lat, lon := env.LocalToGeodetic(0, 0); lat != env.Latitude || lon != env.Longitude {
		t.Fatal("origin should map onto the launch site")
	}
	lat, lon := env.LocalToGeodetic(0, 1000)
	if lon != env.Longitude || !scalar.EqualWithinAbs(lat-env.Latitude, 0.009, 1e-4) {
		t.Fatalf("1 km north: (%f, %f)", lat, lon)
	}
	if d := env.SurfaceDistance(lat, lon); !scalar.EqualWithinAbs(d, 1000, 10) {
		t.Fatalf("1 km north is %f m away", d)
	}
	lat, lon = env.LocalToGeodetic(1000, 0)
	if lat != env.Latitude || lon <= env.Longitude {
		t.Fatalf("1 km east: (%f, %f)", lat, lon)
	}
	if d := env.SurfaceDistance(lat, lon); !scalar.EqualWithinAbs(d, 1000, 10) {
		t.Fatalf("1 km east is %f m away", d)
	}
}
