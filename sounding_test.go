package rocketsim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestParseSounding(t *testing.T) {
	f, err := os.Open("testdata/sounding.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	s, err := ParseSounding(f)
	if err != nil {
		t.Fatal(err)
	}
	if s.Station != "KEPZ" {
		t.Fatalf("station %q", s.Station)
	}
	if !s.ValidTime.Equal(time.Date(2019, 5, 2, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("valid time %s", s.ValidTime)
	}
	if s.Levels != 5 {
		t.Fatalf("%d levels", s.Levels)
	}
	if !scalar.EqualWithinAbs(s.Pressure(1400), 86100, 1e-9) {
		t.Fatalf("pressure %f", s.Pressure(1400))
	}
	// Half way between 1510 m and 3100 m.
	if !scalar.EqualWithinAbs(s.Pressure(2305), 77500, 1e-6) {
		t.Fatalf("interpolated pressure %f", s.Pressure(2305))
	}
	// The last level has no temperature.
	if !scalar.EqualWithinAbs(s.Temperature(7400), 262.15, 1e-9) {
		t.Fatalf("temperature %f", s.Temperature(7400))
	}
	u, v := s.Wind(1400)
	spd := 8 * knot
	if !scalar.EqualWithinAbs(u, -spd*sinDeg(250), 1e-9) || !scalar.EqualWithinAbs(v, -spd*cosDeg(250), 1e-9) {
		t.Fatalf("wind (%f, %f)", u, v)
	}
	if u <= 0 {
		t.Fatal("a wind from the west south west must blow eastward")
	}
}

func sinDeg(a float64) float64 {
	s, _ := sincosDeg(a)
	return s
}

func cosDeg(a float64) float64 {
	_, c := sincosDeg(a)
	return c
}

func TestParseSoundingMalformed(t *testing.T) {
	for i, txt := range []string{
		"",
		"      4   8500   1510\n",
		"      4   8500   1510    270    -40    260    ten\n",
		"      5  99999  99999  99999  99999  99999  99999\n",
	} {
		if _, err := ParseSounding(strings.NewReader(txt)); !errors.Is(err, ErrMalformedSounding) {
			t.Fatalf("case %d: expected ErrMalformedSounding, got %v", i, err)
		}
	}
}

func TestParseSoundingNonMonotonic(t *testing.T) {
	for name, txt := range map[string]string{
		"repeated height": "      9   8610   1400    290    -60    250      8\n      4   8500   1400    270    -40    260     10\n",
		"descending":      "      9   8610   1400    290    -60    250      8\n      4   8500   1510    270    -40    260     10\n      5   7000   1450    120    -90    270     15\n",
	} {
		if _, err := ParseSounding(strings.NewReader(txt)); !errors.Is(err, ErrNonMonotonicProfile) {
			t.Errorf("%s: expected ErrNonMonotonicProfile, got %v", name, err)
		}
	}
}

func TestSoundingFetcherLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("      4   8500   1510    270    -40    260     10\n"), maxSoundingSize/50+1))
	}))
	defer srv.Close()
	if _, err := NewSoundingFetcher(5*time.Second).Fetch(context.Background(), srv.URL); !errors.Is(err, ErrMalformedSounding) {
		t.Fatalf("expected ErrMalformedSounding, got %v", err)
	}
}

func TestSoundingFetcher(t *testing.T) {
	raw, err := os.ReadFile("testdata/sounding.txt")
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/soundings/KEPZ" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, string(raw))
	}))
	defer srv.Close()

	fetcher := NewSoundingFetcher(5 * time.Second)
	s, err := fetcher.Sounding(context.Background(), srv.URL+"/soundings/KEPZ")
	if err != nil {
		t.Fatal(err)
	}
	if s.Station != "KEPZ" {
		t.Fatalf("station %q", s.Station)
	}
	if _, err := fetcher.Fetch(context.Background(), srv.URL+"/soundings/NOPE"); err == nil {
		t.Fatal("expected an error on a 404")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fetcher.Fetch(ctx, srv.URL+"/soundings/KEPZ"); err == nil {
		t.Fatal("expected an error with a cancelled context")
	}
}
