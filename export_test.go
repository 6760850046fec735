package rocketsim

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestWriteReadCSV(t *testing.T) {
	sol, err := ballisticFlight(t, FlightConfig{}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sol); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "# Creation date") {
		t.Fatal("missing header comments")
	}
	samples, err := ReadCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != len(sol.Samples()) {
		t.Fatalf("read %d samples, wrote %d", len(samples), len(sol.Samples()))
	}
	for i, smp := range samples {
		exp := sol.Samples()[i]
		if !scalar.EqualWithinAbs(smp.T, exp.T, 1e-6) || !scalar.EqualWithinRel(smp.Y[2], exp.Y[2], 1e-8) {
			t.Fatalf("sample %d: %+v != %+v", i, smp, exp)
		}
	}
	if _, err := ReadCSV(strings.NewReader("t,x\n1,2\n")); err == nil {
		t.Fatal("expected an error on short records")
	}
	if _, err := ReadCSV(strings.NewReader(strings.Repeat("1,", 16) + "a\n")); err == nil {
		t.Fatal("expected an error on invalid numbers")
	}
}

func TestStreamedTrajectory(t *testing.T) {
	for _, compress := range []bool{false, true} {
		conf := ExportConfig{Filename: "ballistic", Dir: t.TempDir(), CSV: true, Compress: compress}
		sol, err := ballisticFlight(t, FlightConfig{Export: conf}).Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		path := conf.TrajectoryPath()
		if compress != strings.HasSuffix(path, ".csv.zst") {
			t.Fatalf("unexpected trajectory path %s", path)
		}
		samples, err := LoadTrajectory(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(samples) < len(sol.Samples()) {
			t.Fatalf("streamed %d samples, solution has %d", len(samples), len(sol.Samples()))
		}
		if !scalar.EqualWithinAbs(samples[len(samples)-1].T, sol.Duration(), 1e-6) {
			t.Fatalf("last streamed sample at %f, flight ended at %f", samples[len(samples)-1].T, sol.Duration())
		}
	}
}

func TestPostFlightFiles(t *testing.T) {
	conf := ExportConfig{Filename: "ballistic", Dir: t.TempDir(), KML: true, Summary: true}
	sol, err := ballisticFlight(t, FlightConfig{Export: conf}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(conf.Dir, "traj-ballistic.kml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, exp := range []string{"<LineString>", "<coordinates>", "<name>apogee</name>", "<name>impact</name>", "absolute"} {
		if !bytes.Contains(raw, []byte(exp)) {
			t.Fatalf("KML does not contain %s", exp)
		}
	}
	raw, err = os.ReadFile(filepath.Join(conf.Dir, "summary-ballistic.json"))
	if err != nil {
		t.Fatal(err)
	}
	var sum map[string]interface{}
	if err := json.Unmarshal(raw, &sum); err != nil {
		t.Fatal(err)
	}
	if v, ok := sum["apogee_agl_m"].(float64); !ok || !scalar.EqualWithinAbs(v, sol.Summary().ApogeeAGL, 1e-6) {
		t.Fatalf("apogee in summary: %v", sum["apogee_agl_m"])
	}
	events, ok := sum["events"].([]interface{})
	if !ok || len(events) != len(sol.Events()) {
		t.Fatalf("events in summary: %v", sum["events"])
	}
	if kind := events[len(events)-1].(map[string]interface{})["kind"]; kind != "impact" {
		t.Fatalf("last event %v", kind)
	}
}

func TestExportConfig(t *testing.T) {
	if !(ExportConfig{}).IsUseless() || (ExportConfig{KML: true}).IsUseless() {
		t.Fatal("IsUseless")
	}
	c := ExportConfig{Filename: "calisto", Dir: "out", Timestamp: true}
	p := c.path("traj", "kml")
	if !strings.HasPrefix(p, filepath.Join("out", "traj-calisto-")) || !strings.HasSuffix(p, ".kml") {
		t.Fatalf("path %s", p)
	}
	if p := (ExportConfig{Dir: "out"}).TrajectoryPath(); p != filepath.Join("out", "traj-flight.csv") {
		t.Fatalf("default trajectory path %s", p)
	}
}
