package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/0xsamuel-eth/rocket-simulation/scenario"
	"github.com/go-kit/log"
)

const hop = `
name = "hop"

[environment]
latitude = 32.990254
longitude = -106.974998
elevation = 1400

[motor]
kind = "generic"
thrust_source = 1000
burn_time = 2
dry_mass = 1
nozzle_radius = 0.03
propellant_initial_mass = 1
chamber_radius = 0.03
chamber_height = 0.4
chamber_position = 0.3
position = -0.5

[rocket]
radius = 0.05
mass = 10
inertia = [1, 1, 0.01]
power_off_drag = 0.4

[flight]
rail_length = 2
inclination = 90
terminate_on_apogee = true
`

type flightBody struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Summary struct {
		ApogeeAGL float64 `json:"apogee_agl_m"`
	} `json:"summary"`
}

func newTestServer(t *testing.T, timeout time.Duration) *httptest.Server {
	t.Helper()
	loader := scenario.NewLoader(nil)
	loader.Confined = true
	loader.SoundingHosts = []string{"rucsoundings.noaa.gov"}
	loader.MaxFlightTime = 600
	srv := httptest.NewServer(newServer(loader, "../../data", timeout, log.NewNopLogger()).routes())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, contentType, body string) int {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(body)
}

func TestServerFlight(t *testing.T) {
	srv := newTestServer(t, time.Minute)
	resp, err := http.Post(srv.URL+"/flights", "application/toml", strings.NewReader(hop))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var created flightBody
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.Name != "hop" || created.ID == "" {
		t.Fatalf("unexpected flight %+v", created)
	}
	if resp.Header.Get("Location") != "/flights/"+created.ID {
		t.Fatalf("location = %s", resp.Header.Get("Location"))
	}
	if created.Summary.ApogeeAGL <= 0 || created.Summary.ApogeeAGL > 1366.977 {
		t.Fatalf("apogee %f", created.Summary.ApogeeAGL)
	}

	code, body := get(t, srv.URL+"/flights/"+created.ID)
	if code != http.StatusOK || !strings.Contains(body, created.ID) {
		t.Fatalf("get: %d %s", code, body)
	}
	code, body = get(t, srv.URL+"/flights")
	var list []flightBody
	if err := json.Unmarshal([]byte(body), &list); err != nil || code != http.StatusOK {
		t.Fatalf("list: %d %v", code, err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", list)
	}
	code, body = get(t, srv.URL+"/flights/"+created.ID+"/kml")
	if code != http.StatusOK || !strings.Contains(body, "<LineString>") {
		t.Fatalf("kml: %d", code)
	}
	code, body = get(t, srv.URL+"/flights/"+created.ID+"/trajectory.csv")
	if code != http.StatusOK || !strings.Contains(body, "\nt,") {
		t.Fatalf("trajectory: %d", code)
	}
	code, body = get(t, srv.URL+"/metrics")
	if code != http.StatusOK || !strings.Contains(body, `rocketsim_http_requests_total{code="201",method="POST",path="/flights"}`) {
		t.Fatalf("metrics: %d", code)
	}
}

func TestServerErrors(t *testing.T) {
	srv := newTestServer(t, time.Minute)
	if code, _ := get(t, srv.URL+"/healthz"); code != http.StatusOK {
		t.Fatalf("healthz: %d", code)
	}
	if code, _ := get(t, srv.URL+"/flights/unknown"); code != http.StatusNotFound {
		t.Fatalf("unknown flight: %d", code)
	}
	for name, body := range map[string]string{
		"not toml":   "name = ",
		"no rocket":  strings.Split(hop, "[motor]")[0],
		"no rail":    strings.Replace(hop, "rail_length = 2", "", 1),
		"empty json": "{}",
	} {
		contentType := "application/toml"
		if name == "empty json" {
			contentType = "application/json"
		}
		if code := post(t, srv.URL+"/flights", contentType, body); code != http.StatusBadRequest {
			t.Errorf("%s: status %d", name, code)
		}
	}
}

func TestServerUntrustedScenarios(t *testing.T) {
	srv := newTestServer(t, time.Minute)
	for name, edit := range map[string]func(string) string{
		"absolute drag path": func(s string) string {
			return strings.Replace(s, "power_off_drag = 0.4", `power_off_drag = "/etc/passwd"`, 1)
		},
		"escaping thrust path": func(s string) string {
			return strings.Replace(s, "thrust_source = 1000", `thrust_source = "../../../secret.eng"`, 1)
		},
		"foreign sounding host": func(s string) string {
			return strings.Replace(s, "[motor]", "[atmosphere]\nkind = \"NOAARucSounding\"\nurl = \"http://169.254.169.254/latest\"\n\n[motor]", 1)
		},
		"file sounding scheme": func(s string) string {
			return strings.Replace(s, "[motor]", "[atmosphere]\nkind = \"NOAARucSounding\"\nurl = \"file://rucsoundings.noaa.gov/etc/passwd\"\n\n[motor]", 1)
		},
	} {
		if code := post(t, srv.URL+"/flights", "application/toml", edit(hop)); code != http.StatusBadRequest {
			t.Errorf("%s: status %d", name, code)
		}
	}
	// Files under the data directory remain usable.
	local := strings.Replace(hop, "power_off_drag = 0.4", `power_off_drag = "calisto/powerOffDragCurve.csv"`, 1)
	if code := post(t, srv.URL+"/flights", "application/toml", local); code != http.StatusCreated {
		t.Fatalf("local drag curve: status %d", code)
	}
}

func TestServerFlightTimeout(t *testing.T) {
	srv := newTestServer(t, time.Nanosecond)
	if code := post(t, srv.URL+"/flights", "application/toml", hop); code != http.StatusGatewayTimeout {
		t.Fatalf("status %d", code)
	}
}

func TestScenarioFormat(t *testing.T) {
	r := httptest.NewRequest("POST", "/flights?format=yaml", nil)
	if scenarioFormat(r) != "yaml" {
		t.Fatal("query format ignored")
	}
	r = httptest.NewRequest("POST", "/flights", nil)
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	if scenarioFormat(r) != "json" {
		t.Fatal("content type ignored")
	}
	r.Header.Del("Content-Type")
	if scenarioFormat(r) != "toml" {
		t.Fatal("toml should be the default")
	}
}
