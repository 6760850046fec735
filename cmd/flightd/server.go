package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	rocketsim "github.com/0xsamuel-eth/rocket-simulation"
	"github.com/0xsamuel-eth/rocket-simulation/observability"
	"github.com/0xsamuel-eth/rocket-simulation/scenario"
	"github.com/go-kit/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const maxScenarioSize = 1 << 20

// storedFlight is a flown scenario.
type storedFlight struct {
	ID       string
	Name     string
	Created  time.Time
	Solution *rocketsim.Solution
}

// server runs scenarios posted over HTTP and keeps their solutions in memory.
type server struct {
	loader  *scenario.Loader
	baseDir string
	timeout time.Duration // per flight
	logger  log.Logger

	mu      sync.RWMutex
	flights map[string]*storedFlight
}

func newServer(loader *scenario.Loader, baseDir string, timeout time.Duration, logger log.Logger) *server {
	return &server{loader: loader, baseDir: baseDir, timeout: timeout, logger: logger, flights: make(map[string]*storedFlight)}
}

func (s *server) routes() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.healthHandler).Methods("GET")
	router.HandleFunc("/flights", s.createFlightHandler).Methods("POST")
	router.HandleFunc("/flights", s.listFlightsHandler).Methods("GET")
	router.HandleFunc("/flights/{id}", s.getFlightHandler).Methods("GET")
	router.HandleFunc("/flights/{id}/kml", s.kmlHandler).Methods("GET")
	router.HandleFunc("/flights/{id}/trajectory.csv", s.trajectoryHandler).Methods("GET")
	router.Handle("/metrics", observability.Handler()).Methods("GET")
	return observability.Middleware(router)
}

func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// scenarioFormat returns the viper config type of the posted body.
func scenarioFormat(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return f
	}
	if strings.Contains(r.Header.Get("Content-Type"), "json") {
		return "json"
	}
	return "toml"
}

func (s *server) createFlightHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	body := http.MaxBytesReader(w, r.Body, maxScenarioSize)
	sc, err := s.loader.Read(ctx, body, scenarioFormat(r), s.baseDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sc.Flight.Export = rocketsim.ExportConfig{}
	f, err := sc.NewFlight()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.SetLogger(s.logger)
	sol, err := f.Run(ctx)
	if err != nil {
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, context.Canceled):
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	stored := &storedFlight{ID: uuid.NewString(), Name: sc.Name, Created: time.Now().UTC(), Solution: sol}
	s.mu.Lock()
	s.flights[stored.ID] = stored
	s.mu.Unlock()
	s.logger.Log("level", "info", "subsys", "flightd", "flight", stored.ID, "name", stored.Name, "apogee", sol.Apogee())

	w.Header().Set("Location", "/flights/"+stored.ID)
	writeJSON(w, http.StatusCreated, flightResponse(stored))
}

type flightJSON struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Created time.Time         `json:"created"`
	Summary rocketsim.Summary `json:"summary"`
}

func flightResponse(f *storedFlight) flightJSON {
	return flightJSON{ID: f.ID, Name: f.Name, Created: f.Created, Summary: f.Solution.Summary()}
}

func (s *server) listFlightsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := make([]flightJSON, 0, len(s.flights))
	for _, f := range s.flights {
		out = append(out, flightResponse(f))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	writeJSON(w, http.StatusOK, out)
}

func (s *server) lookup(w http.ResponseWriter, r *http.Request) (*storedFlight, bool) {
	id := mux.Vars(r)["id"]
	s.mu.RLock()
	f, ok := s.flights[id]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, fmt.Sprintf("flight %s not found", id), http.StatusNotFound)
	}
	return f, ok
}

func (s *server) getFlightHandler(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, flightResponse(f))
	}
}

func (s *server) kmlHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	if err := rocketsim.WriteKML(w, f.Solution, f.Name, nil); err != nil {
		s.logger.Log("level", "error", "subsys", "flightd", "flight", f.ID, "err", err)
	}
}

func (s *server) trajectoryHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	if err := rocketsim.WriteCSV(w, f.Solution); err != nil {
		s.logger.Log("level", "error", "subsys", "flightd", "flight", f.ID, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		io.WriteString(w, err.Error())
	}
}
