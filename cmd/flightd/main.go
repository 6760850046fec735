package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/0xsamuel-eth/rocket-simulation/observability"
	"github.com/0xsamuel-eth/rocket-simulation/scenario"
	"github.com/go-kit/log"
)

var (
	addr          string
	dataDir       string
	soundingHosts string
	maxFlightTime float64
	flightTimeout time.Duration
)

func init() {
	flag.StringVar(&addr, "addr", ":8087", "listen address")
	flag.StringVar(&dataDir, "data", ".", "directory holding the files scenarios may reference")
	flag.StringVar(&soundingHosts, "sounding-hosts", "rucsoundings.noaa.gov", "comma separated hosts soundings may be fetched from, empty to disable fetching")
	flag.Float64Var(&maxFlightTime, "max-flight-time", 600, "cap on the simulated flight time (s)")
	flag.DurationVar(&flightTimeout, "timeout", 30*time.Second, "wall clock limit of one flight request")
}

// newLoader returns a loader confined to dataDir for untrusted scenarios.
func newLoader(logger log.Logger) *scenario.Loader {
	loader := scenario.NewLoader(logger)
	loader.Confined = true
	loader.MaxFlightTime = maxFlightTime
	for _, host := range strings.Split(soundingHosts, ",") {
		if host = strings.TrimSpace(host); host != "" {
			loader.SoundingHosts = append(loader.SoundingHosts, host)
		}
	}
	return loader
}

func main() {
	flag.Parse()
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), logger)
	if err != nil {
		logger.Log("level", "critical", "err", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, logger)

	srv := &http.Server{Addr: addr, Handler: newServer(newLoader(logger), dataDir, flightTimeout, logger).routes()}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()
	logger.Log("level", "info", "subsys", "flightd", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log("level", "critical", "err", err)
		os.Exit(1)
	}
}
