package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	rocketsim "github.com/0xsamuel-eth/rocket-simulation"
	"github.com/0xsamuel-eth/rocket-simulation/observability"
	"github.com/0xsamuel-eth/rocket-simulation/scenario"
	"github.com/go-kit/log"
)

// This code reads a scenario file, flies it and prints the summary.

const defaultScenario = "~~unset~~"

var (
	scenarioPath string
	kmlOut       string
	csvOut       string
	runs         int
	metricsAddr  string
	traceExp     string
	verbose      bool
)

func init() {
	// Read flags
	flag.StringVar(&scenarioPath, "scenario", defaultScenario, "flight scenario TOML (or JSON) file")
	flag.StringVar(&kmlOut, "kml", "", "write the trajectory to this KML file")
	flag.StringVar(&csvOut, "csv", "", "write the trajectory to this CSV file (zstd compressed if it ends with .zst)")
	flag.IntVar(&runs, "montecarlo", 0, "run this many dispersed flights instead of the nominal one")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	flag.StringVar(&traceExp, "trace", "", "tracing exporter (stdout)")
	flag.BoolVar(&verbose, "verbose", false, "log every flight event")
}

func main() {
	flag.Parse()
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if err := run(logger); err != nil {
		logger.Log("level", "critical", "err", err)
		os.Exit(1)
	}
}

func run(logger log.Logger) error {
	if scenarioPath == defaultScenario {
		return fmt.Errorf("no scenario provided")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tcfg := observability.TracingConfigFromEnv()
	if traceExp != "" {
		tcfg.Enabled, tcfg.Exporter = true, traceExp
	}
	shutdown, err := observability.InitTracing(ctx, tcfg, logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, logger)

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Log("level", "error", "subsys", "metrics", "err", err)
			}
		}()
	}

	libLogger := log.NewNopLogger()
	if verbose {
		libLogger = logger
	}
	sc, err := scenario.NewLoader(libLogger).Load(ctx, scenarioPath)
	if err != nil {
		return err
	}

	if runs > 0 || sc.MonteCarlo.Runs > 0 {
		mc := sc.NewMonteCarlo(runs)
		mc.SetLogger(logger)
		res, err := mc.Run(ctx)
		if err != nil {
			return err
		}
		return printJSON(res.Stats())
	}

	f, err := sc.NewFlight()
	if err != nil {
		return err
	}
	f.SetLogger(libLogger)
	sol, err := f.Run(ctx)
	if err != nil {
		return err
	}
	if kmlOut != "" {
		if err := writeFile(kmlOut, func(fh *os.File) error {
			return rocketsim.WriteKML(fh, sol, sc.Name, nil)
		}); err != nil {
			return err
		}
		logger.Log("level", "info", "subsys", "export", "kml", kmlOut)
	}
	if csvOut != "" {
		if err := writeCSV(csvOut, sol); err != nil {
			return err
		}
		logger.Log("level", "info", "subsys", "export", "csv", csvOut)
	}
	return printJSON(sol.Summary())
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeFile(path string, fn func(*os.File) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(fh); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func writeCSV(path string, sol *rocketsim.Solution) error {
	w, err := rocketsim.CreateTrajectoryFile(path)
	if err != nil {
		return err
	}
	if err := rocketsim.WriteCSV(w, sol); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
