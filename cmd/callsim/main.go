package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/teleng/callsim"
	"github.com/teleng/callsim/server"
)

func main() {
	configPath := flag.String("config", "", "path to json config file")
	locFile := flag.String("locations", "", "location list description file (yaml or json)")
	simFile := flag.String("sim", "", "simulation parameter description file (yaml or json)")
	traceOut := flag.String("trace", "", "write call traces to this file on exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if *locFile == "" {
		*locFile = cfg.Files.Locations
	}
	if *simFile == "" {
		*simFile = cfg.Files.Sim
	}
	if *traceOut == "" {
		*traceOut = cfg.Files.TraceOut
	}

	// the syn map binds input file types to file names; absent entries
	// fall back to built-in defaults
	syn := make(map[string]string)
	useYAML := true
	if *locFile != "" {
		syn["locations"] = *locFile
		useYAML = yamlExt(*locFile)
	}
	if *simFile != "" {
		syn["sim"] = *simFile
		useYAML = yamlExt(*simFile)
	}

	exp, err := callsim.BuildExperiment(syn, useYAML)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build experiment")
	}

	store := callsim.CreateSnapshotStore(exp.SimParams.MaxSnapshots)
	mgr := callsim.CreateSimulationManager(store, exp.SimParams, logger)

	collector, err := callsim.NewSimCollector(nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register prometheus collectors")
	}
	mgr.SetCollector(collector)

	traceMgr := callsim.CreateCallTraceManager("callsim", *traceOut != "")
	mgr.SetTraceManager(traceMgr)

	hub := server.NewHub(logger)
	mgr.RegisterObserver(hub)

	srv := server.New(cfg, exp, store, mgr, hub, logger)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()
	logger.Info().Str("addr", cfg.Addr()).Int("locations", len(exp.Locations.Locations)).
		Msg("callsim serving")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}

	if traceMgr.Active() && *traceOut != "" {
		traceMgr.WriteToFile(*traceOut)
		logger.Info().Str("file", *traceOut).Msg("call traces written")
	}
}

// yamlExt reports whether the file name selects yaml serialization
func yamlExt(filename string) bool {
	ext := path.Ext(filename)
	return ext == ".yaml" || ext == ".yml" || ext == ".YAML"
}
