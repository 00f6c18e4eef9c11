package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/edvin/mapd/internal/cluster"
	"github.com/edvin/mapd/internal/config"
	"github.com/edvin/mapd/internal/engine"
	"github.com/edvin/mapd/internal/frontend"
	"github.com/edvin/mapd/internal/instance"
	"github.com/edvin/mapd/internal/logging"
	"github.com/edvin/mapd/internal/metrics"
	"github.com/edvin/mapd/internal/version"
	"github.com/edvin/mapd/internal/warmup"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.Default()
	fs := flag.NewFlagSet("mapd-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			config.PrintHelp(os.Stdout, fs, false)
			return 0
		}
		fmt.Fprintf(os.Stderr, "usage error: %v\n", err)
		return 1
	}

	switch {
	case cfg.Help:
		config.PrintHelp(os.Stdout, fs, false)
		return 0
	case cfg.HelpAdvanced:
		config.PrintHelp(os.Stdout, fs, true)
		return 0
	case cfg.Version:
		fmt.Printf("MapD Version: %s\n", version.Release)
		return 0
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if cfg.ConfigFile != "" {
		if err := cfg.ApplyFile(cfg.ConfigFile, func(name string) bool { return explicit[name] }); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	cfg.Normalize(fs.Args())

	// Topology resolution happens before any listener starts; the resolved
	// leaf sets are consumed by the engine, not connected to here.
	var topo cluster.Topology
	if cfg.ClusterPath != "" || cfg.StringServersPath != "" {
		leaves, err := cluster.ParseConfigFile(cfg.ClusterConfigPath())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		topo, err = cluster.Resolve(leaves, cfg.ClusterPath != "", cfg.StringServersPath != "")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	if err := cfg.CheckAuxPaths(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := cfg.CheckPaths(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	lock, err := instance.Acquire(cfg.Data)
	if err != nil {
		if errors.Is(err, instance.ErrAlreadyRunning) {
			fmt.Fprintf(os.Stderr, "another MapD server is using data directory %s\n", cfg.Data)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}

	logger, logCloser, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger.Info().
		Str("data", cfg.Data).
		Str("device", cfg.Device).
		Str("pid_file", lock.Path()).
		Str("version", version.Release).
		Msg("MapD server starting")
	if cfg.ClusterPath != "" {
		logger.Info().Str("config", cfg.ClusterPath).Msg("cluster config specified, running as aggregator")
	}
	if cfg.StringServersPath != "" {
		logger.Info().Str("config", cfg.StringServersPath).Msg("string servers config specified, running as dbleaf")
	}
	logger.Info().Bool("watchdog", cfg.EnableWatchdog).Bool("dynamic_watchdog", cfg.EnableDynamicWatchdog).
		Msg("watchdog configuration")

	if cfg.HAEnabled() {
		logger.Info().Str("ha_group_id", cfg.HAGroupID).Msg("starting in HA mode")
		if code, haErr := cfg.ValidateHA(); code != 0 {
			logger.Error().Err(haErr).Msg("invalid HA configuration")
			logCloser.Close()
			return code
		}
	}

	// Only SIGTERM triggers shutdown; the exit code is the signal number.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Info().Str("signal", sig.String()).Msg("termination signal received")
		logCloser.Close()
		if num, ok := sig.(syscall.Signal); ok {
			os.Exit(int(num))
		}
		os.Exit(1)
	}()

	handler, err := engine.NewServer(logger, engine.ParamsFromConfig(cfg, topo), nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize query engine handler")
		logCloser.Close()
		return 1
	}
	metrics.RegisterSessionGauge(func() float64 { return float64(handler.SessionCount()) })

	if cfg.HAEnabled() {
		logger.Fatal().Msg("no high availability module available")
	}

	processor := frontend.NewProcessor(logger, handler)
	fe, err := frontend.New(logger, processor, frontend.Options{
		Port:     cfg.Port,
		HTTPPort: cfg.HTTPPort,
		PoolSize: cfg.ThreadPoolSize,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to build front-end")
		logCloser.Close()
		return 1
	}
	fe.Start()

	// Warm-up runs on the main thread, concurrently with client traffic
	// already admitted by the endpoints.
	warmup.New(logger, handler).Run(context.Background(), cfg.DBQueryFile)

	fe.Wait()
	logCloser.Close()
	return 0
}
