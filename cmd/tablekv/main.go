package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trustdble/tablekv/internal/config"
	"github.com/trustdble/tablekv/internal/node"
	"github.com/trustdble/tablekv/pkg/log"
)

// main starts a tablekv node.
// go run ./cmd/tablekv -config tablekv.yaml
func main() {
	configPath := flag.String("config", "", "Path to a YAML or JSON config file")
	listen := flag.String("listen", "", "Override listen_addr")
	dataDir := flag.String("data", "", "Override data_dir")
	backend := flag.String("backend", "", "Override backend (pebble or leveldb)")
	logLevel := flag.String("log-level", "", "Override log_level")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal(err, "failed to load config")
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	initLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := node.NewNode(ctx, cfg)
	if err != nil {
		fatal(err, "failed to create node")
	}
	if err := n.Start(); err != nil {
		fatal(err, "failed to start node")
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", n.Metrics.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Root.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Root.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, log.Root, reloadLogLevel(*logLevel != ""))
			if err != nil {
				log.Root.Warn().Err(err).Msg("config watch stopped")
			}
		}()
	}

	<-ctx.Done()
	log.Root.Info().Msg("shutting down")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Root.Warn().Err(err).Msg("metrics server shutdown")
		}
	}
	if err := n.Stop(); err != nil {
		fatal(err, "failed to stop node")
	}
}

// reloadLogLevel applies log_level from a changed config file. A level given
// on the command line wins over the file for the life of the process.
func reloadLogLevel(pinned bool) func(*config.Config) {
	return func(updated *config.Config) {
		if pinned {
			log.Root.Debug().Str("file_level", updated.LogLevel).Msg("log level set by flag, not reloading")
			return
		}
		level, err := log.ParseLogLevel(updated.LogLevel)
		if err != nil {
			log.Root.Warn().Err(err).Msg("ignoring invalid log level")
			return
		}
		log.SetLevel(level)
		log.Root.Info().Stringer("level", level).Msg("log level updated")
	}
}

func initLogging(cfg *config.Config) {
	level, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		fatal(err, "invalid log level")
	}
	typ, err := log.ParseLoggerType(cfg.LogFormat)
	if err != nil {
		fatal(err, "invalid log format")
	}
	log.Init(log.Options{LogLevel: level, Type: typ})
}

// fatal writes to stderr directly since logging may not be set up yet.
func fatal(err error, msg string) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
