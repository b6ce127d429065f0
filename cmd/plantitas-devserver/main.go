// Command plantitas-devserver runs the in-memory reference backend of the shop API.
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

	"github.com/plantitas/plantitas/internal/common/logtrace"
	"github.com/plantitas/plantitas/internal/devserver/config"
	"github.com/plantitas/plantitas/internal/devserver/server"
	"github.com/rs/zerolog/log"
)

type cmdoptions struct {
	configFile string
	port       string
	logLevel   string
	noSeed     bool
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	opt := parseFlags()
	logtrace.InitLogger(logtrace.ParseLevel(opt.logLevel))
	slog := log.With().Str("state", "init").Logger()

	cfg, err := loadConfig(opt)
	if err != nil {
		return err
	}

	s, err := server.CreateNewServer(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info().Str("addr", srv.Addr).Int("users", len(cfg.Users)).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	slog.Info().Msg("server stopped")
	return nil
}

func loadConfig(opt cmdoptions) (*config.ConfigParam, error) {
	var cfg *config.ConfigParam
	if opt.configFile == "" {
		log.Info().Msg("no config file given, using development defaults")
		cfg = config.Default()
	} else {
		log.Info().Str("config_file", opt.configFile).Msg("loading config file")
		var err error
		if cfg, err = config.LoadConfig(opt.configFile); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}
	if opt.port != "" {
		cfg.ServerPort = opt.port
	}
	if opt.noSeed {
		cfg.SeedCatalog = false
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	flag.StringVar(&opt.configFile, "config", "", "Path to the TOML config file; development defaults when empty")
	flag.StringVar(&opt.port, "port", "", "Override the listening port")
	flag.StringVar(&opt.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	flag.BoolVar(&opt.noSeed, "no-seed", false, "Start with an empty catalogue")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
