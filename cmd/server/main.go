package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	router "github.com/dkeye/relay/internal/adapters/http"
	sig "github.com/dkeye/relay/internal/adapters/signal"
	"github.com/dkeye/relay/internal/app"
	"github.com/dkeye/relay/internal/app/orch"
	"github.com/dkeye/relay/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	cmd := &cli.Command{
		Name:  "relay-server",
		Usage: "realtime session relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Value:   "dev",
				Usage:   "config environment, selects config/config.<env>.yaml",
				Sources: cli.EnvVars("CONFIG_ENV"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("env"))
			if err != nil {
				return err
			}
			setLogLevel(cfg.LogLevel, cmd.Bool("debug"))
			return serve(ctx, cfg)
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("relay server failed")
	}
}

func setLogLevel(name string, debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("log_level", name).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func serve(ctx context.Context, cfg *config.Config) error {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := app.NewMetrics(promReg)

	o := orch.New(app.NewRegistry(metrics), app.SimplePolicy{}, cfg.EventBuffer)
	o.Metrics = metrics

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := o.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("dispatcher exited")
		}
	}()

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:     o,
		Limiter:  sig.NewJoinRateLimiter(cfg.JoinRateLimit, cfg.JoinRateInterval),
		Gatherer: promReg,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("relay server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("server error")
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Hijacked websockets outlive Shutdown; stopping the loop closes them.
	stopLoop()
	<-loopDone
	log.Info().Msg("Server exited gracefully")
	return serveErr
}
