package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"libdb.so/ttglow"
	"libdb.so/ttglow/internal/events"
	"libdb.so/ttglow/internal/watch"
	"libdb.so/ttglow/lighting"
)

var (
	config      = "ttglow.toml"
	verbose     = false
	effect      = ""
	brightness  = lighting.DefaultBrightness
	metricsAddr = ""
	noWatch     = false
)

func init() {
	pflag.StringVarP(&config, "config", "c", config, "configuration file")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
	pflag.StringVarP(&effect, "effect", "e", effect, `override the configured effect, e.g. "static #ff0000" or "temperature coretemp 70"`)
	pflag.IntVarP(&brightness, "brightness", "b", brightness, "override the configured brightness in percent (0-300)")
	pflag.StringVar(&metricsAddr, "metrics-addr", metricsAddr, "serve Prometheus metrics on this address, e.g. :9110")
	pflag.BoolVar(&noWatch, "no-watch", noWatch, "do not reload the configuration file when it changes")
}

func main() {
	pflag.Parse()

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	override, err := parseOverrides()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(config, override)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := ttglow.NewDaemon(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	defer d.Events().Close()

	d.Events().OnLoopStopped(func(ev events.LoopStopped) {
		slog.Debug("lighting loop stopped", "rounds", ev.Rounds)
	})

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		return d.Run(ctx)
	})

	if !noWatch {
		w := watch.New(config,
			func(path string) (*ttglow.Config, error) { return loadConfig(path, override) },
			func(cfg *ttglow.Config) {
				if err := d.Reload(cfg); err != nil {
					slog.Warn("failed to reload configuration", "error", err)
					return
				}
				slog.Info("reloaded configuration", "path", config)
			},
			slog.Default().With("component", "watch"))
		errg.Go(func() error {
			return w.Run(ctx)
		})
	}

	if metricsAddr != "" {
		errg.Go(func() error {
			return serveMetrics(ctx, metricsAddr)
		})
	}

	if err := errg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon failed: %w", err)
	}

	return nil
}

// overrides are the flags that take precedence over the configuration file.
type overrides struct {
	effect     *lighting.EffectConfig
	brightness *int
}

func parseOverrides() (overrides, error) {
	var o overrides

	if effect != "" {
		cfg, err := lighting.ParseEffectArgs(strings.Fields(effect)...)
		if err != nil {
			return o, fmt.Errorf("invalid --effect: %w", err)
		}
		o.effect = &cfg
	}

	if pflag.CommandLine.Changed("brightness") {
		o.brightness = &brightness
	}

	return o, nil
}

func loadConfig(path string, o overrides) (*ttglow.Config, error) {
	cfg, err := ttglow.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if o.effect != nil {
		cfg.Effect = *o.effect
	}
	if o.brightness != nil {
		level := *o.brightness
		cfg.Brightness = &level
	}

	return cfg, nil
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("serving metrics", "addr", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return ctx.Err()
}
