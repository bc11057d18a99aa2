package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xlog/adapter/zerolog"

	"github.com/trickstertwo/xrelay"
	_ "github.com/trickstertwo/xrelay/adapter/memory"
	_ "github.com/trickstertwo/xrelay/adapter/natsjs"
	_ "github.com/trickstertwo/xrelay/adapter/redisstream"
	_ "github.com/trickstertwo/xrelay/adapter/sqlite"
	"github.com/trickstertwo/xrelay/internal/config"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", config.PathFromEnv("./xrelay.yaml"), "path to config yaml/json (env "+config.EnvPath+")")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log).With(xlog.Str("app", "xrelay"))

	d, closeFn, err := buildDispatcher(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build dispatcher")
		os.Exit(1)
	}
	logger.Info().
		Str("source", cfg.Source.Name).
		Str("sink", cfg.Sink.Name).
		Msg("xrelay configured")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, d, logger)
	cancel()
	closeFn()
	os.Exit(code)
}

// run drives r until ctx is cancelled and maps the outcome to an exit code.
func run(ctx context.Context, r xrelay.Runner, logger *xlog.Logger) int {
	logger.Info().
		Str("idle_interval", r.IdleInterval().String()).
		Msg("xrelay running; press Ctrl+C to exit")

	if err := r.Run(ctx); err != nil {
		logger.Error().Err(err).Str("state", r.State().String()).Msg("dispatcher stopped on fault")
		return 1
	}
	logger.Info().Msg("shutdown complete")
	return 0
}

func newLogger(c config.LogConfig) *xlog.Logger {
	zc := zerolog.Config{
		Console:           c.Console,
		ConsoleTimeFormat: time.RFC3339,
		Caller:            c.Caller,
		CallerSkip:        5,
	}
	switch c.Level {
	case "debug":
		zc.MinLevel = xlog.LevelDebug
	case "warn":
		zc.MinLevel = xlog.LevelWarn
	case "error":
		zc.MinLevel = xlog.LevelError
	default:
		zc.MinLevel = xlog.LevelInfo
	}
	return zerolog.Use(zc)
}
