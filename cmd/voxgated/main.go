package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/voxgate-labs/voxgate-core/internal/config"
	"github.com/voxgate-labs/voxgate-core/internal/runtime"
	"github.com/voxgate-labs/voxgate-core/internal/session"
)

var version = "0.1.0-dev"

// Exit codes. Scripts wrapping voxgated key off these: only a dispatched
// command exits zero.
const (
	exitDispatched  = 0
	exitConfigError = 1
	exitDenied      = 2
)

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "voxgate.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitConfigError)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Telemetry.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt := runtime.New(cfg, logger)
	result, err := rt.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("aborted before completion")
		} else {
			logger.Error("runtime exited with error", slog.String("error", err.Error()))
		}
		os.Exit(exitConfigError)
	}

	switch result.State {
	case session.StateDispatched:
		logger.Info("session dispatched", slog.String("intent", string(result.Intent)))
		os.Exit(exitDispatched)
	case session.StateDenied:
		logger.Info("session denied", slog.String("reason", string(result.Denial)))
		os.Exit(exitDenied)
	default:
		logger.Error("session ended in unexpected state", slog.String("state", string(result.State)))
		os.Exit(exitConfigError)
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
