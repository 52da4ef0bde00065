package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	apiimpl "github.com/foxseedlab/kikitorin/external/api"
	audioimpl "github.com/foxseedlab/kikitorin/external/audio"
	configloader "github.com/foxseedlab/kikitorin/external/config"
	microphoneimpl "github.com/foxseedlab/kikitorin/external/microphone"
	repositoryimpl "github.com/foxseedlab/kikitorin/external/repository"
	transcriberimpl "github.com/foxseedlab/kikitorin/external/transcriber"
	webhookimpl "github.com/foxseedlab/kikitorin/external/webhook"
	"github.com/foxseedlab/kikitorin/internal/config"
	"github.com/foxseedlab/kikitorin/internal/controller"
	"github.com/samber/do/v2"
)

const (
	warmupTimeout   = 20 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "mic_source", cfg.MicSource)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching voice session backend")
	run(injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, controller.Handler(controller.Callbacks{
		Result: func(text string) {
			slog.Info("transcript ready", "text", text)
		},
		Error: func(err error) {
			slog.Error("voice session error", "error", err, "recoverable", controller.IsRecoverable(err))
		},
	}))
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	microphoneimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	controller.RegisterDI(injector)
	apiimpl.RegisterDI(injector)

	return injector
}

func run(injector do.Injector) {
	ctrl, err := do.Invoke[*controller.Controller](injector)
	if err != nil {
		slog.Error("failed to resolve session controller", "error", err)
		os.Exit(1)
	}
	server, err := do.Invoke[*apiimpl.Server](injector)
	if err != nil {
		slog.Error("failed to resolve control api", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
	defer cancel()

	slog.Info("startup: warming up transcription service")
	if err := ctrl.Initialize(ctx); err != nil {
		slog.Error("voice session initialization failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			slog.Error("controller close failed", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		if err := server.Run(); err != nil {
			slog.Error("control api failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("control api shutdown failed", "error", err)
	}
}
