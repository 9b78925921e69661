package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"woodheaven_farms/internal/adapters/observability"
	"woodheaven_farms/internal/shared"
)

func main() {
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&App{cfg: cfg}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
