package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "woodheaven_farms/internal/adapters/http_server"
	"woodheaven_farms/internal/adapters/observability"
	"woodheaven_farms/internal/app"
	"woodheaven_farms/internal/platform"
	"woodheaven_farms/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := platform.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("backend setup failed")
	}
	defer backend.Close()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// deps
	site := app.NewSiteService(backend.Records, backend.Objects, backend.Cache, cfg.CacheTTL)
	uploads := app.NewUploadQueue(backend.Records, backend.Objects, backend.Cache, app.UploadQueueConfig{
		Concurrency: cfg.UploadConcurrency,
		MaxBytes:    cfg.UploadMaxBytes,
		Retention:   cfg.UploadBatchRetention,
	})

	// http
	srv := server.New(cfg.CORSOrigins)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	if backend.Files != nil {
		prefix := strings.TrimRight(cfg.UploadPublicURLPrefix, "/")
		srv.Mount(prefix+"/*", http.StripPrefix(prefix, backend.Files))
	}
	srv.MountHandlers(&server.Handlers{
		Site:           site,
		Content:        app.NewContentService(backend.Records, backend.Cache, cfg.CacheTTL),
		Enquiries:      app.NewEnquiryService(backend.Records, site, backend.Notifier),
		Gallery:        app.NewGalleryService(backend.Records, backend.Objects, backend.Cache, cfg.CacheTTL),
		Uploads:        uploads,
		Auth:           app.NewAuthService(backend.Auth, backend.Records),
		MaxUploadBytes: cfg.UploadMaxBytes,
		CookieSecure:   cfg.CookieSecure,
		EnquiryLimiter: server.NewIPLimiter(cfg.EnquiryRatePerMin),
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("backend", string(cfg.Backend)).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := uploads.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("upload queue did not drain")
	}
}
