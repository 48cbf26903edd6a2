package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rehabsense/internal/detector"
	"rehabsense/internal/platform/config"
	"rehabsense/internal/platform/logger"
	"rehabsense/internal/platform/metrics"
	"rehabsense/internal/session"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8000")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	detectorKind := config.GetEnv("DETECTOR", "mock")
	minVisibility := config.GetEnvFloat("MIN_VISIBILITY", 0.5)
	stallFrames := config.GetEnvInt("STALL_FRAMES", 0)

	log := logger.New(logLevel, logFormat)

	det, err := detector.New(detectorKind)
	if err != nil {
		log.Error("invalid detector", "error", err)
		os.Exit(1)
	}

	cfg := session.DefaultConfig()
	cfg.Posture.MinVisibility = minVisibility
	cfg.StallFrames = stallFrames

	reg := session.NewRegistry()
	met := metrics.New()
	svc := session.NewService(reg, det, cfg, log, met)
	h := session.NewHandler(svc, log)
	ws := session.NewWSHandler(svc, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": "rehabsense-backend",
		})
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(svc.ActiveCount()) }).ServeHTTP(w, r)
	})
	r.Route("/api", func(r chi.Router) {
		h.Routes(r)
		r.Get("/ws/pose", ws.ServePose)
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"detector", detectorKind,
		"min_visibility", minVisibility,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
