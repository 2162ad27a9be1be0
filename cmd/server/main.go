package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-results/internal/app"
	"github.com/stemsi/exstem-results/internal/clock"
	"github.com/stemsi/exstem-results/internal/config"
	"github.com/stemsi/exstem-results/internal/handler"
	"github.com/stemsi/exstem-results/internal/logger"
	"github.com/stemsi/exstem-results/internal/metrics"
	"github.com/stemsi/exstem-results/internal/middleware"
	"github.com/stemsi/exstem-results/internal/router"
	"github.com/stemsi/exstem-results/internal/validator"
	"github.com/stemsi/exstem-results/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Results")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect & Wire Services ───────────────────────────────────────
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Result:        handler.NewResultHandler(a.Release, a.Queue, log),
		Evaluation:    handler.NewEvaluationHandler(a.Evaluation, log),
		StudentResult: handler.NewStudentResultHandler(a.Release, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	evalWorker := worker.NewEvaluationWorker(a.RDB, a.Evaluation, a.Release, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		evalWorker.Start(workerCtx)
	}()

	if cfg.AutoReleaseInterval > 0 {
		sweeper := worker.NewReleaseSweeper(a.Exams, a.Release, clock.System{}, cfg.AutoReleaseInterval, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			sweeper.Start(workerCtx)
		}()
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(middleware.NewTokenVerifier(cfg.JWTSecret), handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the evaluation batch to flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
