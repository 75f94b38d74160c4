package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"speech-to-tweet/internal/config"
	"speech-to-tweet/internal/devserver"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(); err != nil {
		logger.Error("failed to load .env", "err", err)
		os.Exit(1)
	}

	addr := config.EnvOrDefault("APP_ADDR", ":8080")
	maxUploadBytes := config.EnvInt64("MAX_UPLOAD_BYTES", 25*1024*1024)
	delay := config.EnvDuration("PROCESS_DELAY", 2*time.Second)

	opts := []devserver.Option{
		devserver.WithMaxUploadBytes(maxUploadBytes),
		devserver.WithDelay(delay),
	}
	if msg := os.Getenv("FAIL_MESSAGE"); msg != "" {
		opts = append(opts, devserver.WithProcessor(devserver.FailingProcessor{Message: msg}))
	}
	app := devserver.New(logger, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.StartCleanupLoop(ctx, 10*time.Minute, time.Hour)

	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("devserver started", "addr", addr, "delay", delay.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		_ = srv.Close()
	}
	app.Close()
	logger.Info("devserver stopped")
}
