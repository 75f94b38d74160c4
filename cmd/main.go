package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"speech-to-tweet/internal/capture"
	"speech-to-tweet/internal/config"
	"speech-to-tweet/internal/console"
	"speech-to-tweet/internal/integrations/backend"
	"speech-to-tweet/internal/integrations/microphone"
	"speech-to-tweet/internal/integrations/paramstore"
	"speech-to-tweet/internal/submission"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "err", err)
		os.Exit(1)
	}
	cfg := config.FromEnv()

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if cfg.ParamPrefix != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			logger.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		if err := cfg.ApplyParams(ctx, ssmClient); err != nil {
			logger.Error("failed to load parameters", "err", err, "prefix", cfg.ParamPrefix)
			os.Exit(1)
		}
	}

	// ---- Clients ----
	backendOpts := []backend.Option{
		backend.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	}
	if cfg.UploadPath != "" {
		backendOpts = append(backendOpts, backend.WithUploadPath(cfg.UploadPath))
	}
	if cfg.StatusPath != "" {
		backendOpts = append(backendOpts, backend.WithStatusPath(cfg.StatusPath))
	}
	backendClient, err := backend.NewClient(cfg.BackendURL, backendOpts...)
	if err != nil {
		logger.Error("failed to create backend client", "err", err)
		os.Exit(1)
	}

	mic, err := microphone.New(cfg.MicSource, cfg.MicChunkBytes)
	if err != nil {
		logger.Error("failed to create microphone source", "err", err, "source", cfg.MicSource)
		os.Exit(1)
	}

	// ---- Controllers ----
	display := console.NewDisplay(os.Stdout, cfg.PreviewDir, true, logger)

	recorder, err := capture.NewController(mic, display, capture.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create capture controller", "err", err)
		os.Exit(1)
	}
	submitter, err := submission.NewController(backendClient, display,
		submission.WithPollInterval(cfg.PollInterval),
		submission.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create submission controller", "err", err)
		os.Exit(1)
	}

	session, err := console.NewSession(recorder, submitter, display, os.Stdin, console.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create session", "err", err)
		os.Exit(1)
	}

	logger.Info("session started", "backend", cfg.BackendURL, "recording", !recorder.Disabled())
	if err := session.Run(ctx); err != nil {
		logger.Error("session ended with error", "err", err)
		os.Exit(1)
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
