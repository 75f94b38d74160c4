package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBackendURL   = "http://localhost:8080"
	defaultPollInterval = 3 * time.Second
	defaultChunkBytes   = 4096

	paramBackendURL = "backend_url"
	paramMicSource  = "mic_source"
)

// Config is the client configuration. It is read once, in cmd.
type Config struct {
	BackendURL     string
	UploadPath     string
	StatusPath     string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	MicSource      string
	MicChunkBytes  int
	PreviewDir     string
	LogLevel       string
	LogFormat      string
	ParamPrefix    string
}

// ParamGetter resolves named parameters, e.g. from SSM.
type ParamGetter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		BackendURL:     EnvOrDefault("BACKEND_URL", defaultBackendURL),
		UploadPath:     os.Getenv("UPLOAD_PATH"),
		StatusPath:     os.Getenv("STATUS_PATH"),
		PollInterval:   EnvDuration("POLL_INTERVAL", defaultPollInterval),
		RequestTimeout: EnvDuration("REQUEST_TIMEOUT", 0),
		MicSource:      os.Getenv("MIC_SOURCE"),
		MicChunkBytes:  EnvInt("MIC_CHUNK_BYTES", defaultChunkBytes),
		PreviewDir:     os.Getenv("PREVIEW_DIR"),
		LogLevel:       EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      EnvOrDefault("LOG_FORMAT", "text"),
		ParamPrefix:    strings.TrimRight(strings.TrimSpace(os.Getenv("PARAM_PREFIX")), "/"),
	}
}

// ApplyParams overrides the backend URL and microphone source with values
// stored under ParamPrefix. It is a no-op without a prefix.
func (c *Config) ApplyParams(ctx context.Context, g ParamGetter) error {
	if c.ParamPrefix == "" {
		return nil
	}
	if g == nil {
		return errors.New("config: param getter must not be nil")
	}
	backendName := c.ParamPrefix + "/" + paramBackendURL
	micName := c.ParamPrefix + "/" + paramMicSource

	vals, err := g.GetParameters(ctx, backendName, micName)
	if err != nil {
		return fmt.Errorf("config: load parameters: %w", err)
	}
	if v := strings.TrimSpace(vals[backendName]); v != "" {
		c.BackendURL = v
	}
	if v := strings.TrimSpace(vals[micName]); v != "" {
		c.MicSource = v
	}
	return nil
}

// EnvOrDefault returns the trimmed value of key, or fallback when unset.
func EnvOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// EnvInt returns key as a positive int, or def.
func EnvInt(key string, def int) int {
	return int(EnvInt64(key, int64(def)))
}

// EnvInt64 returns key as a positive int64, or def.
func EnvInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// EnvDuration accepts Go durations ("3s") or whole seconds ("3").
func EnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
