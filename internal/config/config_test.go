package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"BACKEND_URL", "UPLOAD_PATH", "STATUS_PATH", "POLL_INTERVAL", "REQUEST_TIMEOUT",
	"MIC_SOURCE", "MIC_CHUNK_BYTES", "PREVIEW_DIR", "LOG_LEVEL", "LOG_FORMAT", "PARAM_PREFIX",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

type fakeParams struct {
	vals  map[string]string
	err   error
	names []string
}

func (f *fakeParams) GetParameters(_ context.Context, names ...string) (map[string]string, error) {
	f.names = names
	return f.vals, f.err
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()
	require.Equal(t, defaultBackendURL, cfg.BackendURL)
	require.Equal(t, defaultPollInterval, cfg.PollInterval)
	require.Zero(t, cfg.RequestTimeout)
	require.Equal(t, defaultChunkBytes, cfg.MicChunkBytes)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
	require.Empty(t, cfg.MicSource)
	require.Empty(t, cfg.ParamPrefix)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKEND_URL", "https://tweets.example.com")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("REQUEST_TIMEOUT", "30")
	t.Setenv("MIC_SOURCE", "ws://localhost:9000/mic")
	t.Setenv("MIC_CHUNK_BYTES", "not-a-number")
	t.Setenv("PARAM_PREFIX", "/speech-to-tweet/")

	cfg := FromEnv()
	require.Equal(t, "https://tweets.example.com", cfg.BackendURL)
	require.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, "ws://localhost:9000/mic", cfg.MicSource)
	require.Equal(t, defaultChunkBytes, cfg.MicChunkBytes)
	require.Equal(t, "/speech-to-tweet", cfg.ParamPrefix)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BACKEND_URL=http://from-dotenv:8080\nexport LOG_LEVEL=debug\n"), 0o600))
	require.NoError(t, os.Unsetenv("BACKEND_URL"))
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	cfg := FromEnv()
	require.Equal(t, "http://from-dotenv:8080", cfg.BackendURL)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestApplyParams(t *testing.T) {
	cfg := Config{BackendURL: defaultBackendURL, ParamPrefix: "/stt"}
	g := &fakeParams{vals: map[string]string{
		"/stt/backend_url": "https://api.example.com",
		"/stt/mic_source":  " ",
	}}

	require.NoError(t, cfg.ApplyParams(context.Background(), g))
	require.Equal(t, []string{"/stt/backend_url", "/stt/mic_source"}, g.names)
	require.Equal(t, "https://api.example.com", cfg.BackendURL)
	require.Empty(t, cfg.MicSource)
}

func TestApplyParams_NoPrefixIsNoop(t *testing.T) {
	cfg := Config{BackendURL: defaultBackendURL}
	require.NoError(t, cfg.ApplyParams(context.Background(), nil))
	require.Equal(t, defaultBackendURL, cfg.BackendURL)
}

func TestApplyParams_Errors(t *testing.T) {
	cfg := Config{ParamPrefix: "/stt"}
	require.Error(t, cfg.ApplyParams(context.Background(), nil))

	err := cfg.ApplyParams(context.Background(), &fakeParams{err: errors.New("ssm unavailable")})
	require.ErrorContains(t, err, "ssm unavailable")
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_ADDR", "  :9090 ")
	t.Setenv("TEST_BYTES", "1048576")
	t.Setenv("TEST_BAD_BYTES", "-4")
	t.Setenv("TEST_DELAY", "250ms")
	t.Setenv("TEST_DELAY_SECONDS", "2")
	t.Setenv("TEST_BAD_DELAY", "soon")

	require.Equal(t, ":9090", EnvOrDefault("TEST_ADDR", ":8080"))
	require.Equal(t, ":8080", EnvOrDefault("TEST_UNSET_ADDR", ":8080"))

	require.Equal(t, int64(1048576), EnvInt64("TEST_BYTES", 1))
	require.Equal(t, int64(7), EnvInt64("TEST_BAD_BYTES", 7))
	require.Equal(t, 1048576, EnvInt("TEST_BYTES", 1))

	require.Equal(t, 250*time.Millisecond, EnvDuration("TEST_DELAY", time.Second))
	require.Equal(t, 2*time.Second, EnvDuration("TEST_DELAY_SECONDS", time.Second))
	require.Equal(t, time.Second, EnvDuration("TEST_BAD_DELAY", time.Second))
}
