package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	for _, key := range []string{"SO_URL", "SO_TOKEN", "SO_KEY", "HTTP_TIMEOUT", "LOG_LEVEL", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}

	cfg := NewConfig()

	assert.Equal(t, "", cfg.Instance.URL)
	assert.Equal(t, 60*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, float64(0), cfg.HTTP.RequestsPerSecond)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "", cfg.Audit.DatabasePath)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
}

func TestNewConfig_FromEnvironment(t *testing.T) {
	t.Setenv("SO_URL", "https://support.example.com")
	t.Setenv("SO_TOKEN", "token-123")
	t.Setenv("SO_KEY", "key-456")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("REQUESTS_PER_SECOND", "2.5")
	t.Setenv("AUDIT_DB_PATH", "/tmp/ledger.db")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

	cfg := NewConfig()

	assert.Equal(t, "https://support.example.com", cfg.Instance.URL)
	assert.Equal(t, "token-123", cfg.Instance.Token)
	assert.Equal(t, "key-456", cfg.Instance.Key)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 2.5, cfg.HTTP.RequestsPerSecond)
	assert.Equal(t, "/tmp/ledger.db", cfg.Audit.DatabasePath)
	assert.True(t, cfg.Tracing.Enabled, "an OTLP endpoint enables tracing")
	assert.Equal(t, "localhost:4318", cfg.Tracing.OTLPEndpoint)
}

func TestNewConfig_InvalidTimeoutFallsBack(t *testing.T) {
	for _, value := range []string{"soon", "0s", "-5s"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("HTTP_TIMEOUT", value)
			assert.Equal(t, DefaultHTTPTimeout, NewConfig().HTTP.Timeout)
		})
	}
}
