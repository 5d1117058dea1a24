package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		Instance
		HTTP
		Log
		Audit
		Metrics
		Tracing
	}

	// Instance identifies the target site and its credentials.
	Instance struct {
		URL   string
		Token string
		Key   string // Enterprise only

		// TeamsAPIHost overrides the API host for Teams sites.
		TeamsAPIHost string
	}
	HTTP struct {
		Timeout           time.Duration
		RequestsPerSecond float64 // 0 = unlimited
	}
	Log struct {
		Level string
	}
	Audit struct {
		DatabasePath string // empty disables the import ledger
	}
	Metrics struct {
		File string // empty disables the textfile export
	}
	Tracing struct {
		Enabled      bool
		OTLPEndpoint string
		SampleRate   float64
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("so_url", "")
	v.SetDefault("so_token", "")
	v.SetDefault("so_key", "")
	v.SetDefault("so_teams_api_host", "")
	v.SetDefault("http_timeout", DefaultHTTPTimeout.String())
	v.SetDefault("requests_per_second", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("audit_db_path", "")
	v.SetDefault("metrics_file", "")

	// Tracing defaults
	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("otel_sample_rate", 1.0)

	timeout := v.GetDuration("HTTP_TIMEOUT")
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	return &Config{
		Instance: Instance{
			URL:          v.GetString("SO_URL"),
			Token:        v.GetString("SO_TOKEN"),
			Key:          v.GetString("SO_KEY"),
			TeamsAPIHost: v.GetString("SO_TEAMS_API_HOST"),
		},
		HTTP: HTTP{
			Timeout:           timeout,
			RequestsPerSecond: v.GetFloat64("REQUESTS_PER_SECOND"),
		},
		Log: Log{
			Level: v.GetString("LOG_LEVEL"),
		},
		Audit: Audit{
			DatabasePath: v.GetString("AUDIT_DB_PATH"),
		},
		Metrics: Metrics{
			File: v.GetString("METRICS_FILE"),
		},
		Tracing: Tracing{
			// An endpoint on its own is enough to turn tracing on.
			Enabled:      v.GetBool("OTEL_ENABLED") || v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT") != "",
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			SampleRate:   v.GetFloat64("OTEL_SAMPLE_RATE"),
		},
	}
}
