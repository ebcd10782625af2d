// Package app wires the core components (catalog, selector, strategies,
// translator, retry engine, upstream client, log sink, scheduler) plus the
// ambient stack (vault, health tracker, circuit breaker, event bus, tracing,
// metrics) into a runnable server.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the env-var driven configuration for protogate, GATEWAY_-prefixed.
// Every field has a safe default so the gateway can start standalone from an
// empty environment.
type Config struct {
	ListenAddr  string
	LogLevel    string
	CORSOrigins []string // GATEWAY_CORS_ORIGINS: comma-separated, defaults to "*"

	BootstrapFile string // GATEWAY_BOOTSTRAP_FILE: JSON seed of providers/mappings/bindings

	LogSinkDSN        string // GATEWAY_LOG_SINK_DSN, sqlite DSN for the log sink
	LogRetentionDays  int
	LogCleanupHour    int // 0-23

	HTTPTimeoutSecs int
	RetryMaxAttempts int
	RetryDelayMs     int

	VaultEnabled  bool
	VaultPassword string

	CircuitFailThreshold int
	CircuitResetAfterSecs int

	OTelEnabled     bool
	OTelEndpoint    string
	OTelServiceName string

	TemporalEnabled   bool
	TemporalHostPort  string
	TemporalNamespace string
	TemporalTaskQueue string

	EventsEndpointEnabled bool // GATEWAY_EVENTS_ENABLED: mount /v1/events

	ShutdownDrainSecs int
}

// LoadConfig reads Config from the environment and validates it.
func LoadConfig() (Config, error) {
	cfg := Config{
		ListenAddr:  getEnv("GATEWAY_ADDR", ":8080"),
		LogLevel:    getEnv("GATEWAY_LOG_LEVEL", "info"),
		CORSOrigins: getEnvList("GATEWAY_CORS_ORIGINS", []string{"*"}),

		BootstrapFile: getEnv("GATEWAY_BOOTSTRAP_FILE", ""),

		LogSinkDSN:       getEnv("GATEWAY_LOG_SINK_DSN", defaultLogSinkDSN()),
		LogRetentionDays: getEnvInt("LOG_RETENTION_DAYS", 30),
		LogCleanupHour:   getEnvInt("LOG_CLEANUP_HOUR", 3),

		HTTPTimeoutSecs:  getEnvInt("HTTP_TIMEOUT", 60),
		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryDelayMs:     getEnvInt("RETRY_DELAY_MS", 1000),

		VaultEnabled:  getEnvBool("GATEWAY_VAULT_ENABLED", true),
		VaultPassword: getEnv("GATEWAY_VAULT_PASSWORD", ""),

		CircuitFailThreshold:  getEnvInt("GATEWAY_CIRCUIT_FAIL_THRESHOLD", 3),
		CircuitResetAfterSecs: getEnvInt("GATEWAY_CIRCUIT_RESET_AFTER", 30),

		OTelEnabled:     getEnvBool("GATEWAY_OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("GATEWAY_OTEL_ENDPOINT", "localhost:4318"),
		OTelServiceName: getEnv("GATEWAY_OTEL_SERVICE_NAME", "protogate"),

		TemporalEnabled:   getEnvBool("GATEWAY_TEMPORAL_ENABLED", false),
		TemporalHostPort:  getEnv("GATEWAY_TEMPORAL_HOST_PORT", "localhost:7233"),
		TemporalNamespace: getEnv("GATEWAY_TEMPORAL_NAMESPACE", "protogate"),
		TemporalTaskQueue: getEnv("GATEWAY_TEMPORAL_TASK_QUEUE", "protogate-tasks"),

		EventsEndpointEnabled: getEnvBool("GATEWAY_EVENTS_ENABLED", false),

		ShutdownDrainSecs: getEnvInt("GATEWAY_SHUTDOWN_DRAIN_SECS", 30),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects non-positive timeouts/retry counts and an out-of-range
// LOG_CLEANUP_HOUR.
func (c Config) Validate() error {
	if c.HTTPTimeoutSecs <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be > 0, got %d", c.HTTPTimeoutSecs)
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be > 0, got %d", c.RetryMaxAttempts)
	}
	if c.RetryDelayMs <= 0 {
		return fmt.Errorf("RETRY_DELAY_MS must be > 0, got %d", c.RetryDelayMs)
	}
	if c.LogRetentionDays <= 0 {
		return fmt.Errorf("LOG_RETENTION_DAYS must be > 0, got %d", c.LogRetentionDays)
	}
	if c.LogCleanupHour < 0 || c.LogCleanupHour > 23 {
		return fmt.Errorf("LOG_CLEANUP_HOUR must be 0-23, got %d", c.LogCleanupHour)
	}
	if c.CircuitFailThreshold <= 0 {
		return fmt.Errorf("GATEWAY_CIRCUIT_FAIL_THRESHOLD must be > 0, got %d", c.CircuitFailThreshold)
	}
	if c.CircuitResetAfterSecs <= 0 {
		return fmt.Errorf("GATEWAY_CIRCUIT_RESET_AFTER must be > 0, got %d", c.CircuitResetAfterSecs)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func defaultLogSinkDSN() string {
	if home, err := os.UserHomeDir(); err == nil {
		return "file:" + filepath.Join(home, ".protogate", "logs.sqlite")
	}
	return "file::memory:"
}
