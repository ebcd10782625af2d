package app

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr :8080, got %s", cfg.ListenAddr)
	}
	if cfg.RetryMaxAttempts != 3 || cfg.RetryDelayMs != 1000 {
		t.Fatalf("unexpected retry defaults: %+v", cfg)
	}
	if cfg.LogRetentionDays != 30 || cfg.LogCleanupHour != 3 {
		t.Fatalf("unexpected log retention defaults: %+v", cfg)
	}
}

func TestLoadConfigOverridesFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_ADDR", ":9090")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("LOG_CLEANUP_HOUR", "14")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("expected overridden listen addr, got %s", cfg.ListenAddr)
	}
	if cfg.RetryMaxAttempts != 5 {
		t.Fatalf("expected overridden retry attempts, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.LogCleanupHour != 14 {
		t.Fatalf("expected overridden cleanup hour, got %d", cfg.LogCleanupHour)
	}
}

func TestValidateRejectsInvalidLogCleanupHour(t *testing.T) {
	cfg := Config{HTTPTimeoutSecs: 60, RetryMaxAttempts: 3, RetryDelayMs: 1000, LogRetentionDays: 30, LogCleanupHour: 24, CircuitFailThreshold: 3, CircuitResetAfterSecs: 30}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range LOG_CLEANUP_HOUR")
	}
}

func TestValidateRejectsNonPositiveRetryAttempts(t *testing.T) {
	cfg := Config{HTTPTimeoutSecs: 60, RetryMaxAttempts: 0, RetryDelayMs: 1000, LogRetentionDays: 30, LogCleanupHour: 3, CircuitFailThreshold: 3, CircuitResetAfterSecs: 30}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive RETRY_MAX_ATTEMPTS")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := Config{HTTPTimeoutSecs: 60, RetryMaxAttempts: 3, RetryDelayMs: 1000, LogRetentionDays: 30, LogCleanupHour: 3, CircuitFailThreshold: 3, CircuitResetAfterSecs: 30}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
