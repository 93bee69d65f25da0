package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestExpandEnvUsesDefaultWhenUnset(t *testing.T) {
	got := expandEnv("host: ${LIBRARY_QA_TEST_UNSET:localhost}")
	if got != "host: localhost" {
		t.Fatalf("expected default substitution, got %q", got)
	}
}

func TestExpandEnvPrefersEnvironment(t *testing.T) {
	t.Setenv("LIBRARY_QA_TEST_HOST", "milvus.internal")
	got := expandEnv("host: ${LIBRARY_QA_TEST_HOST:localhost}")
	if got != "host: milvus.internal" {
		t.Fatalf("expected env substitution, got %q", got)
	}
}

func TestExpandEnvKeepsUnknownWithoutDefault(t *testing.T) {
	got := expandEnv("key: ${LIBRARY_QA_TEST_MISSING}")
	if got != "key: ${LIBRARY_QA_TEST_MISSING}" {
		t.Fatalf("placeholder without default must stay intact, got %q", got)
	}
}

func TestDefaultsCoverProviderTuning(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal defaults: %v", err)
	}

	if cfg.Retrieval.GenerateTimeout != 60*time.Second {
		t.Errorf("retrieval.generate_timeout = %v, want 60s", cfg.Retrieval.GenerateTimeout)
	}
	if cfg.Retry.Attempts != 3 {
		t.Errorf("retry.attempts = %d, want 3", cfg.Retry.Attempts)
	}
	if cfg.Retry.InitialInterval != 500*time.Millisecond {
		t.Errorf("retry.initial_interval = %v, want 500ms", cfg.Retry.InitialInterval)
	}
	if cfg.Retry.MaxInterval != 5*time.Second {
		t.Errorf("retry.max_interval = %v, want 5s", cfg.Retry.MaxInterval)
	}
}
