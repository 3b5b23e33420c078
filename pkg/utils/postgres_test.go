package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	cfg := PostgresPoolConfig{}.withDefaults()
	if cfg.MaxOpenConns != 25 {
		t.Fatalf("expected default max open conns 25, got %d", cfg.MaxOpenConns)
	}
	if cfg.PingTimeout != 5*time.Second {
		t.Fatalf("expected default ping timeout 5s, got %v", cfg.PingTimeout)
	}
}

func TestPostgresPoolConfig_KeepsExplicitValues(t *testing.T) {
	cfg := PostgresPoolConfig{MaxOpenConns: 5, ConnMaxLifetime: time.Minute}.withDefaults()
	if cfg.MaxOpenConns != 5 {
		t.Fatalf("expected explicit max open conns kept, got %d", cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime != time.Minute {
		t.Fatalf("expected explicit lifetime kept, got %v", cfg.ConnMaxLifetime)
	}
}
