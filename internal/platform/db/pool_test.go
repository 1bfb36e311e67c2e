package db

import "testing"

func TestPoolConfig_AppliesCeilings(t *testing.T) {
	cfg, err := poolConfig("postgres://localhost:5432/prw_warehouse", 20, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxConns != 20 {
		t.Errorf("expected max conns 20, got %d", cfg.MaxConns)
	}
	if cfg.MinConns != 4 {
		t.Errorf("expected min conns 4, got %d", cfg.MinConns)
	}
}

func TestPoolConfig_DefaultsNonPositiveCeilings(t *testing.T) {
	cfg, err := poolConfig("postgres://localhost:5432/prw_warehouse", 0, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxConns != defaultMaxConns {
		t.Errorf("expected max conns %d, got %d", defaultMaxConns, cfg.MaxConns)
	}
	if cfg.MinConns != defaultMinConns {
		t.Errorf("expected min conns %d, got %d", defaultMinConns, cfg.MinConns)
	}
}

func TestPoolConfig_ClampsMinToMax(t *testing.T) {
	cfg, err := poolConfig("postgres://localhost:5432/prw_warehouse", 2, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MinConns != cfg.MaxConns {
		t.Errorf("expected min clamped to max %d, got %d", cfg.MaxConns, cfg.MinConns)
	}
}

func TestPoolConfig_RejectsBadURL(t *testing.T) {
	if _, err := poolConfig("://not-a-url", 0, 0); err == nil {
		t.Fatal("expected error for malformed database url")
	}
}
