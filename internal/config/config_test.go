package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StateSyncDelay != 250*time.Millisecond {
		t.Errorf("StateSyncDelay = %v, want 250ms", cfg.StateSyncDelay)
	}
	if cfg.ActivitySyncDelay != 10*time.Second {
		t.Errorf("ActivitySyncDelay = %v, want 10s", cfg.ActivitySyncDelay)
	}
	if cfg.SearchSyncDelay != 5*time.Second {
		t.Errorf("SearchSyncDelay = %v, want 5s", cfg.SearchSyncDelay)
	}
	if cfg.LegacyActions {
		t.Error("LegacyActions defaults to true, want false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STATE_SYNC_DELAY", "300ms")
	t.Setenv("ACTIVITY_LEGACY_ACTIONS", "true")
	t.Setenv("API_BASE_URL", "http://localhost:9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StateSyncDelay != 300*time.Millisecond {
		t.Errorf("StateSyncDelay = %v, want 300ms", cfg.StateSyncDelay)
	}
	if !cfg.LegacyActions {
		t.Error("LegacyActions = false, want true")
	}
	if cfg.APIBaseURL != "http://localhost:9000" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("Load() with invalid HTTP_TIMEOUT succeeded, want error")
	}
}
