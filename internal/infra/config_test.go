package infra

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("PORT", "")
	t.Setenv("POLL_INTERVAL_MS", "")
	t.Setenv("VEO_MIN_DURATION_SECONDS", "")
	t.Setenv("VEO_MAX_DURATION_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.PollInterval.Milliseconds() != 10000 {
		t.Fatalf("PollInterval = %v, want 10s", cfg.PollInterval)
	}
	if cfg.MinDurationSeconds != 4 || cfg.MaxDurationSeconds != 8 {
		t.Fatalf("duration bounds = %d..%d, want 4..8", cfg.MinDurationSeconds, cfg.MaxDurationSeconds)
	}
	if cfg.VeoModel == "" {
		t.Fatalf("VeoModel should have a default")
	}
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for missing GEMINI_API_KEY")
	}
}

func TestLoadConfigRejectsInvertedBounds(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("VEO_MIN_DURATION_SECONDS", "9")
	t.Setenv("VEO_MAX_DURATION_SECONDS", "4")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for inverted duration bounds")
	}
}

func TestLoadConfigParsesCORSOrigins(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, http://localhost:5173 ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"https://app.example.com", "http://localhost:5173"}
	if len(cfg.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %#v, want %#v", cfg.CORSOrigins, want)
	}
	for i := range want {
		if cfg.CORSOrigins[i] != want[i] {
			t.Fatalf("CORSOrigins[%d] = %q, want %q", i, cfg.CORSOrigins[i], want[i])
		}
	}
}
