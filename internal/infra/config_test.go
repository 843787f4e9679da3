package infra

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresGeminiAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "  ")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig should fail without GEMINI_API_KEY")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("PORT", "")
	t.Setenv("MAX_UPLOAD_MB", "")
	t.Setenv("TOAST_DISMISS_SECONDS", "")
	t.Setenv("SESSION_TTL_MINUTES", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.GeminiModel != "gemini-2.5-flash-image" {
		t.Fatalf("GeminiModel mismatch: got %q want %q", cfg.GeminiModel, "gemini-2.5-flash-image")
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.MaxUploadBytes != 20<<20 {
		t.Fatalf("MaxUploadBytes mismatch: got %d want %d", cfg.MaxUploadBytes, 20<<20)
	}
	if cfg.NoticeDismiss != 5*time.Second {
		t.Fatalf("NoticeDismiss mismatch: got %s want 5s", cfg.NoticeDismiss)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("SessionTTL mismatch: got %s want 1h", cfg.SessionTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("CORSAllowedOrigins mismatch: %#v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_MODEL", "gemini-custom")
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://app.example.com , ,http://localhost:5173")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.GeminiModel != "gemini-custom" {
		t.Fatalf("GeminiModel mismatch: got %q", cfg.GeminiModel)
	}
	if cfg.MaxUploadBytes != 5<<20 {
		t.Fatalf("MaxUploadBytes mismatch: got %d", cfg.MaxUploadBytes)
	}
	if cfg.RateLimitPerMin != 30 {
		t.Fatalf("RateLimitPerMin should fall back on bad input: got %d", cfg.RateLimitPerMin)
	}
	expected := []string{"https://app.example.com", "http://localhost:5173"}
	if len(cfg.CORSAllowedOrigins) != len(expected) {
		t.Fatalf("CORSAllowedOrigins mismatch: got %#v want %#v", cfg.CORSAllowedOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSAllowedOrigins[i] != origin {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], origin)
		}
	}
}

func TestLoadConfigRejectsNonPositiveUpload(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("MAX_UPLOAD_MB", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig should reject MAX_UPLOAD_MB=0")
	}
}
