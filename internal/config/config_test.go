package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("NIDAAN_CHANNEL__VERIFY_TOKEN", "vt")
	t.Setenv("NIDAAN_CHANNEL__ACCESS_TOKEN", "at")
	t.Setenv("NIDAAN_CHANNEL__PHONE_NUMBER_ID", "123")
	t.Setenv("NIDAAN_SPEECH__API_KEY", "sk")
	t.Setenv("NIDAAN_REASONING__API_KEY", "rk")
}

func TestLoadDefaults(t *testing.T) {
	validEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Reasoning.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.Reasoning.Provider)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Pipeline.FallbackLanguage != "hi-IN" {
		t.Errorf("fallback = %q", cfg.Pipeline.FallbackLanguage)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	validEnv(t)
	t.Setenv("NIDAAN_SERVER__PORT", "9090")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 3000\nspeech:\n  tts_voice: meera\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, env should win", cfg.Server.Port)
	}
	if cfg.Speech.TTSVoice != "meera" {
		t.Errorf("voice = %q, file value should survive", cfg.Speech.TTSVoice)
	}
}

func TestValidateMissingFields(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("want validation error with no credentials set")
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	validEnv(t)
	t.Setenv("NIDAAN_REASONING__PROVIDER", "mistral")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("want error for unknown provider")
	}
}

func TestValidateRedisNeedsAddr(t *testing.T) {
	validEnv(t)
	t.Setenv("NIDAAN_STORAGE__DRIVER", "redis")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("want error when redis driver has no address")
	}
}
