package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VOX_ADDR", "VOX_PUBLIC_HOST", "VOX_SILENCE_TIMEOUT", "VOX_MIN_SILENCE",
		"VOX_MAX_UTTERANCE", "VOX_SPEECH_THRESHOLD", "VOX_GREETING",
		"VOX_GEMINI_MODEL", "VOX_WS_MAX_MESSAGE_BYTES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.SilenceTimeout != 8*time.Second {
		t.Errorf("SilenceTimeout = %v", cfg.SilenceTimeout)
	}
	if cfg.MinSilence != 600*time.Millisecond {
		t.Errorf("MinSilence = %v", cfg.MinSilence)
	}
	if cfg.SpeechThreshold != 0.02 {
		t.Errorf("SpeechThreshold = %v", cfg.SpeechThreshold)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("GeminiModel = %q", cfg.GeminiModel)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOX_ADDR", ":9999")
	t.Setenv("VOX_SILENCE_TIMEOUT", "12s")
	t.Setenv("VOX_MIN_SILENCE", "450") // bare integers are milliseconds
	t.Setenv("VOX_SPEECH_THRESHOLD", "0.05")
	t.Setenv("VOX_GREETING", "Thanks for calling.")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.SilenceTimeout != 12*time.Second {
		t.Errorf("SilenceTimeout = %v", cfg.SilenceTimeout)
	}
	if cfg.MinSilence != 450*time.Millisecond {
		t.Errorf("MinSilence = %v", cfg.MinSilence)
	}
	if cfg.SpeechThreshold != 0.05 {
		t.Errorf("SpeechThreshold = %v", cfg.SpeechThreshold)
	}
	if cfg.Greeting != "Thanks for calling." {
		t.Errorf("Greeting = %q", cfg.Greeting)
	}
}

func TestLoadFromEnvRejectsBadThreshold(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOX_SPEECH_THRESHOLD", "1.5")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for out-of-range threshold")
	}
}

func TestLoadFromEnvRejectsUtteranceShorterThanSilence(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOX_MAX_UTTERANCE", "500ms")
	t.Setenv("VOX_MIN_SILENCE", "600ms")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error when max utterance <= min silence")
	}
}
