package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the gateway's environment-driven configuration.
type Config struct {
	Addr string

	// PublicHost is the externally reachable host (no scheme) used to build
	// the media-stream WebSocket URL handed to the telephony provider.
	PublicHost string

	// Telephony provider credentials.
	TwilioAccountSID string
	TwilioAuthToken  string

	// Speech engine.
	CartesiaAPIKey string
	CartesiaVoice  string

	// Reasoning service.
	GeminiAPIKey string
	GeminiModel  string

	// Persistence. Empty disables transcript storage.
	DatabaseURL string

	// Conversation behavior.
	Greeting          string
	FallbackUtterance string
	SilenceTimeout    time.Duration
	MinSilence        time.Duration
	MaxUtterance      time.Duration
	SpeechThreshold   float64
	TranscribeTimeout time.Duration
	ReasonTimeout     time.Duration
	SpeakTimeout      time.Duration

	// Media-stream WebSocket limits.
	WSWriteTimeout    time.Duration
	WSMaxMessageBytes int64

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	MetricsNamespace string
}

// LoadFromEnv reads configuration from VOX_* environment variables.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("VOX_ADDR", ":8080"),
		PublicHost:          os.Getenv("VOX_PUBLIC_HOST"),
		TwilioAccountSID:    os.Getenv("VOX_TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:     os.Getenv("VOX_TWILIO_AUTH_TOKEN"),
		CartesiaAPIKey:      os.Getenv("VOX_CARTESIA_API_KEY"),
		CartesiaVoice:       os.Getenv("VOX_CARTESIA_VOICE"),
		GeminiAPIKey:        os.Getenv("VOX_GEMINI_API_KEY"),
		GeminiModel:         envOr("VOX_GEMINI_MODEL", "gemini-2.0-flash"),
		DatabaseURL:         os.Getenv("VOX_DATABASE_URL"),
		Greeting:            envOr("VOX_GREETING", "Hello! How can I help you today?"),
		FallbackUtterance:   envOr("VOX_FALLBACK_UTTERANCE", "I'm sorry, I'm having trouble right now. Could you say that again?"),
		SilenceTimeout:      envDurationOr("VOX_SILENCE_TIMEOUT", 8*time.Second),
		MinSilence:          envDurationOr("VOX_MIN_SILENCE", 600*time.Millisecond),
		MaxUtterance:        envDurationOr("VOX_MAX_UTTERANCE", 30*time.Second),
		SpeechThreshold:     envFloat64Or("VOX_SPEECH_THRESHOLD", 0.02),
		TranscribeTimeout:   envDurationOr("VOX_TRANSCRIBE_TIMEOUT", 10*time.Second),
		ReasonTimeout:       envDurationOr("VOX_REASON_TIMEOUT", 20*time.Second),
		SpeakTimeout:        envDurationOr("VOX_SPEAK_TIMEOUT", 30*time.Second),
		WSWriteTimeout:      envDurationOr("VOX_WS_WRITE_TIMEOUT", 5*time.Second),
		WSMaxMessageBytes:   envInt64Or("VOX_WS_MAX_MESSAGE_BYTES", 64*1024),
		ReadHeaderTimeout:   envDurationOr("VOX_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("VOX_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		MetricsNamespace:    envOr("VOX_METRICS_NAMESPACE", "voxbridge"),
	}

	if cfg.SilenceTimeout <= 0 {
		return Config{}, fmt.Errorf("VOX_SILENCE_TIMEOUT must be > 0")
	}
	if cfg.MinSilence <= 0 {
		return Config{}, fmt.Errorf("VOX_MIN_SILENCE must be > 0")
	}
	if cfg.MaxUtterance <= cfg.MinSilence {
		return Config{}, fmt.Errorf("VOX_MAX_UTTERANCE must be > VOX_MIN_SILENCE")
	}
	if cfg.SpeechThreshold <= 0 || cfg.SpeechThreshold >= 1 {
		return Config{}, fmt.Errorf("VOX_SPEECH_THRESHOLD must be in (0, 1)")
	}
	if cfg.WSMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("VOX_WS_MAX_MESSAGE_BYTES must be > 0")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat64Or(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	// Accept plain millisecond integers as well as Go duration strings.
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
