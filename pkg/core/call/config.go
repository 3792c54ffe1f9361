package call

import "time"

// AudioConfig specifies audio format parameters for caller audio.
type AudioConfig struct {
	// SampleRate in Hz. Telephony audio is typically 8000 after decode.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: typically 16 for PCM.
	BitsPerSample int `json:"bits_per_sample"`
}

// DefaultAudioConfig returns the standard telephony audio configuration.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:    8000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (c AudioConfig) DurationMs(bytes int) int {
	if c.BytesPerSecond() == 0 {
		return 0
	}
	return (bytes * 1000) / c.BytesPerSecond()
}

// BytesForDurationMs returns the byte count for the given duration in milliseconds.
func (c AudioConfig) BytesForDurationMs(ms int) int {
	return (c.BytesPerSecond() * ms) / 1000
}

// Config holds per-session behavior configuration. The registry applies the
// same Config to every session it creates.
type Config struct {
	// Audio describes the inbound caller audio format.
	Audio AudioConfig

	// Greeting is the scripted opening utterance. Tenant-specific greetings
	// can override it via Registry deps; if both are empty the session skips
	// straight from Greeting to Listening.
	Greeting string

	// FallbackUtterance is spoken when the reasoning adapter fails, so the
	// caller is never left in silence.
	FallbackUtterance string

	// SilenceTimeout ends the call when no caller speech arrives while
	// listening.
	SilenceTimeout time.Duration

	// TranscribeTimeout bounds one speech-to-text call.
	TranscribeTimeout time.Duration

	// ReasonTimeout bounds one reply-generation call.
	ReasonTimeout time.Duration

	// SpeakTimeout bounds one synthesize-and-play cycle.
	SpeakTimeout time.Duration

	// SpeechStartThreshold is the RMS energy above which a frame counts as
	// caller speech. Range 0.0 to 1.0.
	SpeechStartThreshold float64

	// MinSilence is how long energy must stay below the threshold, after
	// speech has started, before an utterance boundary is declared.
	MinSilence time.Duration

	// MaxUtterance caps buffered audio; reaching it forces a boundary.
	MaxUtterance time.Duration

	// MailboxSize is the per-session event queue depth. Audio frames are
	// dropped when the mailbox is full; control events always block.
	MailboxSize int
}

// DefaultConfig returns a Config with sensible defaults. Silence and
// utterance limits are deployment-specific and should come from the
// environment in production.
func DefaultConfig() Config {
	return Config{
		Audio:                DefaultAudioConfig(),
		Greeting:             "Hello! How can I help you today?",
		FallbackUtterance:    "I'm sorry, I'm having trouble right now. Could you say that again?",
		SilenceTimeout:       8 * time.Second,
		TranscribeTimeout:    10 * time.Second,
		ReasonTimeout:        20 * time.Second,
		SpeakTimeout:         30 * time.Second,
		SpeechStartThreshold: 0.02,
		MinSilence:           600 * time.Millisecond,
		MaxUtterance:         30 * time.Second,
		MailboxSize:          256,
	}
}

// withDefaults fills zero-valued fields so a partially specified Config is
// still safe to run.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Audio.SampleRate == 0 {
		c.Audio = d.Audio
	}
	if c.FallbackUtterance == "" {
		c.FallbackUtterance = d.FallbackUtterance
	}
	if c.SilenceTimeout == 0 {
		c.SilenceTimeout = d.SilenceTimeout
	}
	if c.TranscribeTimeout == 0 {
		c.TranscribeTimeout = d.TranscribeTimeout
	}
	if c.ReasonTimeout == 0 {
		c.ReasonTimeout = d.ReasonTimeout
	}
	if c.SpeakTimeout == 0 {
		c.SpeakTimeout = d.SpeakTimeout
	}
	if c.SpeechStartThreshold == 0 {
		c.SpeechStartThreshold = d.SpeechStartThreshold
	}
	if c.MinSilence == 0 {
		c.MinSilence = d.MinSilence
	}
	if c.MaxUtterance == 0 {
		c.MaxUtterance = d.MaxUtterance
	}
	if c.MailboxSize == 0 {
		c.MailboxSize = d.MailboxSize
	}
	return c
}
