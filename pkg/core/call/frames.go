package call

import (
	"fmt"
	"math"
)

// Frame is one fixed-size chunk of caller audio. Seq is assigned by the
// transport and must increase by one per frame within a call.
type Frame struct {
	Seq int
	PCM []byte
}

// CalculateRMSEnergy computes the root-mean-square energy of PCM audio.
// Input is assumed to be 16-bit signed little-endian PCM.
// Returns a value between 0.0 and 1.0.
func CalculateRMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(samples))
}

// FrameBuffer accumulates inbound caller audio for one session until an
// utterance boundary is detected. It is owned by the session loop and is not
// safe for concurrent use.
//
// A boundary is declared when frame energy stays below the speech threshold
// for at least MinSilence after having previously risen above it. Reaching
// MaxUtterance of buffered audio forces a synthetic boundary so a caller who
// never pauses cannot grow the buffer without bound.
type FrameBuffer struct {
	audio          AudioConfig
	startThreshold float64
	minSilenceMs   int
	maxBytes       int

	data          []byte
	nextSeq       int
	speechStarted bool
	silenceMs     int
}

// NewFrameBuffer creates a buffer using the session's audio format and
// boundary thresholds from cfg.
func NewFrameBuffer(cfg Config) *FrameBuffer {
	maxBytes := cfg.Audio.BytesForDurationMs(int(cfg.MaxUtterance.Milliseconds()))
	return &FrameBuffer{
		audio:          cfg.Audio,
		startThreshold: cfg.SpeechStartThreshold,
		minSilenceMs:   int(cfg.MinSilence.Milliseconds()),
		maxBytes:       maxBytes,
		data:           make([]byte, 0, maxBytes),
	}
}

// Push appends one frame and reports whether it completed an utterance.
// When boundary is true, utterance holds the buffered audio and the buffer
// has been reset for the next utterance.
//
// Frames arriving out of sequence order fail with OutOfOrderFrame. The
// transport guarantees in-order delivery per call; this only defends against
// programming errors and does not reorder.
func (b *FrameBuffer) Push(f Frame) (utterance []byte, boundary bool, err error) {
	if f.Seq != b.nextSeq {
		return nil, false, NewError(ErrOutOfOrderFrame,
			fmt.Sprintf("frame seq %d, expected %d", f.Seq, b.nextSeq))
	}
	b.nextSeq++

	b.data = append(b.data, f.PCM...)
	frameMs := b.audio.DurationMs(len(f.PCM))

	energy := CalculateRMSEnergy(f.PCM)
	if energy >= b.startThreshold {
		b.speechStarted = true
		b.silenceMs = 0
	} else if b.speechStarted {
		b.silenceMs += frameMs
		if b.silenceMs >= b.minSilenceMs {
			return b.consume(), true, nil
		}
	}

	if len(b.data) >= b.maxBytes {
		// Forced boundary: the caller has been talking for MaxUtterance.
		return b.consume(), true, nil
	}

	return nil, false, nil
}

// Observe validates and advances the sequence for a frame whose payload is
// not being captured. Sessions call this for frames that arrive while not
// listening so the stream stays contiguous.
func (b *FrameBuffer) Observe(f Frame) error {
	if f.Seq != b.nextSeq {
		return NewError(ErrOutOfOrderFrame,
			fmt.Sprintf("frame seq %d, expected %d", f.Seq, b.nextSeq))
	}
	b.nextSeq++
	return nil
}

// ForceBoundary completes the current utterance immediately, regardless of
// silence tracking. Used for external boundary hints. Returns false if no
// speech has been captured yet.
func (b *FrameBuffer) ForceBoundary() (utterance []byte, ok bool) {
	if !b.speechStarted || len(b.data) == 0 {
		return nil, false
	}
	return b.consume(), true
}

// HasSpeech reports whether speech energy has been observed since the last
// boundary.
func (b *FrameBuffer) HasSpeech() bool { return b.speechStarted }

// DurationMs returns the buffered audio duration in milliseconds.
func (b *FrameBuffer) DurationMs() int { return b.audio.DurationMs(len(b.data)) }

// Reset discards buffered audio and silence tracking. Sequence tracking is
// preserved; the frame stream is continuous across utterances.
func (b *FrameBuffer) Reset() {
	b.data = b.data[:0]
	b.speechStarted = false
	b.silenceMs = 0
}

func (b *FrameBuffer) consume() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	b.Reset()
	return out
}
