package telephony

import "testing"

func TestMuLawRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 100, -100, 1000, -1000, 8000, -8000, 30000, -30000, 32767, -32768}

	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}

	decoded := DecodeMuLaw(EncodeMuLaw(pcm))
	if len(decoded) != len(pcm) {
		t.Fatalf("decoded %d bytes, want %d", len(decoded), len(pcm))
	}

	for i, want := range samples {
		got := int16(decoded[i*2]) | int16(decoded[i*2+1])<<8
		diff := int32(got) - int32(want)
		if diff < 0 {
			diff = -diff
		}
		// mu-law is lossy; error grows with amplitude. Allow ~3% of the
		// sample magnitude plus the quantization floor.
		limit := int32(want)
		if limit < 0 {
			limit = -limit
		}
		limit = limit/16 + 64
		if diff > limit {
			t.Errorf("sample %d: got %d, want %d (diff %d > %d)", i, got, want, diff, limit)
		}
	}
}

func TestMuLawSilenceStaysQuiet(t *testing.T) {
	mu := make([]byte, 160)
	for i := range mu {
		mu[i] = 0xFF // mu-law encoding of 0
	}
	pcm := DecodeMuLaw(mu)
	for i := 0; i < len(pcm); i += 2 {
		s := int16(pcm[i]) | int16(pcm[i+1])<<8
		if s < -4 || s > 4 {
			t.Fatalf("sample %d = %d, want near zero", i/2, s)
		}
	}
}

func TestEncodeMuLawIgnoresTrailingByte(t *testing.T) {
	pcm := []byte{0x00, 0x10, 0x00, 0x10, 0x7F}
	if got := len(EncodeMuLaw(pcm)); got != 2 {
		t.Fatalf("encoded %d samples, want 2", got)
	}
}
