package telephony

// Twilio media-stream WebSocket protocol. Inbound messages arrive as JSON
// with an "event" discriminator; outbound audio is posted back as media
// events carrying base64 mu-law payloads.

const (
	eventConnected = "connected"
	eventStart     = "start"
	eventMedia     = "media"
	eventMark      = "mark"
	eventStop      = "stop"
	eventClear     = "clear"

	trackInbound = "inbound"

	// mu-law at 8kHz: 160 bytes per 20ms media frame.
	mediaFrameBytes = 160
)

type streamMessage struct {
	Event          string     `json:"event"`
	SequenceNumber string     `json:"sequenceNumber,omitempty"`
	StreamSid      string     `json:"streamSid,omitempty"`
	Start          *startInfo `json:"start,omitempty"`
	Media          *mediaInfo `json:"media,omitempty"`
	Stop           *stopInfo  `json:"stop,omitempty"`
	Mark           *markInfo  `json:"mark,omitempty"`
}

type startInfo struct {
	StreamSid        string            `json:"streamSid"`
	AccountSid       string            `json:"accountSid"`
	CallSid          string            `json:"callSid"`
	Tracks           []string          `json:"tracks"`
	CustomParameters map[string]string `json:"customParameters"`
	MediaFormat      mediaFormat       `json:"mediaFormat"`
}

type mediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type mediaInfo struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

type stopInfo struct {
	AccountSid string `json:"accountSid"`
	CallSid    string `json:"callSid"`
}

type markInfo struct {
	Name string `json:"name"`
}

func outboundMedia(streamSid, payload string) streamMessage {
	return streamMessage{
		Event:     eventMedia,
		StreamSid: streamSid,
		Media:     &mediaInfo{Payload: payload},
	}
}

func outboundClear(streamSid string) streamMessage {
	return streamMessage{Event: eventClear, StreamSid: streamSid}
}
