package telephony

import (
	"encoding/xml"
	"fmt"
)

// TwiML documents returned to Twilio. Only the verbs the gateway uses are
// modeled.

type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Say     *twimlSay     `xml:",omitempty"`
	Connect *twimlConnect `xml:",omitempty"`
	Pause   *twimlPause   `xml:",omitempty"`
	Hangup  *twimlHangup  `xml:",omitempty"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlConnect struct {
	XMLName xml.Name    `xml:"Connect"`
	Stream  twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter,omitempty"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

func renderTwiML(resp twimlResponse) ([]byte, error) {
	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// streamTwiML answers an inbound call by connecting its media to the
// gateway's WebSocket endpoint. Custom parameters are echoed back by Twilio
// in the stream's start message.
func streamTwiML(wsURL string, params map[string]string) ([]byte, error) {
	stream := twimlStream{URL: wsURL}
	for name, value := range params {
		stream.Parameters = append(stream.Parameters, twimlParameter{Name: name, Value: value})
	}
	return renderTwiML(twimlResponse{Connect: &twimlConnect{Stream: stream}})
}

// sayTwiML speaks text with the provider's own voice, then holds the line.
// Used as the degraded path when audio synthesis is unavailable.
func sayTwiML(text string) ([]byte, error) {
	return renderTwiML(twimlResponse{
		Say:   &twimlSay{Text: text},
		Pause: &twimlPause{Length: 60},
	})
}

// rejectTwiML speaks an apology and hangs up.
func rejectTwiML(text string) ([]byte, error) {
	return renderTwiML(twimlResponse{
		Say:    &twimlSay{Text: text},
		Hangup: &twimlHangup{},
	})
}
