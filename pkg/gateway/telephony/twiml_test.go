package telephony

import (
	"strings"
	"testing"
)

func TestStreamTwiML(t *testing.T) {
	out, err := streamTwiML("wss://voice.example.com/stream", map[string]string{"tenant": "+15550001111"})
	if err != nil {
		t.Fatalf("streamTwiML: %v", err)
	}
	s := string(out)

	for _, want := range []string{
		"<Response>",
		"<Connect>",
		`<Stream url="wss://voice.example.com/stream">`,
		`<Parameter name="tenant" value="+15550001111">`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("twiml missing %q:\n%s", want, s)
		}
	}
}

func TestSayTwiML(t *testing.T) {
	out, err := sayTwiML(`One moment & I'll be right back`)
	if err != nil {
		t.Fatalf("sayTwiML: %v", err)
	}
	s := string(out)

	if !strings.Contains(s, "<Say>One moment &amp; I&#39;ll be right back</Say>") {
		t.Errorf("say text not escaped as expected:\n%s", s)
	}
	if !strings.Contains(s, "<Pause length=\"60\">") {
		t.Errorf("missing pause:\n%s", s)
	}
	if strings.Contains(s, "<Hangup>") {
		t.Errorf("say twiml must not hang up:\n%s", s)
	}
}

func TestRejectTwiMLHangsUp(t *testing.T) {
	out, err := rejectTwiML("We are closed.")
	if err != nil {
		t.Fatalf("rejectTwiML: %v", err)
	}
	s := string(out)
	sayIdx := strings.Index(s, "<Say>")
	hangupIdx := strings.Index(s, "<Hangup>")
	if sayIdx < 0 || hangupIdx < 0 || hangupIdx < sayIdx {
		t.Fatalf("expected Say followed by Hangup:\n%s", s)
	}
}
