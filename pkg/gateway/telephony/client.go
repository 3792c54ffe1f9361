package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultAPIBaseURL = "https://api.twilio.com/2010-04-01"

// Client is a minimal Twilio REST client covering the two call-control
// operations the gateway needs: redirecting a live call to new TwiML and
// ending it.
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a REST client authenticated with account credentials.
func NewClient(accountSID, authToken string) *Client {
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    defaultAPIBaseURL,
		httpClient: &http.Client{},
	}
}

// UpdateCallTwiML replaces the call's current instructions with new TwiML.
func (c *Client) UpdateCallTwiML(ctx context.Context, callSid string, twiml []byte) error {
	return c.updateCall(ctx, callSid, url.Values{"Twiml": {string(twiml)}})
}

// EndCall completes the call.
func (c *Client) EndCall(ctx context.Context, callSid string) error {
	return c.updateCall(ctx, callSid, url.Values{"Status": {"completed"}})
}

func (c *Client) updateCall(ctx context.Context, callSid string, form url.Values) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update call %s: %w", callSid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("update call %s: status %d: %s", callSid, resp.StatusCode, string(body))
	}
	return nil
}
