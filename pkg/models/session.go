package models

import "time"

// BrowserStatus describes the live browser behind the automation session.
type BrowserStatus struct {
	Alive      bool      `json:"alive"`
	URL        string    `json:"url,omitempty"`
	Visible    bool      `json:"visible"`
	Mode       string    `json:"mode"`
	ControlURL string    `json:"-"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
}

// CapturedCredentials are the portal tokens lifted from an intercepted
// search request, kept for replaying auxiliary API calls.
type CapturedCredentials struct {
	UserToken  string            `json:"userToken"`
	DSession   string            `json:"dSession"`
	SessionID  string            `json:"sessionId"`
	Payload    map[string]any    `json:"payload"`
	Headers    map[string]string `json:"headers"`
	CapturedAt time.Time         `json:"capturedAt"`
}

// Redacted returns a copy safe to show to operators.
func (c CapturedCredentials) Redacted() CapturedCredentials {
	out := c
	out.UserToken = redact(c.UserToken)
	out.DSession = redact(c.DSession)
	out.SessionID = redact(c.SessionID)
	out.Payload = nil
	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		headers[k] = redact(v)
	}
	out.Headers = headers
	return out
}

func redact(s string) string {
	if len(s) <= 6 {
		return "***"
	}
	return s[:6] + "***"
}
