// Package api is a typed client for the game server's panel backend. It
// covers the town operations plugin, the public self-service API, the admin
// API, the user directories, dashboard control and the pending-upload
// queue. Every call is a single attempt; nothing is retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SessionCookie is the cookie carrying the staff panel session.
const SessionCookie = "tsto_session"

// Client talks to one backend. Credential methods return copies, so a
// Client can be shared and specialised per request.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	now       func() time.Time

	session string
	bearer  string
	nucleus string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, Invalid("base_url", "is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, Invalid("base_url", "must be an http or https URL")
	}

	c := &Client{
		baseURL:   u,
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: "townctl",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// WithSession returns a copy that sends the staff session cookie.
func (c *Client) WithSession(token string) *Client {
	cp := *c
	cp.session = token
	return &cp
}

// WithBearer returns a copy that sends an Authorization bearer token.
func (c *Client) WithBearer(token string) *Client {
	cp := *c
	cp.bearer = token
	return &cp
}

// WithNucleusToken returns a copy that forwards the nucleus token header.
func (c *Client) WithNucleusToken(token string) *Client {
	cp := *c
	cp.nucleus = token
	return &cp
}

// Session returns the staff session token the client carries.
func (c *Client) Session() string { return c.session }

// Bearer returns the bearer token the client carries.
func (c *Client) Bearer() string { return c.bearer }

// NucleusToken returns the nucleus token the client carries.
func (c *Client) NucleusToken() string { return c.nucleus }

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.session != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: c.session})
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.nucleus != "" {
		req.Header.Set("nucleus_token", c.nucleus)
	}
	return req, nil
}

// envelope captures the failure shapes the backend uses inside 2xx bodies.
type envelope struct {
	Success *bool           `json:"success"`
	Status  string          `json:"status"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// errorField renders the "error" member, which some handlers send as an
// object or a bare value instead of a string.
func (e envelope) errorField() string {
	raw := bytes.TrimSpace(e.Error)
	if len(raw) == 0 {
		return ""
	}
	switch string(raw) {
	case "null", "false", `""`, "{}":
		return ""
	case "true":
		return "request failed"
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	case '{':
		var obj struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(raw, &obj) == nil {
			if obj.Message != "" {
				return obj.Message
			}
			if obj.Error != "" {
				return obj.Error
			}
		}
	}
	return string(raw)
}

func (e envelope) failed() (string, bool) {
	if msg := e.errorField(); msg != "" {
		return msg, true
	}
	switch {
	case e.Success != nil && !*e.Success:
		if e.Message != "" {
			return e.Message, true
		}
		return "request failed", true
	case e.Status == "error":
		if e.Message != "" {
			return e.Message, true
		}
		return "request failed", true
	}
	return "", false
}

// send executes req and returns the response body of a 2xx response.
func (c *Client) send(op string, req *http.Request) ([]byte, http.Header, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &NetworkError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &StatusError{Op: op, Code: resp.StatusCode, Message: errorText(data)}
	}
	return data, resp.Header, nil
}

// errorText extracts a human message from an error body, JSON or not.
func errorText(data []byte) string {
	var env envelope
	if json.Unmarshal(data, &env) == nil {
		if msg := env.errorField(); msg != "" {
			return msg
		}
		if env.Message != "" {
			return env.Message
		}
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

// do sends a JSON request and decodes a JSON response into out. in and out
// may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	data, _, err := c.send(op, req)
	if err != nil {
		return err
	}
	return decode(op, data, out)
}

func decode(op string, data []byte, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err == nil {
		if msg, failed := env.failed(); failed {
			return &AppError{Op: op, Message: msg}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

// cacheBust returns the value of the "_" query parameter the panel adds to
// directory reads so intermediaries never serve a stale listing.
func (c *Client) cacheBust() string {
	return fmt.Sprintf("%d", c.now().UnixMilli())
}

// Result is the generic {success, message} acknowledgement.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
