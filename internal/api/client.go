package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL points at a reflection service running locally.
	DefaultBaseURL = "http://localhost:4000/api"
	// DefaultTimeout bounds every request end to end.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

// CredentialStore is the subset of the session store the client depends on.
type CredentialStore interface {
	Token(ctx context.Context) (string, bool)
	Clear(ctx context.Context) error
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Store     CredentialStore
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client issues JSON requests against the reflection service. Every request
// carries the stored bearer token when one exists, and any 401 response clears
// the store before the error is returned.
type Client struct {
	baseURL string
	http    *http.Client
	headers http.Header
}

// Request describes a single call.
type Request struct {
	Method string
	Path   string
	Body   any
	// CredentialExchange marks login/register calls, whose 401/403 responses
	// mean rejected credentials rather than an expired session.
	CredentialExchange bool
}

// New constructs a Client with the interceptor chain installed.
func New(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", base)
	}
	if opts.Store == nil {
		return nil, errors.New("api: credential store must not be nil")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")

	return &Client{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: Chain(transport, LogRequests(logger), BearerToken(opts.Store), ClearOnUnauthorized(opts.Store, logger)),
		},
		headers: headers,
	}, nil
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues an authenticated GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

// Post issues an authenticated POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Do executes req and decodes a successful JSON response into out. Failures
// are returned as *Error classified by kind.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return ctxErr
		}
		return networkError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return networkError(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp.StatusCode, payload, req.CredentialExchange)
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		if out != nil {
			return &Error{Kind: ErrServer, Status: resp.StatusCode, Message: "The server returned an empty response."}
		}
		return nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Kind: ErrServer, Status: resp.StatusCode, Message: "The server returned an unexpected response.", Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range c.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	return httpReq, nil
}

type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func statusError(status int, payload []byte, credentialExchange bool) *Error {
	var body errorPayload
	_ = json.Unmarshal(payload, &body)
	message := strings.TrimSpace(body.Message)
	if message == "" {
		message = strings.TrimSpace(body.Error)
	}

	var kind error
	switch {
	case credentialExchange && (status == http.StatusUnauthorized || status == http.StatusForbidden):
		kind = ErrAuth
	case status == http.StatusUnauthorized:
		kind = ErrSessionExpired
		if message == "" {
			message = "Your session has expired. Please sign in again."
		}
	case status >= http.StatusInternalServerError:
		kind = ErrServer
	default:
		kind = ErrRequest
	}

	return &Error{Kind: kind, Status: status, Message: message}
}

func networkError(err error) *Error {
	message := "Unable to reach the server. Check your connection and try again."

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		message = "The request timed out. Please try again."
	}
	return &Error{Kind: ErrNetwork, Message: message, Err: err}
}
