package vivialconnect

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	// Version is the client library version reported in the User-Agent.
	Version = "0.3.0"

	// DefaultBaseURL is the Vivial Connect API base URL.
	DefaultBaseURL = "https://api.vivialconnect.net/api/v1.0"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	contentTypeJSON = "application/json"
)

// Client is a Vivial Connect API client. A Client carries the credentials and
// transport settings for every resource bound to it. It is safe to share
// between goroutines; resources are not.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	accountID string

	httpClient   *http.Client
	customHTTP   bool
	timeout      time.Duration
	verifyTLS    bool
	logger       *slog.Logger
	now          func() time.Time
	registry     *Registry
	userAgent    string
	userAgentExt map[string]string

	rateLimitCallback RateLimitCallback
	lastRateLimit     *RateLimitInfo
	rateLimitMu       sync.RWMutex
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client. The client's own redirect and TLS
// policy is used as-is.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
		c.customHTTP = client != nil
	}
}

// WithTimeout sets the HTTP request timeout. A supplied HTTP client is
// copied rather than modified, so clients sharing it keep their timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
		if c.httpClient != nil {
			hc := *c.httpClient
			hc.Timeout = timeout
			c.httpClient = &hc
		}
	}
}

// WithVerifyTLS toggles TLS certificate verification (enabled by default).
func WithVerifyTLS(verify bool) Option {
	return func(c *Client) {
		c.verifyTLS = verify
	}
}

// WithClock overrides the time source used for Date and X-Auth-Date.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRegistry sets the kind registry used to decode nested resources.
func WithRegistry(r *Registry) Option {
	return func(c *Client) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithUserAgentExtra adds a key to the X-VivialConnect-User-Agent blob.
func WithUserAgentExtra(key, value string) Option {
	return func(c *Client) {
		if c.userAgentExt == nil {
			c.userAgentExt = make(map[string]string)
		}
		c.userAgentExt[key] = value
	}
}

// NewClient creates a new Vivial Connect API client.
// An empty secret is accepted here; requests fail with ErrNoAPISecret before
// anything is sent.
func NewClient(apiKey, apiSecret, accountID string, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		accountID: accountID,
		timeout:   DefaultTimeout,
		verifyTLS: true,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.finish()
	return c
}

// finish builds whatever the options left unset.
func (c *Client) finish() {
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	if c.httpClient == nil {
		c.httpClient = c.newHTTPClient()
	}
	c.userAgent = c.buildUserAgent()
}

func (c *Client) newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
		ForceAttemptHTTP2:   true,
	}
	if !c.verifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
	}
	var rt http.RoundTripper = transport
	if c.logger != nil {
		rt = &LoggingTransport{Base: transport, Logger: c.logger}
	}
	return &http.Client{
		Timeout:   c.timeout,
		Transport: rt,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (c *Client) buildUserAgent() string {
	ua := map[string]string{
		"client_version": Version,
		"lang":           "go",
		"lang_version":   runtime.Version(),
		"platform":       runtime.GOOS + "/" + runtime.GOARCH,
		"publisher":      "vivialconnect",
		"request_lib":    "net/http",
	}
	for k, v := range c.userAgentExt {
		ua[k] = v
	}
	data, err := json.Marshal(ua)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Clone returns a new client with the same settings plus opts. The transport
// is rebuilt unless a custom HTTP client was supplied.
func (c *Client) Clone(opts ...Option) *Client {
	clone := &Client{
		baseURL:           c.baseURL,
		apiKey:            c.apiKey,
		apiSecret:         c.apiSecret,
		accountID:         c.accountID,
		timeout:           c.timeout,
		verifyTLS:         c.verifyTLS,
		logger:            c.logger,
		now:               c.now,
		registry:          c.registry,
		rateLimitCallback: c.rateLimitCallback,
	}
	if c.customHTTP {
		clone.httpClient = c.httpClient
		clone.customHTTP = true
	}
	for k, v := range c.userAgentExt {
		WithUserAgentExtra(k, v)(clone)
	}
	for _, opt := range opts {
		opt(clone)
	}
	clone.finish()
	return clone
}

// WithCredentials returns a copy of the client using different credentials.
func (c *Client) WithCredentials(apiKey, apiSecret, accountID string) *Client {
	return c.Clone(func(n *Client) {
		n.apiKey = apiKey
		n.apiSecret = apiSecret
		n.accountID = accountID
	})
}

// AccountID returns the account every account-scoped path is built under.
func (c *Client) AccountID() string {
	return c.accountID
}

// APIKey returns the API key used in the Authorization header.
func (c *Client) APIKey() string {
	return c.apiKey
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Registry returns the kind registry used for decoding.
func (c *Client) Registry() *Registry {
	return c.registry
}

// do performs one signed HTTP request and returns the decoded JSON response.
// A 204 response with an empty body yields a nil result.
func (c *Client) do(ctx context.Context, method, path string, query Query, payload any) (any, error) {
	method = strings.ToUpper(method)
	absURL := withQuery(c.baseURL+path, query)

	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodPost, http.MethodPut:
	default:
		return nil, &RequestorError{Kind: ErrRequestor, Message: "invalid request method: " + method}
	}

	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = data
	}

	u, err := url.Parse(absURL)
	if err != nil {
		return nil, &RequestorError{Kind: ErrRequestor, Message: fmt.Sprintf("invalid request URL %q", absURL), Err: err}
	}

	now := c.now().UTC()
	header := http.Header{}
	header.Set("X-VivialConnect-User-Agent", c.userAgent)
	header.Set("User-Agent", "VivialConnect GoClient "+Version)
	header.Set("Date", now.Format(dateFormat))
	header.Set("Host", u.Host)
	header.Set("Accept", contentTypeJSON)
	if len(body) > 0 {
		header.Set("Content-Type", contentTypeJSON)
	} else if method == http.MethodPost || method == http.MethodPut {
		header.Set("Content-Type", contentTypeJSON)
		header.Set("Content-Length", "0")
	}

	timestamp := now.Format(TimestampFormat)
	sig, err := Signer{Secret: c.apiSecret}.Sign(method, timestamp, absURL, header, body)
	if err != nil {
		return nil, err
	}
	header.Set("X-Auth-SignedHeaders", strings.Join(sig.Headers, ";"))
	header.Set("X-Auth-Date", timestamp)
	header.Set("Authorization", Authorization(c.apiKey, sig.Digest))

	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, absURL, reqBody)
	if err != nil {
		return nil, &RequestorError{Kind: ErrRequestor, Message: "failed to create request", Err: err}
	}
	req.Host = header.Get("Host")
	for name, values := range header {
		if name == "Host" || name == "Content-Length" {
			continue
		}
		req.Header[name] = values
	}

	c.LogRequest(ctx, method, path)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.LogResponse(ctx, method, path, 0, time.Since(start), err)
		return nil, &RequestorError{
			Kind:    ErrConnection,
			Message: "unexpected error communicating with Vivial Connect",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	c.observeRateLimit(ctx, resp.Header)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.LogResponse(ctx, method, path, resp.StatusCode, time.Since(start), err)
		return nil, &RequestorError{
			Kind:       ErrConnection,
			Message:    "failed to read response body",
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	responseURL := absURL
	if resp.Request != nil && resp.Request.URL != nil {
		responseURL = resp.Request.URL.String()
	}
	result, err := c.interpretResponse(resp.StatusCode, respBody, responseURL, resp.Header)
	c.LogResponse(ctx, method, path, resp.StatusCode, time.Since(start), err)
	return result, err
}

// interpretResponse decodes a response body and classifies non-2xx statuses.
func (c *Client) interpretResponse(status int, body []byte, responseURL string, header http.Header) (any, error) {
	if status == http.StatusNoContent && len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	decoded, err := decodeJSON(body)
	if err != nil {
		return nil, &RequestorError{
			Kind:       ErrRequestor,
			Message:    fmt.Sprintf("Invalid JSON response body from API: (%d) %s", status, truncatePreview(body)),
			StatusCode: status,
			Body:       string(body),
		}
	}

	if status >= 200 && status < 300 {
		return decoded, nil
	}
	return nil, c.handleError(status, body, decoded, responseURL, header)
}

// handleError converts an error response into a *RequestorError.
func (c *Client) handleError(status int, body []byte, decoded any, responseURL string, header http.Header) error {
	reqErr := &RequestorError{
		Kind:       kindForStatus(status),
		Message:    errorMessage(status, decoded, responseURL),
		StatusCode: status,
		Body:       string(body),
		JSONBody:   decoded,
	}

	if m, ok := decoded.(map[string]any); ok {
		if code, ok := m["error_code"]; ok && code != nil {
			reqErr.Code = fmt.Sprint(code)
			reqErr.Message = reqErr.Code + ": " + reqErr.Message
		}
		if inner, ok := m["error"].(map[string]any); ok {
			if param, ok := inner["param"].(string); ok {
				reqErr.Param = param
			}
		}
	}

	switch reqErr.Kind {
	case ErrRedirection:
		reqErr.URL = responseURL
		reqErr.Header = header
	case ErrRateLimited:
		reqErr.RetryAfter = retryAfter(header, c.now())
	}
	return reqErr
}

// errorMessage picks the human-readable reason out of an error body.
func errorMessage(status int, decoded any, responseURL string) string {
	fallback := fmt.Sprintf("Invalid response from API: (%d) %s", status, responseURL)
	m, ok := decoded.(map[string]any)
	if !ok || len(m) == 0 {
		if decoded == nil {
			return fallback
		}
		return fmt.Sprint(decoded)
	}
	if raw, ok := m["error"]; ok {
		switch e := raw.(type) {
		case string:
			return e
		case map[string]any:
			if msg, ok := e["message"]; ok {
				return fmt.Sprint(msg)
			}
			return fallback
		case nil:
			return fallback
		default:
			return fmt.Sprint(e)
		}
	}
	if msg, ok := m["message"]; ok && msg != nil {
		return fmt.Sprint(msg)
	}
	return fallback
}

// decodeJSON parses a body keeping numbers as json.Number.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

// get performs a GET request.
func (c *Client) get(ctx context.Context, path string, query Query) (any, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// post performs a POST request.
func (c *Client) post(ctx context.Context, path string, payload any) (any, error) {
	return c.do(ctx, http.MethodPost, path, nil, payload)
}

// put performs a PUT request.
func (c *Client) put(ctx context.Context, path string, payload any) (any, error) {
	return c.do(ctx, http.MethodPut, path, nil, payload)
}

// delete performs a DELETE request. payload may be nil.
func (c *Client) delete(ctx context.Context, path string, payload any) (any, error) {
	return c.do(ctx, http.MethodDelete, path, nil, payload)
}

// Get issues a signed GET against path (relative to the base URL) and returns
// the decoded JSON. It is the escape hatch for endpoints without a typed method.
func (c *Client) Get(ctx context.Context, path string, query Query) (any, error) {
	return c.get(ctx, path, query)
}

// Post issues a signed POST with a JSON payload.
func (c *Client) Post(ctx context.Context, path string, payload any) (any, error) {
	return c.post(ctx, path, payload)
}
