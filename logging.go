package vivialconnect

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// WithLogger sets the structured logger for API calls. The HTTP transport is
// wrapped in a LoggingTransport using the same logger.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	client := vivialconnect.NewClient(key, secret, account, vivialconnect.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// levelFor picks the record level for a call outcome: debug on success, warn
// on 4xx, error on 5xx and failures.
func levelFor(status int, err error) slog.Level {
	switch {
	case err != nil || status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

// LoggingTransport logs each signed HTTP exchange. Query strings are not
// logged; the signature headers are.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Logger == nil {
		return base.RoundTrip(req)
	}

	ctx := req.Context()
	target := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("host", req.URL.Host),
		slog.String("path", req.URL.Path),
	}
	t.Logger.LogAttrs(ctx, slog.LevelDebug, "http_request", append(target,
		slog.String("auth_date", req.Header.Get("X-Auth-Date")),
		slog.String("signed_headers", req.Header.Get("X-Auth-SignedHeaders")),
		slog.Int64("content_length", req.ContentLength),
	)...)

	start := time.Now()
	resp, err := base.RoundTrip(req)
	elapsed := slog.Duration("duration", time.Since(start))

	if err != nil {
		t.Logger.LogAttrs(ctx, slog.LevelError, "http_error", append(target, elapsed, slog.String("error", err.Error()))...)
		return nil, err
	}

	attrs := append(target, slog.Int("status", resp.StatusCode), elapsed)
	if remaining := resp.Header.Get(HeaderRateLimitRemaining); remaining != "" {
		attrs = append(attrs, slog.String("rate_limit_remaining", remaining))
	}
	t.Logger.LogAttrs(ctx, levelFor(resp.StatusCode, nil), "http_response", attrs...)
	return resp, nil
}

// LogRequest logs an API call before it is signed and sent.
func (c *Client) LogRequest(ctx context.Context, method, path string) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "api_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("account_id", c.accountID),
	)
}

// LogResponse logs the outcome of an API call. Failed calls carry the error
// kind when the error is a *RequestorError.
func (c *Client) LogResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration, err error) {
	if c.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", statusCode),
		slog.Duration("duration", duration),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		var reqErr *RequestorError
		if errors.As(err, &reqErr) && reqErr.Kind != nil {
			attrs = append(attrs, slog.String("error_kind", reqErr.Kind.Error()))
		}
	}
	c.logger.LogAttrs(ctx, levelFor(statusCode, err), "api_response", attrs...)
}

// LogRateLimit logs a reported quota.
func (c *Client) LogRateLimit(ctx context.Context, info RateLimitInfo) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "rate_limit",
		slog.Int("limit", info.Limit),
		slog.Int("remaining", info.Remaining),
		slog.Int("used", info.Used()),
		slog.Duration("reset_in", info.ResetIn(c.now())),
	)
}

// NewLoggingClient is NewClient with WithLogger applied first.
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	client := vivialconnect.NewLoggingClient(key, secret, account, logger)
func NewLoggingClient(apiKey, apiSecret, accountID string, logger *slog.Logger, opts ...Option) *Client {
	return NewClient(apiKey, apiSecret, accountID, append([]Option{WithLogger(logger)}, opts...)...)
}
