package vivialconnect

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Quota headers sent with API responses.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// RateLimitInfo is the request quota reported with a response.
type RateLimitInfo struct {
	Limit     int
	Remaining int

	// Reset is when the window starts over; zero when not reported.
	Reset time.Time
}

// ParseRateLimit reads the X-RateLimit-* headers. ok is false when none of
// them is present; values that are not integers are left zero.
func ParseRateLimit(h http.Header) (info RateLimitInfo, ok bool) {
	for _, name := range []string{HeaderRateLimitLimit, HeaderRateLimitRemaining, HeaderRateLimitReset} {
		raw := strings.TrimSpace(h.Get(name))
		if raw == "" {
			continue
		}
		ok = true
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		switch name {
		case HeaderRateLimitLimit:
			info.Limit = int(n)
		case HeaderRateLimitRemaining:
			info.Remaining = int(n)
		case HeaderRateLimitReset:
			info.Reset = time.Unix(n, 0)
		}
	}
	return info, ok
}

// SetHeader writes info as X-RateLimit-* headers.
func (i RateLimitInfo) SetHeader(h http.Header) {
	h.Set(HeaderRateLimitLimit, strconv.Itoa(i.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(i.Remaining))
	if !i.Reset.IsZero() {
		h.Set(HeaderRateLimitReset, strconv.FormatInt(i.Reset.Unix(), 10))
	}
}

// Used returns the number of requests spent in the current window.
func (i RateLimitInfo) Used() int {
	if i.Limit <= 0 {
		return 0
	}
	return max(i.Limit-i.Remaining, 0)
}

// ResetIn returns how long after now the window starts over.
func (i RateLimitInfo) ResetIn(now time.Time) time.Duration {
	if i.Reset.IsZero() {
		return 0
	}
	return max(i.Reset.Sub(now), 0)
}

// RateLimitCallback receives the quota of every response that reports one.
// The client never retries on its own.
type RateLimitCallback func(RateLimitInfo)

// WithRateLimitCallback sets a callback invoked with each reported quota.
func WithRateLimitCallback(callback RateLimitCallback) Option {
	return func(c *Client) {
		c.rateLimitCallback = callback
	}
}

// observeRateLimit records the quota of a response, if it has one.
func (c *Client) observeRateLimit(ctx context.Context, h http.Header) {
	info, ok := ParseRateLimit(h)
	if !ok {
		return
	}

	c.rateLimitMu.Lock()
	c.lastRateLimit = &info
	c.rateLimitMu.Unlock()

	c.LogRateLimit(ctx, info)
	if c.rateLimitCallback != nil {
		c.rateLimitCallback(info)
	}
}

// RateLimitInfo returns a copy of the last reported quota, or nil before any
// response carried one.
func (c *Client) RateLimitInfo() *RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	if c.lastRateLimit == nil {
		return nil
	}
	info := *c.lastRateLimit
	return &info
}

// RemainingRequests returns the requests left in the last reported window,
// or -1 when no quota has been seen.
func (c *Client) RemainingRequests() int {
	if info := c.RateLimitInfo(); info != nil {
		return info.Remaining
	}
	return -1
}

// ShouldThrottle reports whether fewer than threshold requests remain in the
// current window. A window whose reset time has passed no longer counts.
func (c *Client) ShouldThrottle(threshold int) bool {
	info := c.RateLimitInfo()
	if info == nil || info.Remaining < 0 {
		return false
	}
	if !info.Reset.IsZero() && !c.now().Before(info.Reset) {
		return false
	}
	return info.Remaining < threshold
}

// retryAfter returns the wait asked for by a 429 response: Retry-After as
// seconds or an HTTP date, else the time until the quota resets.
func retryAfter(h http.Header, now time.Time) time.Duration {
	if raw := strings.TrimSpace(h.Get("Retry-After")); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil {
			return max(time.Duration(seconds)*time.Second, 0)
		}
		if t, err := http.ParseTime(raw); err == nil {
			return max(t.Sub(now), 0)
		}
	}
	if info, ok := ParseRateLimit(h); ok {
		return info.ResetIn(now)
	}
	return 0
}
