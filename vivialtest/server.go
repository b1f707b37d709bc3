// Package vivialtest provides an in-memory fake of the Vivial Connect API for
// tests. Every request must carry a valid HMAC signature for the server's
// credentials; unsigned or tampered requests get a 401.
package vivialtest

import (
	"bytes"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	vivialconnect "github.com/tj-smith47/vivialconnect-go"
)

// Default credentials of a new Server.
const (
	DefaultAPIKey    = "test-api-key"
	DefaultAPISecret = "test-api-secret"
	DefaultAccountID = "10001"
)

// APIPrefix is the path every route is mounted under.
const APIPrefix = "/api/v1.0"

// Request is one request received by the server.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// JSON decodes the recorded body.
func (r Request) JSON() map[string]any {
	var m map[string]any
	_ = json.Unmarshal(r.Body, &m)
	return m
}

// Fault is a canned response returned instead of the route's own.
type Fault struct {
	Status int
	Body   any
	Header http.Header
}

// Option configures a Server.
type Option func(*Server)

// WithCredentials sets the API key, secret and account the server accepts.
func WithCredentials(apiKey, apiSecret, accountID string) Option {
	return func(s *Server) {
		s.APIKey = apiKey
		s.APISecret = apiSecret
		s.AccountID = accountID
	}
}

// WithLogger logs every request the server handles.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for timestamps in responses.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// Server is a running fake API.
type Server struct {
	*httptest.Server

	APIKey    string
	APISecret string
	AccountID string

	router *chi.Mux
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	nextID    int
	tables    map[string]*table
	logs      []map[string]any
	bulks     []map[string]any
	requests  []Request
	faults    map[string]Fault
	rateLimit *vivialconnect.RateLimitInfo
}

// NewServer starts a fake API server that is closed when the test ends.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := New(opts...)
	t.Cleanup(s.Close)
	return s
}

// New starts a fake API server. The caller must Close it.
func New(opts ...Option) *Server {
	s := &Server{
		APIKey:    DefaultAPIKey,
		APISecret: DefaultAPISecret,
		AccountID: DefaultAccountID,
		now:       time.Now,
		nextID:    1,
		tables:    make(map[string]*table),
		faults:    make(map[string]Fault),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.insertLocked("accounts", map[string]any{
		"id":           accountID(s.AccountID),
		"company_name": "Vivial Test",
		"active":       true,
	})
	s.router = s.routes()
	s.Server = httptest.NewServer(s.router)
	return s
}

// BaseURL returns the API base URL to pass to vivialconnect.WithBaseURL.
func (s *Server) BaseURL() string {
	return s.URL + APIPrefix
}

// Client returns a client pointed at the server with its credentials.
func (s *Server) Client(opts ...vivialconnect.Option) *vivialconnect.Client {
	all := append([]vivialconnect.Option{vivialconnect.WithBaseURL(s.BaseURL())}, opts...)
	return vivialconnect.NewClient(s.APIKey, s.APISecret, s.AccountID, all...)
}

// Handler returns the router, for serving the fake from another listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Seed stores rows in the table named by key, e.g. "messages" or
// "messages/12/attachments", assigning ids where missing. It returns the ids.
func (s *Server) Seed(key string, rows ...map[string]any) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		stored := s.insertLocked(key, row)
		id, _ := stored["id"].(int)
		ids = append(ids, id)
	}
	return ids
}

// Rows returns copies of the rows of a table.
func (s *Server) Rows(key string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables[key]
	if t == nil {
		return nil
	}
	return t.snapshot()
}

// SeedLogs appends log entries.
func (s *Server) SeedLogs(entries ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.logs = append(s.logs, maps.Clone(e))
	}
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request.
func (s *Server) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// SetFault makes method+path (path relative to APIPrefix) answer with f.
func (s *Server) SetFault(method, path string, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[faultKey(method, APIPrefix+path)] = f
}

// ClearFaults removes every fault.
func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]Fault)
}

// SetRateLimit adds X-RateLimit-* headers to every response. A nil info
// removes them.
func (s *Server) SetRateLimit(info *vivialconnect.RateLimitInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimit = info
}

func faultKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// ============================================================================
// Middleware
// ============================================================================

// record stores the request and restores its body for later handlers.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		info := s.rateLimit
		s.mu.Unlock()

		if info != nil {
			info.SetHeader(w.Header())
		}
		if s.logger != nil {
			s.logger.LogAttrs(r.Context(), slog.LevelDebug, "fake_request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("body_size", len(body)),
			)
		}
		next.ServeHTTP(w, r)
	})
}

// verify rejects requests whose HMAC signature does not match.
func (s *Server) verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkSignature(r); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkSignature(r *http.Request) error {
	rest, ok := strings.CutPrefix(r.Header.Get("Authorization"), "HMAC ")
	if !ok {
		return errors.New("missing HMAC authorization")
	}
	key, digest, ok := strings.Cut(rest, ":")
	if !ok || key != s.APIKey {
		return errors.New("unknown API key")
	}
	timestamp := r.Header.Get("X-Auth-Date")
	if timestamp == "" {
		return errors.New("missing X-Auth-Date")
	}

	header := http.Header{}
	for _, name := range strings.Split(r.Header.Get("X-Auth-SignedHeaders"), ";") {
		switch name {
		case "":
		case "host":
			header.Set("Host", r.Host)
		default:
			header.Set(name, r.Header.Get(name))
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	absURL := "http://" + r.Host + r.URL.RequestURI()
	sig, err := vivialconnect.Signer{Secret: s.APISecret}.Sign(r.Method, timestamp, absURL, header, body)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(sig.Digest), []byte(digest)) {
		return errors.New("signature mismatch")
	}
	return nil
}

// inject answers with a configured fault.
func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.faults[faultKey(r.Method, r.URL.Path)]
		s.mu.Unlock()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		for k, v := range f.Header {
			w.Header()[k] = v
		}
		if f.Body == nil {
			w.WriteHeader(f.Status)
			return
		}
		writeJSON(w, f.Status, f.Body)
	})
}

// scoped rejects requests for an account other than the server's.
func (s *Server) scoped(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "account") != s.AccountID {
			writeError(w, http.StatusForbidden, "access to account denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ============================================================================
// Response helpers
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    http.StatusText(status),
			"code":    status,
		},
	})
}

// decodeBody reads a JSON object body. An empty body yields an empty map.
func decodeBody(r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if len(bytes.TrimSpace(body)) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return m, nil
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
