package vivialconnect

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// FuzzSign fuzzes request signing.
// Run with: go test -fuzz=FuzzSign
func FuzzSign(f *testing.F) {
	f.Add("GET", "https://api.vivialconnect.net/api/v1.0/accounts/1/messages.json", "", []byte(nil))
	f.Add("POST", "https://api.vivialconnect.net/api/v1.0/accounts/1/messages.json?page=2&to%5B%5D=%2B1", "application/json", []byte(`{"message":{}}`))
	f.Add("delete", "http://h/%zz?a==b&&c", "text/plain", []byte("x"))
	f.Add("", ":", "", []byte{0xff})

	f.Fuzz(func(t *testing.T, method, rawURL, contentType string, body []byte) {
		h := http.Header{}
		h.Set("Host", "api.vivialconnect.net")
		h.Set("Date", "Tue, 02 Jan 2024 03:04:05 GMT")
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		sig, err := Signer{Secret: "secret"}.Sign(method, "20240102T030405Z", rawURL, h, body)
		if err != nil {
			return
		}
		if len(sig.Digest) != 64 {
			t.Fatalf("digest %q is not hex sha256", sig.Digest)
		}
	})
}

// FuzzCanonicalQuery checks that canonicalQuery is independent of parameter
// order.
// Run with: go test -fuzz=FuzzCanonicalQuery
func FuzzCanonicalQuery(f *testing.F) {
	f.Add("a=1&b=2")
	f.Add("to%5B%5D=%2B1&to%5B%5D=%2B2")
	f.Add("x&y=&=z")
	f.Add("%zz=1")

	f.Fuzz(func(t *testing.T, raw string) {
		parts := strings.Split(raw, "&")
		reversed := make([]string, len(parts))
		for i, p := range parts {
			reversed[len(parts)-1-i] = p
		}
		if got, want := canonicalQuery(strings.Join(reversed, "&")), canonicalQuery(raw); got != want {
			t.Fatalf("canonicalQuery(%q) = %q, reversed = %q", raw, want, got)
		}
	})
}

// FuzzDecodeResource fuzzes decoding API responses into resources.
// Run with: go test -fuzz=FuzzDecodeResource
func FuzzDecodeResource(f *testing.F) {
	f.Add([]byte(`{"message":{"id":1,"body":"hi"}}`))
	f.Add([]byte(`{"connector":{"id":5,"phone_numbers":[{"phone_number":"+1"}],"callbacks":[]}}`))
	f.Add([]byte(`{"log_items":[{"data":{"message":{"id":1}}}],"last_key":"k"}`))
	f.Add([]byte(`[1,{"id":null},"x"]`))
	f.Add([]byte(`null`))

	c := NewClient("key", "secret", "1")
	f.Fuzz(func(t *testing.T, data []byte) {
		decoded, err := decodeJSON(data)
		if err != nil {
			return
		}
		for _, kind := range []*Kind{MessageKind, ConnectorKind, LogKind, NumberKind} {
			if r, err := c.buildObject(kind, nil, decoded); err == nil {
				_ = r.ToMap()
				_ = r.String()
			}
			_, _ = c.buildList(kind, nil, decoded)
		}
	})
}

// FuzzParseMessageCallback fuzzes callback parsing.
// Run with: go test -fuzz=FuzzParseMessageCallback
func FuzzParseMessageCallback(f *testing.F) {
	f.Add("application/json", `{"message":{"id":1,"body":"hi"}}`)
	f.Add("application/x-www-form-urlencoded", "id=1&body=hi&media_urls=a&media_urls=b")
	f.Add("", `{`)
	f.Add("multipart/form-data", "--x")

	f.Fuzz(func(t *testing.T, contentType, body string) {
		req := httptest.NewRequest(http.MethodPost, "/callbacks/sms", strings.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		msg, err := ParseMessageCallback(req)
		if err == nil && msg == nil {
			t.Fatal("nil message without error")
		}
	})
}
