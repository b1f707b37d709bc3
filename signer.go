package vivialconnect

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	// TimestampFormat is the basic ISO 8601 layout used in X-Auth-Date.
	TimestampFormat = "20060102T150405Z"

	// dateFormat is the RFC 1123 layout of the Date header.
	dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// SignedHeaders is the allow-list of header names covered by the signature.
var SignedHeaders = []string{"content-type", "date", "host"}

// Signer computes HMAC request signatures for the Vivial Connect API.
type Signer struct {
	Secret string
}

// Signature is the result of signing one request.
type Signature struct {
	// Digest is the hex HMAC-SHA256 of the canonical request.
	Digest string
	// Headers lists the lowercase header names that were signed, sorted.
	Headers []string
	// CanonicalRequest is the exact string that was signed.
	CanonicalRequest string
}

// Sign builds the canonical request for the given call and returns its
// HMAC-SHA256 digest keyed by the API secret.
func (s Signer) Sign(method, timestamp, absURL string, header http.Header, body []byte) (*Signature, error) {
	if s.Secret == "" {
		return nil, &RequestorError{Kind: ErrNoAPISecret, Message: "No API secret provided."}
	}

	u, err := url.Parse(absURL)
	if err != nil {
		return nil, &RequestorError{Kind: ErrRequestor, Message: fmt.Sprintf("invalid request URL %q", absURL), Err: err}
	}

	var lines, names []string
	for name, values := range header {
		lower := strings.ToLower(name)
		if !isSignedHeader(lower) {
			continue
		}
		value := ""
		if len(values) > 0 {
			value = values[0]
		}
		lines = append(lines, lower+":"+value)
		names = append(names, lower)
	}
	sort.Strings(lines)
	sort.Strings(names)

	canonical := strings.Join([]string{
		strings.ToUpper(method),
		timestamp,
		uriEncode(u.EscapedPath(), false),
		canonicalQuery(u.RawQuery),
		strings.Join(lines, "\n"),
		strings.Join(names, ";"),
		hashHex(body),
	}, "\n")

	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(canonical))

	return &Signature{
		Digest:           hex.EncodeToString(mac.Sum(nil)),
		Headers:          names,
		CanonicalRequest: canonical,
	}, nil
}

// Authorization formats the Authorization header value for a digest.
func Authorization(apiKey, digest string) string {
	if apiKey == "" {
		return "HMAC " + digest
	}
	return "HMAC " + apiKey + ":" + digest
}

// FormatTimestamp renders t in the X-Auth-Date layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

func isSignedHeader(lower string) bool {
	for _, h := range SignedHeaders {
		if h == lower {
			return true
		}
	}
	return false
}

func hashHex(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// canonicalQuery decodes each key=value pair, re-encodes both sides with
// slash escaped, and joins the sorted pairs with '&'.
func canonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	var pairs []string
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		pairs = append(pairs, uriEncode(queryUnescape(key), true)+"="+uriEncode(queryUnescape(value), true))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

func queryUnescape(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return strings.ReplaceAll(s, "+", " ")
	}
	return decoded
}

// uriEncode percent-encodes every byte outside A-Z a-z 0-9 _ - ~ . and,
// unless encodeSlash is set, '/'.
func uriEncode(s string, encodeSlash bool) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '_', c == '-', c == '~', c == '.':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}
