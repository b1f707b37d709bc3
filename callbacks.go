package vivialconnect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// Callback parsing errors.
var (
	ErrEmptyBody       = errors.New("vivialconnect: empty callback body")
	ErrInvalidCallback = errors.New("vivialconnect: invalid callback body")
)

// maxCallbackBody bounds the size of a callback request body.
const maxCallbackBody = 1 << 20

// ParseMessageCallback decodes an inbound message or message status callback
// into a detached *Message. JSON bodies may be wrapped as {"message": {...}};
// form encoded bodies are read field by field. Bind the result to a client
// before saving it.
func ParseMessageCallback(r *http.Request) (*Message, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read callback body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}

	var attrs map[string]any
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
		}
		attrs = make(map[string]any, len(values))
		for k, v := range values {
			if len(v) == 1 {
				attrs[k] = v[0]
			} else {
				attrs[k] = v
			}
		}
	} else {
		decoded, err := decodeJSON(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v (body: %s)", ErrInvalidCallback, err, truncatePreview(body))
		}
		if m, ok := decoded.(map[string]any); ok {
			if inner, ok := m[MessageKind.SingularName()].(map[string]any); ok && len(m) == 1 {
				m = inner
			}
			attrs = m
		}
		if attrs == nil {
			return nil, fmt.Errorf("%w: expected an object (body: %s)", ErrInvalidCallback, truncatePreview(body))
		}
	}

	msg := newResource(nil, MessageKind)
	if err := msg.update(attrs); err != nil {
		return nil, err
	}
	return &Message{msg}, nil
}

// MessageCallbackHandler returns an http.Handler that parses each callback
// and passes it to fn. It replies 204 on success, 400 when the body cannot be
// parsed and 500 when fn fails.
func MessageCallbackHandler(fn func(context.Context, *Message) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msg, err := ParseMessageCallback(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := fn(r.Context(), msg); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
