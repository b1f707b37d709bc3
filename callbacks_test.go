package vivialconnect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callbackRequest(contentType, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/callbacks/sms", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestParseMessageCallback(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantID      string
		wantBody    string
		wantStatus  string
	}{
		{
			name:        "wrapped json",
			contentType: "application/json",
			body:        `{"message": {"id": 12, "body": "hello", "status": "received", "from_number": "+1555"}}`,
			wantID:      "12",
			wantBody:    "hello",
			wantStatus:  "received",
		},
		{
			name:        "bare json",
			contentType: "application/json; charset=utf-8",
			body:        `{"id": 13, "body": "hi", "status": "delivered"}`,
			wantID:      "13",
			wantBody:    "hi",
			wantStatus:  "delivered",
		},
		{
			name:        "json without content type",
			body:        `{"id": 14, "status": "failed"}`,
			wantID:      "14",
			wantStatus:  "failed",
		},
		{
			name:        "form encoded",
			contentType: "application/x-www-form-urlencoded",
			body:        "id=15&body=yo&status=received&media_urls=a&media_urls=b",
			wantID:      "15",
			wantBody:    "yo",
			wantStatus:  "received",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessageCallback(callbackRequest(tt.contentType, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, msg.IDString())
			assert.Equal(t, tt.wantBody, msg.Body())
			assert.Equal(t, tt.wantStatus, msg.Status())
			assert.Nil(t, msg.Client(), "callbacks are detached")
		})
	}

	t.Run("form lists", func(t *testing.T) {
		msg, err := ParseMessageCallback(callbackRequest("application/x-www-form-urlencoded", "media_urls=a&media_urls=b"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, msg.GetStrings("media_urls"))
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ParseMessageCallback(callbackRequest("application/json", "  "))
		assert.ErrorIs(t, err, ErrEmptyBody)

		_, err = ParseMessageCallback(callbackRequest("application/json", "{not json"))
		assert.ErrorIs(t, err, ErrInvalidCallback)

		_, err = ParseMessageCallback(callbackRequest("application/json", `[1,2]`))
		assert.ErrorIs(t, err, ErrInvalidCallback)

		_, err = ParseMessageCallback(callbackRequest("application/x-www-form-urlencoded", "a=%zz"))
		assert.ErrorIs(t, err, ErrInvalidCallback)
	})
}

func TestMessageCallbackHandler(t *testing.T) {
	var got *Message
	handler := MessageCallbackHandler(func(ctx context.Context, m *Message) error {
		if m.Body() == "fail" {
			return errors.New("handler failed")
		}
		got = m
		return nil
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"ok", `{"message": {"id": 1, "body": "hi"}}`, http.StatusNoContent},
		{"bad body", `{`, http.StatusBadRequest},
		{"handler error", `{"body": "fail"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, callbackRequest("application/json", tt.body))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
	require.NotNil(t, got)
	assert.Equal(t, "hi", got.Body())
}

func TestCallbackBind(t *testing.T) {
	msg, err := ParseMessageCallback(callbackRequest("application/json", `{"id": 3, "body": "x"}`))
	require.NoError(t, err)

	c := NewClient("key", "secret", "123")
	msg.Bind(c)
	path, err := msg.ElementPath()
	require.NoError(t, err)
	assert.Equal(t, "/accounts/123/messages/3.json", path)
}
