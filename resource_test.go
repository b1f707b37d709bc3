package vivialconnect

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResource_Attributes(t *testing.T) {
	c := NewClient("key", "secret", "123")
	r, err := c.New(MessageKind, map[string]any{"body": "hi", "to_number": "+1555"})
	require.NoError(t, err)

	assert.True(t, r.IsNew())
	assert.Equal(t, "hi", r.GetString("body"))
	assert.True(t, r.Has("to_number"))
	assert.False(t, r.Has("from_number"))

	require.NoError(t, r.Set("from_number", "+1666"))
	assert.Equal(t, []string{"body", "to_number", "from_number"}, r.Keys())
	assert.Equal(t, 3, r.Len())

	r.Delete("to_number")
	assert.Equal(t, []string{"body", "from_number"}, r.Keys())
	assert.Equal(t, "", r.GetString("to_number"))

	r.MustSet("body", "changed")
	assert.Equal(t, []string{"body", "from_number"}, r.Keys(), "overwriting keeps insertion order")
	assert.Equal(t, "changed", r.GetString("body"))
}

func TestResource_TypedGetters(t *testing.T) {
	r := newResource(nil, MessageKind)
	require.NoError(t, r.update(map[string]any{
		"num_media":    json.Number("2"),
		"price":        json.Number("0.0075"),
		"verified":     "true",
		"active":       false,
		"date_created": "2024-01-02T03:04:05",
		"media_urls":   []any{"https://a", "https://b"},
		"opaque":       "x",
	}))

	n, ok := r.GetInt("num_media")
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	f, ok := r.GetFloat("price")
	assert.True(t, ok)
	assert.InDelta(t, 0.0075, f, 1e-9)

	b, ok := r.GetBool("verified")
	assert.True(t, ok)
	assert.True(t, b)
	b, ok = r.GetBool("active")
	assert.True(t, ok)
	assert.False(t, b)
	_, ok = r.GetBool("opaque")
	assert.False(t, ok)

	ts, ok := r.GetTime("date_created")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), ts)

	assert.Equal(t, []string{"https://a", "https://b"}, r.GetStrings("media_urls"))
	assert.Nil(t, r.GetStrings("missing"))

	_, ok = r.GetInt("missing")
	assert.False(t, ok)
	_, ok = r.GetMap("opaque")
	assert.False(t, ok)
}

func TestResource_IDAndString(t *testing.T) {
	c := NewClient("key", "secret", "123")
	msg, err := c.New(MessageKind, nil)
	require.NoError(t, err)
	assert.Equal(t, "message()", msg.String())

	msg.SetID(json.Number("42"))
	assert.False(t, msg.IsNew())
	assert.Equal(t, "42", msg.IDString())
	assert.Equal(t, "message(42)", msg.String())

	att, err := c.NewSubordinate(AttachmentKind, msg, map[string]any{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, "message(42).attachment(7)", att.String())
	assert.Same(t, msg, att.Parent())

	for _, id := range []any{nil, "", json.Number("0"), 0, int64(0), 0.0} {
		assert.True(t, isEmptyID(id), "%#v", id)
	}
	assert.False(t, isEmptyID("abc"))
	assert.False(t, isEmptyID(true))
}

func TestResource_Equal(t *testing.T) {
	c := NewClient("key", "secret", "123")
	a, _ := c.New(MessageKind, map[string]any{"id": 1})
	b, _ := c.New(MessageKind, map[string]any{"id": json.Number("1")})
	other, _ := c.New(NumberKind, map[string]any{"id": 1})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(other))
	assert.False(t, a.Equal(nil))

	b.SetPrefixOptions("users", "7")
	assert.False(t, a.Equal(b))
	assert.Equal(t, []string{"users", "7"}, b.PrefixOptions())
}

func TestResource_update(t *testing.T) {
	t.Run("nested kinds are materialized", func(t *testing.T) {
		c := NewClient("key", "secret", "123")
		conn := newResource(c, ConnectorKind)
		require.NoError(t, conn.update(map[string]any{
			"id":   json.Number("5"),
			"name": "main",
			"phone_numbers": []any{
				map[string]any{"phone_number": "+1555", "phone_number_id": json.Number("10")},
				map[string]any{"phone_number": "+1666", "phone_number_id": json.Number("11")},
			},
			"callbacks": []any{},
		}))

		numbers, err := conn.List("phone_numbers")
		require.NoError(t, err)
		require.Equal(t, 2, numbers.Len())
		first := numbers.At(0)
		assert.Same(t, ConnectorNumberKind, first.Kind())
		assert.Same(t, conn, first.Parent())
		assert.Same(t, c, first.Client())
		assert.Equal(t, "+1555", first.GetString("phone_number"))

		path, err := first.CollectionPath()
		require.NoError(t, err)
		assert.Equal(t, "/accounts/123/connectors/5/phone_numbers.json", path)
	})

	t.Run("opaque keys stay maps", func(t *testing.T) {
		n := newResource(nil, NumberKind)
		require.NoError(t, n.update(map[string]any{
			"phone_number": "+1555",
			"capabilities": map[string]any{"sms": true},
			"tags":         map[string]any{"env": "prod"},
		}))
		m, ok := n.GetMap("capabilities")
		require.True(t, ok)
		assert.Equal(t, true, m["sms"])
		assert.Equal(t, map[string]string{"env": "prod"}, (&Number{n}).Tags())
		assert.Equal(t, map[string]bool{"sms": true}, (&Number{n}).Capabilities())
	})

	t.Run("unknown nested kind fails in strict mode", func(t *testing.T) {
		r := newResource(nil, MessageKind)
		err := r.update(map[string]any{"body": "x", "mystery": map[string]any{"a": 1}})
		assert.ErrorIs(t, err, ErrUnknownKind)
		assert.False(t, r.Has("body"), "nothing is stored when decoding fails")
	})

	t.Run("unknown nested kind kept as map in lenient mode", func(t *testing.T) {
		c := NewClient("key", "secret", "123", WithRegistry(NewRegistry(Lenient())))
		r := newResource(c, MessageKind)
		require.NoError(t, r.update(map[string]any{
			"mystery":  map[string]any{"a": 1},
			"mysteries": []any{map[string]any{"a": 2}},
		}))
		m, ok := r.GetMap("mystery")
		require.True(t, ok)
		assert.Equal(t, 1, m["a"])
		v, _ := r.Get("mysteries")
		assert.Equal(t, []any{map[string]any{"a": 2}}, v)
	})

	t.Run("known nested kind by key", func(t *testing.T) {
		r := newResource(nil, LogKind)
		require.NoError(t, r.update(map[string]any{
			"message": map[string]any{"id": json.Number("3"), "body": "x"},
		}))
		v, ok := r.Get("message")
		require.True(t, ok)
		nested, ok := v.(*Resource)
		require.True(t, ok)
		assert.Same(t, MessageKind, nested.Kind())
		assert.Nil(t, nested.Parent(), "top-level kinds are not owned")
	})

	t.Run("null clears a declared field", func(t *testing.T) {
		conn := newResource(nil, ConnectorKind)
		require.NoError(t, conn.update(map[string]any{"phone_numbers": []any{map[string]any{"phone_number": "+1"}}}))
		require.NoError(t, conn.update(map[string]any{"phone_numbers": nil}))
		l, err := conn.List("phone_numbers")
		require.NoError(t, err)
		assert.Equal(t, 0, l.Len())
	})
}

func TestResource_ToMap(t *testing.T) {
	c := NewClient("key", "secret", "123")
	conn := newResource(c, ConnectorKind)
	require.NoError(t, conn.update(map[string]any{
		"id":            json.Number("5"),
		"name":          "main",
		"phone_numbers": []any{map[string]any{"phone_number": "+1555"}},
	}))

	got := conn.ToMap()
	assert.Equal(t, map[string]any{
		"id":            json.Number("5"),
		"name":          "main",
		"phone_numbers": []any{map[string]any{"phone_number": "+1555"}},
		"callbacks":     []any{},
	}, got)

	// A second decode of the flattened map yields an equal resource.
	again := newResource(c, ConnectorKind)
	require.NoError(t, again.update(got))
	assert.Equal(t, got, again.ToMap())
	assert.True(t, conn.Equal(again))
}

func TestResource_Bind(t *testing.T) {
	a := NewClient("a", "secret", "1")
	b := NewClient("b", "secret", "2")
	conn := newResource(a, ConnectorKind)
	require.NoError(t, conn.update(map[string]any{
		"id":            json.Number("5"),
		"phone_numbers": []any{map[string]any{"phone_number": "+1555"}},
	}))

	conn.Bind(b)
	assert.Same(t, b, conn.Client())
	assert.Same(t, b, (&Connector{conn}).PhoneNumbers().At(0).Client())
}
