package vivialconnect

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// QueryTimeFormat is how time.Time query values are rendered.
const QueryTimeFormat = "2006-01-02T15:04:05Z"

// Query holds URL query parameters. Lists are rendered as repeated key[]
// entries and nested maps as key[subkey]; nil values are dropped.
type Query map[string]any

// Encode renders the query in key-sorted order.
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	values := url.Values{}
	q.annotate("", values)
	return values.Encode()
}

// Clone returns a shallow copy of q.
func (q Query) Clone() Query {
	out := make(Query, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

func (q Query) annotate(prefix string, values url.Values) {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "[" + k + "]"
		}
		annotateValue(key, q[k], values)
	}
}

func annotateValue(key string, value any, values url.Values) {
	switch v := value.(type) {
	case nil:
	case Query:
		v.annotate(key, values)
	case map[string]any:
		Query(v).annotate(key, values)
	case map[string]string:
		nested := make(Query, len(v))
		for k, s := range v {
			nested[k] = s
		}
		nested.annotate(key, values)
	case []string:
		for _, s := range v {
			values.Add(key+"[]", s)
		}
	case []int:
		for _, n := range v {
			values.Add(key+"[]", fmt.Sprint(n))
		}
	case []any:
		for _, item := range v {
			values.Add(key+"[]", formatScalar(item))
		}
	default:
		values.Add(key, formatScalar(v))
	}
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(QueryTimeFormat)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// withQuery appends an encoded query to path, respecting an existing '?'.
func withQuery(path string, q Query) string {
	encoded := q.Encode()
	if encoded == "" {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + encoded
	}
	return path + "?" + encoded
}
