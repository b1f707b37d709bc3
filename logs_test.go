package vivialconnect

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLogs(t *testing.T) {
	var query url.Values
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1.0/accounts/123/logs.json", r.URL.Path)
		query = r.URL.Query()
		writeJSON(w, http.StatusOK, map[string]any{
			"log_items": []any{map[string]any{
				"log_type":    "message.queued",
				"item_id":     "42",
				"operator_id": "7",
				"data":        map[string]any{"message": map[string]any{"id": 42}},
			}},
			"last_key": "abc",
		})
	})

	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	next, logs, err := c.ListLogs(context.Background(), &ListLogsOptions{
		Start:   end.AddDate(0, 0, -1),
		End:     end,
		LogType: "message.queued",
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", next)
	assert.Equal(t, "20240101T000000Z", query.Get("start_time"))
	assert.Equal(t, "20240102T000000Z", query.Get("end_time"))
	assert.Equal(t, "message.queued", query.Get("log_type"))
	assert.Equal(t, "10", query.Get("limit"))
	assert.False(t, query.Has("start_key"))

	require.Len(t, logs, 1)
	assert.Equal(t, "message.queued", logs[0].LogType())
	assert.Equal(t, "42", logs[0].ItemID())
	assert.Equal(t, "7", logs[0].OperatorID())
	data, ok := logs[0].GetMap("data")
	require.True(t, ok, "log data stays a plain map")
	assert.Contains(t, data, "message")
}

func TestListLogs_Unexpected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []any{1, 2})
	})
	_, _, err := c.ListLogs(context.Background(), nil)
	assert.ErrorIs(t, err, ErrResource)
}

func TestAggregatedLogs(t *testing.T) {
	tests := []struct {
		name       string
		aggregator string
		extra      Query
		want       url.Values
	}{
		{
			name: "defaults to minutes",
			want: url.Values{
				"aggregator_type": {"minutes"},
				"start_time":      {"20240101T000000Z"},
				"end_time":        {"20240102T000000Z"},
			},
		},
		{
			name:       "days with a filter",
			aggregator: AggregateDays,
			extra:      Query{"log_type": "message.sent", "aggregator_type": "ignored"},
			want: url.Values{
				"aggregator_type": {"days"},
				"log_type":        {"message.sent"},
				"start_time":      {"20240101T000000Z"},
				"end_time":        {"20240102T000000Z"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var query url.Values
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1.0/accounts/123/logs/aggregate.json", r.URL.Path)
				query = r.URL.Query()
				writeJSON(w, http.StatusOK, map[string]any{"log_items": []any{
					map[string]any{"aggregate_key": "2024-01-01", "log_count": 3},
				}})
			})

			start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			got, err := c.AggregatedLogs(context.Background(), start, start.AddDate(0, 0, 1), tt.aggregator, tt.extra)
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
			assert.Contains(t, got, "log_items")
		})
	}
}
