package vivialconnect

import (
	"context"
	"fmt"
	"time"
)

// LogKind is an account activity log entry.
var LogKind = &Kind{
	Name:     "Log",
	Singular: "log",
	Plural:   "logs",
	Opaque:   []string{"data"},
}

// Aggregator types accepted by AggregatedLogs.
const (
	AggregateMinutes = "minutes"
	AggregateHours   = "hours"
	AggregateDays    = "days"
	AggregateMonths  = "months"
	AggregateYears   = "years"
)

// Log is one activity log entry.
type Log struct {
	*Resource
}

// LogType returns the log type, e.g. message.queued.
func (l *Log) LogType() string { return l.GetString("log_type") }

// ItemID returns the id of the affected item.
func (l *Log) ItemID() string { return l.GetString("item_id") }

// OperatorID returns the id of the operator that caused the log.
func (l *Log) OperatorID() string { return l.GetString("operator_id") }

// ListLogsOptions filters ListLogs. Start and End are required by the API.
type ListLogsOptions struct {
	Start time.Time
	End   time.Time

	LogType    string
	ItemID     string
	OperatorID string
	Limit      int

	// StartKey continues a listing from the LastKey of a previous page.
	StartKey string

	Extra Query
}

func (o *ListLogsOptions) query() Query {
	q := Query{}
	if o == nil {
		return q
	}
	for k, v := range o.Extra {
		q[k] = v
	}
	if !o.Start.IsZero() {
		q["start_time"] = FormatTimestamp(o.Start)
	}
	if !o.End.IsZero() {
		q["end_time"] = FormatTimestamp(o.End)
	}
	setNonEmpty(q, "log_type", o.LogType)
	setNonEmpty(q, "item_id", o.ItemID)
	setNonEmpty(q, "operator_id", o.OperatorID)
	setNonEmpty(q, "start_key", o.StartKey)
	if o.Limit > 0 {
		q["limit"] = o.Limit
	}
	return q
}

// ListLogs returns one page of logs and the key to pass as StartKey for the
// next page. The key is empty on the last page.
func (c *Client) ListLogs(ctx context.Context, opts *ListLogsOptions) (string, []*Log, error) {
	path, err := c.CollectionPath(LogKind)
	if err != nil {
		return "", nil, err
	}
	data, err := c.get(ctx, path, opts.query())
	if err != nil {
		return "", nil, err
	}
	m, ok := data.(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("%w: unexpected log listing %T", ErrResource, data)
	}
	rs, err := c.buildList(LogKind, nil, m["log_items"])
	if err != nil {
		return "", nil, err
	}
	return toString(m["last_key"]), wrapAll(rs, func(r *Resource) *Log { return &Log{r} }), nil
}

// AggregatedLogs returns log counts bucketed by aggregator (one of the
// Aggregate* constants, AggregateMinutes when empty).
func (c *Client) AggregatedLogs(ctx context.Context, start, end time.Time, aggregator string, extra Query) (map[string]any, error) {
	if aggregator == "" {
		aggregator = AggregateMinutes
	}
	q := Query{}
	for k, v := range extra {
		q[k] = v
	}
	q["start_time"] = FormatTimestamp(start)
	q["end_time"] = FormatTimestamp(end)
	q["aggregator_type"] = aggregator

	path, err := c.CustomPath(LogKind, "", "/aggregate")
	if err != nil {
		return nil, err
	}
	data, err := c.get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	return asMap(data), nil
}
