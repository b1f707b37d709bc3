package vivialconnect

import (
	"context"
	"iter"
)

// defaultPageLimit is the page size used by the iterators.
const defaultPageLimit = 50

// Messages returns an iterator over all messages with automatic pagination.
// Stops iteration early if an error occurs or context is cancelled.
//
// Example:
//
//	for msg, err := range client.Messages(ctx, &vivialconnect.ListMessagesOptions{Order: "id desc"}) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(msg.IDString(), msg.Body())
//	}
func (c *Client) Messages(ctx context.Context, opts *ListMessagesOptions) iter.Seq2[*Message, error] {
	return func(yield func(*Message, error) bool) {
		page := 1
		if opts != nil && opts.Page > 0 {
			page = opts.Page
		}

		for {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			default:
			}

			reqOpts := &ListMessagesOptions{
				Limit: defaultPageLimit,
				Page:  page,
			}
			if opts != nil {
				reqOpts.Order = opts.Order
				reqOpts.Extra = opts.Extra
				if opts.Limit > 0 {
					reqOpts.Limit = opts.Limit
				}
			}

			messages, err := c.ListMessages(ctx, reqOpts)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, msg := range messages {
				if !yield(msg, nil) {
					return // caller stopped iteration
				}
			}

			if len(messages) < reqOpts.Limit {
				return // no more pages
			}
			page++
		}
	}
}

// Numbers returns an iterator over all associated numbers.
func (c *Client) Numbers(ctx context.Context, query Query) iter.Seq2[*Number, error] {
	return func(yield func(*Number, error) bool) {
		limit := defaultPageLimit
		if n, ok := toInt(query["limit"]); ok && n > 0 {
			limit = n
		}
		page := 1
		if n, ok := toInt(query["page"]); ok && n > 0 {
			page = n
		}

		for {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			default:
			}

			q := query.Clone()
			q["limit"] = limit
			q["page"] = page

			numbers, err := c.ListNumbers(ctx, q)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, n := range numbers {
				if !yield(n, nil) {
					return
				}
			}

			if len(numbers) < limit {
				return
			}
			page++
		}
	}
}

// Logs returns an iterator over all logs in the window, following last_key.
func (c *Client) Logs(ctx context.Context, opts *ListLogsOptions) iter.Seq2[*Log, error] {
	return func(yield func(*Log, error) bool) {
		reqOpts := &ListLogsOptions{}
		if opts != nil {
			*reqOpts = *opts
		}

		for {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			default:
			}

			lastKey, logs, err := c.ListLogs(ctx, reqOpts)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, l := range logs {
				if !yield(l, nil) {
					return
				}
			}

			if lastKey == "" || len(logs) == 0 || lastKey == reqOpts.StartKey {
				return
			}
			reqOpts.StartKey = lastKey
		}
	}
}
