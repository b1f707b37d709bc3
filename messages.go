package vivialconnect

import (
	"context"
	"fmt"
	"time"
)

// MessageKind is a text message.
var MessageKind = &Kind{
	Name:     "Message",
	Singular: "message",
	Plural:   "messages",
}

// AttachmentKind is a media attachment of a message.
var AttachmentKind = &Kind{
	Name:        "Attachment",
	Singular:    "attachment",
	Plural:      "attachments",
	Subordinate: true,
	ParentPath:  underParent,
}

// underParent renders /{parent plural}/{parent id}.
func underParent(parent *Resource) string {
	return "/" + parent.kind.PluralName() + "/" + parent.IDString()
}

// bulkDateFormat is the layout of Bulk.DateCreated on the wire.
const bulkDateFormat = "2006-01-02T15:04:05"

// Message is an inbound or outbound text message.
type Message struct {
	*Resource
}

// Body returns the text of the message.
func (m *Message) Body() string { return m.GetString("body") }

// ToNumber returns the recipient in E.164 format.
func (m *Message) ToNumber() string { return m.GetString("to_number") }

// FromNumber returns the sender in E.164 format.
func (m *Message) FromNumber() string { return m.GetString("from_number") }

// Status returns the delivery status, e.g. "sent".
func (m *Message) Status() string { return m.GetString("status") }

// Direction returns the direction of the message.
func (m *Message) Direction() string { return m.GetString("direction") }

// MessageType returns local_sms, tollfree_sms or local_mms.
func (m *Message) MessageType() string { return m.GetString("message_type") }

// NumMedia returns the number of media attachments.
func (m *Message) NumMedia() int {
	n, _ := m.GetInt("num_media")
	return n
}

// Attachment is a media attachment of a message.
type Attachment struct {
	*Resource
}

// ContentType returns the MIME type of the attachment.
func (a *Attachment) ContentType() string { return a.GetString("content_type") }

// FileName returns the file name of the attachment.
func (a *Attachment) FileName() string { return a.GetString("file_name") }

// Size returns the size of the attachment in bytes.
func (a *Attachment) Size() int {
	n, _ := a.GetInt("size")
	return n
}

// MessageID returns the id of the owning message.
func (a *Attachment) MessageID() string {
	if id := a.GetString("message_id"); id != "" {
		return id
	}
	if a.parent != nil {
		return a.parent.IDString()
	}
	return ""
}

// Bulk is a bulk send job.
type Bulk struct {
	BulkID        string
	TotalMessages int
	DateCreated   time.Time
	Processed     int
	Errors        int
}

func (b Bulk) String() string {
	return fmt.Sprintf("Bulk(%s)", b.BulkID)
}

// NewMessage creates an unsaved message.
//
// Example:
//
//	msg, _ := client.NewMessage(map[string]any{
//	    "to_number":   "+15555550100",
//	    "from_number": "+15555550199",
//	    "body":        "Hello",
//	})
//	err := msg.Send(ctx)
func (c *Client) NewMessage(attrs map[string]any) (*Message, error) {
	r, err := c.New(MessageKind, attrs)
	if err != nil {
		return nil, err
	}
	return &Message{r}, nil
}

// GetMessage returns a message by ID.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	if messageID == "" {
		return nil, ErrEmptyID
	}
	r, err := c.Find(ctx, MessageKind, messageID, nil)
	if err != nil {
		return nil, err
	}
	return &Message{r}, nil
}

// ListMessagesOptions filters ListMessages.
type ListMessagesOptions struct {
	Page  int
	Limit int

	// Order sorts the listing, e.g. "id desc".
	Order string

	Extra Query
}

func (o *ListMessagesOptions) query() Query {
	q := Query{}
	if o == nil {
		return q
	}
	for k, v := range o.Extra {
		q[k] = v
	}
	if o.Page > 0 {
		q["page"] = o.Page
	}
	if o.Limit > 0 {
		q["limit"] = o.Limit
	}
	setNonEmpty(q, "order", o.Order)
	return q
}

// ListMessages returns one page of messages.
func (c *Client) ListMessages(ctx context.Context, opts *ListMessagesOptions) ([]*Message, error) {
	rs, err := c.FindAll(ctx, MessageKind, opts.query())
	if err != nil {
		return nil, err
	}
	return wrapMessages(rs), nil
}

// CountMessages returns the number of messages.
func (c *Client) CountMessages(ctx context.Context, query Query) (int, error) {
	return c.Count(ctx, MessageKind, query)
}

// Send sends a new message.
func (m *Message) Send(ctx context.Context) error {
	return m.Save(ctx)
}

// Attachment returns one attachment of the message.
func (m *Message) Attachment(ctx context.Context, attachmentID string, query Query) (*Attachment, error) {
	if attachmentID == "" {
		return nil, ErrEmptyID
	}
	path, err := m.client.customPath(AttachmentKind, m.Resource, nil, attachmentID, "")
	if err != nil {
		return nil, err
	}
	data, err := m.client.get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	r, err := m.client.buildObject(AttachmentKind, m.Resource, data)
	if err != nil {
		return nil, err
	}
	return &Attachment{r}, nil
}

// Attachments lists the attachments of the message.
func (m *Message) Attachments(ctx context.Context, query Query) ([]*Attachment, error) {
	path, err := m.client.customPath(AttachmentKind, m.Resource, nil, "", "")
	if err != nil {
		return nil, err
	}
	data, err := m.client.get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	rs, err := m.client.buildList(AttachmentKind, m.Resource, data)
	if err != nil {
		return nil, err
	}
	return wrapAll(rs, func(r *Resource) *Attachment { return &Attachment{r} }), nil
}

// AttachmentsCount returns the number of attachments of the message.
func (m *Message) AttachmentsCount(ctx context.Context, query Query) (int, error) {
	path, err := m.client.customPath(AttachmentKind, m.Resource, nil, "", "/count")
	if err != nil {
		return 0, err
	}
	return m.client.count(ctx, path, query)
}

// SendBulk sends the message to every number in its to_numbers attribute
// and returns the bulk job id.
func (m *Message) SendBulk(ctx context.Context) (string, error) {
	if !m.Has("to_numbers") {
		return "", ErrMissingToNumber
	}
	path, err := m.client.CustomPath(MessageKind, "", "/bulk")
	if err != nil {
		return "", err
	}
	data, err := m.client.post(ctx, path, map[string]any{m.kind.SingularName(): m.ToMap()})
	if err != nil {
		return "", err
	}
	id, ok := asMap(data)["bulk_id"]
	if !ok {
		id, ok = asMap(RemoveRoot(data))["bulk_id"]
	}
	if !ok || id == nil {
		return "", fmt.Errorf("%w: bulk response has no bulk_id", ErrResource)
	}
	return toString(id), nil
}

// BulkMessages returns the messages of a bulk send job.
func (c *Client) BulkMessages(ctx context.Context, bulkID string) ([]*Message, error) {
	if bulkID == "" {
		return nil, ErrEmptyBulkID
	}
	path, err := c.CustomPath(MessageKind, "", "/bulk/"+bulkID)
	if err != nil {
		return nil, err
	}
	data, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	rs, err := c.buildList(MessageKind, nil, data)
	if err != nil {
		return nil, err
	}
	return wrapMessages(rs), nil
}

// Bulks returns every bulk send job of the account.
func (c *Client) Bulks(ctx context.Context) ([]Bulk, error) {
	path, err := c.CustomPath(MessageKind, "", "/bulk")
	if err != nil {
		return nil, err
	}
	data, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	items, ok := RemoveRoot(data).([]any)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected bulk listing %s", ErrResource, truncatePreview([]byte(fmt.Sprint(data))))
	}

	bulks := make([]Bulk, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		b := Bulk{BulkID: toString(m["bulk_id"])}
		b.TotalMessages, _ = toInt(m["total_messages"])
		b.Processed, _ = toInt(m["processed"])
		b.Errors, _ = toInt(m["errors"])
		if s, ok := m["date_created"].(string); ok {
			t, err := time.Parse(bulkDateFormat, s)
			if err != nil {
				return nil, fmt.Errorf("failed to parse bulk date %q: %w", s, err)
			}
			b.DateCreated = t
		}
		bulks = append(bulks, b)
	}
	return bulks, nil
}

func wrapMessages(rs []*Resource) []*Message {
	return wrapAll(rs, func(r *Resource) *Message { return &Message{r} })
}
