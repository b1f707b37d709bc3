package vivialconnect

import (
	"context"
	"fmt"
)

// ConnectorNumberKind is a phone number associated with a connector.
var ConnectorNumberKind = &Kind{
	Name:        "ConnectorNumber",
	Singular:    "connector_number",
	Plural:      "phone_numbers",
	Subordinate: true,
	ParentPath:  underParent,
}

// ConnectorCallbackKind is a callback configuration of a connector.
var ConnectorCallbackKind = &Kind{
	Name:        "ConnectorCallback",
	Singular:    "connector_callback",
	Plural:      "callbacks",
	Subordinate: true,
	ParentPath:  underParent,
}

// ConnectorKind groups phone numbers under shared callback configurations.
var ConnectorKind = &Kind{
	Name:     "Connector",
	Singular: "connector",
	Plural:   "connectors",
	Fields: []FieldSpec{
		{Name: "phone_numbers", Member: ConnectorNumberKind, Listing: true},
		{Name: "callbacks", Member: ConnectorCallbackKind, Listing: true},
	},
}

// Connector is a set of phone numbers sharing callback configurations.
type Connector struct {
	*Resource
}

// Name returns the user defined label of the connector.
func (c *Connector) Name() string { return c.GetString("name") }

// MoreNumbers reports whether the connector has more than the 50 numbers
// included in its representation.
func (c *Connector) MoreNumbers() bool {
	b, _ := c.GetBool("more_numbers")
	return b
}

// PhoneNumbers returns the phone number listing of the connector.
func (c *Connector) PhoneNumbers() *ResourceList {
	l, _ := c.List("phone_numbers")
	return l
}

// Callbacks returns the callback listing of the connector.
func (c *Connector) Callbacks() *ResourceList {
	l, _ := c.List("callbacks")
	return l
}

// AddPhoneNumber appends a number to the connector by phone number or id.
// The change is sent on the next Save.
func (c *Connector) AddPhoneNumber(phoneNumber string, phoneNumberID any) error {
	attrs := map[string]any{}
	if phoneNumber != "" {
		attrs["phone_number"] = phoneNumber
	}
	if phoneNumberID != nil {
		attrs["phone_number_id"] = phoneNumberID
	}
	if len(attrs) == 0 {
		return ErrEmptyPhone
	}
	return c.PhoneNumbers().Append(attrs)
}

// AddCallback appends a callback configuration to the connector. The change
// is sent on the next Save.
func (c *Connector) AddCallback(messageType, eventType, url, method string) error {
	return c.Callbacks().Append(map[string]any{
		"message_type": messageType,
		"event_type":   eventType,
		"url":          url,
		"method":       method,
	})
}

// ConnectorNumber is a phone number associated with a connector.
type ConnectorNumber struct {
	*Resource
}

// Identity returns the phone number.
func (n *ConnectorNumber) Identity() string { return n.GetString("phone_number") }

// ConnectorCallback is a callback configuration of a connector.
type ConnectorCallback struct {
	*Resource
}

// Identity describes the message and event type the callback applies to.
func (cb *ConnectorCallback) Identity() string {
	return fmt.Sprintf("message_type: %s, event_type: %s", cb.GetString("message_type"), cb.GetString("event_type"))
}

// NewConnector creates an unsaved connector.
func (c *Client) NewConnector(attrs map[string]any) (*Connector, error) {
	r, err := c.New(ConnectorKind, attrs)
	if err != nil {
		return nil, err
	}
	return &Connector{r}, nil
}

// GetConnector returns a connector by ID.
func (c *Client) GetConnector(ctx context.Context, connectorID string) (*Connector, error) {
	if connectorID == "" {
		return nil, ErrEmptyID
	}
	r, err := c.Find(ctx, ConnectorKind, connectorID, nil)
	if err != nil {
		return nil, err
	}
	return &Connector{r}, nil
}

// ListConnectors returns the connectors of the account.
func (c *Client) ListConnectors(ctx context.Context, query Query) ([]*Connector, error) {
	rs, err := c.FindAll(ctx, ConnectorKind, query)
	if err != nil {
		return nil, err
	}
	return wrapAll(rs, func(r *Resource) *Connector { return &Connector{r} }), nil
}

// CreateConnector creates a connector.
func (c *Client) CreateConnector(ctx context.Context, attrs map[string]any) (*Connector, error) {
	r, err := c.Create(ctx, ConnectorKind, attrs)
	if err != nil {
		return nil, err
	}
	return &Connector{r}, nil
}

// CountConnectors returns the number of connectors.
func (c *Client) CountConnectors(ctx context.Context, query Query) (int, error) {
	return c.Count(ctx, ConnectorKind, query)
}
