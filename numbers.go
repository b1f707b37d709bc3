package vivialconnect

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// NumberKind is a phone number associated with the account. Its write
// envelope is "phone_number" while its path segment is "numbers".
var NumberKind = &Kind{
	Name:     "Number",
	Singular: "phone_number",
	Plural:   "numbers",
	Opaque:   []string{"capabilities", "tags"},
}

// NumberInfoKind is the carrier and device information of a phone number.
var NumberInfoKind = &Kind{
	Name:     "NumberInfo",
	Singular: "number_info",
	Plural:   "number_infos",
	Opaque:   []string{"carrier"},
}

// Number types accepted by AvailableNumbers.
const (
	NumberTypeLocal    = "local"
	NumberTypeTollFree = "tollfree"
)

// Number is an associated or available phone number.
type Number struct {
	*Resource
}

// PhoneNumber returns the number in E.164 format.
func (n *Number) PhoneNumber() string { return n.GetString("phone_number") }

// Name returns the friendly display form of the number.
func (n *Number) Name() string { return n.GetString("name") }

// PhoneNumberType returns "local" or "tollfree".
func (n *Number) PhoneNumberType() string { return n.GetString("phone_number_type") }

// Capabilities returns the capability flags of the number.
func (n *Number) Capabilities() map[string]bool {
	raw, _ := n.GetMap("capabilities")
	out := make(map[string]bool, len(raw))
	for k, v := range raw {
		b, _ := v.(bool)
		out[k] = b
	}
	return out
}

// Tags returns the tags of the number.
func (n *Number) Tags() map[string]string {
	raw, _ := n.GetMap("tags")
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = toString(v)
	}
	return out
}

// NumberInfo describes the carrier and device type of a phone number.
type NumberInfo struct {
	*Resource
}

// Carrier returns the carrier details of the number.
func (i *NumberInfo) Carrier() map[string]any {
	m, _ := i.GetMap("carrier")
	return m
}

// DeviceType returns the device type, e.g. "mobile".
func (i *NumberInfo) DeviceType() string { return i.GetString("device_type") }

// NewNumber creates an unsaved number, ready for Buy.
func (c *Client) NewNumber(attrs map[string]any) (*Number, error) {
	r, err := c.New(NumberKind, attrs)
	if err != nil {
		return nil, err
	}
	return &Number{r}, nil
}

// GetNumber returns an associated number by ID.
func (c *Client) GetNumber(ctx context.Context, numberID string) (*Number, error) {
	if numberID == "" {
		return nil, ErrEmptyID
	}
	r, err := c.Find(ctx, NumberKind, numberID, nil)
	if err != nil {
		return nil, err
	}
	return &Number{r}, nil
}

// ListNumbers returns the numbers associated with the account.
func (c *Client) ListNumbers(ctx context.Context, query Query) ([]*Number, error) {
	rs, err := c.FindAll(ctx, NumberKind, query)
	if err != nil {
		return nil, err
	}
	return wrapNumbers(rs), nil
}

// CountNumbers returns the number of associated numbers.
func (c *Client) CountNumbers(ctx context.Context, query Query) (int, error) {
	return c.Count(ctx, NumberKind, query)
}

// AvailableNumbersOptions filters AvailableNumbers.
type AvailableNumbersOptions struct {
	CountryCode string // defaults to "US"
	NumberType  string // NumberTypeLocal (default) or NumberTypeTollFree

	AreaCode string
	InRegion string
	InPostal string
	Contains string
	Limit    int

	Extra Query
}

// AvailableNumbers searches numbers available for purchase.
func (c *Client) AvailableNumbers(ctx context.Context, opts *AvailableNumbersOptions) ([]*Number, error) {
	if opts == nil {
		opts = &AvailableNumbersOptions{}
	}
	country := "US"
	if opts.CountryCode != "" {
		country = strings.ToUpper(opts.CountryCode)
	}
	numberType := NumberTypeLocal
	if opts.NumberType != "" {
		numberType = strings.ToLower(opts.NumberType)
	}

	q := Query{}
	for k, v := range opts.Extra {
		q[k] = v
	}
	setNonEmpty(q, "area_code", opts.AreaCode)
	setNonEmpty(q, "in_region", opts.InRegion)
	setNonEmpty(q, "in_postal", opts.InPostal)
	setNonEmpty(q, "contains", opts.Contains)
	if opts.Limit > 0 {
		q["limit"] = opts.Limit
	}

	path, err := c.CustomPath(NumberKind, "", "/available/"+country+"/"+numberType)
	if err != nil {
		return nil, err
	}
	data, err := c.get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	rs, err := c.buildList(NumberKind, nil, data)
	if err != nil {
		return nil, err
	}
	return wrapNumbers(rs), nil
}

// Buy purchases the number. Any id is cleared first so the save is a
// create.
func (n *Number) Buy(ctx context.Context) error {
	n.attrs.delete(n.kind.Key())
	return n.Save(ctx)
}

// BuyLocal purchases the number as a local number.
func (n *Number) BuyLocal(ctx context.Context) error {
	n.attrs.set("phone_number_type", NumberTypeLocal)
	return n.Save(ctx)
}

// RemoveTag deletes the tag key from a saved number on the server and
// refreshes the local tags. It reports whether the server returned the
// updated number.
func (n *Number) RemoveTag(ctx context.Context, key string) (bool, error) {
	if n.IsNew() {
		return false, fmt.Errorf("%w: %s", ErrEmptyID, n.kind)
	}
	if _, ok := n.Tags()[key]; !ok {
		return false, fmt.Errorf("%w: %q", ErrTagNotFound, key)
	}
	path, err := n.CustomPath("/tags")
	if err != nil {
		return false, err
	}
	data, err := n.client.delete(ctx, path, map[string]any{"tags": map[string]any{key: ""}})
	if err != nil {
		return false, err
	}
	tags, ok := GetMap(asMap(data), n.kind.SingularName(), "tags")
	if !ok {
		return false, nil
	}
	n.attrs.set("tags", tags)
	return true, nil
}

// TaggedNumbersOptions filters TaggedNumbers.
type TaggedNumbersOptions struct {
	// Contains and NotContains match tags; each is sent as "k:v,k:v".
	Contains    map[string]string
	NotContains map[string]string

	Page  int
	Limit int
	Extra Query
}

// TaggedNumbers returns the numbers whose tags match the filters.
func (c *Client) TaggedNumbers(ctx context.Context, opts *TaggedNumbersOptions) ([]*Number, error) {
	if opts == nil {
		opts = &TaggedNumbersOptions{}
	}
	q := Query{}
	for k, v := range opts.Extra {
		q[k] = v
	}
	setNonEmpty(q, "contains", formatTagFilter(opts.Contains))
	setNonEmpty(q, "notcontains", formatTagFilter(opts.NotContains))
	if opts.Page > 0 {
		q["page"] = opts.Page
	}
	if opts.Limit > 0 {
		q["limit"] = opts.Limit
	}

	path, err := c.CustomPath(NumberKind, "", "/tags")
	if err != nil {
		return nil, err
	}
	data, err := c.get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	items, _ := asMap(data)["items"].([]any)
	rs, err := c.buildList(NumberKind, nil, items)
	if err != nil {
		return nil, err
	}
	return wrapNumbers(rs), nil
}

// formatTagFilter renders tags as "k:v,k:v" in key order.
func formatTagFilter(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tags))
	for _, k := range slices.Sorted(maps.Keys(tags)) {
		parts = append(parts, k+":"+tags[k])
	}
	return strings.Join(parts, ",")
}

// LookupNumber returns carrier and device information for a phone number.
func (c *Client) LookupNumber(ctx context.Context, phoneNumber string) (*NumberInfo, error) {
	if phoneNumber == "" {
		return nil, ErrEmptyPhone
	}
	path, err := c.CustomPath(NumberKind, "", "/lookup")
	if err != nil {
		return nil, err
	}
	data, err := c.get(ctx, path, Query{"phone_number": phoneNumber})
	if err != nil {
		return nil, err
	}
	info, ok := asMap(data)["number_info"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: lookup response has no number_info", ErrResource)
	}
	r, err := c.decode(NumberInfoKind, nil, info)
	if err != nil {
		return nil, err
	}
	return &NumberInfo{r}, nil
}

func wrapNumbers(rs []*Resource) []*Number {
	return wrapAll(rs, func(r *Resource) *Number { return &Number{r} })
}

func setNonEmpty(q Query, key, value string) {
	if value != "" {
		q[key] = value
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
