package vivialconnect

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Resource is one API object: an ordered attribute bag plus the declared
// subordinate fields of its Kind. A Resource is not safe for concurrent use.
type Resource struct {
	kind          *Kind
	client        *Client
	attrs         *attributes
	fields        map[string]any
	prefixOptions []string
	parent        *Resource
}

func newResource(c *Client, kind *Kind) *Resource {
	return &Resource{kind: kind, client: c, attrs: newAttributes()}
}

// New creates an unsaved resource of kind bound to the client. Values in
// attrs are stored as given; declared fields convert maps to member
// resources.
func (c *Client) New(kind *Kind, attrs map[string]any) (*Resource, error) {
	r := newResource(c, kind)
	if err := r.setAll(attrs); err != nil {
		return nil, err
	}
	return r, nil
}

// NewSubordinate creates an unsaved subordinate resource owned by parent.
func (c *Client) NewSubordinate(kind *Kind, parent Entity, attrs map[string]any) (*Resource, error) {
	if !kind.Subordinate {
		return nil, fmt.Errorf("%w: %s is not a subordinate kind", ErrResource, kind)
	}
	r, err := c.New(kind, attrs)
	if err != nil {
		return nil, err
	}
	if err := r.SetParent(parent); err != nil {
		return nil, err
	}
	return r, nil
}

// Base implements Entity.
func (r *Resource) Base() *Resource {
	return r
}

// Kind returns the resource kind.
func (r *Resource) Kind() *Kind {
	return r.kind
}

// Client returns the client the resource is bound to.
func (r *Resource) Client() *Client {
	return r.client
}

// Bind rebinds the resource and its nested resources to c.
func (r *Resource) Bind(c *Client) {
	r.walk(func(n *Resource) { n.client = c })
}

// Parent returns the owning resource of a subordinate, or nil.
func (r *Resource) Parent() *Resource {
	return r.parent
}

// SetParent binds a subordinate to parent. Once bound, a resource cannot be
// moved to a different parent.
func (r *Resource) SetParent(parent Entity) error {
	var p *Resource
	if parent != nil {
		p = parent.Base()
	}
	if r.parent != nil && p != nil && r.parent != p {
		return fmt.Errorf("%w: %s is owned by %s", ErrOwnership, r, r.parent)
	}
	if p != nil {
		r.parent = p
	}
	return nil
}

// PrefixOptions returns the extra path segment pairs of the resource.
func (r *Resource) PrefixOptions() []string {
	return slices.Clone(r.prefixOptions)
}

// SetPrefixOptions sets extra path segment pairs inserted before the plural
// name, e.g. ("users", "7") for /accounts/1/users/7/{plural}.json.
func (r *Resource) SetPrefixOptions(options ...string) {
	r.prefixOptions = slices.Clone(options)
}

// ID returns the primary key value, or nil.
func (r *Resource) ID() any {
	v, _ := r.attrs.get(r.kind.Key())
	return v
}

// IDString returns the primary key rendered for a URL path.
func (r *Resource) IDString() string {
	return toString(r.ID())
}

// SetID stores the primary key value.
func (r *Resource) SetID(id any) {
	r.attrs.set(r.kind.Key(), id)
}

// IsNew reports whether the resource has no primary key yet.
func (r *Resource) IsNew() bool {
	return isEmptyID(r.ID())
}

func isEmptyID(id any) bool {
	switch v := id.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case json.Number:
		return v == "" || v == "0"
	case int:
		return v == 0
	case int64:
		return v == 0
	case float64:
		return v == 0
	default:
		return false
	}
}

// String renders the resource as singular(id), prefixed by the parent for
// subordinates.
func (r *Resource) String() string {
	s := fmt.Sprintf("%s(%s)", r.kind.SingularName(), r.IDString())
	if r.parent != nil {
		return r.parent.String() + "." + s
	}
	return s
}

// Equal reports whether other is the same kind with the same id and prefix
// options.
func (r *Resource) Equal(other Entity) bool {
	if other == nil {
		return false
	}
	o := other.Base()
	if o == nil {
		return false
	}
	return r.kind == o.kind &&
		toString(r.ID()) == toString(o.ID()) &&
		slices.Equal(r.prefixOptions, o.prefixOptions)
}

// ToMap flattens the resource to plain JSON values. Nested resources become
// maps; declared listings become lists of maps.
func (r *Resource) ToMap() map[string]any {
	out := make(map[string]any, r.Len())
	for _, key := range r.attrs.keys {
		out[key] = flatten(r.attrs.values[key])
	}
	for _, spec := range r.kind.Fields {
		if spec.Listing {
			l := r.listing(spec)
			items := make([]any, 0, l.Len())
			for _, item := range l.items {
				items = append(items, item.ToMap())
			}
			out[spec.Name] = items
			continue
		}
		if v := r.single(spec).Get(); v != nil {
			out[spec.Name] = v.ToMap()
		} else {
			out[spec.Name] = nil
		}
	}
	return out
}

func flatten(v any) any {
	switch val := v.(type) {
	case Entity:
		if b := val.Base(); b != nil {
			return b.ToMap()
		}
		return nil
	case []*Resource:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, item.ToMap())
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, flatten(item))
		}
		return out
	default:
		return v
	}
}

// setAll stores attrs as given, in key order.
func (r *Resource) setAll(attrs map[string]any) error {
	for _, key := range slices.Sorted(maps.Keys(attrs)) {
		if err := r.Set(key, attrs[key]); err != nil {
			return err
		}
	}
	return nil
}

// update repopulates the resource from a decoded response. Nested objects
// are materialized as resources of the kind the registry resolves for their
// key; subordinates get r as parent. Nothing is stored if any value fails.
func (r *Resource) update(data map[string]any) error {
	type entry struct {
		key   string
		value any
	}
	entries := make([]entry, 0, len(data))
	for _, key := range slices.Sorted(maps.Keys(data)) {
		v, err := r.decodeValue(key, data[key])
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: key, value: v})
	}

	for _, e := range entries {
		spec, declared := r.kind.field(e.key)
		if !declared {
			r.attrs.set(e.key, e.value)
			continue
		}
		if e.value == nil {
			delete(r.fields, spec.Name)
			continue
		}
		if err := r.Set(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resource) decodeValue(key string, value any) (any, error) {
	if r.kind.opaque(key) {
		return value, nil
	}
	switch v := value.(type) {
	case map[string]any:
		kind, err := r.registry().resolve(r.kind, key, false)
		if err != nil {
			if r.registry().IsLenient() {
				return v, nil
			}
			return nil, err
		}
		return r.child(kind, v)
	case []any:
		var kind *Kind
		out := make([]any, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				out = append(out, item)
				continue
			}
			if kind == nil {
				k, err := r.registry().resolve(r.kind, key, true)
				if err != nil {
					if !r.registry().IsLenient() {
						return nil, err
					}
					return v, nil
				}
				kind = k
			}
			child, err := r.child(kind, m)
			if err != nil {
				return nil, err
			}
			out = append(out, child)
		}
		return out, nil
	default:
		return value, nil
	}
}

// child builds a nested resource; subordinate kinds are owned by r.
func (r *Resource) child(kind *Kind, data map[string]any) (*Resource, error) {
	c := newResource(r.client, kind)
	if kind.Subordinate {
		c.parent = r
	}
	if err := c.update(data); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Resource) registry() *Registry {
	if r.client != nil && r.client.registry != nil {
		return r.client.registry
	}
	return DefaultRegistry()
}

// walk visits r and every nested resource once.
func (r *Resource) walk(fn func(*Resource)) {
	seen := make(map[*Resource]bool)
	var visit func(*Resource)
	var visitValue func(any)
	visit = func(n *Resource) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		fn(n)
		for _, key := range n.attrs.keys {
			visitValue(n.attrs.values[key])
		}
		for _, slot := range n.fields {
			switch s := slot.(type) {
			case *ResourceField:
				visit(s.value)
			case *ResourceList:
				for _, item := range s.items {
					visit(item)
				}
			}
		}
	}
	visitValue = func(v any) {
		switch val := v.(type) {
		case Entity:
			visit(val.Base())
		case []*Resource:
			for _, item := range val {
				visit(item)
			}
		case []any:
			for _, item := range val {
				visitValue(item)
			}
		}
	}
	visit(r)
}
