package vivialconnect

import (
	"fmt"
	"iter"
)

// Entity is implemented by *Resource and by every typed wrapper embedding it.
type Entity interface {
	Base() *Resource
}

// ResourceField holds at most one subordinate resource of a declared kind.
type ResourceField struct {
	owner  *Resource
	member *Kind
	value  *Resource
}

// Get returns the held resource, or nil.
func (f *ResourceField) Get() *Resource {
	return f.value
}

// Set stores v, which may be an Entity of the member kind, a map of its
// attributes, or nil to clear the field. A resource already owned by another
// parent is rejected with ErrOwnership.
func (f *ResourceField) Set(v any) error {
	if v == nil {
		f.value = nil
		return nil
	}
	item, err := checkMember(f.owner, f.member, v)
	if err != nil {
		return err
	}
	item.parent = f.owner
	f.value = item
	return nil
}

// Member returns the kind the field accepts.
func (f *ResourceField) Member() *Kind {
	return f.member
}

// ResourceList is an ordered list of subordinate resources owned by one
// parent. Every insertion checks the member kind and ownership.
type ResourceList struct {
	owner  *Resource
	member *Kind
	items  []*Resource
}

// Len returns the number of items.
func (l *ResourceList) Len() int {
	return len(l.items)
}

// At returns the item at index i, or nil when out of range.
func (l *ResourceList) At(i int) *Resource {
	if i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// All returns an iterator over the items in order.
//
// Example:
//
//	for i, number := range connector.PhoneNumbers().All() {
//	    fmt.Println(i, number.GetString("phone_number"))
//	}
func (l *ResourceList) All() iter.Seq2[int, *Resource] {
	return func(yield func(int, *Resource) bool) {
		for i, item := range l.items {
			if !yield(i, item) {
				return
			}
		}
	}
}

// Items returns a copy of the items.
func (l *ResourceList) Items() []*Resource {
	out := make([]*Resource, len(l.items))
	copy(out, l.items)
	return out
}

// Member returns the kind the list accepts.
func (l *ResourceList) Member() *Kind {
	return l.member
}

// Append adds values at the end of the list. Nothing is added unless every
// value passes validation.
func (l *ResourceList) Append(values ...any) error {
	items, err := l.checkAll(values)
	if err != nil {
		return err
	}
	l.bind(items)
	l.items = append(l.items, items...)
	return nil
}

// Insert adds v before index i. Indexes are clamped to the list bounds.
func (l *ResourceList) Insert(i int, v any) error {
	item, err := checkMember(l.owner, l.member, v)
	if err != nil {
		return err
	}
	i = max(0, min(i, len(l.items)))
	item.parent = l.owner
	l.items = append(l.items, nil)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = item
	return nil
}

// Set replaces the item at index i.
func (l *ResourceList) Set(i int, v any) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndex, i, len(l.items))
	}
	item, err := checkMember(l.owner, l.member, v)
	if err != nil {
		return err
	}
	item.parent = l.owner
	l.items[i] = item
	return nil
}

// Delete removes the item at index i.
func (l *ResourceList) Delete(i int) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndex, i, len(l.items))
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return nil
}

// Replace swaps the whole content for values, which may be a slice of
// entities or maps, another *ResourceList, or nil for an empty list. Items
// owned by a different parent are rejected and the list is left unchanged.
func (l *ResourceList) Replace(values any) error {
	var raw []any
	switch v := values.(type) {
	case nil:
	case []any:
		raw = v
	case []*Resource:
		for _, item := range v {
			raw = append(raw, item)
		}
	case []map[string]any:
		for _, item := range v {
			raw = append(raw, item)
		}
	case *ResourceList:
		if v == l {
			return nil
		}
		for _, item := range v.items {
			raw = append(raw, item)
		}
	case []Entity:
		for _, item := range v {
			raw = append(raw, item)
		}
	default:
		return fmt.Errorf("%w: cannot use %T as a %s listing", ErrWrongKind, values, l.member)
	}

	items, err := l.checkAll(raw)
	if err != nil {
		return err
	}
	l.bind(items)
	l.items = items
	return nil
}

func (l *ResourceList) checkAll(values []any) ([]*Resource, error) {
	items := make([]*Resource, 0, len(values))
	for _, v := range values {
		item, err := checkMember(l.owner, l.member, v)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (l *ResourceList) bind(items []*Resource) {
	for _, item := range items {
		item.parent = l.owner
	}
}

// checkMember validates v for a field of owner holding member resources and
// returns the resource to store. Maps are converted to new member instances.
func checkMember(owner *Resource, member *Kind, v any) (*Resource, error) {
	switch val := v.(type) {
	case map[string]any:
		r := newResource(owner.client, member)
		if err := r.setAll(val); err != nil {
			return nil, err
		}
		return r, nil
	case Entity:
		r := val.Base()
		if r == nil {
			return nil, fmt.Errorf("%w: nil %s", ErrWrongKind, member)
		}
		if r.kind != member {
			return nil, fmt.Errorf("%w: value must be a %s or map, got %s", ErrWrongKind, member, r.kind)
		}
		if r.parent != nil && r.parent != owner {
			return nil, fmt.Errorf("%w: %s is owned by %s", ErrOwnership, r, r.parent)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("%w: value must be a %s or map, got %T", ErrWrongKind, member, v)
	}
}

// single returns the lazily created slot for a declared single field.
func (r *Resource) single(spec FieldSpec) *ResourceField {
	if f, ok := r.fields[spec.Name].(*ResourceField); ok {
		return f
	}
	f := &ResourceField{owner: r, member: spec.Member}
	r.setSlot(spec.Name, f)
	return f
}

// listing returns the lazily created slot for a declared listing field.
func (r *Resource) listing(spec FieldSpec) *ResourceList {
	if l, ok := r.fields[spec.Name].(*ResourceList); ok {
		return l
	}
	l := &ResourceList{owner: r, member: spec.Member}
	r.setSlot(spec.Name, l)
	return l
}

func (r *Resource) setSlot(name string, slot any) {
	if r.fields == nil {
		r.fields = make(map[string]any)
	}
	r.fields[name] = slot
}

// Field returns the declared single field name.
func (r *Resource) Field(name string) (*ResourceField, error) {
	spec, ok := r.kind.field(name)
	if !ok || spec.Listing {
		return nil, fmt.Errorf("%w: %s has no single field %q", ErrResource, r.kind, name)
	}
	return r.single(spec), nil
}

// List returns the declared listing field name.
func (r *Resource) List(name string) (*ResourceList, error) {
	spec, ok := r.kind.field(name)
	if !ok || !spec.Listing {
		return nil, fmt.Errorf("%w: %s has no listing field %q", ErrResource, r.kind, name)
	}
	return r.listing(spec), nil
}
