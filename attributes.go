package vivialconnect

import (
	"fmt"
	"slices"
	"time"
)

// attributes is the ordered dynamic attribute storage of a resource.
type attributes struct {
	keys   []string
	values map[string]any
}

func newAttributes() *attributes {
	return &attributes{values: make(map[string]any)}
}

func (a *attributes) get(key string) (any, bool) {
	v, ok := a.values[key]
	return v, ok
}

func (a *attributes) set(key string, value any) {
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

func (a *attributes) delete(key string) bool {
	if _, ok := a.values[key]; !ok {
		return false
	}
	delete(a.values, key)
	a.keys = slices.DeleteFunc(a.keys, func(k string) bool { return k == key })
	return true
}

func (a *attributes) len() int {
	return len(a.keys)
}

// Get returns the attribute stored under key. Declared single fields yield
// their *Resource (false when unset); declared listings yield *ResourceList.
func (r *Resource) Get(key string) (any, bool) {
	if spec, ok := r.kind.field(key); ok {
		if spec.Listing {
			return r.listing(spec), true
		}
		v := r.single(spec).Get()
		return v, v != nil
	}
	return r.attrs.get(key)
}

// Set stores value under key. Declared fields validate the value's kind and
// parent before storing it.
func (r *Resource) Set(key string, value any) error {
	if spec, ok := r.kind.field(key); ok {
		if spec.Listing {
			return r.listing(spec).Replace(value)
		}
		return r.single(spec).Set(value)
	}
	r.attrs.set(key, value)
	return nil
}

// MustSet is Set for values that cannot fail validation, such as scalars.
// It panics on error.
func (r *Resource) MustSet(key string, value any) *Resource {
	if err := r.Set(key, value); err != nil {
		panic(err)
	}
	return r
}

// Delete removes key. Declared fields are reset to empty.
func (r *Resource) Delete(key string) {
	if spec, ok := r.kind.field(key); ok {
		delete(r.fields, spec.Name)
		return
	}
	r.attrs.delete(key)
}

// Has reports whether key is set.
func (r *Resource) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Keys returns the dynamic keys in insertion order followed by the declared
// field names.
func (r *Resource) Keys() []string {
	out := make([]string, 0, r.Len())
	out = append(out, r.attrs.keys...)
	for _, f := range r.kind.Fields {
		out = append(out, f.Name)
	}
	return out
}

// Len returns the number of dynamic keys plus declared fields.
func (r *Resource) Len() int {
	return r.attrs.len() + len(r.kind.Fields)
}

// GetString returns the attribute as a string, or "" when unset.
func (r *Resource) GetString(key string) string {
	v, ok := r.attrs.get(key)
	if !ok {
		return ""
	}
	return toString(v)
}

// GetInt returns the attribute as an int.
func (r *Resource) GetInt(key string) (int, bool) {
	v, ok := r.attrs.get(key)
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// GetFloat returns the attribute as a float64.
func (r *Resource) GetFloat(key string) (float64, bool) {
	v, ok := r.attrs.get(key)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// GetBool returns the attribute as a bool.
func (r *Resource) GetBool(key string) (bool, bool) {
	v, ok := r.attrs.get(key)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch b {
		case "true", "True", "1":
			return true, true
		case "false", "False", "0":
			return false, true
		}
	}
	return false, false
}

// GetTime parses the attribute as an API timestamp.
func (r *Resource) GetTime(key string) (time.Time, bool) {
	v, ok := r.attrs.get(key)
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return parseTime(t)
	}
	return time.Time{}, false
}

// GetMap returns a plain mapping attribute, such as an opaque field.
func (r *Resource) GetMap(key string) (map[string]any, bool) {
	v, ok := r.attrs.get(key)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// GetStrings returns a list attribute as strings.
func (r *Resource) GetStrings(key string) []string {
	v, ok := r.attrs.get(key)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return slices.Clone(list)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, toString(item))
		}
		return out
	default:
		return []string{fmt.Sprint(list)}
	}
}

// GetResources returns a dynamic list attribute of nested resources.
func (r *Resource) GetResources(key string) []*Resource {
	v, ok := r.attrs.get(key)
	if !ok {
		return nil
	}
	var out []*Resource
	switch list := v.(type) {
	case []*Resource:
		out = append(out, list...)
	case []any:
		for _, item := range list {
			if e, ok := item.(Entity); ok && e.Base() != nil {
				out = append(out, e.Base())
			}
		}
	}
	return out
}
