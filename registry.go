package vivialconnect

import (
	"fmt"
	"slices"
	"sync"

	"github.com/go-openapi/inflect"
)

// FieldSpec declares that attribute Name holds subordinate resources of kind
// Member: one when Listing is false, an ordered list otherwise.
type FieldSpec struct {
	Name    string
	Member  *Kind
	Listing bool
}

// Kind describes one API object type. Kinds are declared once and registered
// in a Registry; Singular and Plural default from Name when empty.
type Kind struct {
	// Name is the CamelCase type name, e.g. "ConnectorNumber".
	Name     string
	Singular string
	Plural   string

	// PrimaryKey defaults to "id".
	PrimaryKey string

	// Unscoped kinds live outside /accounts/{account_id}.
	Unscoped bool

	// Subordinate kinds only exist under a parent resource and cannot be
	// searched directly. ParentPath renders the parent's part of their path.
	Subordinate bool
	ParentPath  func(parent *Resource) string

	// Envelope adds an outer key around the {singular: ...} write body.
	Envelope string

	Fields []FieldSpec

	// Opaque lists keys whose mapping values are stored as plain maps.
	Opaque []string
}

// SingularName returns the singular wire name (the write envelope key).
func (k *Kind) SingularName() string {
	if k.Singular != "" {
		return k.Singular
	}
	return inflect.Underscore(k.Name)
}

// PluralName returns the plural path segment.
func (k *Kind) PluralName() string {
	if k.Plural != "" {
		return k.Plural
	}
	return inflect.Pluralize(k.SingularName())
}

// Key returns the primary key attribute name.
func (k *Kind) Key() string {
	if k.PrimaryKey != "" {
		return k.PrimaryKey
	}
	return "id"
}

// TypeName returns Name, or the camelized singular name.
func (k *Kind) TypeName() string {
	if k.Name != "" {
		return k.Name
	}
	return inflect.Camelize(k.SingularName())
}

func (k *Kind) String() string {
	return k.TypeName()
}

func (k *Kind) field(name string) (FieldSpec, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

func (k *Kind) opaque(key string) bool {
	return slices.Contains(k.Opaque, key)
}

type fieldKey struct {
	owner string
	field string
}

// Registry maps wire names to kinds. Nested JSON objects are decoded by
// looking up (owner kind, field name) first and then the field name alone.
type Registry struct {
	mu      sync.RWMutex
	kinds   map[string]*Kind
	fields  map[fieldKey]*Kind
	lenient bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// Lenient makes the registry keep nested objects of unknown kind as plain
// maps instead of failing with ErrUnknownKind.
func Lenient() RegistryOption {
	return func(r *Registry) {
		r.lenient = true
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		kinds:  make(map[string]*Kind),
		fields: make(map[fieldKey]*Kind),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds kinds under their singular and type names.
func (r *Registry) Register(kinds ...*Kind) error {
	for _, k := range kinds {
		if err := validateKind(k); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range kinds {
		r.kinds[k.SingularName()] = k
		r.kinds[k.TypeName()] = k
	}
	return nil
}

// RegisterField routes the nested field of owner to member.
func (r *Registry) RegisterField(owner *Kind, field string, member *Kind) error {
	if owner == nil || member == nil || field == "" {
		return fmt.Errorf("%w: owner, field and member are required", ErrResource)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[fieldKey{owner: owner.SingularName(), field: field}] = member
	return nil
}

// Lookup finds a kind by singular wire name or type name.
func (r *Registry) Lookup(name string) (*Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k, ok := r.kinds[name]; ok {
		return k, true
	}
	k, ok := r.kinds[inflect.Camelize(name)]
	return k, ok
}

// Kinds returns every registered kind once, sorted by type name.
func (r *Registry) Kinds() []*Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[*Kind]bool)
	var out []*Kind
	for _, k := range r.kinds {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	slices.SortFunc(out, func(a, b *Kind) int {
		switch {
		case a.TypeName() < b.TypeName():
			return -1
		case a.TypeName() > b.TypeName():
			return 1
		}
		return 0
	})
	return out
}

// IsLenient reports whether unknown nested objects are kept as maps.
func (r *Registry) IsLenient() bool {
	return r.lenient
}

// resolve finds the kind for a nested value under owner. For list values the
// field name is singularized before the name lookup.
func (r *Registry) resolve(owner *Kind, field string, listing bool) (*Kind, error) {
	if spec, ok := owner.field(field); ok && spec.Member != nil {
		return spec.Member, nil
	}

	r.mu.RLock()
	k, ok := r.fields[fieldKey{owner: owner.SingularName(), field: field}]
	r.mu.RUnlock()
	if ok {
		return k, nil
	}

	name := field
	if listing {
		name = inflect.Singularize(field)
	}
	if k, ok := r.Lookup(name); ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w for field %q of %s", ErrUnknownKind, field, owner)
}

func validateKind(k *Kind) error {
	if k == nil {
		return fmt.Errorf("%w: nil kind", ErrResource)
	}
	if k.Name == "" && k.Singular == "" {
		return fmt.Errorf("%w: kind needs a Name or Singular", ErrResource)
	}
	if k.Subordinate && k.ParentPath == nil {
		return fmt.Errorf("%w: subordinate kind %s has no ParentPath", ErrResource, k)
	}
	for _, f := range k.Fields {
		if f.Member == nil {
			return fmt.Errorf("%w: field %q of %s has no member kind", ErrResource, f.Name, k)
		}
		if !f.Member.Subordinate {
			return fmt.Errorf("%w: field %q of %s: member %s must be subordinate", ErrResource, f.Name, k, f.Member)
		}
	}
	return nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	if err := r.Register(builtinKinds()...); err != nil {
		panic(err)
	}
	return r
})

// DefaultRegistry returns the shared registry holding every built-in kind.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

func builtinKinds() []*Kind {
	return []*Kind{
		AccountKind,
		TransactionKind,
		MessageKind,
		AttachmentKind,
		NumberKind,
		NumberInfoKind,
		ConnectorKind,
		ConnectorNumberKind,
		ConnectorCallbackKind,
		UserKind,
		CredentialKind,
		LogKind,
		ConfigurationKind,
	}
}
