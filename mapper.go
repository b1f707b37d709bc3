package vivialconnect

import (
	"context"
	"fmt"
	"strings"
)

const pathExt = ".json"

// pathPrefix builds the part of a path before the plural name:
// /accounts/{account_id}, the parent's path for subordinates, then any
// prefix option pairs.
func (c *Client) pathPrefix(kind *Kind, parent *Resource, options []string) (string, error) {
	var b strings.Builder
	if !kind.Unscoped {
		if c.accountID == "" {
			return "", ErrEmptyAccountID
		}
		b.WriteString("/accounts/")
		b.WriteString(c.accountID)
	}
	if kind.Subordinate {
		if parent == nil {
			return "", fmt.Errorf("%w: %s has no parent resource", ErrResource, kind)
		}
		if parent.IsNew() {
			return "", fmt.Errorf("%w: parent %s of %s has not been saved", ErrResource, parent, kind)
		}
		b.WriteString(kind.ParentPath(parent))
	}
	for i := 0; i+1 < len(options); i += 2 {
		b.WriteString("/" + options[i] + "/" + options[i+1])
	}
	return b.String(), nil
}

// CollectionPath returns {prefix}/{plural}.json.
func (c *Client) CollectionPath(kind *Kind) (string, error) {
	return c.CustomPath(kind, "", "")
}

// ElementPath returns {prefix}/{plural}/{id}.json.
func (c *Client) ElementPath(kind *Kind, id string) (string, error) {
	if id == "" {
		return "", ErrEmptyID
	}
	return c.CustomPath(kind, id, "")
}

// CustomPath returns {prefix}/{plural}[/{id}]{suffix}.json for sub-endpoints
// such as /count or /available/US/local.
func (c *Client) CustomPath(kind *Kind, id, suffix string) (string, error) {
	return c.customPath(kind, nil, nil, id, suffix)
}

func (c *Client) customPath(kind *Kind, parent *Resource, options []string, id, suffix string) (string, error) {
	prefix, err := c.pathPrefix(kind, parent, options)
	if err != nil {
		return "", err
	}
	path := prefix + "/" + kind.PluralName()
	if id != "" {
		path += "/" + id
	}
	return path + suffix + pathExt, nil
}

// CollectionPath returns the collection path of the resource.
func (r *Resource) CollectionPath() (string, error) {
	return r.client.customPath(r.kind, r.parent, r.prefixOptions, "", "")
}

// ElementPath returns the element path of the resource.
func (r *Resource) ElementPath() (string, error) {
	id := r.IDString()
	if r.IsNew() {
		return "", fmt.Errorf("%w: %s", ErrEmptyID, r.kind)
	}
	return r.client.customPath(r.kind, r.parent, r.prefixOptions, id, "")
}

// CustomPath returns {element path}{suffix}.json, or the collection variant
// when the resource is new.
func (r *Resource) CustomPath(suffix string) (string, error) {
	id := ""
	if !r.IsNew() {
		id = r.IDString()
	}
	return r.client.customPath(r.kind, r.parent, r.prefixOptions, id, suffix)
}

// Find fetches one resource by id.
func (c *Client) Find(ctx context.Context, kind *Kind, id string, query Query) (*Resource, error) {
	if kind.Subordinate {
		return nil, fmt.Errorf("%w: cannot find subordinate %s resources", ErrNotImplemented, kind)
	}
	path, err := c.ElementPath(kind, id)
	if err != nil {
		return nil, err
	}
	data, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	return c.buildObject(kind, nil, data)
}

// FindAll lists resources of kind. A response holding a single object is
// treated as a one-element list.
func (c *Client) FindAll(ctx context.Context, kind *Kind, query Query) ([]*Resource, error) {
	if kind.Subordinate {
		return nil, fmt.Errorf("%w: cannot find subordinate %s resources", ErrNotImplemented, kind)
	}
	path, err := c.CollectionPath(kind)
	if err != nil {
		return nil, err
	}
	data, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	return c.buildList(kind, nil, data)
}

// FindFirst returns the first resource of the listing, or nil when the
// listing is empty.
func (c *Client) FindFirst(ctx context.Context, kind *Kind, query Query) (*Resource, error) {
	resources, err := c.FindAll(ctx, kind, query)
	if err != nil || len(resources) == 0 {
		return nil, err
	}
	return resources[0], nil
}

// Create builds a resource from attrs and saves it.
func (c *Client) Create(ctx context.Context, kind *Kind, attrs map[string]any) (*Resource, error) {
	r, err := c.New(kind, attrs)
	if err != nil {
		return nil, err
	}
	if err := r.Save(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Count returns the number of resources of kind matching query.
func (c *Client) Count(ctx context.Context, kind *Kind, query Query) (int, error) {
	path, err := c.CustomPath(kind, "", "/count")
	if err != nil {
		return 0, err
	}
	return c.count(ctx, path, query)
}

func (c *Client) count(ctx context.Context, path string, query Query) (int, error) {
	data, err := c.get(ctx, path, query)
	if err != nil {
		return 0, err
	}
	n, ok := toInt(RemoveRoot(data))
	if !ok {
		return 0, fmt.Errorf("%w: unexpected count response %v", ErrResource, data)
	}
	return n, nil
}

// Save creates the resource (POST to the collection) when it is new, or
// updates it (PUT to the element) otherwise, then refreshes it from the
// response.
func (r *Resource) Save(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("%w: %s is not bound to a client", ErrResource, r.kind)
	}
	var payload any = map[string]any{r.kind.SingularName(): r.ToMap()}
	if r.kind.Envelope != "" {
		payload = map[string]any{r.kind.Envelope: payload}
	}

	var data any
	if r.IsNew() {
		path, err := r.CollectionPath()
		if err != nil {
			return err
		}
		if data, err = r.client.post(ctx, path, payload); err != nil {
			return err
		}
	} else {
		path, err := r.ElementPath()
		if err != nil {
			return err
		}
		if data, err = r.client.put(ctx, path, payload); err != nil {
			return err
		}
	}
	return r.refresh(data)
}

// Reload replaces the attributes with the server copy.
func (r *Resource) Reload(ctx context.Context) error {
	path, err := r.ElementPath()
	if err != nil {
		return err
	}
	data, err := r.client.get(ctx, path, nil)
	if err != nil {
		return err
	}
	return r.refresh(data)
}

// Destroy deletes the resource on the server. The local copy is left as is
// and should be discarded.
func (r *Resource) Destroy(ctx context.Context) error {
	path, err := r.ElementPath()
	if err != nil {
		return err
	}
	_, err = r.client.delete(ctx, path, nil)
	return err
}

// refresh applies a write or reload response, unwrapping the root key and
// the kind's singular key under an envelope.
func (r *Resource) refresh(data any) error {
	body := RemoveRoot(data)
	m, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	if r.kind.Envelope != "" {
		if inner, ok := m[r.kind.SingularName()].(map[string]any); ok {
			m = inner
		}
	}
	return r.update(m)
}

// buildObject decodes a single resource response.
func (c *Client) buildObject(kind *Kind, parent *Resource, data any) (*Resource, error) {
	m, ok := RemoveRoot(data).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a %s object, got %T", ErrResource, kind, RemoveRoot(data))
	}
	return c.decode(kind, parent, m)
}

// buildList decodes a listing response. A single object becomes a
// one-element list; a null body yields an empty one.
func (c *Client) buildList(kind *Kind, parent *Resource, data any) ([]*Resource, error) {
	var elements []any
	switch v := RemoveRoot(data).(type) {
	case nil:
	case map[string]any:
		elements = []any{v}
	case []any:
		elements = v
	default:
		return nil, fmt.Errorf("%w: expected a %s listing, got %T", ErrResource, kind, v)
	}

	out := make([]*Resource, 0, len(elements))
	for _, element := range elements {
		m, ok := element.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected a %s object, got %T", ErrResource, kind, element)
		}
		if inner, ok := RemoveRoot(m).(map[string]any); ok {
			m = inner
		}
		r, err := c.decode(kind, parent, m)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *Client) decode(kind *Kind, parent *Resource, data map[string]any) (*Resource, error) {
	r := newResource(c, kind)
	r.parent = parent
	if err := r.update(data); err != nil {
		return nil, err
	}
	return r, nil
}
