package vivialconnect

import (
	"context"
	"fmt"
)

// UserKind is a user of the account.
var UserKind = &Kind{
	Name:     "User",
	Singular: "user",
	Plural:   "users",
	Opaque:   []string{"roles"},
}

// CredentialKind is an API credential in a user's profile. Writes are sent
// as {"user": {"credential": {...}}}.
var CredentialKind = &Kind{
	Name:        "Credential",
	Singular:    "credential",
	Plural:      "credentials",
	Subordinate: true,
	ParentPath: func(parent *Resource) string {
		return underParent(parent) + "/profile"
	},
	Envelope: "user",
}

// User is a user of the account.
type User struct {
	*Resource
}

// Username returns the login name of the user.
func (u *User) Username() string { return u.GetString("username") }

// Email returns the email address of the user.
func (u *User) Email() string { return u.GetString("email") }

// FirstName returns the first name of the user.
func (u *User) FirstName() string { return u.GetString("first_name") }

// LastName returns the last name of the user.
func (u *User) LastName() string { return u.GetString("last_name") }

// Credential is an API key pair of a user.
type Credential struct {
	*Resource
}

// Name returns the label of the credential.
func (c *Credential) Name() string { return c.GetString("name") }

// APIKey returns the public key of the credential.
func (c *Credential) APIKey() string { return c.GetString("api_key") }

// APISecret returns the secret of the credential. It is only present in the
// response that created it.
func (c *Credential) APISecret() string { return c.GetString("api_secret") }

// GetUser returns a user by ID.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, ErrEmptyID
	}
	r, err := c.Find(ctx, UserKind, userID, nil)
	if err != nil {
		return nil, err
	}
	return &User{r}, nil
}

// ListUsers returns the users of the account.
func (c *Client) ListUsers(ctx context.Context, query Query) ([]*User, error) {
	rs, err := c.FindAll(ctx, UserKind, query)
	if err != nil {
		return nil, err
	}
	return wrapAll(rs, func(r *Resource) *User { return &User{r} }), nil
}

// CountUsers returns the number of users.
func (c *Client) CountUsers(ctx context.Context, query Query) (int, error) {
	return c.Count(ctx, UserKind, query)
}

// Credentials lists the credentials of the user.
func (u *User) Credentials(ctx context.Context) ([]*Credential, error) {
	path, err := u.client.customPath(CredentialKind, u.Resource, nil, "", "")
	if err != nil {
		return nil, err
	}
	data, err := u.client.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	list, ok := dig(data, "credentials")
	if !ok {
		list = data
	}
	rs, err := u.client.buildList(CredentialKind, u.Resource, list)
	if err != nil {
		return nil, err
	}
	return wrapAll(rs, func(r *Resource) *Credential { return &Credential{r} }), nil
}

// Credential returns one credential of the user.
func (u *User) Credential(ctx context.Context, credentialID string) (*Credential, error) {
	if credentialID == "" {
		return nil, ErrEmptyID
	}
	path, err := u.client.customPath(CredentialKind, u.Resource, nil, credentialID, "")
	if err != nil {
		return nil, err
	}
	data, err := u.client.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	obj, ok := dig(data, "credential")
	if !ok {
		return nil, fmt.Errorf("%w: response has no credential", ErrResource)
	}
	r, err := u.client.buildObject(CredentialKind, u.Resource, obj)
	if err != nil {
		return nil, err
	}
	return &Credential{r}, nil
}

// CreateCredential creates a credential for the user, optionally named.
func (u *User) CreateCredential(ctx context.Context, name string) (*Credential, error) {
	attrs := map[string]any{}
	if name != "" {
		attrs["name"] = name
	}
	r, err := u.client.NewSubordinate(CredentialKind, u, attrs)
	if err != nil {
		return nil, err
	}
	if err := r.Save(ctx); err != nil {
		return nil, err
	}
	return &Credential{r}, nil
}

// CountCredentials returns the number of credentials of the user.
func (u *User) CountCredentials(ctx context.Context) (int, error) {
	path, err := u.client.customPath(CredentialKind, u.Resource, nil, "", "/count")
	if err != nil {
		return 0, err
	}
	return u.client.count(ctx, path, nil)
}

// dig finds key in data or in its unwrapped root, up to two levels down.
func dig(data any, key string) (any, bool) {
	for range 3 {
		m, ok := data.(map[string]any)
		if !ok {
			return nil, false
		}
		if v, ok := m[key]; ok {
			return v, true
		}
		next := RemoveRoot(m)
		if _, ok := next.(map[string]any); !ok {
			return nil, false
		}
		data = next
	}
	return nil, false
}
