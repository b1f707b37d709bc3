package vivialconnect

import "context"

// ConfigurationKind is a message status callback configuration.
var ConfigurationKind = &Kind{
	Name:     "Configuration",
	Singular: "configuration",
	Plural:   "configurations",
}

// Configuration holds callback URLs shared by numbers and messages.
type Configuration struct {
	*Resource
}

// Name returns the display name of the configuration.
func (c *Configuration) Name() string { return c.GetString("name") }

// NewConfiguration creates an unsaved configuration.
func (c *Client) NewConfiguration(attrs map[string]any) (*Configuration, error) {
	r, err := c.New(ConfigurationKind, attrs)
	if err != nil {
		return nil, err
	}
	return &Configuration{r}, nil
}

// GetConfiguration returns a configuration by ID.
func (c *Client) GetConfiguration(ctx context.Context, configurationID string) (*Configuration, error) {
	if configurationID == "" {
		return nil, ErrEmptyID
	}
	r, err := c.Find(ctx, ConfigurationKind, configurationID, nil)
	if err != nil {
		return nil, err
	}
	return &Configuration{r}, nil
}

// ListConfigurations returns the configurations of the account.
func (c *Client) ListConfigurations(ctx context.Context, query Query) ([]*Configuration, error) {
	rs, err := c.FindAll(ctx, ConfigurationKind, query)
	if err != nil {
		return nil, err
	}
	return wrapAll(rs, func(r *Resource) *Configuration { return &Configuration{r} }), nil
}

// CreateConfiguration creates a configuration.
func (c *Client) CreateConfiguration(ctx context.Context, attrs map[string]any) (*Configuration, error) {
	r, err := c.Create(ctx, ConfigurationKind, attrs)
	if err != nil {
		return nil, err
	}
	return &Configuration{r}, nil
}

// CountConfigurations returns the number of configurations.
func (c *Client) CountConfigurations(ctx context.Context, query Query) (int, error) {
	return c.Count(ctx, ConfigurationKind, query)
}
