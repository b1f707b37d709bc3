// Package config loads Vivial Connect credential profiles from
// ~/.vivialconnect/config.yaml or a JSON-with-comments file, with
// VIVIAL_CONNECT_* environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	vivialconnect "github.com/tj-smith47/vivialconnect-go"
)

// DefaultConfigDir is the directory under the user's home for client state.
const DefaultConfigDir = ".vivialconnect"

// DefaultConfigFile is the config file name within the config directory.
const DefaultConfigFile = "config.yaml"

// DefaultProfile is used when neither the caller nor the file names one.
const DefaultProfile = "default"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VIVIAL_CONNECT_"

// ErrNoProfile is returned when the requested profile does not exist.
var ErrNoProfile = errors.New("config: profile not found")

// ErrIncomplete is returned when a profile lacks credentials.
var ErrIncomplete = errors.New("config: profile is missing credentials")

// Profile is one set of credentials and transport settings.
type Profile struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	APISecret string `yaml:"api_secret" json:"api_secret"`
	AccountID string `yaml:"account_id" json:"account_id"`
	BaseURL   string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Timeout is a Go duration string such as "30s".
	Timeout   string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	VerifyTLS *bool  `yaml:"verify_tls,omitempty" json:"verify_tls,omitempty"`
}

// File is the contents of a config file.
type File struct {
	Default  string             `yaml:"default,omitempty" json:"default,omitempty"`
	Profiles map[string]Profile `yaml:"profiles" json:"profiles"`
}

// DefaultPath returns $VIVIAL_CONNECT_CONFIG, or ~/.vivialconnect/config.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// isJSON reports whether path names a JSON or JSONC file.
func isJSON(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return true
	}
	return false
}

// Parse decodes config data. JSON input may carry // and /* */ comments and
// trailing commas.
func Parse(data []byte, jsonFormat bool) (*File, error) {
	var f File
	if jsonFormat {
		if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if f.Profiles == nil {
		f.Profiles = make(map[string]Profile)
	}
	return &f, nil
}

// Load reads a config file. A missing file yields an empty config.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{Profiles: make(map[string]Profile)}, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	f, err := Parse(data, isJSON(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Save writes the config atomically with owner-only permissions.
func Save(path string, f *File) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}

	var data []byte
	var err error
	if isJSON(path) {
		data, err = json.MarshalIndent(f, "", "  ")
	} else {
		data, err = yaml.Marshal(f)
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

// Names returns the profile names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile returns the named profile. An empty name selects the file's
// default, then DefaultProfile.
func (f *File) Profile(name string) (Profile, error) {
	if name == "" {
		name = f.Default
	}
	if name == "" {
		name = DefaultProfile
	}
	p, ok := f.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrNoProfile, name)
	}
	return p, nil
}

// Set stores p under name.
func (f *File) Set(name string, p Profile) {
	if f.Profiles == nil {
		f.Profiles = make(map[string]Profile)
	}
	f.Profiles[name] = p
}

// ApplyEnv overrides p with the VIVIAL_CONNECT_* variables found by getenv.
func ApplyEnv(p Profile, getenv func(string) string) (Profile, error) {
	if v := getenv(EnvPrefix + "API_KEY"); v != "" {
		p.APIKey = v
	}
	if v := getenv(EnvPrefix + "API_SECRET"); v != "" {
		p.APISecret = v
	}
	if v := getenv(EnvPrefix + "ACCOUNT_ID"); v != "" {
		p.AccountID = v
	}
	if v := getenv(EnvPrefix + "BASE_URL"); v != "" {
		p.BaseURL = v
	}
	if v := getenv(EnvPrefix + "TIMEOUT"); v != "" {
		p.Timeout = v
	}
	if v := getenv(EnvPrefix + "VERIFY_TLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("parsing %sVERIFY_TLS: %w", EnvPrefix, err)
		}
		p.VerifyTLS = &b
	}
	return p, nil
}

// Validate checks that the credentials are present and settings parse.
func (p Profile) Validate() error {
	var missing []string
	if p.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if p.APISecret == "" {
		missing = append(missing, "api_secret")
	}
	if p.AccountID == "" {
		missing = append(missing, "account_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	if p.Timeout != "" {
		if _, err := time.ParseDuration(p.Timeout); err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
	}
	return nil
}

// Options converts the transport settings to client options.
func (p Profile) Options() ([]vivialconnect.Option, error) {
	var opts []vivialconnect.Option
	if p.BaseURL != "" {
		opts = append(opts, vivialconnect.WithBaseURL(p.BaseURL))
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing timeout: %w", err)
		}
		opts = append(opts, vivialconnect.WithTimeout(d))
	}
	if p.VerifyTLS != nil {
		opts = append(opts, vivialconnect.WithVerifyTLS(*p.VerifyTLS))
	}
	return opts, nil
}

// NewClient validates the profile and builds a client from it. Extra options
// are applied after the profile's own.
func (p Profile) NewClient(extra ...vivialconnect.Option) (*vivialconnect.Client, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	opts, err := p.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, extra...)
	return vivialconnect.NewClient(p.APIKey, p.APISecret, p.AccountID, opts...), nil
}

// Resolve loads path (DefaultPath when empty), selects the named profile and
// applies the environment. A missing profile is not an error when the
// environment supplies the credentials.
func Resolve(path, name string) (Profile, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return Profile{}, err
		}
	}
	f, err := Load(path)
	if err != nil {
		return Profile{}, err
	}
	p, err := f.Profile(name)
	if err != nil && !errors.Is(err, ErrNoProfile) {
		return Profile{}, err
	}
	p, envErr := ApplyEnv(p, os.Getenv)
	if envErr != nil {
		return Profile{}, envErr
	}
	if err != nil && p.Validate() != nil {
		return Profile{}, err
	}
	return p, nil
}
