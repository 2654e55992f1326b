package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment describes one target deployment.
type Environment struct {
	BaseURL   string            `yaml:"baseUrl"`
	APIPrefix string            `yaml:"apiPrefix"`
	LoginPath string            `yaml:"loginPath"`
	AppID     int               `yaml:"appId"`
	Language  string            `yaml:"language"`
	UserID    string            `yaml:"defaultUserId"`
	Headers   map[string]string `yaml:"headers,omitempty"`
}

// Catalogue maps environment names to their settings.
type Catalogue struct {
	Environments map[string]Environment `yaml:"environments"`
}

const (
	defaultAPIPrefix = "/rest_api"
	defaultLoginPath = "/login"
	defaultAppID     = 118
	defaultLanguage  = "en"
	defaultUserID    = "15428081"
)

// DefaultCatalogue returns the built-in environments used when no
// environments file is given.
func DefaultCatalogue() *Catalogue {
	c := &Catalogue{Environments: map[string]Environment{
		"staging":    {BaseURL: "https://domain.org"},
		"production": {BaseURL: "https://domain.com"},
		"sandbox":    {BaseURL: "https://domain_another.org"},
	}}
	c.applyDefaults()
	return c
}

// LoadEnvironments reads an environments catalogue from a YAML file.
// An empty path returns DefaultCatalogue.
func LoadEnvironments(path string) (*Catalogue, error) {
	if path == "" {
		return DefaultCatalogue(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("environments file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading environments file: %w", err)
	}

	return ParseEnvironments(data)
}

// ParseEnvironments decodes and validates a YAML catalogue.
func ParseEnvironments(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("error parsing environments file: %w", err)
	}

	if errs := c.validate(); len(errs) > 0 {
		return nil, errs
	}

	c.applyDefaults()
	return &c, nil
}

// Lookup returns the named environment.
func (c *Catalogue) Lookup(name string) (Environment, error) {
	env, ok := c.Environments[name]
	if !ok {
		return Environment{}, fmt.Errorf("unknown environment %q", name)
	}
	return env, nil
}

func (c *Catalogue) applyDefaults() {
	for name, env := range c.Environments {
		if env.APIPrefix == "" {
			env.APIPrefix = defaultAPIPrefix
		}
		if env.LoginPath == "" {
			env.LoginPath = defaultLoginPath
		}
		if env.AppID == 0 {
			env.AppID = defaultAppID
		}
		if env.Language == "" {
			env.Language = defaultLanguage
		}
		if env.UserID == "" {
			env.UserID = defaultUserID
		}
		c.Environments[name] = env
	}
}

func (c *Catalogue) validate() ValidationErrors {
	var errs ValidationErrors

	if len(c.Environments) == 0 {
		errs = append(errs, ValidationError{
			Path:    "environments",
			Message: "at least one environment is required",
		})
	}

	for name, env := range c.Environments {
		if env.BaseURL == "" {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("environments.%s.baseUrl", name),
				Message: "baseUrl is required",
			})
		}
	}

	return errs
}

// APIBase returns baseUrl joined with the API prefix, without a trailing slash.
func (e Environment) APIBase() string {
	return strings.TrimRight(e.BaseURL, "/") + "/" + strings.Trim(e.APIPrefix, "/")
}

// TargetURL returns the URL of an endpoint below the API prefix.
func (e Environment) TargetURL(endpoint string) string {
	return e.APIBase() + "/" + strings.TrimLeft(endpoint, "/")
}

// LoginURL returns the login URL below the API prefix.
func (e Environment) LoginURL() string {
	return e.APIBase() + "/" + strings.TrimLeft(e.LoginPath, "/")
}
