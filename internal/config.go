package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/taxonid/internal/refdata"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Reference ReferenceConfig   `yaml:"reference"`
	TaxDB     TaxDBConfig       `yaml:"taxdb"`
	Lookup    LookupConfig      `yaml:"lookup"`
	Events    EventsConfig      `yaml:"events"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Reference.Validate(); err != nil {
		return err
	}
	if err := c.TaxDB.Validate(); err != nil {
		return err
	}
	if err := c.Lookup.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ReferenceConfig locates the reference data and where to fetch it from.
type ReferenceConfig struct {
	Dir            string   `yaml:"dir"`
	TaxonomyDB     string   `yaml:"taxonomy_db"`
	TaxonomyDBURL  string   `yaml:"taxonomy_db_url"`
	DataURL        string   `yaml:"data_url"`
	DataRoot       string   `yaml:"data_root"`
	SetRootCommand []string `yaml:"set_root_command"`
}

// Validate validates the reference data configuration.
func (c *ReferenceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.TaxonomyDB, validation.Required),
		validation.Field(&c.TaxonomyDBURL, validation.By(httpURL)),
		validation.Field(&c.DataURL, validation.By(httpURL)),
		validation.Field(&c.DataRoot, validation.When(c.DataURL != "", validation.Required)),
	)
}

// Refdata converts the configuration for the reference data preparer.
func (c *ReferenceConfig) Refdata() refdata.Config {
	return refdata.Config{
		Dir:            c.Dir,
		TaxonomyDB:     c.TaxonomyDB,
		TaxonomyDBURL:  c.TaxonomyDBURL,
		DataURL:        c.DataURL,
		DataRoot:       c.DataRoot,
		SetRootCommand: c.SetRootCommand,
	}
}

func httpURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http or https URL")
	}
	return nil
}

// TaxDBConfig tunes the taxonomy store.
type TaxDBConfig struct {
	// CacheSize bounds cached lineages and ranks; zero disables the cache.
	CacheSize int `yaml:"cache_size"`
	// Watch reloads the database when its file changes.
	Watch bool `yaml:"watch"`
}

// Validate validates the taxonomy store configuration.
func (c *TaxDBConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CacheSize, validation.Min(0)),
	)
}

// LookupConfig tunes batch resolution.
type LookupConfig struct {
	Workers int `yaml:"workers"`
}

// Validate validates the lookup configuration.
func (c *LookupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(256)),
	)
}

// EventsConfig tunes the SSE stream.
type EventsConfig struct {
	ChangeThrottle time.Duration `yaml:"change_throttle"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Reference: ReferenceConfig{
			Dir:            "./reference",
			TaxonomyDB:     "taxa.sqlite",
			DataRoot:       "checkm_data",
			SetRootCommand: []string{"checkm", "data", "setRoot"},
		},
		TaxDB: TaxDBConfig{
			CacheSize: 4096,
			Watch:     true,
		},
		Lookup: LookupConfig{
			Workers: 8,
		},
		Events: EventsConfig{
			ChangeThrottle: 2 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
