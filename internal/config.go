package internal

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/synka/internal/domains"
	"github.com/starford/synka/internal/kvstore"
	"github.com/starford/synka/internal/remote"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Remote modes.
const (
	RemoteModeHTTP   = "http"
	RemoteModeMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	App          ApplicationConfig  `yaml:"app"`
	Session      SessionConfig      `yaml:"session"`
	Cache        kvstore.Options    `yaml:"cache"`
	Offline      OfflineConfig      `yaml:"offline"`
	TTL          domains.TTLs       `yaml:"ttl"`
	Remote       RemoteConfig       `yaml:"remote"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Sync         SyncConfig         `yaml:"sync"`
	Card         CardConfig         `yaml:"card"`
	Auth         AuthConfig         `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Offline.Validate(); err != nil {
		return err
	}
	if err := validateTTLs(&c.TTL); err != nil {
		return fmt.Errorf("ttl: %w", err)
	}
	if err := c.Remote.Validate(); err != nil {
		return err
	}
	if err := c.Connectivity.Validate(); err != nil {
		return err
	}
	if err := c.Card.Validate(); err != nil {
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

// SessionConfig identifies the signed-in user whose data is synced.
type SessionConfig struct {
	UserID string `yaml:"user_id"`
	Email  string `yaml:"email"`
	Name   string `yaml:"name"`
	Phone  string `yaml:"phone"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.UserID, validation.Required),
	)
}

// User returns the session user.
func (c *SessionConfig) User() domains.User {
	return domains.User{ID: c.UserID, Email: c.Email, Name: c.Name, Phone: c.Phone}
}

// OfflineConfig holds the directory of the offline fallback store.
type OfflineConfig struct {
	Path string `yaml:"path"`
	// Cleanup removes expired offline entries at startup.
	Cleanup bool `yaml:"cleanup"`
}

// Validate validates the offline configuration.
func (c *OfflineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

func validateTTLs(t *domains.TTLs) error {
	return validation.ValidateStruct(t,
		validation.Field(&t.Contacts, validation.Required),
		validation.Field(&t.Profile, validation.Required),
		validation.Field(&t.Events, validation.Required),
		validation.Field(&t.Tags, validation.Required),
		validation.Field(&t.Templates, validation.Required),
		validation.Field(&t.Signatures, validation.Required),
	)
}

// RemoteConfig selects and configures the remote data service.
//
// Mode is "http" for a PostgREST-style endpoint or "memory" for an
// in-process service that forgets everything on exit.
type RemoteConfig struct {
	Mode        string        `yaml:"mode"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	AccessToken string        `yaml:"access_token"`
	Timeout     time.Duration `yaml:"timeout"`
	Retry       RetryConfig   `yaml:"retry"`
}

// RetryConfig configures exponential backoff. Zero attempts disables retries.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Base        time.Duration `yaml:"base"`
	Max         time.Duration `yaml:"max"`
}

// Policy returns the configured retry policy.
func (c RetryConfig) Policy() remote.RetryPolicy {
	if c.MaxAttempts <= 0 {
		return remote.NoRetry{}
	}
	return remote.ExponentialBackoff{MaxAttempts: c.MaxAttempts, Base: c.Base, Max: c.Max}
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = RemoteModeHTTP
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(RemoteModeHTTP, RemoteModeMemory)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	if c.Mode != RemoteModeHTTP {
		return nil
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.APIKey, validation.Required),
	); err != nil {
		return err
	}
	if u, err := url.Parse(c.BaseURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("remote: base_url %q is not an absolute URL", c.BaseURL)
	}
	return validation.ValidateStruct(&c.Retry,
		validation.Field(&c.Retry.MaxAttempts, validation.Min(0)),
	)
}

// ConnectivityConfig configures the reachability monitor.
type ConnectivityConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate validates the connectivity configuration.
func (c *ConnectivityConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
	)
}

// SyncConfig holds refresh behaviour switches.
type SyncConfig struct {
	// Sequencing discards fetch results older than the applied state.
	Sequencing bool `yaml:"sequencing"`
	// WatchOffline broadcasts data-sync when another process rewrites the
	// offline directory.
	WatchOffline bool `yaml:"watch_offline"`
}

// CardConfig holds public card settings.
type CardConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Validate validates the card configuration.
func (c *CardConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the local API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
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
		Cache: kvstore.Options{
			Backend: kvstore.SQLiteBackend,
			DSN:     "./synka.db",
			Table:   "synka_cache",
		},
		Offline: OfflineConfig{
			Path:    "./offline",
			Cleanup: true,
		},
		TTL: domains.DefaultTTLs(),
		Remote: RemoteConfig{
			Mode: RemoteModeHTTP,
		},
		Connectivity: ConnectivityConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
			Timeout:  5 * time.Second,
		},
		Sync: SyncConfig{
			WatchOffline: true,
		},
		Card: CardConfig{
			BaseURL: "https://synka.in",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
