package passless

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full machine configuration. Instances are set up once and
// treated as immutable afterwards.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	OTP       OTPConfig       `yaml:"otp"`
	Session   SessionConfig   `yaml:"session"`
	Storage   StorageConfig   `yaml:"storage"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig identifies the identity-provider tenant and application.
type ProviderConfig struct {
	// BaseURL is the tenant origin, e.g. https://tenant.auth0.com.
	BaseURL  string `yaml:"base_url"`
	ClientID string `yaml:"client_id"`
	Audience string `yaml:"audience"`
	// Scope defaults to "openid profile email offline_access".
	Scope string `yaml:"scope"`
	// Issuer defaults to BaseURL with a trailing slash.
	Issuer string `yaml:"issuer"`
	// Timeout bounds one HTTP attempt.
	Timeout time.Duration `yaml:"timeout"`
	// MaxTries bounds attempts per provider operation, retries included.
	MaxTries uint `yaml:"max_tries"`
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig governs the code lifetime and the client-side request window.
type OTPConfig struct {
	// CodeTTL is how long an emailed code is accepted.
	CodeTTL time.Duration `yaml:"code_ttl"`
	// RateWindow and RateMaxRequests bound startOTP calls per window.
	RateWindow      time.Duration `yaml:"rate_window"`
	RateMaxRequests int           `yaml:"rate_max_requests"`
	// AllowedDomains, when non-empty, restricts sign-in to these email
	// domains.
	AllowedDomains []string `yaml:"allowed_domains"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig governs session lifetime and silent refresh.
type SessionConfig struct {
	// Lifetime is the absolute cap regardless of token validity.
	Lifetime time.Duration `yaml:"lifetime"`
	// RefreshMargin is how long before access expiry a silent refresh runs.
	RefreshMargin time.Duration `yaml:"refresh_margin"`
	// MinRefreshDelay is the shortest the scheduler will ever arm.
	MinRefreshDelay time.Duration `yaml:"min_refresh_delay"`
	// ProfileTTL is the cache lifetime for /userinfo snapshots.
	ProfileTTL time.Duration `yaml:"profile_ttl"`
	// ClockTolerance absorbs skew when judging id-token exp/iat.
	ClockTolerance time.Duration `yaml:"clock_tolerance"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig wires the two partitions.
type StorageConfig struct {
	// RedisAddr is the volatile partition. Empty means run an embedded
	// in-process instance.
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
	// SQLitePath is the durable partition database file.
	SQLitePath string `yaml:"sqlite_path"`
}

/*
====================================
BROADCAST CONFIG
====================================
*/

// BroadcastConfig governs the state-change event dispatcher.
type BroadcastConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	// DropIfFull sheds events instead of blocking the emitting operation.
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig toggles counter collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig selects log level and output format ("text" or "json").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig is the daemon's listen surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func defaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Scope:    "openid profile email offline_access",
			Timeout:  10 * time.Second,
			MaxTries: 3,
		},
		OTP: OTPConfig{
			CodeTTL:         5 * time.Minute,
			RateWindow:      15 * time.Minute,
			RateMaxRequests: 5,
		},
		Session: SessionConfig{
			Lifetime:        7 * 24 * time.Hour,
			RefreshMargin:   5 * time.Minute,
			MinRefreshDelay: time.Minute,
			ProfileTTL:      5 * time.Minute,
			ClockTolerance:  60 * time.Second,
		},
		Storage: StorageConfig{
			RedisPrefix: "passless:volatile:",
			SQLitePath:  "passless.db",
		},
		Broadcast: BroadcastConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
		Log:     LogConfig{Level: "info", Format: "text"},
		Server:  ServerConfig{Addr: "127.0.0.1:8787"},
	}
}

// applyDefaults fills zero values after a file load or a partial literal.
func (c *Config) applyDefaults() {
	d := defaultConfig()
	if c.Provider.Scope == "" {
		c.Provider.Scope = d.Provider.Scope
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = d.Provider.Timeout
	}
	if c.Provider.MaxTries == 0 {
		c.Provider.MaxTries = d.Provider.MaxTries
	}
	if c.Provider.Issuer == "" && c.Provider.BaseURL != "" {
		c.Provider.Issuer = strings.TrimRight(c.Provider.BaseURL, "/") + "/"
	}
	if c.OTP.CodeTTL <= 0 {
		c.OTP.CodeTTL = d.OTP.CodeTTL
	}
	if c.OTP.RateWindow <= 0 {
		c.OTP.RateWindow = d.OTP.RateWindow
	}
	if c.OTP.RateMaxRequests <= 0 {
		c.OTP.RateMaxRequests = d.OTP.RateMaxRequests
	}
	if c.Session.Lifetime <= 0 {
		c.Session.Lifetime = d.Session.Lifetime
	}
	if c.Session.RefreshMargin <= 0 {
		c.Session.RefreshMargin = d.Session.RefreshMargin
	}
	if c.Session.MinRefreshDelay <= 0 {
		c.Session.MinRefreshDelay = d.Session.MinRefreshDelay
	}
	if c.Session.ProfileTTL <= 0 {
		c.Session.ProfileTTL = d.Session.ProfileTTL
	}
	if c.Session.ClockTolerance <= 0 {
		c.Session.ClockTolerance = d.Session.ClockTolerance
	}
	if c.Storage.RedisPrefix == "" {
		c.Storage.RedisPrefix = d.Storage.RedisPrefix
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = d.Storage.SQLitePath
	}
	if c.Broadcast.BufferSize <= 0 {
		c.Broadcast.BufferSize = d.Broadcast.BufferSize
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
}

// Validate rejects configurations the machine cannot run with.
func (c *Config) Validate() error {
	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url is required")
	}
	if !strings.HasPrefix(c.Provider.BaseURL, "http://") && !strings.HasPrefix(c.Provider.BaseURL, "https://") {
		return errors.New("provider.base_url must be an http(s) origin")
	}
	if c.Provider.ClientID == "" {
		return errors.New("provider.client_id is required")
	}
	if c.OTP.RateMaxRequests > 100 {
		return errors.New("otp.rate_max_requests is implausibly large")
	}
	if c.Session.RefreshMargin >= c.Session.Lifetime {
		return errors.New("session.refresh_margin must be below session.lifetime")
	}
	if c.Session.MinRefreshDelay > c.Session.RefreshMargin {
		return errors.New("session.min_refresh_delay must not exceed session.refresh_margin")
	}
	return nil
}

// LoadConfig reads a YAML file, fills defaults and validates.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
