// Package config parses the member site configuration from MEMBERSITE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every variable name.
const Prefix = "MEMBERSITE_"

const developmentHashKey = "membersite-development-only-hash-key!"

// ErrInvalid marks a configuration that parsed but cannot run.
var ErrInvalid = errors.New("config: invalid")

// Config holds all runtime configuration.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	Server   Server   `envPrefix:"SERVER_"`
	Log      Log      `envPrefix:"LOG_"`
	Gate     Gate     `envPrefix:"GATE_"`
	Session  Session  `envPrefix:"SESSION_"`
	Firebase Firebase `envPrefix:"FIREBASE_"`
	Settings Settings `envPrefix:"SETTINGS_"`

	// FixturesPath points at a YAML member directory used when no Firebase
	// project is configured.
	FixturesPath string `env:"FIXTURES_PATH"`
}

// Server settings.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// StaticDir serves assets from disk instead of the embedded copy.
	StaticDir string `env:"STATIC_DIR"`
}

// Log settings.
type Log struct {
	Level string `env:"LEVEL" envDefault:"info"`
}

// Gate settings.
type Gate struct {
	// Wait bounds how long a full page load waits for gate facts before
	// answering with the loading placeholder.
	Wait time.Duration `env:"WAIT" envDefault:"1500ms"`
}

// Session cookie settings.
type Session struct {
	CookieName     string        `env:"COOKIE_NAME" envDefault:"__session"`
	LanguageCookie string        `env:"LANGUAGE_COOKIE" envDefault:"membersite_lang"`
	HashKey        string        `env:"HASH_KEY"`
	BlockKey       string        `env:"BLOCK_KEY"`
	Secure         bool          `env:"SECURE"`
	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT" envDefault:"72h"`
	Lifetime       time.Duration `env:"LIFETIME" envDefault:"336h"`
}

// Firebase project settings. An empty ProjectID runs on local fixtures.
type Firebase struct {
	ProjectID             string `env:"PROJECT_ID"`
	CredentialsFile       string `env:"CREDENTIALS_FILE"`
	FirestoreEmulatorHost string `env:"FIRESTORE_EMULATOR_HOST"`
	ProfilesCollection    string `env:"PROFILES_COLLECTION" envDefault:"profiles"`
	AllowListCollection   string `env:"ALLOWLIST_COLLECTION" envDefault:"admin_allowlist"`
}

// Settings source settings.
type Settings struct {
	Document        string        `env:"DOCUMENT" envDefault:"settings/app"`
	File            string        `env:"FILE"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"30s"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses environ instead of the process environment. Keys carry the
// prefix.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that parse but cannot work.
func (c Config) Validate() error {
	if c.IsProduction() && len(c.Session.HashKey) < 32 {
		return fmt.Errorf("%w: %sSESSION_HASH_KEY must be at least 32 bytes in production", ErrInvalid, Prefix)
	}
	if c.Session.HashKey != "" && len(c.Session.HashKey) < 32 {
		return fmt.Errorf("%w: %sSESSION_HASH_KEY must be at least 32 bytes", ErrInvalid, Prefix)
	}
	switch len(c.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("%w: %sSESSION_BLOCK_KEY must be 16, 24 or 32 bytes", ErrInvalid, Prefix)
	}
	if c.Gate.Wait < 0 {
		return fmt.Errorf("%w: %sGATE_WAIT must not be negative", ErrInvalid, Prefix)
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// HashKeyBytes is the cookie signing key, with a fixed key outside production.
func (s Session) HashKeyBytes() []byte {
	if s.HashKey == "" {
		return []byte(developmentHashKey)
	}
	return []byte(s.HashKey)
}

// BlockKeyBytes is the optional cookie encryption key.
func (s Session) BlockKeyBytes() []byte {
	if s.BlockKey == "" {
		return nil
	}
	return []byte(s.BlockKey)
}

// UsesFirebase reports whether a Firebase project backs sessions, profiles
// and settings.
func (f Firebase) UsesFirebase() bool {
	return strings.TrimSpace(f.ProjectID) != ""
}
