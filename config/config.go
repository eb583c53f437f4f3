// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/toolhive-oauth/env"
)

// EnvPrefix is prepended to every environment variable the configuration reads.
const EnvPrefix = "TOOLHIVE_OAUTH_"

// Environment variables, without EnvPrefix, that override secrets from the
// file. Client credentials may also be scoped to a dancer by inserting its
// name: TOOLHIVE_OAUTH_GITHUB_CLIENT_SECRET for the dancer named "github".
// The state key is read scoped only.
const (
	EnvClientID      = "CLIENT_ID"
	EnvClientSecret  = "CLIENT_SECRET"
	EnvStateKey      = "STATE_KEY"
	EnvRedisPassword = "REDIS_PASSWORD"
)

// Grant types of a dancer.
const (
	GrantClientCredentials = "client_credentials"
	GrantAuthorizationCode = "authorization_code"
)

// Store types.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Lock provider types.
const (
	LocksLocal = "local"
	LocksRedis = "redis"
)

var envNameReplacer = regexp.MustCompile(`[^A-Z0-9]+`)

// Config is the file format of a set of dancers and the infrastructure they
// share.
type Config struct {
	Logging Logging  `yaml:"logging"`
	Redis   *Redis   `yaml:"redis,omitempty"`
	Store   Store    `yaml:"store"`
	Locks   Locks    `yaml:"locks"`
	Dancers []Dancer `yaml:"dancers"`
}

// Logging selects the log format and level.
type Logging struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Redis is the connection shared by the redis store and the redis locks.
type Redis struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Store selects where resource owner contexts are kept. The default type is
// StoreMemory.
type Store struct {
	Type string `yaml:"type"`
	// DSN is the database connection string of the sqlite and postgres stores.
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
	// KeyPrefix and TTL apply to the redis store.
	KeyPrefix string        `yaml:"keyPrefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// Locks selects the lock provider. The default type is LocksLocal.
type Locks struct {
	Type      string        `yaml:"type"`
	KeyPrefix string        `yaml:"keyPrefix"`
	Expiry    time.Duration `yaml:"expiry"`
}

// Expressions override the token response extraction expressions.
type Expressions struct {
	AccessToken      string            `yaml:"accessToken"`
	RefreshToken     string            `yaml:"refreshToken"`
	ExpiresIn        string            `yaml:"expiresIn"`
	CustomParameters map[string]string `yaml:"customParameters"`
}

// Dancer configures one dancer.
type Dancer struct {
	Name                string            `yaml:"name"`
	Grant               string            `yaml:"grant"`
	ClientID            string            `yaml:"clientId"`
	ClientSecret        string            `yaml:"clientSecret"`
	TokenURL            string            `yaml:"tokenUrl"`
	Scopes              string            `yaml:"scopes"`
	Encoding            string            `yaml:"encoding"`
	CredentialsLocation string            `yaml:"credentialsLocation"`
	Coalesce            bool              `yaml:"coalesce"`
	Expressions         Expressions       `yaml:"expressions"`
	CustomParameters    map[string]string `yaml:"customParameters"`
	CustomHeaders       map[string]string `yaml:"customHeaders"`

	// Authorization code grant only.
	AuthorizationURL    string `yaml:"authorizationUrl"`
	ExternalCallbackURL string `yaml:"externalCallbackUrl"`
	RedirectURIPolicy   string `yaml:"redirectUriPolicy"`
	State               string `yaml:"state"`
	StateKey            string `yaml:"stateKey"`
}

// Path returns the configuration file location within the given config home
// directory. For the standard XDG location, use DefaultPath.
func Path(configHome string) string {
	return filepath.Join(configHome, "toolhive-oauth", "config.yaml")
}

// DefaultPath returns the configuration file location under the XDG config home.
func DefaultPath() string {
	return Path(xdg.ConfigHome)
}

// Load reads and parses the file at path. An empty path selects DefaultPath.
func Load(path string, r env.Reader) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates data against the configuration schema, decodes it and
// applies the environment overrides read through r. A nil r reads the process
// environment.
func Parse(data []byte, r env.Reader) (*Config, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if r == nil {
		r = &env.OSReader{}
	}
	cfg.applyEnv(env.Prefixed{R: r, Prefix: EnvPrefix})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(r env.Reader) {
	if c.Redis != nil {
		c.Redis.Password = env.Override(r, EnvRedisPassword, c.Redis.Password)
	}
	for i := range c.Dancers {
		d := &c.Dancers[i]
		scope := dancerEnvScope(d.Name)
		d.ClientID = env.Override(r, scope+EnvClientID, env.Override(r, EnvClientID, d.ClientID))
		d.ClientSecret = env.Override(r, scope+EnvClientSecret, env.Override(r, EnvClientSecret, d.ClientSecret))
		if scope != "" {
			d.StateKey = env.Override(r, scope+EnvStateKey, d.StateKey)
		}
	}
}

// dancerEnvScope maps a dancer name to the infix of its scoped variables:
// "my-idp" becomes "MY_IDP_".
func dancerEnvScope(name string) string {
	scope := envNameReplacer.ReplaceAllString(strings.ToUpper(name), "_")
	scope = strings.Trim(scope, "_")
	if scope == "" {
		return ""
	}
	return scope + "_"
}

// Validate checks the constraints the schema cannot express.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Dancers))
	for _, d := range c.Dancers {
		if seen[d.Name] {
			return fmt.Errorf("duplicate dancer name %q", d.Name)
		}
		seen[d.Name] = true
		if strings.TrimSpace(d.ClientID) == "" {
			return fmt.Errorf("dancer %q: client id is required (set it in the file or %s%s)", d.Name, EnvPrefix, EnvClientID)
		}
		if strings.TrimSpace(d.ClientSecret) == "" {
			return fmt.Errorf("dancer %q: client secret is required (set it in the file or %s%s)", d.Name, EnvPrefix, EnvClientSecret)
		}
	}

	needsRedis := c.Store.Type == StoreRedis || c.Locks.Type == LocksRedis
	if needsRedis && c.Redis == nil {
		return fmt.Errorf("redis connection is required by the %s", redisUsers(c))
	}
	return nil
}

func redisUsers(c *Config) string {
	switch {
	case c.Store.Type == StoreRedis && c.Locks.Type == LocksRedis:
		return "redis store and redis locks"
	case c.Store.Type == StoreRedis:
		return "redis store"
	default:
		return "redis locks"
	}
}

// Dancer returns the dancer named name.
func (c *Config) Dancer(name string) (Dancer, bool) {
	for _, d := range c.Dancers {
		if d.Name == name {
			return d, true
		}
	}
	return Dancer{}, false
}
