// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads authd configuration from a YAML file, environment
// overrides and command-line flags.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/logging"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// EnvProduction enables production-only behavior such as Secure cookies.
const EnvProduction = "production"

// Config is the complete authd configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Auth   AuthConfig   `koanf:"auth"`
	Store  StoreConfig  `koanf:"store"`
	Log    LogConfig    `koanf:"log"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Addr           string   `koanf:"addr"`
	MetricsAddr    string   `koanf:"metrics_addr"`
	Environment    string   `koanf:"environment"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// AuthConfig configures token issuance and password hashing.
type AuthConfig struct {
	JWTSecret  string        `koanf:"jwt_secret"`
	TokenTTL   time.Duration `koanf:"token_ttl"`
	CookieName string        `koanf:"cookie_name"`
	HashScheme string        `koanf:"hash_scheme"`
}

// StoreConfig selects and configures the credential store.
type StoreConfig struct {
	Driver        string `koanf:"driver"`
	DatabaseURL   string `koanf:"database_url"`
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`
	AutoMigrate   bool   `koanf:"auto_migrate"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// IsProduction reports whether the server runs in the production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, EnvProduction)
}

var defaults = map[string]any{
	"server.addr":            ":7000",
	"server.metrics_addr":    "127.0.0.1:9100",
	"server.environment":     "development",
	"server.allowed_origins": []string{},
	"auth.token_ttl":         auth.DefaultTokenTTL.String(),
	"auth.cookie_name":       "auth_token",
	"auth.hash_scheme":       auth.SchemeArgon2id,
	"store.driver":           DriverPostgres,
	"store.mongo_database":   "authd",
	"store.auto_migrate":     false,
	"log.format":             "json",
	"log.level":              "info",
}

// envOverrides maps environment variables to config keys. Later entries
// for the same key win.
var envOverrides = []struct {
	env string
	key string
}{
	{env: "JWT_SECRET_KEY", key: "auth.jwt_secret"},
	{env: "AUTHD_JWT_SECRET", key: "auth.jwt_secret"},
	{env: "DATABASE_URL", key: "store.database_url"},
	{env: "MONGODB_URI", key: "store.mongo_uri"},
	{env: "NODE_ENV", key: "server.environment"},
	{env: "AUTHD_ENV", key: "server.environment"},
}

// flagKeys maps command-line flag names to config keys. Flags not listed
// here are not configuration.
var flagKeys = map[string]string{
	"addr":            "server.addr",
	"metrics-addr":    "server.metrics_addr",
	"env":             "server.environment",
	"allowed-origins": "server.allowed_origins",
	"token-ttl":       "auth.token_ttl",
	"hash-scheme":     "auth.hash_scheme",
	"store":           "store.driver",
	"database-url":    "store.database_url",
	"mongo-uri":       "store.mongo_uri",
	"auto-migrate":    "store.auto_migrate",
	"log-format":      "log.format",
	"log-level":       "log.level",
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), environment overrides and changed flags, in that order.
// flags may be nil. The result is not validated.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "read config file").
				With("path", path).
				Wrap(err)
		}
	}

	for _, o := range envOverrides {
		if value, ok := os.LookupEnv(o.env); ok && value != "" {
			if err := k.Set(o.key, value); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("env", o.env).Wrap(err)
			}
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "read flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "decode config").Wrap(err)
	}
	return &cfg, nil
}

// Validate reports the first configuration problem that would stop the
// server from starting.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return invalid("auth.jwt_secret", "a JWT signing secret is required (set AUTHD_JWT_SECRET or JWT_SECRET_KEY)")
	}
	if c.Auth.TokenTTL <= 0 {
		return invalid("auth.token_ttl", "token ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	if strings.TrimSpace(c.Auth.CookieName) == "" {
		return invalid("auth.cookie_name", "cookie name cannot be empty")
	}
	if c.Auth.HashScheme != auth.SchemeArgon2id && c.Auth.HashScheme != auth.SchemeBcrypt {
		return invalid("auth.hash_scheme", "unsupported hash scheme %q", c.Auth.HashScheme)
	}
	if c.Server.Addr == "" {
		return invalid("server.addr", "listen address cannot be empty")
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return invalid("store.database_url", "DATABASE_URL is required for the postgres store")
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return invalid("store.mongo_uri", "MONGODB_URI is required for the mongo store")
		}
		if c.Store.MongoDatabase == "" {
			return invalid("store.mongo_database", "mongo database name cannot be empty")
		}
	case DriverMemory:
	default:
		return invalid("store.driver", "unsupported store driver %q", c.Store.Driver)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log format must be json or text, got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "unknown log level %q", c.Log.Level)
	}
	return nil
}
