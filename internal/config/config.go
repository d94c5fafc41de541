// Package config loads the palaver CLI configuration from a YAML file and
// PALAVER_* environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override. Nested keys are joined
// with underscores, e.g. PALAVER_STORAGE_DRIVER.
const EnvPrefix = "PALAVER_"

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQL    = "sql"
)

// Config is the full CLI configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	MCP        MCPConfig        `yaml:"mcp"`
	Storage    StorageConfig    `yaml:"storage"`
	Lock       LockConfig       `yaml:"lock"`
	Encryption EncryptionConfig `yaml:"encryption"`
	PII        PIIConfig        `yaml:"pii"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type MCPConfig struct {
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
	BaseURL   string `yaml:"base_url"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Driver string        `yaml:"driver"`
	Path   string        `yaml:"path"`
	DSN    string        `yaml:"dsn"`
	Redis  RedisConfig   `yaml:"redis"`
	TTL    time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LockConfig enables cross-process turn serialization through Redis.
type LockConfig struct {
	Distributed bool          `yaml:"distributed"`
	TTL         time.Duration `yaml:"ttl"`
}

// EncryptionConfig holds base64 encoded AES-256 keys.
type EncryptionConfig struct {
	Key          string   `yaml:"key"`
	FallbackKeys []string `yaml:"fallback_keys"`
}

type PIIConfig struct {
	Patterns []string `yaml:"patterns"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Log:     LogConfig{Level: "info", Format: "text"},
		HTTP:    HTTPConfig{Addr: ":3978"},
		MCP:     MCPConfig{Transport: "stdio", Addr: ":8081", BaseURL: "http://localhost:8081"},
		Storage: StorageConfig{Driver: DriverMemory, Path: ".palaver/state", DSN: "palaver.db", Redis: RedisConfig{Addr: "localhost:6379", Prefix: "palaver:"}},
		Lock:    LockConfig{TTL: 30 * time.Second},
		Metrics: MetricsConfig{Enabled: true, Namespace: "palaver"},
	}
}

// Load reads path (optional; an empty path skips the file) over the
// defaults and then applies environment overrides.
func Load(path string) (*Config, error) {
	return load(path, os.Environ())
}

func load(path string, environ []string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, environ); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv decodes PALAVER_SECTION_FIELD variables onto cfg. Field names
// match the yaml keys; list values are comma separated.
func applyEnv(cfg *Config, environ []string) error {
	overrides := map[string]any{}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		path := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
		setPath(overrides, splitEnvPath(path), value)
	}
	if len(overrides) == 0 {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := dec.Decode(overrides); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// sections whose field names contain underscores themselves.
var envSections = map[string][]string{
	"mcp":        {"base_url"},
	"encryption": {"fallback_keys"},
}

func splitEnvPath(path string) []string {
	section, rest, ok := strings.Cut(path, "_")
	if !ok {
		return []string{section}
	}
	for _, field := range envSections[section] {
		if rest == field {
			return []string{section, rest}
		}
	}
	if section == "storage" && strings.HasPrefix(rest, "redis_") {
		return []string{section, "redis", strings.TrimPrefix(rest, "redis_")}
	}
	return []string{section, rest}
}

func setPath(m map[string]any, path []string, value string) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverRedis, DriverSQL:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.MCP.Transport {
	case "stdio", "sse":
	default:
		errs = append(errs, fmt.Errorf("unknown mcp transport %q", c.MCP.Transport))
	}
	if c.Lock.Distributed && c.Storage.Driver != DriverRedis {
		errs = append(errs, errors.New("distributed locking needs the redis storage driver"))
	}
	if _, _, err := c.Encryption.Keys(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w: %w", domain.ErrConfiguration, err)
	}
	return nil
}

// Keys decodes the encryption keys. active is nil when encryption is off.
func (e EncryptionConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if e.Key == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(e.Key); err != nil {
		return nil, nil, err
	}
	for _, k := range e.FallbackKeys {
		b, err := decodeKey(k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, b)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("encryption key is not base64: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(b))
	}
	return b, nil
}
