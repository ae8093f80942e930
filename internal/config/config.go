// Package config layers built-in defaults, an optional YAML file and
// ROMATO_* environment variables into a Config.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/romato/romato/internal/client"
)

const (
	EnvPrefix = "ROMATO_"
	delim     = "."
)

type Config struct {
	API       API       `koanf:"api"`
	Session   Session   `koanf:"session"`
	Discovery Discovery `koanf:"discovery"`
	Log       Log       `koanf:"log"`
	Telemetry Telemetry `koanf:"telemetry"`
}

type API struct {
	BaseURL  string        `koanf:"base_url" validate:"required,url"`
	Prefix   string        `koanf:"prefix"`
	Timeout  time.Duration `koanf:"timeout" validate:"gte=0"`
	Retries  int           `koanf:"retries" validate:"gte=0,lte=10"`
	Cache    bool          `koanf:"cache"`
	CacheDir string        `koanf:"cache_dir"`
}

type Session struct {
	// Dir holds the persisted session. Empty means ~/.romato/session.
	Dir string `koanf:"dir"`
}

type Discovery struct {
	PageSize    int    `koanf:"page_size" validate:"gte=1,lte=100"`
	DefaultCity string `koanf:"default_city"`
}

type Log struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty"`
}

type Telemetry struct {
	Enabled bool `koanf:"enabled"`
	// Endpoint is the OTLP gRPC collector. Empty defers to OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string        `koanf:"endpoint" validate:"omitempty,hostname_port"`
	Insecure bool          `koanf:"insecure"`
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
}

func defaults() map[string]any {
	api := client.DefaultConfig()
	return map[string]any{
		"api.base_url":           api.BaseURL,
		"api.prefix":             api.Prefix,
		"api.timeout":            api.Timeout.String(),
		"api.retries":            api.Retries,
		"api.cache":              true,
		"api.cache_dir":          "",
		"session.dir":            "",
		"discovery.page_size":    12,
		"discovery.default_city": "San Francisco",
		"log.level":              "",
		"log.pretty":             false,
		"telemetry.enabled":      false,
		"telemetry.endpoint":     "",
		"telemetry.insecure":     false,
		"telemetry.interval":     "5s",
	}
}

// DefaultPath is ~/.romato/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".romato", "config.yaml"), nil
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration. An empty path reads DefaultPath when it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(delim)

	defs := defaults()
	for key, value := range defs {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		case explicit || !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(delim, env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKey(key, defs), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := new(Config)
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Session.Dir = expandHome(cfg.Session.Dir)
	cfg.API.CacheDir = expandHome(cfg.API.CacheDir)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// envKey maps ROMATO_API_BASE_URL to api.base_url. Only known keys are
// accepted, anything else is dropped.
func envKey(raw string, known map[string]any) string {
	name := strings.ToLower(strings.TrimPrefix(raw, EnvPrefix))
	for key := range known {
		if strings.ReplaceAll(key, delim, "_") == name {
			return key
		}
	}
	return ""
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// ClientConfig is the REST client configuration derived from c.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.BaseURL = c.API.BaseURL
	cfg.Prefix = c.API.Prefix
	cfg.Timeout = c.API.Timeout
	cfg.Retries = c.API.Retries
	cfg.Cache = c.API.Cache
	cfg.CacheDir = c.API.CacheDir
	return cfg
}
