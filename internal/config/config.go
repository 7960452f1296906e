// Package config loads the YAML configuration that drives cmd/lookupctl,
// using spf13/viper the way the teacher repo's coremain.loadConfig loads
// mosdns's own config: ReadInConfig followed by a mapstructure Unmarshal
// with the "yaml" tag and ErrorUnused set.
package config

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/sempasha/super-dns-lookup/internal/mlog"
)

// Config is the top-level document, matching the "log/resolvers/cache/
// hosts/persistence/throttle/api" sections of the schema.
type Config struct {
	Log         mlog.Config       `yaml:"log"`
	Resolvers   []string          `yaml:"resolvers"`
	Cache       CacheConfig       `yaml:"cache"`
	Hosts       HostsConfig       `yaml:"hosts"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Throttle    ThrottleConfig    `yaml:"throttle"`
	API         APIConfig         `yaml:"api"`
}

// CacheConfig controls the Cache Store's sizing.
type CacheConfig struct {
	Size   int `yaml:"size"`
	Shards int `yaml:"shards"`
}

// HostsConfig controls the Hosts Source collaborator.
type HostsConfig struct {
	Path string `yaml:"path"`
}

// PersistenceBackend selects which Sink implementation backs persistence.
type PersistenceBackend string

const (
	PersistenceFile  PersistenceBackend = "file"
	PersistenceRedis PersistenceBackend = "redis"
	PersistenceNone  PersistenceBackend = "none"
)

// PersistenceConfig controls the persistence Sink.
type PersistenceConfig struct {
	Backend   PersistenceBackend `yaml:"backend"`
	Path      string             `yaml:"path"`
	RedisAddr string             `yaml:"redis_addr"`
}

// ThrottleConfig controls the optional per-process resolve-rate limiter.
type ThrottleConfig struct {
	QPS   float64 `yaml:"qps"`
	Burst int     `yaml:"burst"`
}

// APIConfig controls the optional metrics/pprof HTTP listener.
type APIConfig struct {
	HTTP string `yaml:"http"`
}

// ResolverTimeout is the fixed per-exchange timeout used by pkg/resolver.
// The schema has no knob for it; mosdns-x's own upstream pool hardcodes a
// comparable constant rather than exposing one.
const ResolverTimeout = 5 * time.Second

func defaults() *Config {
	return &Config{
		Log:       mlog.Config{Level: "info", Encoding: "console"},
		Resolvers: []string{"1.1.1.1:53", "8.8.8.8:53"},
		Cache:     CacheConfig{Size: 4096, Shards: 64},
		Persistence: PersistenceConfig{
			Backend: PersistenceNone,
		},
	}
}

// Load reads filePath (or, if empty, searches the working directory for a
// file named "config.*") and unmarshals it over the schema defaults.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	if filePath != "" {
		v.SetConfigFile(filePath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := defaults()
	decoderOpt := func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = true
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
	}
	if err := v.Unmarshal(cfg, decoderOpt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Resolvers) == 0 {
		return fmt.Errorf("config: at least one entry is required under resolvers")
	}
	switch c.Persistence.Backend {
	case PersistenceFile, PersistenceRedis, PersistenceNone, "":
	default:
		return fmt.Errorf("config: unknown persistence.backend %q", c.Persistence.Backend)
	}
	if c.Persistence.Backend == PersistenceFile && c.Persistence.Path == "" {
		return fmt.Errorf("config: persistence.path is required when persistence.backend is \"file\"")
	}
	if c.Persistence.Backend == PersistenceRedis && c.Persistence.RedisAddr == "" {
		return fmt.Errorf("config: persistence.redis_addr is required when persistence.backend is \"redis\"")
	}
	return nil
}
