// Package config loads the service configuration.
//
// A configuration file is TOML or YAML, chosen by extension. Values in the
// file are laid over [Default], then environment overrides are applied:
//
//	IMPACT_REDIS_ADDR      redis.addr
//	IMPACT_STORE_DRIVER    store.driver
//	IMPACT_STORE_URI       store.uri
//	IMPACT_SERVER_ADDR     server.addr
//	IMPACT_<NAME>_TOKEN    token of provider <name>
//
// The [[providers]] list is ordered. Its order is the biblio preference
// order of the refresh plan.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/provider"
	"github.com/matzehuels/impactrefresh/pkg/ratelimit"
	"github.com/matzehuels/impactrefresh/pkg/retry"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Cache backends.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheLRU   = "lru"
	CacheRedis = "redis"
)

// Config is the complete service configuration.
type Config struct {
	Worker    WorkerConfig     `toml:"worker" yaml:"worker"`
	Status    StatusConfig     `toml:"status" yaml:"status"`
	Redis     RedisConfig      `toml:"redis" yaml:"redis"`
	Store     StoreConfig      `toml:"store" yaml:"store"`
	Cache     CacheConfig      `toml:"cache" yaml:"cache"`
	Server    ServerConfig     `toml:"server" yaml:"server"`
	Providers []ProviderConfig `toml:"providers" yaml:"providers"`
}

// WorkerConfig tunes job execution.
type WorkerConfig struct {
	Concurrency        int           `toml:"concurrency" yaml:"concurrency"`
	JobTimeout         time.Duration `toml:"job_timeout" yaml:"job_timeout"`
	MaxAttempts        int           `toml:"max_attempts" yaml:"max_attempts"`
	BackoffBase        time.Duration `toml:"backoff_base" yaml:"backoff_base"`
	BackoffMax         time.Duration `toml:"backoff_max" yaml:"backoff_max"`
	BackoffJitter      float64       `toml:"backoff_jitter" yaml:"backoff_jitter"`
	ThrottleJitter     time.Duration `toml:"throttle_jitter" yaml:"throttle_jitter"`
	MaxThrottleRetries int           `toml:"max_throttle_retries" yaml:"max_throttle_retries"`
	DefaultRateLimit   int           `toml:"default_rate_limit" yaml:"default_rate_limit"`
	DefaultWindow      time.Duration `toml:"default_window" yaml:"default_window"`
}

// StatusConfig tunes the outstanding-job tracker.
type StatusConfig struct {
	TTL time.Duration `toml:"ttl" yaml:"ttl"`
}

// RedisConfig locates the shared Redis. An empty Addr runs the limiter,
// tracker and queue in process.
type RedisConfig struct {
	Addr     string `toml:"addr" yaml:"addr"`
	Password string `toml:"password" yaml:"password"`
	DB       int    `toml:"db" yaml:"db"`
	Prefix   string `toml:"prefix" yaml:"prefix"`
}

// StoreConfig selects the artifact store.
type StoreConfig struct {
	Driver     string `toml:"driver" yaml:"driver"`
	URI        string `toml:"uri" yaml:"uri"`
	Database   string `toml:"database" yaml:"database"`
	Collection string `toml:"collection" yaml:"collection"`
	Table      string `toml:"table" yaml:"table"`
}

// CacheConfig selects the provider response cache.
type CacheConfig struct {
	Backend string        `toml:"backend" yaml:"backend"`
	Dir     string        `toml:"dir" yaml:"dir"`
	Size    int           `toml:"size" yaml:"size"`
	TTL     time.Duration `toml:"ttl" yaml:"ttl"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `toml:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ProviderConfig is one entry of the ordered provider list.
type ProviderConfig struct {
	Name      string            `toml:"name" yaml:"name"`
	RateLimit int               `toml:"rate_limit" yaml:"rate_limit"`
	Window    time.Duration     `toml:"window" yaml:"window"`
	Timeout   time.Duration     `toml:"timeout" yaml:"timeout"`
	Token     string            `toml:"token" yaml:"token"`
	BaseURL   string            `toml:"base_url" yaml:"base_url"`
	Options   map[string]string `toml:"options" yaml:"options"`
}

// DefaultProviders is the provider order used when none is configured. The
// generic page scraper comes last so host APIs are asked for biblio first.
var DefaultProviders = []string{"crossref", "pubmed", "mendeley", "github", "dryad", "figshare", "wikipedia", "webpage"}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Worker: WorkerConfig{
			Concurrency:        8,
			JobTimeout:         120 * time.Second,
			MaxAttempts:        retry.Default.Attempts,
			BackoffBase:        retry.Default.Base,
			BackoffMax:         retry.Default.Max,
			BackoffJitter:      retry.Default.Jitter,
			ThrottleJitter:     2 * time.Second,
			MaxThrottleRetries: 100,
			DefaultRateLimit:   ratelimit.DefaultRule.Limit,
			DefaultWindow:      ratelimit.DefaultRule.Window,
		},
		Status: StatusConfig{TTL: 30 * time.Minute},
		Redis:  RedisConfig{Prefix: "impact:"},
		Store: StoreConfig{
			Driver:     DriverMemory,
			Database:   "impactrefresh",
			Collection: "artifacts",
			Table:      "artifacts",
		},
		Cache:  CacheConfig{Backend: CacheLRU, Size: 4096, TTL: 10 * time.Minute},
		Server: ServerConfig{Addr: ":8080", ShutdownTimeout: 15 * time.Second},
	}
	for _, name := range DefaultProviders {
		cfg.Providers = append(cfg.Providers, ProviderConfig{Name: name})
	}
	return cfg
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeConfiguration, err, "read config")
	}
	// A file that lists providers replaces the default list.
	c.Providers = nil

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return apperr.Wrap(apperr.ErrCodeConfiguration, err, "parse %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return apperr.Wrap(apperr.ErrCodeConfiguration, err, "parse %s", path)
		}
	default:
		return apperr.New(apperr.ErrCodeConfiguration, "unsupported config format %q", ext)
	}
	if c.Providers == nil {
		c.Providers = Default().Providers
	}
	return nil
}

// ApplyEnv applies the IMPACT_* overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Redis.Addr, "IMPACT_REDIS_ADDR")
	set(&c.Store.Driver, "IMPACT_STORE_DRIVER")
	set(&c.Store.URI, "IMPACT_STORE_URI")
	set(&c.Server.Addr, "IMPACT_SERVER_ADDR")
	for i := range c.Providers {
		set(&c.Providers[i].Token, "IMPACT_"+strings.ToUpper(c.Providers[i].Name)+"_TOKEN")
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongo, DriverPostgres:
		if c.Store.URI == "" {
			return apperr.New(apperr.ErrCodeConfiguration, "store.uri is required for the %s driver", c.Store.Driver)
		}
	default:
		return apperr.New(apperr.ErrCodeConfiguration, "unknown store driver %q", c.Store.Driver)
	}

	switch c.Cache.Backend {
	case CacheNone, CacheFile, CacheLRU:
	case CacheRedis:
		if c.Redis.Addr == "" {
			return apperr.New(apperr.ErrCodeConfiguration, "the redis cache needs redis.addr")
		}
	default:
		return apperr.New(apperr.ErrCodeConfiguration, "unknown cache backend %q", c.Cache.Backend)
	}

	if c.Worker.Concurrency <= 0 {
		return apperr.New(apperr.ErrCodeConfiguration, "worker.concurrency must be positive")
	}
	if c.Worker.MaxAttempts <= 0 {
		return apperr.New(apperr.ErrCodeConfiguration, "worker.max_attempts must be positive")
	}
	if c.Worker.BackoffJitter < 0 || c.Worker.BackoffJitter > 1 {
		return apperr.New(apperr.ErrCodeConfiguration, "worker.backoff_jitter must be within [0, 1]")
	}

	seen := make(map[string]bool)
	for _, p := range c.Providers {
		if err := apperr.ValidateProviderName(p.Name); err != nil {
			return err
		}
		if seen[p.Name] {
			return apperr.New(apperr.ErrCodeConfiguration, "provider %q listed twice", p.Name)
		}
		seen[p.Name] = true
		if p.RateLimit < 0 || p.Window < 0 || p.Timeout < 0 {
			return apperr.New(apperr.ErrCodeConfiguration, "provider %q: negative limit, window or timeout", p.Name)
		}
	}
	return nil
}

// RetryPolicy returns the backoff applied to failed provider calls.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		Attempts: c.Worker.MaxAttempts,
		Base:     c.Worker.BackoffBase,
		Max:      c.Worker.BackoffMax,
		Jitter:   c.Worker.BackoffJitter,
	}
}

// RateRules returns the limiter rules.
func (c *Config) RateRules() ratelimit.Rules {
	rules := ratelimit.Rules{
		Default:     ratelimit.Rule{Limit: c.Worker.DefaultRateLimit, Window: c.Worker.DefaultWindow},
		PerProvider: make(map[string]ratelimit.Rule),
	}
	for _, p := range c.Providers {
		if p.RateLimit == 0 && p.Window == 0 {
			continue
		}
		r := ratelimit.Rule{Limit: p.RateLimit, Window: p.Window}
		if r.Limit == 0 {
			r.Limit = rules.Default.Limit
		}
		if r.Window == 0 {
			r.Window = rules.Default.Window
		}
		rules.PerProvider[p.Name] = r
	}
	return rules
}

// Timeouts returns the per-provider job deadlines that differ from the
// worker default.
func (c *Config) Timeouts() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for _, p := range c.Providers {
		if p.Timeout > 0 {
			out[p.Name] = p.Timeout
		}
	}
	return out
}

// Specs returns the ordered provider entries for registry construction.
// A base_url setting travels in the options.
func (c *Config) Specs() []provider.Spec {
	specs := make([]provider.Spec, 0, len(c.Providers))
	for _, p := range c.Providers {
		opts := make(map[string]string, len(p.Options)+1)
		for k, v := range p.Options {
			opts[k] = v
		}
		if p.BaseURL != "" {
			opts["base_url"] = p.BaseURL
		}
		specs = append(specs, provider.Spec{Name: p.Name, Token: p.Token, Options: opts})
	}
	return specs
}

// String summarizes the configuration without secrets.
func (c *Config) String() string {
	names := make([]string, len(c.Providers))
	for i, p := range c.Providers {
		names[i] = p.Name
	}
	redis := c.Redis.Addr
	if redis == "" {
		redis = "in-process"
	}
	return fmt.Sprintf("store=%s cache=%s redis=%s providers=%s", c.Store.Driver, c.Cache.Backend, redis, strings.Join(names, ","))
}
