package httpcore

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the embedder-facing, YAML-loadable configuration for a
// listener's worth of engines. It is immutable once LoadConfig returns;
// components take it by pointer, never through a package global (spec §9).
type Config struct {
	MaxConnections      int64         `yaml:"max-connections"`
	QueueDepthThreshold int           `yaml:"queue-depth-threshold"`
	IdleReadTimeout     time.Duration `yaml:"idle-read-timeout"`
	WriteTimeout        time.Duration `yaml:"write-timeout"`
	DrainBudgetBytes    int64         `yaml:"drain-budget-bytes"`
	MaxFormBodyBytes    int64         `yaml:"max-form-body-bytes"`

	CompressibleExtensions []string `yaml:"compressible-extensions"`
	CacheableExtensions    []string `yaml:"cacheable-extensions"`
	NonCacheableExtensions []string `yaml:"non-cacheable-extensions"`

	TrustedProxyCIDRs    []string `yaml:"trusted-proxy-cidrs"`
	TrustXRealIP         bool     `yaml:"trust-x-real-ip"`
	TrustXForwardedFor   bool     `yaml:"trust-x-forwarded-for"`
	TrustXForwardedProto bool     `yaml:"trust-x-forwarded-proto"`
}

// DefaultConfig returns the spec-mandated defaults: 5s idle read timeout,
// 125000-byte drain budget, 2MiB form cap, and the default compressible set.
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:         0, // 0 means unbounded
		QueueDepthThreshold:    0,
		IdleReadTimeout:        5 * time.Second,
		WriteTimeout:           30 * time.Second,
		DrainBudgetBytes:       125_000,
		MaxFormBodyBytes:       2 * 1024 * 1024,
		CompressibleExtensions: []string{".html", ".htm", ".js", ".css", ".txt", ".svg", ".xml"},
		TrustXRealIP:           true,
		TrustXForwardedFor:     true,
		TrustXForwardedProto:   true,
	}
}

// LoadConfig reads YAML config from path, applying it on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CompressibleSet renders CompressibleExtensions as a lookup set, falling
// back to DefaultCompressibleExtensions when unset.
func (c *Config) CompressibleSet() map[string]bool {
	if len(c.CompressibleExtensions) == 0 {
		return DefaultCompressibleExtensions
	}
	out := make(map[string]bool, len(c.CompressibleExtensions))
	for _, ext := range c.CompressibleExtensions {
		out[ext] = true
	}
	return out
}

// CacheableFunc renders CacheableExtensions/NonCacheableExtensions as a
// predicate, falling back to DefaultCacheableExtensions.
func (c *Config) CacheableFunc() func(ext string) bool {
	if len(c.CacheableExtensions) > 0 {
		set := make(map[string]bool, len(c.CacheableExtensions))
		for _, ext := range c.CacheableExtensions {
			set[ext] = true
		}
		return func(ext string) bool { return set[ext] }
	}
	if len(c.NonCacheableExtensions) > 0 {
		set := make(map[string]bool, len(c.NonCacheableExtensions))
		for _, ext := range c.NonCacheableExtensions {
			set[ext] = true
		}
		return func(ext string) bool { return !set[ext] }
	}
	return DefaultCacheableExtensions
}
