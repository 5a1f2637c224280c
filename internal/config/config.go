// Package config loads the gateway's YAML configuration and applies
// environment-variable overrides, matching the teacher's
// internal/config/config.go load/override/default pipeline.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

// Config is the root configuration struct, one nested section per
// subsystem, matching spec §6's enumerated configuration list.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Scanner      ScannerConfig      `yaml:"scanner"`
	Queue        QueueConfig        `yaml:"queue"`
	Backpressure BackpressureConfig `yaml:"backpressure"`
	Circuit      CircuitConfig      `yaml:"circuit"`
	LoadBalancer LoadBalancerConfig `yaml:"load_balancer"`
	Cache        CacheConfig        `yaml:"cache"`
	Tenant       TenantConfig       `yaml:"tenant"`
	Cost         CostConfig         `yaml:"cost"`
	Redis        RedisConfig        `yaml:"redis"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Audit        AuditConfig        `yaml:"audit"`
	Streaming    StreamingConfig    `yaml:"streaming"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port            string `yaml:"port"`
	Env             string `yaml:"env"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	IdleTimeoutSec  int    `yaml:"idle_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
}

type ScannerConfig struct {
	Parallel  bool `yaml:"parallel"`
	TimeoutMs int  `yaml:"timeout_ms"`
}

type QueueConfig struct {
	MaxSize        int  `yaml:"max_size"`
	MaxConcurrent  int  `yaml:"max_concurrent"`
	EnableFairness bool `yaml:"enable_fairness"`
}

type BackpressureConfig struct {
	Strategy       string   `yaml:"strategy"`
	ShedPriorities []string `yaml:"shed_priorities"`
	Elevated       float64  `yaml:"threshold_elevated"`
	High           float64  `yaml:"threshold_high"`
	Critical       float64  `yaml:"threshold_critical"`
}

type CircuitConfig struct {
	Threshold  float64 `yaml:"threshold"`
	WindowSec  int     `yaml:"window_sec"`
	CoolDownMs int     `yaml:"cooldown_ms"`
}

type LoadBalancerConfig struct {
	Algorithm             string `yaml:"algorithm"`
	HealthCheckIntervalMs int    `yaml:"health_check_interval_ms"`
	MaxRetries            int    `yaml:"max_retries"`
	RetryDelayMs          int    `yaml:"retry_delay_ms"`
	MaxPoolSize           int    `yaml:"max_pool_size"`
	IdleTimeoutMs         int    `yaml:"idle_timeout_ms"`
}

type CacheConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxEntries          int     `yaml:"max_entries"`
	TTLMs               int     `yaml:"ttl_ms"`
	EmbeddingDim        int     `yaml:"embedding_dim"`
	UseRedis            bool    `yaml:"use_redis"`
}

type TenantConfig struct {
	DefaultMaxRequestsPerHour int64   `yaml:"default_max_requests_per_hour"`
	DefaultMaxTokensPerDay    int64   `yaml:"default_max_tokens_per_day"`
	DefaultMaxCostPerMonth    float64 `yaml:"default_max_cost_per_month"`
}

type CostConfig struct {
	Pricing map[string]map[string]PriceEntry `yaml:"pricing"`
}

type PriceEntry struct {
	InPrice  float64 `yaml:"in_price"`
	OutPrice float64 `yaml:"out_price"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type AuditConfig struct {
	RingBufferSize int    `yaml:"ring_buffer_size"`
	PubSubEnabled  bool   `yaml:"pubsub_enabled"`
	PubSubTopic    string `yaml:"pubsub_topic"`
	GCPProjectID   string `yaml:"gcp_project_id"`
}

type StreamingConfig struct {
	ChunkIntervalMs int `yaml:"chunk_interval_ms"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

var (
	once     sync.Once
	instance *Config
)

// Get lazily loads the config singleton from CONFIG_PATH (default
// "config.yaml"), matching the teacher's sync.Once-guarded Get().
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		cfg.applyDefaults()
		instance = cfg
	})
	return instance
}

// LoadConfig reads and decodes a YAML config file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides layers environment variables on top of the file config,
// matching the teacher's field-by-field override style.
func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("GATEWAY_ENV", c.Server.Env)

	c.Scanner.Parallel = getEnvBool("SCANNER_PARALLEL", c.Scanner.Parallel)
	if v := getEnvInt("SCANNER_TIMEOUT_MS", 0); v > 0 {
		c.Scanner.TimeoutMs = v
	}

	if v := getEnvInt("QUEUE_MAX_SIZE", 0); v > 0 {
		c.Queue.MaxSize = v
	}
	if v := getEnvInt("QUEUE_MAX_CONCURRENT", 0); v > 0 {
		c.Queue.MaxConcurrent = v
	}
	c.Queue.EnableFairness = getEnvBool("QUEUE_ENABLE_FAIRNESS", c.Queue.EnableFairness)

	c.Backpressure.Strategy = getEnv("BACKPRESSURE_STRATEGY", c.Backpressure.Strategy)
	if priorities := getEnv("BACKPRESSURE_SHED_PRIORITIES", ""); priorities != "" {
		c.Backpressure.ShedPriorities = splitCSV(priorities)
	}

	c.LoadBalancer.Algorithm = getEnv("LB_ALGORITHM", c.LoadBalancer.Algorithm)
	if v := getEnvInt("LB_MAX_RETRIES", 0); v > 0 {
		c.LoadBalancer.MaxRetries = v
	}
	if v := getEnvInt("LB_MAX_POOL_SIZE", 0); v > 0 {
		c.LoadBalancer.MaxPoolSize = v
	}

	if v := getEnvFloat("CACHE_SIMILARITY_THRESHOLD", 0); v > 0 {
		c.Cache.SimilarityThreshold = v
	}
	if v := getEnvInt("CACHE_MAX_ENTRIES", 0); v > 0 {
		c.Cache.MaxEntries = v
	}
	c.Cache.UseRedis = getEnvBool("CACHE_USE_REDIS", c.Cache.UseRedis)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)

	c.Audit.PubSubEnabled = getEnvBool("AUDIT_PUBSUB_ENABLED", c.Audit.PubSubEnabled)
	c.Audit.PubSubTopic = getEnv("AUDIT_PUBSUB_TOPIC", c.Audit.PubSubTopic)
	if projectID := getEnv("GCP_PROJECT_ID", ""); projectID != "" {
		c.Audit.GCPProjectID = projectID
	}
}

// applyDefaults fills zero-valued fields with sensible defaults, matching
// the teacher's applyDefaults step.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Scanner.TimeoutMs == 0 {
		c.Scanner.TimeoutMs = 500
	}
	if c.Queue.MaxSize == 0 {
		c.Queue.MaxSize = 10000
	}
	if c.Queue.MaxConcurrent == 0 {
		c.Queue.MaxConcurrent = 64
	}
	if c.Backpressure.Strategy == "" {
		c.Backpressure.Strategy = "shed"
	}
	if c.Backpressure.Elevated == 0 {
		c.Backpressure.Elevated = 0.6
	}
	if c.Backpressure.High == 0 {
		c.Backpressure.High = 0.8
	}
	if c.Backpressure.Critical == 0 {
		c.Backpressure.Critical = 0.95
	}
	if c.Circuit.Threshold == 0 {
		c.Circuit.Threshold = 0.5
	}
	if c.LoadBalancer.Algorithm == "" {
		c.LoadBalancer.Algorithm = "round-robin"
	}
	if c.LoadBalancer.MaxRetries == 0 {
		c.LoadBalancer.MaxRetries = 3
	}
	if c.LoadBalancer.MaxPoolSize == 0 {
		c.LoadBalancer.MaxPoolSize = 32
	}
	if c.Cache.SimilarityThreshold == 0 {
		c.Cache.SimilarityThreshold = 0.92
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 5000
	}
	if c.Audit.RingBufferSize == 0 {
		c.Audit.RingBufferSize = 1000
	}
	if c.Streaming.ChunkIntervalMs == 0 {
		c.Streaming.ChunkIntervalMs = 40
	}
	if c.RateLimit.PerMinute == 0 {
		c.RateLimit.PerMinute = 600
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = c.RateLimit.PerMinute * 2
	}
}

func (c *Config) IsProduction() bool { return c.Server.Env == "production" }

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
