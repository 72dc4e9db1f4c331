package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultBaseURL = "https://www.dov.vlaanderen.be/"

type CacheCfg struct {
	Variant   string        `yaml:"variant"` // none, plain, gzip or redis
	Dir       string        `yaml:"dir"`
	MaxAge    time.Duration `yaml:"max_age"`
	RedisAddr string        `yaml:"redis_addr"`
}

type HTTPCfg struct {
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

type FetchCfg struct {
	Workers int `yaml:"workers"`
	Queue   int `yaml:"queue"`
}

type KafkaCfg struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`

	// InvalidationTopic carries object update events that drop cached XML.
	InvalidationTopic string `yaml:"invalidation_topic"`
	GroupID           string `yaml:"group_id"`
}

type Config struct {
	BaseURL    string   `yaml:"base_url"`
	LogLevel   string   `yaml:"log_level"`
	LogConsole bool     `yaml:"log_console"`
	Cache      CacheCfg `yaml:"cache"`
	HTTP       HTTPCfg  `yaml:"http"`
	Fetch      FetchCfg `yaml:"fetch"`
	Kafka      KafkaCfg `yaml:"kafka"`
	Metrics    bool     `yaml:"metrics"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		LogLevel: "info",
		Cache: CacheCfg{
			Variant:   "gzip",
			Dir:       defaultCacheDir(),
			MaxAge:    14 * 24 * time.Hour,
			RedisAddr: "localhost:6379",
		},
		HTTP:  HTTPCfg{Timeout: 300 * time.Second, Retries: 3},
		Fetch: FetchCfg{Workers: 4, Queue: 64},
		Kafka: KafkaCfg{
			Topic:             "dov-search-events",
			InvalidationTopic: "dov-object-updates",
			GroupID:           "godov-cache",
		},
	}
}

func FromEnv() Config {
	return overlayEnv(Defaults())
}

// Load reads the YAML file named by DOV_CONFIG over the defaults, then
// applies environment variables, which win over the file.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("DOV_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg = overlayEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Cache.Variant {
	case "none", "plain", "gzip", "redis":
	default:
		return fmt.Errorf("config: unknown cache variant %q", c.Cache.Variant)
	}
	if c.Fetch.Workers <= 0 {
		return fmt.Errorf("config: fetch workers must be positive, got %d", c.Fetch.Workers)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("config: http timeout must be positive, got %s", c.HTTP.Timeout)
	}
	return nil
}

func overlayEnv(c Config) Config {
	c.BaseURL = getenv("PYDOV_BASE_URL", c.BaseURL)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogConsole = getbool("LOG_CONSOLE", c.LogConsole)
	c.Cache.Variant = strings.ToLower(getenv("DOV_CACHE", c.Cache.Variant))
	c.Cache.Dir = getenv("DOV_CACHE_DIR", c.Cache.Dir)
	c.Cache.MaxAge = getduration("DOV_CACHE_MAX_AGE", c.Cache.MaxAge)
	c.Cache.RedisAddr = getenv("DOV_REDIS_ADDR", c.Cache.RedisAddr)
	c.HTTP.Timeout = getduration("DOV_HTTP_TIMEOUT", c.HTTP.Timeout)
	c.HTTP.Retries = getint("DOV_HTTP_RETRIES", c.HTTP.Retries)
	c.Fetch.Workers = getint("DOV_FETCH_WORKERS", c.Fetch.Workers)
	c.Fetch.Queue = getint("DOV_FETCH_QUEUE", c.Fetch.Queue)
	c.Kafka.Brokers = getenv("DOV_KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getenv("DOV_KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.InvalidationTopic = getenv("DOV_KAFKA_INVALIDATION_TOPIC", c.Kafka.InvalidationTopic)
	c.Kafka.GroupID = getenv("DOV_KAFKA_GROUP_ID", c.Kafka.GroupID)
	c.Metrics = getbool("DOV_METRICS", c.Metrics)
	return c
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "godov")
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "godov")
	}
	return filepath.Join(os.TempDir(), "godov")
}

// BuildURL joins base and path with exactly one slash between them, whether
// or not base ends or path starts with one.
func BuildURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
