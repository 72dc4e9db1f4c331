package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBuildURL(t *testing.T) {
	cases := []struct{ base, path, want string }{
		{"https://www.dov.vlaanderen.be", "data/boring/1", "https://www.dov.vlaanderen.be/data/boring/1"},
		{"https://www.dov.vlaanderen.be/", "data/boring/1", "https://www.dov.vlaanderen.be/data/boring/1"},
		{"https://www.dov.vlaanderen.be/", "/geoserver/wfs", "https://www.dov.vlaanderen.be/geoserver/wfs"},
		{"http://localhost:8080/dov/", "/", "http://localhost:8080/dov/"},
	}
	for _, c := range cases {
		if got := BuildURL(c.base, c.path); got != c.want {
			t.Fatalf("BuildURL(%q, %q) = %q, want %q", c.base, c.path, got, c.want)
		}
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("PYDOV_BASE_URL", "")
	t.Setenv("DOV_CACHE", "")
	cfg := FromEnv()
	if cfg.BaseURL != DefaultBaseURL {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if cfg.Cache.Variant != "gzip" || cfg.Cache.MaxAge != 336*time.Hour {
		t.Fatalf("cache defaults = %+v", cfg.Cache)
	}
	if cfg.Fetch.Workers != 4 {
		t.Fatalf("workers = %d", cfg.Fetch.Workers)
	}
}

func TestFromEnv_Kafka(t *testing.T) {
	t.Setenv("DOV_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DOV_KAFKA_INVALIDATION_TOPIC", "")
	t.Setenv("DOV_KAFKA_GROUP_ID", "ci")
	cfg := FromEnv()
	if cfg.Kafka.Brokers != "k1:9092,k2:9092" || cfg.Kafka.GroupID != "ci" {
		t.Fatalf("kafka = %+v", cfg.Kafka)
	}
	if cfg.Kafka.InvalidationTopic != "dov-object-updates" {
		t.Fatalf("invalidation topic = %q", cfg.Kafka.InvalidationTopic)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dov.yaml")
	yml := "base_url: http://file.example/\ncache:\n  variant: plain\n  max_age: 1h\nfetch:\n  workers: 2\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOV_CONFIG", path)
	t.Setenv("PYDOV_BASE_URL", "http://env.example/")
	t.Setenv("DOV_CACHE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://env.example/" {
		t.Fatalf("env should win, got %q", cfg.BaseURL)
	}
	if cfg.Cache.Variant != "plain" || cfg.Cache.MaxAge != time.Hour || cfg.Fetch.Workers != 2 {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
}

func TestLoad_RejectsUnknownVariant(t *testing.T) {
	t.Setenv("DOV_CONFIG", "")
	t.Setenv("DOV_CACHE", "memcached")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}
