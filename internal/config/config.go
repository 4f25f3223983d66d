package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig stores completion provider specific configurations.
type ProviderConfig struct {
	APIKey  string   `yaml:"api_key"`
	BaseURL string   `yaml:"base_url"`
	Models  []string `yaml:"models"`
	// RequestTimeout bounds a single atomic completion. Streaming calls
	// are bounded only by the caller's context.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CacheConfig stores prompt cache specific configurations.
type CacheConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`
}

// StoryConfig stores story workflow specific configurations.
type StoryConfig struct {
	SessionCacheSize  int `yaml:"session_cache_size"`
	NegativeCacheSize int `yaml:"negative_cache_size"`
}

// ServerConfig stores HTTP server specific configurations.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Config stores the application configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Cache    CacheConfig    `yaml:"cache"`
	Story    StoryConfig    `yaml:"story"`
	Server   ServerConfig   `yaml:"server"`
	LogLevel string         `yaml:"log_level"`
}

// LoadConfig loads the configuration from the given file path.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
