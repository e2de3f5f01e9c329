package config

import (
	"errors"
	"os"
	"time"
)

// ErrMissingDatabaseURL is returned when no database DSN can be found.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Config holds application configuration (DB, redis, upstream and cache tunables).
type Config struct {
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`
	ServerPort  string `yaml:"server_port" env:"SERVER_PORT"`

	UserAgent string        `yaml:"user_agent" env:"UPSTREAM_USER_AGENT"`
	Timeout   time.Duration `yaml:"timeout" env:"UPSTREAM_TIMEOUT"`

	// TMDBToken enables the metadata enrichment client when set.
	TMDBToken string `yaml:"tmdb_token" env:"TMDB_TOKEN"`

	// SyncTimeout bounds the live/movie/series fan-out of one sync run.
	SyncTimeout time.Duration `yaml:"sync_timeout" env:"SYNC_TIMEOUT"`

	// EPGCutoff is how long finished programs are kept before cleanup.
	EPGCutoff time.Duration `yaml:"epg_cutoff" env:"EPG_CUTOFF"`

	// ProxyCacheTTL and ProxySweepInterval tune the stream proxy byte cache.
	ProxyCacheTTL      time.Duration `yaml:"proxy_cache_ttl" env:"PROXY_CACHE_TTL"`
	ProxySweepInterval time.Duration `yaml:"proxy_sweep_interval" env:"PROXY_SWEEP_INTERVAL"`
}

// Load builds config from environment variables.
// If DATABASE_URL is not set, Load tries to load .env.local and .env from the
// current directory. DATABASE_URL is required; everything else has a default.
func Load() (*Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	c := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		ServerPort:  os.Getenv("SERVER_PORT"),
		UserAgent:   os.Getenv("UPSTREAM_USER_AGENT"),
		TMDBToken:   os.Getenv("TMDB_TOKEN"),
	}
	for env, dst := range map[string]*time.Duration{
		"UPSTREAM_TIMEOUT":     &c.Timeout,
		"SYNC_TIMEOUT":         &c.SyncTimeout,
		"EPG_CUTOFF":           &c.EPGCutoff,
		"PROXY_CACHE_TTL":      &c.ProxyCacheTTL,
		"PROXY_SWEEP_INTERVAL": &c.ProxySweepInterval,
	} {
		if s := os.Getenv(env); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				*dst = d
			}
		}
	}
	c.applyDefaults()
	if c.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.ServerPort == "" {
		c.ServerPort = "8080"
	}
	if c.UserAgent == "" {
		c.UserAgent = "StreamVault/1.0"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = 10 * time.Minute
	}
	if c.EPGCutoff <= 0 {
		c.EPGCutoff = 6 * time.Hour
	}
	if c.ProxyCacheTTL <= 0 {
		c.ProxyCacheTTL = 5 * time.Minute
	}
	if c.ProxySweepInterval <= 0 {
		c.ProxySweepInterval = time.Minute
	}
}
