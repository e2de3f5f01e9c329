package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	DatabaseURL        string `yaml:"database_url"`
	RedisURL           string `yaml:"redis_url"`
	ServerPort         string `yaml:"server_port"`
	UserAgent          string `yaml:"user_agent"`
	Timeout            string `yaml:"timeout"`
	TMDBToken          string `yaml:"tmdb_token"`
	SyncTimeout        string `yaml:"sync_timeout"`
	EPGCutoff          string `yaml:"epg_cutoff"`
	ProxyCacheTTL      string `yaml:"proxy_cache_ttl"`
	ProxySweepInterval string `yaml:"proxy_sweep_interval"`
}

// LoadFromFile loads config from a YAML file. database_url is required.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	c := &Config{
		DatabaseURL: f.DatabaseURL,
		RedisURL:    f.RedisURL,
		ServerPort:  f.ServerPort,
		UserAgent:   f.UserAgent,
		TMDBToken:   f.TMDBToken,
	}
	durations := []struct {
		raw string
		dst *time.Duration
	}{
		{f.Timeout, &c.Timeout},
		{f.SyncTimeout, &c.SyncTimeout},
		{f.EPGCutoff, &c.EPGCutoff},
		{f.ProxyCacheTTL, &c.ProxyCacheTTL},
		{f.ProxySweepInterval, &c.ProxySweepInterval},
	}
	for _, e := range durations {
		if e.raw == "" {
			continue
		}
		if d, err := time.ParseDuration(e.raw); err == nil {
			*e.dst = d
		}
	}
	c.applyDefaults()
	return c, nil
}
