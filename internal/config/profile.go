package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// LoadProfile reads a YAML deployment profile into a Config. The profile is
// the source a generated env file is rendered from, so it carries the same
// groups and the same defaults as the env-based loader.
func LoadProfile(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read deployment profile %s: %w", path, err)
	}
	applyProfileDefaults(&cfg)
	return &cfg, nil
}

// applyProfileDefaults fills the defaults that the envconfig tags would have
// applied. cleanenv only honors its own default tags, so keep this list in
// sync with the struct tags in config.go.
func applyProfileDefaults(cfg *Config) {
	if cfg.Submissions.TempDirectory == "" {
		cfg.Submissions.TempDirectory = "/tmp/submissions"
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "us-east-1"
	}
	if cfg.Storage.S3.Endpoint == "" {
		cfg.Storage.S3.Endpoint = "s3.amazonaws.com"
	}
	if cfg.Database.Engine == "" {
		cfg.Database.Engine = EnginePostgres
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Cache.Host == "" {
		cfg.Cache.Host = "localhost"
	}
	if cfg.Cache.Port == 0 {
		cfg.Cache.Port = 6379
	}
	if cfg.Broker.User == "" {
		cfg.Broker.User = "guest"
	}
	if cfg.Broker.Host == "" {
		cfg.Broker.Host = "localhost"
	}
	if cfg.Broker.Port == 0 {
		cfg.Broker.Port = 5672
	}
	if cfg.Broker.ManagementPort == 0 {
		cfg.Broker.ManagementPort = 15672
	}
	if cfg.Broker.FlowerPort == 0 {
		cfg.Broker.FlowerPort = 5555
	}
	if cfg.Web.ServerPort == 0 {
		cfg.Web.ServerPort = 8000
	}
	if cfg.Web.NginxPort == 0 {
		cfg.Web.NginxPort = 80
	}
	if cfg.Web.SSLPort == 0 {
		cfg.Web.SSLPort = 443
	}
	if cfg.Web.SiteDomain == "" {
		cfg.Web.SiteDomain = "localhost"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Masked returns a copy of the configuration with secret values replaced,
// safe to print from `config show`.
func (c *Config) Masked() Config {
	masked := *c
	if masked.Storage.S3.SecretKey != "" {
		masked.Storage.S3.SecretKey = "********"
	}
	if masked.Storage.Azure.AccountKey != "" {
		masked.Storage.Azure.AccountKey = "********"
	}
	if masked.Database.Password != "" {
		masked.Database.Password = "********"
	}
	if masked.Broker.Password != "" {
		masked.Broker.Password = "********"
	}
	if masked.Broker.FlowerBasicAuth != "" {
		masked.Broker.FlowerBasicAuth = "********"
	}
	if masked.Web.SecretKey != "" {
		masked.Web.SecretKey = "********"
	}
	return masked
}
