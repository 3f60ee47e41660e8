package config

import (
	"fmt"
)

var knownLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the whole configuration and returns every violation found,
// not just the first one, so an operator can fix the env file in one pass.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.Storage.validate()...)
	errs = append(errs, c.Database.validate()...)
	errs = append(errs, c.Cache.validate()...)
	errs = append(errs, c.Broker.validate()...)
	errs = append(errs, c.Web.validate()...)
	errs = append(errs, c.Logging.validate()...)

	return errs
}

func (s *StorageConfig) validate() []error {
	var errs []error

	switch s.Backend {
	case StorageS3:
		if s.S3.AccessKey == "" {
			errs = append(errs, fmt.Errorf("storage: AWS_ACCESS_KEY_ID is required for the s3 backend"))
		}
		if s.S3.SecretKey == "" {
			errs = append(errs, fmt.Errorf("storage: AWS_SECRET_ACCESS_KEY is required for the s3 backend"))
		}
		if s.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("storage: AWS_STORAGE_BUCKET_NAME is required for the s3 backend"))
		}
		if s.Azure.AccountKey != "" || s.Azure.AccountName != "" {
			errs = append(errs, fmt.Errorf("storage: azure credentials are set while the s3 backend is selected, backends are mutually exclusive"))
		}
	case StorageAzure:
		if s.Azure.AccountName == "" {
			errs = append(errs, fmt.Errorf("storage: AZURE_ACCOUNT_NAME is required for the azure backend"))
		}
		if s.Azure.AccountKey == "" {
			errs = append(errs, fmt.Errorf("storage: AZURE_ACCOUNT_KEY is required for the azure backend"))
		}
		if s.Azure.Container == "" {
			errs = append(errs, fmt.Errorf("storage: AZURE_CONTAINER is required for the azure backend"))
		}
		if s.S3.AccessKey != "" || s.S3.SecretKey != "" {
			errs = append(errs, fmt.Errorf("storage: s3 credentials are set while the azure backend is selected, backends are mutually exclusive"))
		}
	case "":
		errs = append(errs, fmt.Errorf("storage: DEFAULT_FILE_STORAGE is not set (expected %q or %q)", StorageS3, StorageAzure))
	default:
		errs = append(errs, fmt.Errorf("storage: unknown backend %q (expected %q or %q)", s.Backend, StorageS3, StorageAzure))
	}

	return errs
}

func (d *DatabaseConfig) validate() []error {
	var errs []error

	switch d.Engine {
	case EnginePostgres, EngineMySQL, EngineOracle:
		if d.Host == "" {
			errs = append(errs, fmt.Errorf("database: DB_HOST is required for the %s engine", d.Engine))
		}
		if d.User == "" {
			errs = append(errs, fmt.Errorf("database: DB_USER is required for the %s engine", d.Engine))
		}
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("database: DB_NAME is required for the %s engine", d.Engine))
		}
		if err := validatePort("database", "DB_PORT", d.Port); err != nil {
			errs = append(errs, err)
		}
	case EngineSQLite:
		if d.DataPath == "" {
			errs = append(errs, fmt.Errorf("database: DB_DATA_PATH is required for the sqlite3 engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("database: unknown engine %q (expected one of postgresql, mysql, sqlite3, oracle)", d.Engine))
	}

	return errs
}

func (c *CacheConfig) validate() []error {
	if err := validatePort("cache", "REDIS_PORT", c.Port); err != nil {
		return []error{err}
	}
	return nil
}

func (b *BrokerConfig) validate() []error {
	var errs []error

	if b.User == "" {
		errs = append(errs, fmt.Errorf("broker: RABBITMQ_DEFAULT_USER is required"))
	}
	if b.Password == "" {
		errs = append(errs, fmt.Errorf("broker: RABBITMQ_DEFAULT_PASS is required"))
	}
	for _, p := range []struct {
		name string
		port int
	}{
		{"RABBITMQ_PORT", b.Port},
		{"RABBITMQ_MANAGEMENT_PORT", b.ManagementPort},
		{"FLOWER_PORT", b.FlowerPort},
	} {
		if err := validatePort("broker", p.name, p.port); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

func (w *WebConfig) validate() []error {
	var errs []error

	for _, p := range []struct {
		name string
		port int
	}{
		{"SERVER_PORT", w.ServerPort},
		{"NGINX_PORT", w.NginxPort},
		{"SSL_PORT", w.SSLPort},
	} {
		if err := validatePort("web", p.name, p.port); err != nil {
			errs = append(errs, err)
		}
	}

	// Сертификат и ключ должны быть заданы парой.
	if (w.SSLCertificate == "") != (w.SSLCertificateKey == "") {
		errs = append(errs, fmt.Errorf("web: SSL_CERTIFICATE and SSL_CERTIFICATE_KEY must be set together"))
	}

	if !w.Debug {
		if w.SecretKey == "" {
			errs = append(errs, fmt.Errorf("web: SECRET_KEY is required when DEBUG is off"))
		}
		if len(w.GetAllowedHosts()) == 0 {
			errs = append(errs, fmt.Errorf("web: ALLOWED_HOSTS is required when DEBUG is off"))
		}
	}

	return errs
}

func (l *LoggingConfig) validate() []error {
	if !knownLogLevels[l.Level] {
		return []error{fmt.Errorf("logging: unknown LOG_LEVEL %q (expected debug, info, warn or error)", l.Level)}
	}
	return nil
}

func validatePort(group, name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s: %s must be in range 1..65535, got %d", group, name, port)
	}
	return nil
}
