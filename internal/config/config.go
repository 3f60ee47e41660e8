package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the full deployment configuration of the platform, grouped
// the same way the generated environment file groups it.
type Config struct {
	Submissions SubmissionsConfig `yaml:"submissions"`
	Storage     StorageConfig     `yaml:"storage"`
	Database    DatabaseConfig    `yaml:"database"`
	Cache       CacheConfig       `yaml:"cache"`
	Broker      BrokerConfig      `yaml:"broker"`
	Web         WebConfig         `yaml:"web"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SubmissionsConfig covers scratch space for uploaded submissions.
type SubmissionsConfig struct {
	TempDirectory string `envconfig:"SUBMISSION_TEMP_DIRECTORY" yaml:"temp_directory" default:"/tmp/submissions"`
}

// Storage backend identifiers. Exactly one backend is active per deployment.
const (
	StorageS3    = "s3"
	StorageAzure = "azure"
)

// StorageConfig selects and configures the object storage backend holding
// uploaded bundles. The two backends are mutually exclusive.
type StorageConfig struct {
	Backend string      `envconfig:"DEFAULT_FILE_STORAGE" yaml:"backend"`
	S3      S3Config    `yaml:"s3"`
	Azure   AzureConfig `yaml:"azure"`
}

// S3Config holds the S3-compatible backend settings.
type S3Config struct {
	AccessKey       string `envconfig:"AWS_ACCESS_KEY_ID" yaml:"access_key"`
	SecretKey       string `envconfig:"AWS_SECRET_ACCESS_KEY" yaml:"secret_key"`
	Bucket          string `envconfig:"AWS_STORAGE_BUCKET_NAME" yaml:"bucket"`
	PrivateBucket   string `envconfig:"AWS_STORAGE_PRIVATE_BUCKET_NAME" yaml:"private_bucket"`
	Region          string `envconfig:"S3DIRECT_REGION" yaml:"region" default:"us-east-1"`
	Endpoint        string `envconfig:"S3_ENDPOINT" yaml:"endpoint" default:"s3.amazonaws.com"`
	UseSSL          bool   `envconfig:"S3_USE_SSL" yaml:"use_ssl" default:"true"`
	QuerystringAuth bool   `envconfig:"AWS_QUERYSTRING_AUTH" yaml:"querystring_auth" default:"true"`
}

// AzureConfig holds the Azure blob backend settings.
type AzureConfig struct {
	AccountName     string `envconfig:"AZURE_ACCOUNT_NAME" yaml:"account_name"`
	AccountKey      string `envconfig:"AZURE_ACCOUNT_KEY" yaml:"account_key"`
	Container       string `envconfig:"AZURE_CONTAINER" yaml:"container"`
	BundleContainer string `envconfig:"AZURE_BUNDLE_CONTAINER" yaml:"bundle_container"`
}

// Database engines accepted by the deployment.
const (
	EnginePostgres = "postgresql"
	EngineMySQL    = "mysql"
	EngineSQLite   = "sqlite3"
	EngineOracle   = "oracle"
)

// DatabaseConfig holds the relational database connection parameters.
type DatabaseConfig struct {
	Engine   string `envconfig:"DB_ENGINE" yaml:"engine" default:"postgresql"`
	Host     string `envconfig:"DB_HOST" yaml:"host" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" yaml:"port" default:"5432"`
	User     string `envconfig:"DB_USER" yaml:"user"`
	Name     string `envconfig:"DB_NAME" yaml:"name"`
	DataPath string `envconfig:"DB_DATA_PATH" yaml:"data_path"`
	// Пароль может прийти из env файла или из Docker secret, см. LoadConfig.
	Password string `envconfig:"DB_PASSWORD" yaml:"password"`
}

// CacheConfig holds the cache endpoint. The env file only pins the port,
// the host is an override for non-local layouts.
type CacheConfig struct {
	Host string `envconfig:"REDIS_HOST" yaml:"host" default:"localhost"`
	Port int    `envconfig:"REDIS_PORT" yaml:"port" default:"6379"`
}

// BrokerConfig holds the message broker credentials plus the management and
// monitoring (Flower) surfaces that sit next to it.
type BrokerConfig struct {
	User            string `envconfig:"RABBITMQ_DEFAULT_USER" yaml:"user" default:"guest"`
	Password        string `envconfig:"RABBITMQ_DEFAULT_PASS" yaml:"password"`
	Host            string `envconfig:"RABBITMQ_HOST" yaml:"host" default:"localhost"`
	Port            int    `envconfig:"RABBITMQ_PORT" yaml:"port" default:"5672"`
	ManagementPort  int    `envconfig:"RABBITMQ_MANAGEMENT_PORT" yaml:"management_port" default:"15672"`
	FlowerPort      int    `envconfig:"FLOWER_PORT" yaml:"flower_port" default:"5555"`
	FlowerBasicAuth string `envconfig:"FLOWER_BASIC_AUTH" yaml:"flower_basic_auth"`
}

// WebConfig holds the application server, reverse proxy and TLS settings.
type WebConfig struct {
	ServerPort        int    `envconfig:"SERVER_PORT" yaml:"server_port" default:"8000"`
	NginxPort         int    `envconfig:"NGINX_PORT" yaml:"nginx_port" default:"80"`
	SSLPort           int    `envconfig:"SSL_PORT" yaml:"ssl_port" default:"443"`
	SSLCertificate    string `envconfig:"SSL_CERTIFICATE" yaml:"ssl_certificate"`
	SSLCertificateKey string `envconfig:"SSL_CERTIFICATE_KEY" yaml:"ssl_certificate_key"`
	AllowedHosts      string `envconfig:"ALLOWED_HOSTS" yaml:"allowed_hosts"`
	SiteDomain        string `envconfig:"SITE_DOMAIN" yaml:"site_domain" default:"localhost"`
	Debug             bool   `envconfig:"DEBUG" yaml:"debug"`
	// Секретное поле: env переменная SECRET_KEY либо Docker secret.
	SecretKey string `envconfig:"SECRET_KEY" yaml:"secret_key"`
}

// LoggingConfig holds the logging directory and verbosity.
type LoggingConfig struct {
	Dir   string `envconfig:"LOGGING_DIR" yaml:"dir"`
	Level string `envconfig:"LOG_LEVEL" yaml:"level" default:"info"`
}

// GetAllowedHosts splits the AllowedHosts string into a slice.
func (w *WebConfig) GetAllowedHosts() []string {
	if w.AllowedHosts == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(w.AllowedHosts, " ", ""), ",")
}

// DSN builds the connection string for the configured engine. sqlite3 uses
// the data path directly; oracle has no driver here and is rejected.
func (d *DatabaseConfig) DSN() (string, error) {
	switch d.Engine {
	case EnginePostgres:
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			url.QueryEscape(d.User), url.QueryEscape(d.Password), d.Host, d.Port, d.Name), nil
	case EngineMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", d.User, d.Password, d.Host, d.Port, d.Name), nil
	case EngineSQLite:
		if d.DataPath == "" {
			return "", fmt.Errorf("sqlite3 engine requires DB_DATA_PATH")
		}
		return d.DataPath, nil
	case EngineOracle:
		return "", fmt.Errorf("oracle engine is configured but not supported by this tooling")
	default:
		return "", fmt.Errorf("unknown database engine %q", d.Engine)
	}
}

// AMQPURL builds the broker connection URL.
func (b *BrokerConfig) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", url.QueryEscape(b.User), url.QueryEscape(b.Password), b.Host, b.Port)
}

// ManagementURL is the broker's HTTP management API base.
func (b *BrokerConfig) ManagementURL() string {
	return fmt.Sprintf("http://%s:%d", b.Host, b.ManagementPort)
}

// FlowerAddr is the task-monitoring endpoint.
func (b *BrokerConfig) FlowerAddr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.FlowerPort)
}

// Addr returns the cache endpoint in host:port form.
func (c *CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig loads the deployment configuration: the generated env file first
// (if present), then the process environment, then secret files for values
// that deployments keep out of the env file.
func LoadConfig(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if _, err := os.Stat(envFilePath); err == nil {
			if err := godotenv.Load(envFilePath); err != nil {
				return nil, fmt.Errorf("failed to load env file %s: %w", envFilePath, err)
			}
			log.Printf("Loaded configuration from %s", envFilePath)
		} else if !os.IsNotExist(err) {
			log.Printf("Warning: error checking %s file: %v", envFilePath, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env vars: %w", err)
	}

	// Необязательные секреты: если переменной нет, пробуем файл секрета.
	if cfg.Web.SecretKey == "" {
		if secret, err := ReadSecret("secret_key"); err == nil {
			cfg.Web.SecretKey = secret
			log.Println("Secret key loaded from secret file.")
		}
	}
	if cfg.Database.Password == "" {
		if secret, err := ReadSecret("db_password"); err == nil {
			cfg.Database.Password = secret
			log.Println("Database password loaded from secret file.")
		}
	}
	if cfg.Broker.Password == "" {
		if secret, err := ReadSecret("rabbitmq_password"); err == nil {
			cfg.Broker.Password = secret
			log.Println("Broker password loaded from secret file.")
		}
	}

	return &cfg, nil
}
