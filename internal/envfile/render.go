package envfile

import (
	"fmt"
	"strconv"
	"strings"

	"deployctl/internal/config"
)

// FromConfig flattens a configuration back into env entries, grouped the way
// the generated file groups them. Only the selected storage backend's keys
// are emitted.
func FromConfig(cfg *config.Config) *File {
	f := NewFile()

	f.Set("SUBMISSION_TEMP_DIRECTORY", cfg.Submissions.TempDirectory)

	f.Set("DEFAULT_FILE_STORAGE", cfg.Storage.Backend)
	switch cfg.Storage.Backend {
	case config.StorageS3:
		f.Set("AWS_ACCESS_KEY_ID", cfg.Storage.S3.AccessKey)
		f.Set("AWS_SECRET_ACCESS_KEY", cfg.Storage.S3.SecretKey)
		f.Set("AWS_STORAGE_BUCKET_NAME", cfg.Storage.S3.Bucket)
		f.Set("AWS_STORAGE_PRIVATE_BUCKET_NAME", cfg.Storage.S3.PrivateBucket)
		f.Set("S3DIRECT_REGION", cfg.Storage.S3.Region)
		f.Set("S3_ENDPOINT", cfg.Storage.S3.Endpoint)
		f.Set("S3_USE_SSL", strconv.FormatBool(cfg.Storage.S3.UseSSL))
		f.Set("AWS_QUERYSTRING_AUTH", strconv.FormatBool(cfg.Storage.S3.QuerystringAuth))
	case config.StorageAzure:
		f.Set("AZURE_ACCOUNT_NAME", cfg.Storage.Azure.AccountName)
		f.Set("AZURE_ACCOUNT_KEY", cfg.Storage.Azure.AccountKey)
		f.Set("AZURE_CONTAINER", cfg.Storage.Azure.Container)
		f.Set("AZURE_BUNDLE_CONTAINER", cfg.Storage.Azure.BundleContainer)
	}

	f.Set("DB_ENGINE", cfg.Database.Engine)
	f.Set("DB_HOST", cfg.Database.Host)
	f.Set("DB_PORT", strconv.Itoa(cfg.Database.Port))
	f.Set("DB_USER", cfg.Database.User)
	f.Set("DB_PASSWORD", cfg.Database.Password)
	f.Set("DB_NAME", cfg.Database.Name)
	f.Set("DB_DATA_PATH", cfg.Database.DataPath)

	f.Set("REDIS_HOST", cfg.Cache.Host)
	f.Set("REDIS_PORT", strconv.Itoa(cfg.Cache.Port))

	f.Set("RABBITMQ_DEFAULT_USER", cfg.Broker.User)
	f.Set("RABBITMQ_DEFAULT_PASS", cfg.Broker.Password)
	f.Set("RABBITMQ_HOST", cfg.Broker.Host)
	f.Set("RABBITMQ_PORT", strconv.Itoa(cfg.Broker.Port))
	f.Set("RABBITMQ_MANAGEMENT_PORT", strconv.Itoa(cfg.Broker.ManagementPort))
	f.Set("FLOWER_PORT", strconv.Itoa(cfg.Broker.FlowerPort))
	if cfg.Broker.FlowerBasicAuth != "" {
		f.Set("FLOWER_BASIC_AUTH", cfg.Broker.FlowerBasicAuth)
	}

	f.Set("SERVER_PORT", strconv.Itoa(cfg.Web.ServerPort))
	f.Set("NGINX_PORT", strconv.Itoa(cfg.Web.NginxPort))
	f.Set("SSL_PORT", strconv.Itoa(cfg.Web.SSLPort))
	f.Set("SSL_CERTIFICATE", cfg.Web.SSLCertificate)
	f.Set("SSL_CERTIFICATE_KEY", cfg.Web.SSLCertificateKey)
	f.Set("ALLOWED_HOSTS", cfg.Web.AllowedHosts)
	f.Set("SITE_DOMAIN", cfg.Web.SiteDomain)
	f.Set("SECRET_KEY", cfg.Web.SecretKey)
	f.Set("DEBUG", strconv.FormatBool(cfg.Web.Debug))

	f.Set("LOGGING_DIR", cfg.Logging.Dir)
	f.Set("LOG_LEVEL", cfg.Logging.Level)

	return f
}

// sectionPrefixes maps env key prefixes to the section header they render
// under. Order matters, it is the order of the generated file.
var sections = []struct {
	header   string
	prefixes []string
}{
	{"Submissions", []string{"SUBMISSION_"}},
	{"Object storage", []string{"DEFAULT_FILE_STORAGE", "AWS_", "S3", "AZURE_"}},
	{"Database", []string{"DB_"}},
	{"Cache", []string{"REDIS_"}},
	{"Message broker", []string{"RABBITMQ_", "FLOWER_"}},
	{"Web server", []string{"SERVER_", "NGINX_", "SSL_", "ALLOWED_HOSTS", "SITE_DOMAIN", "SECRET_KEY", "DEBUG"}},
	{"Logging", []string{"LOGGING_", "LOG_"}},
}

// Render writes the file as text, grouped by concern. Entries that match no
// known section (keys preserved from a hand-edited file) go into a trailing
// "Other" section so nothing is lost on a render round trip.
func (f *File) Render() string {
	var sb strings.Builder
	rendered := make(map[string]bool, len(f.pairs))

	for _, sec := range sections {
		wroteHeader := false
		for _, p := range f.pairs {
			if rendered[p.Key] || !matchesSection(p.Key, sec.prefixes) {
				continue
			}
			if !wroteHeader {
				fmt.Fprintf(&sb, "# %s\n", sec.header)
				wroteHeader = true
			}
			fmt.Fprintf(&sb, "%s=%s\n", p.Key, quoteIfNeeded(p.Value))
			rendered[p.Key] = true
		}
		if wroteHeader {
			sb.WriteString("\n")
		}
	}

	wroteHeader := false
	for _, p := range f.pairs {
		if rendered[p.Key] {
			continue
		}
		if !wroteHeader {
			sb.WriteString("# Other\n")
			wroteHeader = true
		}
		fmt.Fprintf(&sb, "%s=%s\n", p.Key, quoteIfNeeded(p.Value))
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func matchesSection(key string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
