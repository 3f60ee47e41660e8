package checks

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"deployctl/internal/config"
)

// TLSCheck loads the reverse proxy's certificate pair and rejects expired
// or not-yet-valid certificates.
type TLSCheck struct {
	cfg config.WebConfig
}

func NewTLSCheck(cfg config.WebConfig) *TLSCheck {
	return &TLSCheck{cfg: cfg}
}

func (c *TLSCheck) Name() string {
	return "web/tls"
}

func (c *TLSCheck) Run(_ context.Context) (string, error) {
	if c.cfg.SSLCertificate == "" || c.cfg.SSLCertificateKey == "" {
		return "", fmt.Errorf("SSL_CERTIFICATE and SSL_CERTIFICATE_KEY must both be set")
	}

	pair, err := tls.LoadX509KeyPair(c.cfg.SSLCertificate, c.cfg.SSLCertificateKey)
	if err != nil {
		return "", fmt.Errorf("failed to load certificate pair: %w", err)
	}

	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return "", fmt.Errorf("failed to parse leaf certificate: %w", err)
	}

	now := time.Now()
	if now.After(leaf.NotAfter) {
		return "", fmt.Errorf("certificate expired on %s", leaf.NotAfter.Format(time.RFC3339))
	}
	if now.Before(leaf.NotBefore) {
		return "", fmt.Errorf("certificate is not valid until %s", leaf.NotBefore.Format(time.RFC3339))
	}

	return fmt.Sprintf("certificate for %q valid until %s", leaf.Subject.CommonName, leaf.NotAfter.Format("2006-01-02")), nil
}

// DirCheck verifies a configured directory exists and is writable by
// creating and removing a probe file in it.
type DirCheck struct {
	name string
	path string
}

func NewDirCheck(name, path string) *DirCheck {
	return &DirCheck{name: name, path: path}
}

func (c *DirCheck) Name() string {
	return c.name
}

func (c *DirCheck) Run(_ context.Context) (string, error) {
	if c.path == "" {
		return "", fmt.Errorf("directory path is empty")
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("directory %s does not exist", c.path)
		}
		return "", fmt.Errorf("failed to stat %s: %w", c.path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", c.path)
	}

	probe, err := os.CreateTemp(c.path, ".deployctl-probe-*")
	if err != nil {
		return "", fmt.Errorf("directory %s is not writable: %w", c.path, err)
	}
	probe.Close()
	os.Remove(filepath.Join(c.path, filepath.Base(probe.Name())))

	return c.path + " is writable", nil
}
