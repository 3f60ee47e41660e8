package checks

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"deployctl/internal/config"
)

// StorageCheck probes the selected object storage backend. The s3 backend
// gets a live bucket-exists probe; azure gets a TCP reachability probe of
// the account's blob endpoint, since no azure SDK ships with this tooling.
type StorageCheck struct {
	cfg config.StorageConfig
}

func NewStorageCheck(cfg config.StorageConfig) *StorageCheck {
	return &StorageCheck{cfg: cfg}
}

func (c *StorageCheck) Name() string {
	if c.cfg.Backend == "" {
		return "storage"
	}
	return "storage/" + c.cfg.Backend
}

func (c *StorageCheck) Run(ctx context.Context) (string, error) {
	switch c.cfg.Backend {
	case config.StorageS3:
		return c.checkS3(ctx)
	case config.StorageAzure:
		return c.checkAzure(ctx)
	default:
		return "", fmt.Errorf("no storage backend selected")
	}
}

func (c *StorageCheck) checkS3(ctx context.Context) (string, error) {
	client, err := minio.New(c.cfg.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.cfg.S3.AccessKey, c.cfg.S3.SecretKey, ""),
		Secure: c.cfg.S3.UseSSL,
		Region: c.cfg.S3.Region,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build s3 client: %w", err)
	}

	buckets := []string{c.cfg.S3.Bucket}
	if c.cfg.S3.PrivateBucket != "" && c.cfg.S3.PrivateBucket != c.cfg.S3.Bucket {
		buckets = append(buckets, c.cfg.S3.PrivateBucket)
	}

	var found []string
	for _, bucket := range buckets {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return "", fmt.Errorf("failed to probe bucket %q: %w", bucket, err)
		}
		if !exists {
			return "", fmt.Errorf("bucket %q does not exist or is not visible to these credentials", bucket)
		}
		found = append(found, bucket)
	}

	return "buckets reachable: " + strings.Join(found, ", "), nil
}

func (c *StorageCheck) checkAzure(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s.blob.core.windows.net:443", c.cfg.Azure.AccountName)

	var d net.Dialer
	d.Timeout = 10 * time.Second
	conn, err := d.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to reach blob endpoint %s: %w", endpoint, err)
	}
	conn.Close()

	return fmt.Sprintf("blob endpoint %s reachable (credentials not verified)", endpoint), nil
}
