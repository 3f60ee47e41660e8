package checks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deployctl/internal/config"
)

// stubCheck lets tests script a check's behavior.
type stubCheck struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, call int32) (string, error)
}

func (s *stubCheck) Name() string { return s.name }

func (s *stubCheck) Run(ctx context.Context) (string, error) {
	return s.fn(ctx, s.calls.Add(1))
}

func TestRunner(t *testing.T) {
	logger := zap.NewNop()

	t.Run("One result per check, failures do not abort", func(t *testing.T) {
		ok := &stubCheck{name: "ok", fn: func(context.Context, int32) (string, error) { return "fine", nil }}
		bad := &stubCheck{name: "bad", fn: func(context.Context, int32) (string, error) { return "", errors.New("boom") }}
		skipped := &stubCheck{name: "skip", fn: func(context.Context, int32) (string, error) {
			return "", fmt.Errorf("%w: no driver", ErrSkipped)
		}}

		report := NewRunner([]Check{ok, bad, skipped}, logger).Run(context.Background())

		require.Len(t, report.Results, 3)
		assert.Equal(t, StatusOK, report.Results[0].Status)
		assert.Equal(t, "fine", report.Results[0].Detail)
		assert.Equal(t, StatusFailed, report.Results[1].Status)
		assert.Contains(t, report.Results[1].Error, "boom")
		assert.Equal(t, StatusSkipped, report.Results[2].Status)
		assert.False(t, report.OK())
		assert.Len(t, report.Failed(), 1)
		assert.NotEqual(t, report.ID.String(), "00000000-0000-0000-0000-000000000000")
	})

	t.Run("Skipped checks do not fail the report", func(t *testing.T) {
		skipped := &stubCheck{name: "skip", fn: func(context.Context, int32) (string, error) {
			return "", fmt.Errorf("%w: manual", ErrSkipped)
		}}

		report := NewRunner([]Check{skipped}, logger).Run(context.Background())
		assert.True(t, report.OK())
	})

	t.Run("Retries until success", func(t *testing.T) {
		flaky := &stubCheck{name: "flaky", fn: func(_ context.Context, call int32) (string, error) {
			if call < 3 {
				return "", errors.New("not yet")
			}
			return "third time", nil
		}}

		runner := NewRunner([]Check{flaky}, logger).WithRetries(3, time.Millisecond)
		report := runner.Run(context.Background())

		assert.Equal(t, StatusOK, report.Results[0].Status)
		assert.Equal(t, int32(3), flaky.calls.Load())
	})

	t.Run("Does not retry after cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		failing := &stubCheck{name: "fail", fn: func(context.Context, int32) (string, error) {
			cancel()
			return "", errors.New("down")
		}}

		runner := NewRunner([]Check{failing}, logger).WithRetries(5, time.Millisecond)
		report := runner.Run(ctx)

		assert.Equal(t, StatusFailed, report.Results[0].Status)
		assert.Equal(t, int32(1), failing.calls.Load())
	})

	t.Run("Per-check timeout is enforced", func(t *testing.T) {
		slow := &stubCheck{name: "slow", fn: func(ctx context.Context, _ int32) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}}

		runner := NewRunner([]Check{slow}, logger).WithTimeout(10 * time.Millisecond)
		start := time.Now()
		report := runner.Run(context.Background())

		assert.Equal(t, StatusFailed, report.Results[0].Status)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestForConfig(t *testing.T) {
	cfg := &config.Config{
		Submissions: config.SubmissionsConfig{TempDirectory: "/tmp/submissions"},
		Storage:     config.StorageConfig{Backend: config.StorageS3},
		Database:    config.DatabaseConfig{Engine: config.EnginePostgres},
		Logging:     config.LoggingConfig{Level: "info"},
	}

	t.Run("Base set", func(t *testing.T) {
		set := ForConfig(cfg)
		names := checkNames(set)
		assert.Contains(t, names, "database/postgresql")
		assert.Contains(t, names, "cache/redis")
		assert.Contains(t, names, "broker/rabbitmq")
		assert.Contains(t, names, "broker/management")
		assert.Contains(t, names, "storage/s3")
		assert.Contains(t, names, "submissions/temp-dir")
		assert.NotContains(t, names, "logging/dir")
		assert.NotContains(t, names, "web/tls")
	})

	t.Run("Optional checks appear when configured", func(t *testing.T) {
		withExtras := *cfg
		withExtras.Logging.Dir = "/var/log/platform"
		withExtras.Web.SSLCertificate = "/etc/ssl/cert.pem"
		withExtras.Web.SSLCertificateKey = "/etc/ssl/key.pem"

		names := checkNames(ForConfig(&withExtras))
		assert.Contains(t, names, "logging/dir")
		assert.Contains(t, names, "web/tls")
	})
}

func checkNames(set []Check) []string {
	names := make([]string, 0, len(set))
	for _, c := range set {
		names = append(names, c.Name())
	}
	return names
}

func TestDatabaseCheckStatic(t *testing.T) {
	t.Run("sqlite3 data file present", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "platform.db")
		require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

		check := NewDatabaseCheck(config.DatabaseConfig{Engine: config.EngineSQLite, DataPath: path})
		detail, err := check.Run(context.Background())
		require.NoError(t, err)
		assert.Contains(t, detail, "4 bytes")
	})

	t.Run("sqlite3 data file missing", func(t *testing.T) {
		check := NewDatabaseCheck(config.DatabaseConfig{Engine: config.EngineSQLite, DataPath: "/nonexistent/platform.db"})
		_, err := check.Run(context.Background())
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrSkipped)
	})

	t.Run("oracle is skipped", func(t *testing.T) {
		check := NewDatabaseCheck(config.DatabaseConfig{Engine: config.EngineOracle})
		_, err := check.Run(context.Background())
		assert.ErrorIs(t, err, ErrSkipped)
	})

	t.Run("unknown engine fails", func(t *testing.T) {
		check := NewDatabaseCheck(config.DatabaseConfig{Engine: "mssql"})
		_, err := check.Run(context.Background())
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrSkipped)
	})
}

func TestDirCheck(t *testing.T) {
	t.Run("Writable directory", func(t *testing.T) {
		dir := t.TempDir()
		detail, err := NewDirCheck("submissions/temp-dir", dir).Run(context.Background())
		require.NoError(t, err)
		assert.Contains(t, detail, dir)
	})

	t.Run("Missing directory", func(t *testing.T) {
		_, err := NewDirCheck("logging/dir", filepath.Join(t.TempDir(), "nope")).Run(context.Background())
		assert.Error(t, err)
	})

	t.Run("File instead of directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
		_, err := NewDirCheck("logging/dir", path).Run(context.Background())
		assert.Error(t, err)
	})

	t.Run("Empty path", func(t *testing.T) {
		_, err := NewDirCheck("submissions/temp-dir", "").Run(context.Background())
		assert.Error(t, err)
	})
}

func TestTLSCheck(t *testing.T) {
	t.Run("Missing pair member", func(t *testing.T) {
		check := NewTLSCheck(config.WebConfig{SSLCertificate: "/etc/ssl/cert.pem"})
		_, err := check.Run(context.Background())
		assert.Error(t, err)
	})

	t.Run("Unreadable files", func(t *testing.T) {
		check := NewTLSCheck(config.WebConfig{
			SSLCertificate:    filepath.Join(t.TempDir(), "cert.pem"),
			SSLCertificateKey: filepath.Join(t.TempDir(), "key.pem"),
		})
		_, err := check.Run(context.Background())
		assert.Error(t, err)
	})
}

func TestBrokerManagementCheck(t *testing.T) {
	newCheckFor := func(t *testing.T, srv *httptest.Server, user, pass string) *BrokerManagementCheck {
		t.Helper()
		u, err := url.Parse(srv.URL)
		require.NoError(t, err)
		port, err := strconv.Atoi(u.Port())
		require.NoError(t, err)

		return NewBrokerManagementCheck(config.BrokerConfig{
			User:           user,
			Password:       pass,
			Host:           u.Hostname(),
			ManagementPort: port,
		})
	}

	t.Run("Reachable with valid credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "mq" || pass != "pass" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			assert.Equal(t, "/api/overview", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		detail, err := newCheckFor(t, srv, "mq", "pass").Run(context.Background())
		require.NoError(t, err)
		assert.Contains(t, detail, "management API reachable")
	})

	t.Run("Rejected credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := newCheckFor(t, srv, "mq", "wrong").Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "credentials")
	})

	t.Run("Unexpected status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newCheckFor(t, srv, "mq", "pass").Run(context.Background())
		assert.Error(t, err)
	})
}

func TestStorageCheckNoBackend(t *testing.T) {
	check := NewStorageCheck(config.StorageConfig{})
	_, err := check.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "storage", check.Name())
}
