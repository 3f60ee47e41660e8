// Package checks implements deployment smoke checks: after the environment
// file is loaded, every service it points at should be reachable and every
// path it names should be usable.
package checks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"deployctl/internal/config"
)

// ErrSkipped marks a check that cannot be probed live for this
// configuration (for example an engine with no driver). Skipped checks do
// not fail the run.
var ErrSkipped = errors.New("check skipped")

// Status of a finished check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Check probes one concern of the deployment.
type Check interface {
	// Name identifies the check in reports, e.g. "database/postgresql".
	Name() string
	// Run probes the target and returns a human-readable detail on success.
	Run(ctx context.Context) (string, error)
}

// Result is the outcome of one check.
type Result struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Detail  string        `json:"detail,omitempty"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Report aggregates one run of the whole check set.
type Report struct {
	ID        uuid.UUID `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Results   []Result  `json:"results"`
}

// OK reports whether no check failed. Skipped checks do not count.
func (r *Report) OK() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Failed returns only the failed results.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Runner executes a check set concurrently with a per-check timeout and a
// bounded retry loop for flaky startup windows.
type Runner struct {
	checks     []Check
	timeout    time.Duration
	attempts   int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewRunner builds a runner over the given checks.
func NewRunner(checks []Check, logger *zap.Logger) *Runner {
	return &Runner{
		checks:     checks,
		timeout:    10 * time.Second,
		attempts:   1,
		retryDelay: 2 * time.Second,
		logger:     logger,
	}
}

// WithTimeout overrides the per-check timeout.
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	r.timeout = d
	return r
}

// WithRetries sets the number of attempts per check and the delay between
// them. Attempts below 1 are clamped to 1.
func (r *Runner) WithRetries(attempts int, delay time.Duration) *Runner {
	if attempts < 1 {
		attempts = 1
	}
	r.attempts = attempts
	r.retryDelay = delay
	return r
}

// Run executes all checks concurrently. A failing check never aborts the
// run; every check yields exactly one result. Context cancellation stops
// retry loops and bounds in-flight probes.
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		Results:   make([]Result, len(r.checks)),
	}

	var wg sync.WaitGroup
	for i, check := range r.checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			report.Results[i] = r.runOne(ctx, check)
		}(i, check)
	}
	wg.Wait()

	return report
}

func (r *Runner) runOne(ctx context.Context, check Check) Result {
	start := time.Now()
	var detail string
	var err error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		detail, err = check.Run(attemptCtx)
		cancel()

		if err == nil || errors.Is(err, ErrSkipped) || ctx.Err() != nil {
			break
		}
		r.logger.Warn("Check failed",
			zap.String("check", check.Name()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.attempts),
			zap.Error(err),
		)
		if attempt < r.attempts {
			select {
			case <-time.After(r.retryDelay):
			case <-ctx.Done():
			}
		}
	}

	res := Result{
		Name:    check.Name(),
		Detail:  detail,
		Elapsed: time.Since(start),
	}
	switch {
	case err == nil:
		res.Status = StatusOK
	case errors.Is(err, ErrSkipped):
		res.Status = StatusSkipped
		res.Detail = err.Error()
	default:
		res.Status = StatusFailed
		res.Error = err.Error()
	}
	return res
}

// ForConfig assembles the check set implied by a deployment configuration:
// one check per configured concern.
func ForConfig(cfg *config.Config) []Check {
	checks := []Check{
		NewDatabaseCheck(cfg.Database),
		NewRedisCheck(cfg.Cache),
		NewBrokerCheck(cfg.Broker),
		NewBrokerManagementCheck(cfg.Broker),
		NewStorageCheck(cfg.Storage),
		NewDirCheck("submissions/temp-dir", cfg.Submissions.TempDirectory),
	}
	if cfg.Logging.Dir != "" {
		checks = append(checks, NewDirCheck("logging/dir", cfg.Logging.Dir))
	}
	if cfg.Web.SSLCertificate != "" || cfg.Web.SSLCertificateKey != "" {
		checks = append(checks, NewTLSCheck(cfg.Web))
	}
	return checks
}
