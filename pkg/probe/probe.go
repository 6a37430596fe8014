// Package probe implements the startup readiness check against the external
// datastore.
//
// The prober makes a single connectivity attempt: retry is delegated to the
// orchestrator's restart policy, so there is no internal backoff. An absent
// descriptor means the instance has no external dependency and the check is
// skipped without any network attempt.
package probe

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/marmos91/stevedore/internal/logger"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// UnreachableError reports a dependency that could not be reached during
// startup. Descriptor is redacted and safe to log.
type UnreachableError struct {
	Descriptor string
	Err        error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("dependency unreachable: %s: %v", e.Descriptor, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// Prober checks that the configured datastore accepts connections.
type Prober struct {
	descriptor string
	timeout    time.Duration
}

// New creates a Prober for the given connection descriptor.
//
// Parameters:
//   - descriptor: Datastore connection URL or DSN; empty means no dependency
//   - timeout: Upper bound for the single connectivity attempt
func New(descriptor string, timeout time.Duration) *Prober {
	return &Prober{
		descriptor: descriptor,
		timeout:    timeout,
	}
}

// Check attempts connectivity once and returns an UnreachableError on
// failure. With no descriptor configured it returns nil immediately.
func (p *Prober) Check(ctx context.Context) error {
	if p.descriptor == "" {
		logger.DebugCtx(ctx, "No dependency descriptor configured, skipping readiness check")
		return nil
	}

	target := Redact(p.descriptor)
	logger.InfoCtx(ctx, "Checking dependency readiness", logger.Target(target), "timeout", p.timeout.String())

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()

	db, err := sql.Open("pgx", p.descriptor)
	if err != nil {
		return &UnreachableError{Descriptor: target, Err: err}
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return &UnreachableError{Descriptor: target, Err: err}
	}

	logger.InfoCtx(ctx, "Dependency is reachable", logger.Target(target), logger.DurationMs(logger.Duration(start)))
	return nil
}

var dsnPasswordPattern = regexp.MustCompile(`(?i)(password)=\S+`)

// Redact masks the password portion of a connection descriptor so it can be
// logged and embedded in errors. Handles both URL and key=value DSN forms.
func Redact(descriptor string) string {
	if descriptor == "" {
		return ""
	}

	if u, err := url.Parse(descriptor); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Redacted()
	}

	return dsnPasswordPattern.ReplaceAllString(descriptor, "$1=xxxxx")
}
