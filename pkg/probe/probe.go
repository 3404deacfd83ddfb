// Package probe runs startup reachability checks.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wikibridge/pkg/extentity"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 10 * time.Second

// CheckFunc is a function that performs a health check.
// It returns nil if the check passes, or an error if it fails.
type CheckFunc func(ctx context.Context) error

// Probe represents a single startup check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool // If true, a failure here should prevent application startup.
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// ClientProbe checks that a storage client answers the first page of its
// list query. Count is unbounded on SPARQL endpoints.
func ClientProbe(name string, c extentity.StorageClient, critical bool) Probe {
	return Probe{
		Name:     name,
		Critical: critical,
		Check: func(ctx context.Context) error {
			_, err := c.Query(ctx, nil, nil, 0, 1)
			return err
		},
	}
}

// Run executes probes in order, each bounded by timeout (DefaultTimeout when zero).
func Run(ctx context.Context, probes []Probe, timeout time.Duration) []Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	results := make([]Result, len(probes))

	for i, p := range probes {
		start := time.Now()
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Check(checkCtx)
		cancel()

		results[i] = Result{Probe: p, Error: err, Duration: time.Since(start)}
	}
	return results
}

// AnalyzeResults logs every result and joins the errors of failed critical probes.
func AnalyzeResults(results []Result, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	var criticalErrors []error

	logger.Info("Startup Checks Summary", "probes", len(results))

	for _, r := range results {
		if r.Error == nil {
			logger.Info(fmt.Sprintf("[PASS] %-20s (%v)", r.Probe.Name, r.Duration.Round(time.Millisecond)))
			continue
		}
		msg := fmt.Sprintf("[FAIL] %-20s (%v)", r.Probe.Name, r.Duration.Round(time.Millisecond))
		if r.Probe.Critical {
			logger.Error(msg, "error", r.Error)
			criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
		} else {
			logger.Warn(msg, "error", r.Error)
		}
	}

	return errors.Join(criticalErrors...)
}
