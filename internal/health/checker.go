// Package health probes the bridge's upstream dependencies (relational
// store, Fabric gateway, Algorand node) and reports per-component status
// for the readiness endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe checks one dependency. A nil return means healthy.
type Probe func(ctx context.Context) error

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(success bool)

// ComponentStatus is the outcome of one dependency probe.
type ComponentStatus struct {
	Healthy   bool          `json:"healthy"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Report aggregates all component statuses. Healthy is true only when
// every component is healthy.
type Report struct {
	Healthy    bool                       `json:"healthy"`
	Components map[string]ComponentStatus `json:"components"`
}

// Checker runs registered dependency probes with a per-probe timeout.
type Checker struct {
	mu        sync.Mutex
	probes    map[string]Probe
	timeout   time.Duration
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a Checker. timeout defaults to 5s per probe.
func New(timeout time.Duration, logger *zap.Logger) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		probes:  make(map[string]Probe),
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a named dependency probe.
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Check runs all probes concurrently and aggregates the outcome.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.Lock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.Unlock()

	report := Report{Healthy: true, Components: make(map[string]ComponentStatus, len(probes))}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := probe(probeCtx)
			status := ComponentStatus{
				Healthy:   err == nil,
				Latency:   time.Since(start),
				CheckedAt: start.UTC(),
			}
			if err != nil {
				status.Error = err.Error()
				c.logger.Warn("dependency probe failed",
					zap.String("component", name),
					zap.Error(err),
				)
			}
			if c.onMetrics != nil {
				c.onMetrics(err == nil)
			}

			mu.Lock()
			report.Components[name] = status
			if err != nil {
				report.Healthy = false
			}
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()
	return report
}
