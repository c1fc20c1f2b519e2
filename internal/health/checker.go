// Package health aggregates readiness checks for the service dependencies.
package health

import (
	"context"
	"sync"
	"time"
)

// Check probes one dependency. It must honor ctx cancellation.
type Check func(ctx context.Context) error

// Result is the outcome of one named check.
type Result struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Checker runs named checks with a per-check timeout.
type Checker struct {
	mu      sync.Mutex
	checks  []namedCheck
	timeout time.Duration
}

type namedCheck struct {
	name  string
	check Check
}

// New returns a Checker. timeout <= 0 defaults to 2s per check.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{timeout: timeout}
}

// Register adds a named check. Safe for concurrent use.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, namedCheck{name: name, check: check})
}

// Run executes all checks and reports per-check results plus overall health.
func (c *Checker) Run(ctx context.Context) (bool, []Result) {
	c.mu.Lock()
	checks := make([]namedCheck, len(c.checks))
	copy(checks, c.checks)
	c.mu.Unlock()

	healthy := true
	results := make([]Result, 0, len(checks))
	for _, nc := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := nc.check(checkCtx)
		cancel()
		r := Result{Name: nc.name, OK: err == nil}
		if err != nil {
			r.Error = err.Error()
			healthy = false
		}
		results = append(results, r)
	}
	return healthy, results
}
