package health

import (
	"context"
	"sync"
	"time"
)

// CheckResult is one dependency probe outcome.
type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Checker probes one dependency.
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context) CheckResult

func (f CheckerFunc) Check(ctx context.Context) CheckResult { return f(ctx) }

// Ping wraps a named ping function as a Checker.
func Ping(name string, ping func(ctx context.Context) error) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			return CheckResult{Name: name, Healthy: false, Error: err.Error()}
		}
		return CheckResult{Name: name, Healthy: true}
	})
}

// ProbeRunner runs readiness checks with a per-pass timeout and an
// optional result cache so a probe storm cannot hammer dependencies.
type ProbeRunner struct {
	timeout  time.Duration
	cacheTTL time.Duration
	checkers []Checker

	mu        sync.Mutex
	cachedAt  time.Time
	cachedOK  bool
	cachedRes []CheckResult
}

func NewProbeRunner(timeout, cacheTTL time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &ProbeRunner{timeout: timeout, cacheTTL: cacheTTL, checkers: checkers}
}

// Ready runs every checker and reports overall readiness. Within the
// cache TTL the previous pass is returned as is.
func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cacheTTL > 0 && time.Since(p.cachedAt) < p.cacheTTL && p.cachedRes != nil {
		return p.cachedOK, p.cachedRes
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ok := true
	results := make([]CheckResult, 0, len(p.checkers))
	for _, checker := range p.checkers {
		result := checker.Check(ctx)
		if !result.Healthy {
			ok = false
		}
		results = append(results, result)
	}

	p.cachedAt = time.Now()
	p.cachedOK = ok
	p.cachedRes = results
	return ok, results
}
