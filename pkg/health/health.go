// Package health aggregates readiness probes for the indexer's backing
// services: the object store, the document cache, and the partition
// registry. The Checker fans registered probes out in parallel and folds
// them into a single report for Kubernetes liveness and readiness
// endpoints.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Status is a binary component state. Anything short of fully serving
// reports down; the indexer has no useful degraded mode, a node that cannot
// reach its object store cannot ingest.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth is the outcome of a single probe.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report folds all probe outcomes; Status is down when any component is.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker holds named probes registered during startup.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
	log    *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
		log:    slog.Default().With("component", "health"),
	}
}

// Register adds a named probe. Registration after serving starts is safe.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

type probeResult struct {
	name   string
	health ComponentHealth
}

// Run executes every registered probe in parallel and aggregates the
// outcomes. Down components are logged as they are collected.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(chan probeResult, len(checks))
	for name, check := range checks {
		go func(name string, check Check) {
			start := time.Now()
			h := check(ctx)
			h.Latency = time.Since(start).Round(time.Millisecond).String()
			results <- probeResult{name: name, health: h}
		}(name, check)
	}

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for range checks {
		r := <-results
		report.Components[r.name] = r.health
		if r.health.Status != StatusUp {
			report.Status = StatusDown
			c.log.Warn("component unhealthy", "name", r.name, "message", r.health.Message)
		}
	}
	return report
}

// LiveHandler answers liveness probes. It reports the process is running
// and nothing else; dependency state belongs to readiness.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes by running all probes, with 503
// when any dependency is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		w.Header().Set("Content-Type", "application/json")
		if report.Status != StatusUp {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}
