// Package health serves liveness and readiness probes for a running
// simulation.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// Check is one named readiness condition.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// Status is the aggregated readiness report.
type Status struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentStatus `json:"checks"`
}

// ComponentStatus is the result of one Check.
type ComponentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Checker runs registered checks.
type Checker struct {
	checks map[string]Check
	mu     sync.RWMutex
}

// NewChecker returns a checker with no checks; it reports healthy.
func NewChecker() *Checker {
	return &Checker{checks: make(map[string]Check)}
}

// Add registers c, replacing any check with the same name.
func (hc *Checker) Add(c Check) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[c.Name()] = c
}

// Remove drops the check called name.
func (hc *Checker) Remove(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	delete(hc.checks, name)
}

// Names returns the registered check names, sorted.
func (hc *Checker) Names() []string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	names := make([]string, 0, len(hc.checks))
	for n := range hc.checks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run executes every check. The result is healthy only if all pass.
func (hc *Checker) Run(ctx context.Context) Status {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	st := Status{Status: statusHealthy, Checks: make(map[string]ComponentStatus, len(hc.checks))}
	for name, c := range hc.checks {
		if err := c.Check(ctx); err != nil {
			st.Status = statusUnhealthy
			st.Checks[name] = ComponentStatus{Status: statusUnhealthy, Message: err.Error()}
			continue
		}
		st.Checks[name] = ComponentStatus{Status: statusHealthy}
	}
	return st
}

// Handler routes /healthz and /readyz.
func (hc *Checker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", hc.LivenessHandler)
	mux.HandleFunc("/readyz", hc.ReadinessHandler)
	return mux
}

// LivenessHandler answers 200 while the process can serve HTTP.
func (hc *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// ReadinessHandler runs every check and answers 200 or 503.
func (hc *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	st := hc.Run(ctx)
	w.Header().Set("Content-Type", "application/json")
	if st.Status == statusHealthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(st)
}

// FrameSource is the part of the simulator the frame check watches.
type FrameSource interface {
	Frames() uint64
	LastFrameAt() time.Time
}

// SimulationCheck fails until the first frame and whenever no frame has run
// within staleAfter.
type SimulationCheck struct {
	src        FrameSource
	staleAfter time.Duration
	now        func() time.Time
}

// NewSimulationCheck watches src. A zero staleAfter disables the staleness
// test.
func NewSimulationCheck(src FrameSource, staleAfter time.Duration) *SimulationCheck {
	return &SimulationCheck{src: src, staleAfter: staleAfter, now: time.Now}
}

// Name returns "simulation".
func (s *SimulationCheck) Name() string { return "simulation" }

// Check reports an error when the loop has not started or has stalled.
func (s *SimulationCheck) Check(ctx context.Context) error {
	if s.src.Frames() == 0 {
		return fmt.Errorf("no frames simulated yet")
	}
	if s.staleAfter <= 0 {
		return nil
	}
	if age := s.now().Sub(s.src.LastFrameAt()); age > s.staleAfter {
		return fmt.Errorf("last frame %s ago exceeds %s", age.Round(time.Millisecond), s.staleAfter)
	}
	return nil
}

// BreakerSource reports a circuit breaker's state.
type BreakerSource interface {
	Name() string
	State() gobreaker.State
}

// BreakerCheck fails while a telemetry circuit is open.
type BreakerCheck struct {
	b BreakerSource
}

// NewBreakerCheck watches b.
func NewBreakerCheck(b BreakerSource) *BreakerCheck {
	return &BreakerCheck{b: b}
}

// Name returns "breaker:<name>".
func (c *BreakerCheck) Name() string { return "breaker:" + c.b.Name() }

// Check reports an error while the circuit is open.
func (c *BreakerCheck) Check(ctx context.Context) error {
	if st := c.b.State(); st == gobreaker.StateOpen {
		return fmt.Errorf("circuit %s is %s", c.b.Name(), st)
	}
	return nil
}

// MemoryCheck fails when heap usage exceeds a limit.
type MemoryCheck struct {
	maxMB int64
	usage func() int64
}

// NewMemoryCheck limits heap usage to maxMB. A nil usage reads runtime
// statistics.
func NewMemoryCheck(maxMB int64, usage func() int64) *MemoryCheck {
	if usage == nil {
		usage = heapMB
	}
	return &MemoryCheck{maxMB: maxMB, usage: usage}
}

// Name returns "memory".
func (m *MemoryCheck) Name() string { return "memory" }

// Check compares current heap usage against the limit.
func (m *MemoryCheck) Check(ctx context.Context) error {
	if cur := m.usage(); cur > m.maxMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", cur, m.maxMB)
	}
	return nil
}

func heapMB() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.HeapAlloc / (1 << 20))
}
