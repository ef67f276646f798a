package health

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// ErrDegraded marks a check failure that does not make the instance unready,
// such as a queue that is catching up from its log store.
var ErrDegraded = errors.New("degraded")

// Degradedf returns an error wrapping ErrDegraded.
func Degradedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDegraded, fmt.Sprintf(format, args...))
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the JSON body returned by health endpoints.
type Response struct {
	Status     Status                    `json:"status"`
	Components map[string]ComponentCheck `json:"components,omitempty"`
	Timestamp  string                    `json:"timestamp"`
}

// Checker provides liveness and readiness probes.
// Components register themselves and report their status.
type Checker struct {
	mu              sync.RWMutex
	readinessChecks map[string]CheckFunc
	shuttingDown    atomic.Bool
}

// CheckFunc returns nil if the component is healthy, or an error describing
// the issue. Errors wrapping ErrDegraded report the component as degraded.
type CheckFunc func() error

// New creates a new health Checker.
func New() *Checker {
	return &Checker{
		readinessChecks: make(map[string]CheckFunc),
	}
}

// RegisterReadiness registers a named readiness check.
// The check is called on each /ready request.
func (c *Checker) RegisterReadiness(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readinessChecks[name] = check
}

// SetShuttingDown marks the instance as shutting down.
// After this, both /live and /ready return 503.
func (c *Checker) SetShuttingDown() {
	c.shuttingDown.Store(true)
}

// Register mounts /live and /ready on mux.
func (c *Checker) Register(mux *http.ServeMux) {
	mux.Handle("/live", c.LiveHandler())
	mux.Handle("/ready", c.ReadyHandler())
}

func shuttingDownResponse() Response {
	return Response{
		Status:    StatusDown,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Components: map[string]ComponentCheck{
			"process": {Status: StatusDown, Message: "shutting down"},
		},
	}
}

// LiveHandler returns an http.HandlerFunc for the /live endpoint.
// Liveness checks that the process is running and not in shutdown.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c.shuttingDown.Load() {
			writeJSON(w, http.StatusServiceUnavailable, shuttingDownResponse())
			return
		}

		writeJSON(w, http.StatusOK, Response{
			Status:    StatusUp,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Evaluate runs every readiness check and returns the combined result.
// Any down component makes the result down; otherwise any degraded
// component makes it degraded.
func (c *Checker) Evaluate() Response {
	if c.shuttingDown.Load() {
		return shuttingDownResponse()
	}

	c.mu.RLock()
	names := make([]string, 0, len(c.readinessChecks))
	for name := range c.readinessChecks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(names))
	for k, v := range c.readinessChecks {
		checks[k] = v
	}
	c.mu.RUnlock()
	sort.Strings(names)

	overall := StatusUp
	components := make(map[string]ComponentCheck, len(names))
	for _, name := range names {
		err := checks[name]()
		switch {
		case err == nil:
			components[name] = ComponentCheck{Status: StatusUp}
		case errors.Is(err, ErrDegraded):
			components[name] = ComponentCheck{Status: StatusDegraded, Message: err.Error()}
			if overall == StatusUp {
				overall = StatusDegraded
			}
		default:
			components[name] = ComponentCheck{Status: StatusDown, Message: err.Error()}
			overall = StatusDown
		}
	}

	return Response{
		Status:     overall,
		Components: components,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// ReadyHandler returns an http.HandlerFunc for the /ready endpoint.
// A down component answers 503; degraded still answers 200.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := c.Evaluate()
		code := http.StatusOK
		if resp.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
