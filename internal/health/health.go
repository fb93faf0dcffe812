// Package health tracks the health of the sender's dependencies and
// configuration.
//
// Components report through the [Reporter] interface. A degraded check
// never stops the process; it is logged on transition and exported as the
// gauge digitalmail_health_status{check} (1 healthy, 0 unhealthy).
package health

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reporter receives health transitions
type Reporter interface {
	SetHealthy(name string)
	SetUnhealthy(name, reason string)
}

// Status is the current state of one check
type Status struct {
	Name    string    `json:"name"`
	Healthy bool      `json:"healthy"`
	Reason  string    `json:"reason,omitempty"`
	Since   time.Time `json:"since"`
}

// Registry is the Reporter used by the service. It is safe for concurrent
// use.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]Status
	gauge  *prometheus.GaugeVec
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates a registry exporting its gauge to reg. A nil reg
// keeps the gauge unregistered.
func NewRegistry(reg prometheus.Registerer, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		checks: make(map[string]Status),
		gauge: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "digitalmail_health_status",
			Help: "Health of a check, 1 healthy and 0 unhealthy",
		}, []string{"check"}),
		logger: logger,
		now:    time.Now,
	}
}

// SetHealthy marks name healthy
func (r *Registry) SetHealthy(name string) {
	r.set(name, true, "")
}

// SetUnhealthy marks name unhealthy with reason
func (r *Registry) SetUnhealthy(name, reason string) {
	r.set(name, false, reason)
}

func (r *Registry) set(name string, healthy bool, reason string) {
	r.mu.Lock()
	prev, known := r.checks[name]
	changed := !known || prev.Healthy != healthy || prev.Reason != reason
	if changed {
		r.checks[name] = Status{Name: name, Healthy: healthy, Reason: reason, Since: r.now()}
	}
	r.mu.Unlock()

	if healthy {
		r.gauge.WithLabelValues(name).Set(1)
	} else {
		r.gauge.WithLabelValues(name).Set(0)
	}

	if !changed {
		return
	}
	if healthy {
		r.logger.Info("health check recovered", "check", name)
	} else {
		r.logger.Warn("health check degraded", "check", name, "reason", reason)
	}
}

// Status returns the state of name
func (r *Registry) Status(name string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.checks[name]
	return s, ok
}

// Healthy reports whether every known check is healthy
func (r *Registry) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.checks {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// Snapshot returns all checks ordered by name
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	out := make([]Status, 0, len(r.checks))
	for _, s := range r.checks {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
