// Package watchdog checks the service's dependencies on a cron schedule and
// keeps the latest result per component for the health endpoint.
package watchdog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/styxgzi/nervesx-bot/internal/logging"
)

var componentUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "nervesx_component_up",
	Help: "1 if the last check of the component succeeded",
}, []string{"component"})

// HealthCheck tests one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

type ComponentHealth struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	Error     string    `json:"error,omitempty"`
}

type Watchdog struct {
	mu         sync.RWMutex
	checks     map[string]HealthCheck
	components map[string]*ComponentHealth

	cron    *cron.Cron
	spec    string
	timeout time.Duration
	now     func() time.Time
}

func NewWatchdog(checkInterval, timeout time.Duration) *Watchdog {
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Watchdog{
		checks:     make(map[string]HealthCheck),
		components: make(map[string]*ComponentHealth),
		cron:       cron.New(),
		spec:       fmt.Sprintf("@every %s", checkInterval),
		timeout:    timeout,
		now:        time.Now,
	}
}

// RegisterComponent adds a health check. Components start healthy until the first
// check says otherwise.
func (w *Watchdog) RegisterComponent(name string, fn HealthCheck) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.checks[name] = fn
	w.components[name] = &ComponentHealth{Name: name, Healthy: true}
	componentUp.WithLabelValues(name).Set(1)
}

// Start runs one check immediately, then schedules the rest.
func (w *Watchdog) Start() error {
	w.CheckAll(context.Background())
	if _, err := w.cron.AddFunc(w.spec, func() { w.CheckAll(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule health checks: %w", err)
	}
	w.cron.Start()
	logging.Info("[WATCHDOG] checking %d components (%s)", len(w.checks), w.spec)
	return nil
}

// Stop cancels the schedule and waits for a running check to finish.
func (w *Watchdog) Stop() {
	<-w.cron.Stop().Done()
}

// CheckAll runs every check once.
func (w *Watchdog) CheckAll(ctx context.Context) {
	w.mu.RLock()
	checks := make(map[string]HealthCheck, len(w.checks))
	for name, p := range w.checks {
		checks[name] = p
	}
	w.mu.RUnlock()

	for name, fn := range checks {
		w.check(ctx, name, fn)
	}
}

func (w *Watchdog) check(ctx context.Context, name string, fn HealthCheck) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := fn(ctx)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	comp := w.components[name]
	wasHealthy := comp.Healthy
	comp.LastCheck = w.now()
	comp.Healthy = err == nil
	comp.Error = ""

	if err != nil {
		comp.Error = err.Error()
		componentUp.WithLabelValues(name).Set(0)
		if wasHealthy {
			logging.Error("[WATCHDOG] %s unhealthy: %v", name, err)
		}
		return
	}
	componentUp.WithLabelValues(name).Set(1)
	if !wasHealthy {
		logging.Info("[WATCHDOG] %s recovered", name)
	}
}

func (w *Watchdog) IsHealthy(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if comp, ok := w.components[name]; ok {
		return comp.Healthy
	}
	return false
}

// Healthy reports whether every component is healthy.
func (w *Watchdog) Healthy() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, comp := range w.components {
		if !comp.Healthy {
			return false
		}
	}
	return true
}

// GetStatus returns a snapshot ordered by component name.
func (w *Watchdog) GetStatus() []ComponentHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]ComponentHealth, 0, len(w.components))
	for _, comp := range w.components {
		out = append(out, *comp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
