package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/angeloszaimis/dev-router/internal/registry"
)

// DefaultInterval is how often each service is re-probed.
const DefaultInterval = 30 * time.Second

// StatusSink receives healthy<->unhealthy transitions observed by the
// Monitor, one call per edge. May be nil.
type StatusSink interface {
	HealthChanged(name string, healthy bool)
}

// Monitor owns one health-checking task per tracked service.
type Monitor struct {
	registry   *registry.Registry
	interval   time.Duration
	healthPath string
	client     *http.Client
	logger     *slog.Logger
	sink       StatusSink

	mutex   sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewMonitor creates a Monitor writing probe results into reg. Transitions
// are reported to sink when one is given.
func NewMonitor(reg *registry.Registry, interval, timeout time.Duration, healthPath string, logger *slog.Logger, sink StatusSink) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if healthPath == "" {
		healthPath = "/health"
	}

	return &Monitor{
		registry:   reg,
		interval:   interval,
		healthPath: healthPath,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
		sink:       sink,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Track starts a monitor task for the named service. Tracking an already
// tracked service is a no-op, so discovery can call it on every upsert.
func (m *Monitor) Track(ctx context.Context, name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, running := m.cancels[name]; running {
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	m.cancels[name] = cancel

	m.wg.Add(1)
	go m.run(taskCtx, name)
}

// Untrack cancels the monitor task for the named service, if any.
func (m *Monitor) Untrack(name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if cancel, running := m.cancels[name]; running {
		cancel()
		delete(m.cancels, name)
	}
}

// Stop cancels every monitor task and waits for them to exit.
func (m *Monitor) Stop() {
	m.mutex.Lock()
	for name, cancel := range m.cancels {
		cancel()
		delete(m.cancels, name)
	}
	m.mutex.Unlock()

	m.wg.Wait()
}

// Tracked returns the number of currently monitored services.
func (m *Monitor) Tracked() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.cancels)
}

func (m *Monitor) run(ctx context.Context, name string) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			record, ok := m.registry.Get(name)
			if !ok {
				// Removed between ticks; the task has nothing left to watch.
				m.Untrack(name)
				return
			}
			m.check(ctx, record)
		}
	}
}

// check probes one service's health endpoint and writes the outcome back.
// Transitions are logged only on healthy<->unhealthy edges to keep steady
// state quiet.
func (m *Monitor) check(ctx context.Context, record registry.ServiceRecord) {
	healthy, elapsed := m.probe(ctx, record.URL+m.healthPath)

	changed := record.Healthy != healthy
	record.Healthy = healthy
	record.LastCheck = time.Now()
	record.ResponseTime = elapsed
	m.registry.Upsert(record)

	if !changed {
		return
	}

	if m.sink != nil {
		m.sink.HealthChanged(record.Name, healthy)
	}

	if healthy {
		m.logger.Info("Service is back up",
			slog.String("service", record.Name),
			slog.String("url", record.URL))
	} else {
		m.logger.Warn("Service is down",
			slog.String("service", record.Name),
			slog.String("url", record.URL))
	}
}

func (m *Monitor) probe(ctx context.Context, url string) (bool, time.Duration) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, time.Since(start)
	}

	res, err := m.client.Do(req)
	if err != nil {
		return false, time.Since(start)
	}
	defer res.Body.Close()

	return res.StatusCode >= 200 && res.StatusCode < 300, time.Since(start)
}
