package discovery

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/angeloszaimis/dev-router/internal/classify"
	"github.com/angeloszaimis/dev-router/internal/probe"
	"github.com/angeloszaimis/dev-router/internal/registry"
)

// DefaultInterval is the pause between scan cycles.
const DefaultInterval = 30 * time.Second

// DefaultMaxConcurrentProbes bounds per-port probe fan-out within a cycle so
// a large port range cannot exhaust file descriptors.
const DefaultMaxConcurrentProbes = 64

// ServiceEvents receives registry lifecycle notifications so the health
// monitor can start and stop per-service tasks without discovery knowing
// about it concretely.
type ServiceEvents interface {
	Track(ctx context.Context, name string)
	Untrack(name string)
}

// Loop scans ports and keeps the registry reconciled with what is running.
type Loop struct {
	prober     *probe.Prober
	classifier *classify.Classifier
	registry   *registry.Registry
	events     ServiceEvents
	logger     *slog.Logger

	rangeStart int
	rangeEnd   int
	extraPorts []int
	interval   time.Duration
	sem        *semaphore.Weighted
}

// NewLoop creates a discovery loop over [rangeStart, rangeEnd] plus
// extraPorts. events may be nil when no health monitoring is wanted.
func NewLoop(
	prober *probe.Prober,
	classifier *classify.Classifier,
	reg *registry.Registry,
	events ServiceEvents,
	rangeStart, rangeEnd int,
	extraPorts []int,
	interval time.Duration,
	maxConcurrentProbes int,
	logger *slog.Logger,
) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxConcurrentProbes <= 0 {
		maxConcurrentProbes = DefaultMaxConcurrentProbes
	}

	return &Loop{
		prober:     prober,
		classifier: classifier,
		registry:   reg,
		events:     events,
		rangeStart: rangeStart,
		rangeEnd:   rangeEnd,
		extraPorts: extraPorts,
		interval:   interval,
		sem:        semaphore.NewWeighted(int64(maxConcurrentProbes)),
		logger:     logger,
	}
}

// Run scans once immediately, then on every tick until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	l.Scan(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Discovery loop stopped")
			return

		case <-ticker.C:
			l.Scan(ctx)
		}
	}
}

// Scan runs a single discovery cycle over the candidate port set.
func (l *Loop) Scan(ctx context.Context) {
	ports := l.candidatePorts()
	start := time.Now()

	var wg sync.WaitGroup
	for _, port := range ports {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			defer l.sem.Release(1)
			l.scanPort(ctx, port)
		}(port)
	}
	wg.Wait()

	l.logger.Debug("Discovery cycle finished",
		slog.Int("ports_scanned", len(ports)),
		slog.Int("services", l.registry.Len()),
		slog.Duration("took", time.Since(start)))
}

// scanPort reconciles a single port: closed ports evict their record, open
// ports are classified and upserted. Any probe failure counts as closed.
func (l *Loop) scanPort(ctx context.Context, port int) {
	if !l.prober.IsOpen(port) {
		if name, removed := l.registry.RemoveByPort(port); removed {
			if l.events != nil {
				l.events.Untrack(name)
			}
			l.logger.Info("Service removed",
				slog.String("service", name),
				slog.Int("port", port))
		}
		return
	}

	record := l.classifier.Classify(ctx, port)
	if record == nil {
		return
	}

	_, known := l.registry.Get(record.Name)
	l.registry.Upsert(*record)

	if !known {
		l.logger.Info("Service discovered",
			slog.String("service", record.Name),
			slog.String("url", record.URL),
			slog.Bool("healthy", record.Healthy))
	}

	if l.events != nil {
		l.events.Track(ctx, record.Name)
	}
}

// candidatePorts is the configured range plus the explicit extras,
// deduplicated and sorted.
func (l *Loop) candidatePorts() []int {
	seen := make(map[int]struct{})
	var ports []int

	for port := l.rangeStart; port <= l.rangeEnd; port++ {
		if _, dup := seen[port]; !dup {
			seen[port] = struct{}{}
			ports = append(ports, port)
		}
	}

	for _, port := range l.extraPorts {
		if _, dup := seen[port]; !dup {
			seen[port] = struct{}{}
			ports = append(ports, port)
		}
	}

	sort.Ints(ports)
	return ports
}
