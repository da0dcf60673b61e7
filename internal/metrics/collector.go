package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestReceived   EventType = "request_received"
	EventRouteMatched      EventType = "route_matched"
	EventProxyCompleted    EventType = "proxy_completed"
	EventUpstreamError     EventType = "upstream_error"
	EventServiceDiscovered EventType = "service_discovered"
	EventServiceRemoved    EventType = "service_removed"
	EventHealthChanged     EventType = "health_changed"
)

type Event struct {
	Type       EventType
	Timestamp  time.Time
	Route      string
	Target     string
	Duration   time.Duration
	StatusCode int
	Healthy    bool
}

// Collector consumes router events from a buffered channel and aggregates
// them into Metrics.
type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Emit sends an event without blocking; a full buffer drops the event.
func (c *Collector) Emit(event Event) {
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests(event.Route)

	case EventRouteMatched:
		c.metrics.RecordRouteMatch(event.Route, event.Target)

	case EventProxyCompleted:
		c.metrics.RecordResponse(event.Target, event.Duration, event.StatusCode)

	case EventUpstreamError:
		c.metrics.RecordUpstreamError(event.Target)

	case EventServiceDiscovered:
		c.metrics.RecordDiscovery(event.Target)

	case EventServiceRemoved:
		c.metrics.RecordRemoval(event.Target)

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Target, event.Healthy)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
