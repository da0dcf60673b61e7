package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/dev-router/config"
	"github.com/angeloszaimis/dev-router/internal/classify"
	"github.com/angeloszaimis/dev-router/internal/discovery"
	"github.com/angeloszaimis/dev-router/internal/forwarder"
	"github.com/angeloszaimis/dev-router/internal/handler"
	"github.com/angeloszaimis/dev-router/internal/health"
	"github.com/angeloszaimis/dev-router/internal/httpserver"
	"github.com/angeloszaimis/dev-router/internal/metrics"
	"github.com/angeloszaimis/dev-router/internal/probe"
	"github.com/angeloszaimis/dev-router/internal/registry"
	"github.com/angeloszaimis/dev-router/internal/routing"
	"github.com/angeloszaimis/dev-router/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	durations, err := parseDurations(cfg)
	if err != nil {
		log.Error("Failed to parse configured durations", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := registry.New()

	collector := metrics.NewCollector(256, logger.WithComponent(log, "metrics"))
	collector.Start(ctx)

	monitor := health.NewMonitor(
		reg,
		durations.healthInterval,
		durations.healthTimeout,
		cfg.HealthCheck.Path,
		logger.WithComponent(log, "health"),
		&healthMetrics{collector: collector},
	)
	defer monitor.Stop()

	prober := probe.New(cfg.Discovery.Host, durations.probeTimeout)
	classifier := classify.New(
		cfg.Discovery.Host,
		cfg.HealthCheck.Path,
		cfg.PortNames(),
		cfg.Discovery.APIRangeStart,
		cfg.Discovery.APIRangeEnd,
		durations.healthTimeout,
	)

	loop := discovery.NewLoop(
		prober,
		classifier,
		reg,
		&serviceEvents{monitor: monitor, collector: collector},
		cfg.Discovery.PortRangeStart,
		cfg.Discovery.PortRangeEnd,
		cfg.Discovery.ExtraPorts,
		durations.discoveryInterval,
		cfg.Discovery.MaxConcurrentProbes,
		logger.WithComponent(log, "discovery"),
	)
	go loop.Run(ctx)

	table := routing.NewTable(buildRoutes(cfg.Routes))

	fwd := forwarder.New(
		logger.WithComponent(log, "forwarder"),
		reg,
		table,
		durations.upstreamTimeout,
		metricsInterceptor(collector),
	)

	proxyHandler := handler.NewProxyHandler(log, reg)

	srv, err := httpserver.New(
		cfg.Server.Address,
		setupRouter(proxyHandler, fwd, collector, cfg.CORS.AllowedOrigins),
		durations.upstreamTimeout,
	)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Router listening",
		slog.String("address", cfg.Server.Address),
		slog.Int("routes", len(cfg.Routes)),
		slog.Int("port_range_start", cfg.Discovery.PortRangeStart),
		slog.Int("port_range_end", cfg.Discovery.PortRangeEnd))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting router", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

type configDurations struct {
	discoveryInterval time.Duration
	probeTimeout      time.Duration
	healthInterval    time.Duration
	healthTimeout     time.Duration
	upstreamTimeout   time.Duration
}

func parseDurations(cfg *config.Config) (configDurations, error) {
	var d configDurations
	var err error

	if d.discoveryInterval, err = time.ParseDuration(cfg.Discovery.Interval); err != nil {
		return d, err
	}
	if d.probeTimeout, err = time.ParseDuration(cfg.Discovery.ProbeTimeout); err != nil {
		return d, err
	}
	if d.healthInterval, err = time.ParseDuration(cfg.HealthCheck.Interval); err != nil {
		return d, err
	}
	if d.healthTimeout, err = time.ParseDuration(cfg.HealthCheck.Timeout); err != nil {
		return d, err
	}
	if d.upstreamTimeout, err = time.ParseDuration(cfg.Proxy.UpstreamTimeout); err != nil {
		return d, err
	}

	return d, nil
}

func buildRoutes(routes []config.RouteConfig) []routing.RouteRule {
	rules := make([]routing.RouteRule, 0, len(routes))
	for _, route := range routes {
		rules = append(rules, routing.RouteRule{
			PathPattern: route.Path,
			ServiceName: route.Service,
			FixedURL:    route.URL,
			Priority:    route.Priority,
			Description: route.Description,
		})
	}

	return rules
}

// serviceEvents fans discovery notifications out to the health monitor and
// the metrics collector.
type serviceEvents struct {
	monitor   *health.Monitor
	collector *metrics.Collector
}

func (e *serviceEvents) Track(ctx context.Context, name string) {
	e.monitor.Track(ctx, name)
	e.collector.Emit(metrics.Event{
		Type:      metrics.EventServiceDiscovered,
		Timestamp: time.Now(),
		Target:    name,
	})
}

func (e *serviceEvents) Untrack(name string) {
	e.monitor.Untrack(name)
	e.collector.Emit(metrics.Event{
		Type:      metrics.EventServiceRemoved,
		Timestamp: time.Now(),
		Target:    name,
	})
}

// healthMetrics forwards monitor transitions onto the metrics event channel,
// so the snapshot's per-upstream health tracks the monitor.
type healthMetrics struct {
	collector *metrics.Collector
}

func (h *healthMetrics) HealthChanged(name string, healthy bool) {
	h.collector.Emit(metrics.Event{
		Type:      metrics.EventHealthChanged,
		Timestamp: time.Now(),
		Target:    name,
		Healthy:   healthy,
	})
}

// metricsInterceptor bridges the forwarder's hooks onto the metrics event
// channel.
func metricsInterceptor(collector *metrics.Collector) forwarder.Interceptor {
	return forwarder.Interceptor{
		PreForward: func(pc *forwarder.ProxyContext) {
			collector.Emit(metrics.Event{
				Type:      metrics.EventRequestReceived,
				Timestamp: time.Now(),
				Route:     pc.Rule.PathPattern,
			})
			collector.Emit(metrics.Event{
				Type:      metrics.EventRouteMatched,
				Timestamp: time.Now(),
				Route:     pc.Rule.PathPattern,
				Target:    pc.TargetURL,
			})
		},
		PostForward: func(pc *forwarder.ProxyContext) {
			collector.Emit(metrics.Event{
				Type:       metrics.EventProxyCompleted,
				Timestamp:  time.Now(),
				Route:      pc.Rule.PathPattern,
				Target:     pc.TargetURL,
				Duration:   pc.Duration,
				StatusCode: pc.StatusCode,
			})
		},
		OnError: func(pc *forwarder.ProxyContext, err error) {
			collector.Emit(metrics.Event{
				Type:      metrics.EventUpstreamError,
				Timestamp: time.Now(),
				Route:     pc.Rule.PathPattern,
				Target:    pc.TargetURL,
			})
		},
	}
}
