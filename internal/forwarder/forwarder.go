package forwarder

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/angeloszaimis/dev-router/internal/registry"
	"github.com/angeloszaimis/dev-router/internal/routing"
)

// DefaultUpstreamTimeout bounds both the connect and the response of a
// proxied request.
const DefaultUpstreamTimeout = 30 * time.Second

// forwarderName identifies this router in injected headers.
const forwarderName = "dev-router"

// Forwarder matches inbound requests against the route table and proxies
// them to the resolved upstream.
type Forwarder struct {
	logger          *slog.Logger
	registry        *registry.Registry
	table           *routing.Table
	upstreamTimeout time.Duration
	transport       http.RoundTripper
	interceptors    []Interceptor
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController, so the
// reverse proxy can flush streaming responses through the recorder.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// New creates a Forwarder reading upstream state from reg and matching
// requests against table.
func New(logger *slog.Logger, reg *registry.Registry, table *routing.Table, upstreamTimeout time.Duration, interceptors ...Interceptor) *Forwarder {
	if upstreamTimeout <= 0 {
		upstreamTimeout = DefaultUpstreamTimeout
	}

	return &Forwarder{
		logger:          logger,
		registry:        reg,
		table:           table,
		upstreamTimeout: upstreamTimeout,
		transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: upstreamTimeout,
			}).DialContext,
			ResponseHeaderTimeout: upstreamTimeout,
		},
		interceptors: interceptors,
	}
}

// ResolveTarget turns a rule into a concrete upstream URL. Fixed URLs bypass
// the registry entirely. Service-name targets go through FindBestService;
// when only an unhealthy record exists it is still returned with degraded
// set, so the caller can forward as a last resort.
func (f *Forwarder) ResolveTarget(rule routing.RouteRule) (target string, degraded bool, ok bool) {
	if rule.FixedURL != "" {
		return rule.FixedURL, false, true
	}

	record, found := f.registry.FindBestService(rule.ServiceName)
	if !found {
		return "", false, false
	}

	return record.URL, !record.Healthy, true
}

// ServeHTTP routes one inbound request: 404 when no rule matches, 503 when
// the matched rule cannot be resolved to an upstream, 502 when the upstream
// connection fails, otherwise the proxied response.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestURI := r.URL.RequestURI()

	rule := f.table.Match(requestURI)
	if rule == nil {
		f.logger.Warn("No route matched",
			slog.String("path", requestURI),
			slog.String("method", r.Method))
		writeRouteNotFound(w, requestURI, f.table.Patterns())
		return
	}

	target, degraded, ok := f.ResolveTarget(*rule)
	if !ok {
		f.logger.Warn("Target service unavailable",
			slog.String("route", rule.PathPattern),
			slog.String("target", rule.ServiceName))
		writeTargetUnavailable(w, rule.PathPattern, rule.ServiceName, f.registry.Names())
		return
	}

	if degraded {
		f.logger.Warn("Forwarding to unhealthy service in degraded mode",
			slog.String("route", rule.PathPattern),
			slog.String("target", target))
	}

	targetURL, err := url.Parse(target)
	if err != nil {
		f.logger.Error("Invalid upstream URL",
			slog.String("target", target),
			slog.Any("err", err))
		writeUpstreamError(w, target, err)
		return
	}

	pc := &ProxyContext{
		Rule:      *rule,
		TargetURL: target,
		Degraded:  degraded,
		Request:   r,
	}

	f.proxy(w, r, targetURL, pc)
}

func (f *Forwarder) proxy(w http.ResponseWriter, r *http.Request, targetURL *url.URL, pc *ProxyContext) {
	ctx, cancel := context.WithTimeout(r.Context(), f.upstreamTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	r.Header.Set("X-Original-Host", r.Host)
	r.Header.Set("X-Forwarded-By", forwarderName)

	w.Header().Set("X-Proxied-From", pc.TargetURL)
	w.Header().Set("X-Proxy-Route", pc.Rule.PathPattern)

	proxy := httputil.NewSingleHostReverseProxy(targetURL)
	proxy.Transport = f.transport

	upstreamFailed := false
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		upstreamFailed = true
		f.logger.Error("Upstream request failed",
			slog.String("target", pc.TargetURL),
			slog.String("route", pc.Rule.PathPattern),
			slog.Any("err", err))
		f.fireOnError(pc, err)
		writeUpstreamError(w, pc.TargetURL, err)
	}

	f.firePreForward(pc)

	f.logger.Info("Forwarding request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("route", pc.Rule.PathPattern),
		slog.String("target", pc.TargetURL))

	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	start := time.Now()
	proxy.ServeHTTP(wrapped, r)

	pc.StatusCode = wrapped.statusCode
	pc.Duration = time.Since(start)

	if !upstreamFailed {
		f.firePostForward(pc)
	}
}
