package classify

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angeloszaimis/dev-router/internal/registry"
)

// DefaultTimeout bounds a single HTTP classification probe.
const DefaultTimeout = 2 * time.Second

// maxBodyBytes caps how much of a probe response body is read when looking
// for the missing-parameter marker.
const maxBodyBytes = 8 * 1024

// missingParamMarkers are body fragments that identify an API endpoint which
// answered non-2xx only because a required query parameter was absent. Such
// an endpoint is reachable and functioning, so it counts as healthy.
var missingParamMarkers = []string{
	"missing required parameter",
	"missing parameter",
	"parameter is required",
	"query parameter",
}

// Classifier infers a service's name and health from HTTP probes against an
// open port, falling back to a static port-to-name table.
type Classifier struct {
	host          string
	healthPath    string
	portNames     map[int]string
	apiRangeStart int
	apiRangeEnd   int
	client        *http.Client
}

// New creates a Classifier. portNames maps well-known ports to service names
// and may be nil. Ports within [apiRangeStart, apiRangeEnd] get the
// missing-parameter leniency described on Classify.
func New(host, healthPath string, portNames map[int]string, apiRangeStart, apiRangeEnd int, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if healthPath == "" {
		healthPath = "/health"
	}

	return &Classifier{
		host:          host,
		healthPath:    healthPath,
		portNames:     portNames,
		apiRangeStart: apiRangeStart,
		apiRangeEnd:   apiRangeEnd,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Classify probes an open port and returns a service record for it, or nil
// when nothing useful can be said about the port. The health path is tried
// first and the root path used as a weaker fallback. Network failures are
// absorbed: a port with a static name still yields an unhealthy record when
// the HTTP probe fails outright.
func (c *Classifier) Classify(ctx context.Context, port int) *registry.ServiceRecord {
	baseURL := fmt.Sprintf("http://%s", net.JoinHostPort(c.host, strconv.Itoa(port)))

	start := time.Now()
	res, err := c.get(ctx, baseURL+c.healthPath)

	switch {
	case err != nil:
		// No health endpoint reachable at all; the root path is the weaker
		// liveness signal.
		res, err = c.get(ctx, baseURL+"/")

	case !res.is2xx():
		if c.isAPIPort(port) && containsMissingParamMarker(res.body) {
			// Reachable API endpoint complaining about missing query input.
			break
		}
		if fallback, ferr := c.get(ctx, baseURL+"/"); ferr == nil {
			res = fallback
		}
	}

	if err != nil {
		// Open port, but no HTTP response. Non-HTTP services are only worth
		// recording when we know what they are.
		name, known := c.portNames[port]
		if !known {
			return nil
		}
		return &registry.ServiceRecord{
			Name:      name,
			URL:       baseURL,
			Port:      port,
			Healthy:   false,
			LastCheck: time.Now(),
		}
	}

	healthy := res.is2xx()
	if !healthy && c.isAPIPort(port) && containsMissingParamMarker(res.body) {
		healthy = true
	}

	return &registry.ServiceRecord{
		Name:         c.deriveName(port, res.headers),
		URL:          baseURL,
		Port:         port,
		Healthy:      healthy,
		LastCheck:    time.Now(),
		ResponseTime: time.Since(start),
	}
}

type probeResult struct {
	statusCode int
	body       string
	headers    http.Header
}

func (p probeResult) is2xx() bool {
	return p.statusCode >= 200 && p.statusCode < 300
}

func (c *Classifier) get(ctx context.Context, url string) (probeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return probeResult{}, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return probeResult{}, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))

	return probeResult{
		statusCode: res.StatusCode,
		body:       string(body),
		headers:    res.Header,
	}, nil
}

// deriveName picks a service name in priority order: the static port table,
// a Server / X-Powered-By header heuristic, then a generic placeholder.
func (c *Classifier) deriveName(port int, headers http.Header) string {
	if name, ok := c.portNames[port]; ok {
		return name
	}

	if hint := serverHint(headers); hint != "" {
		return fmt.Sprintf("%s-%d", hint, port)
	}

	return fmt.Sprintf("service-%d", port)
}

func serverHint(headers http.Header) string {
	for _, key := range []string{"Server", "X-Powered-By"} {
		value := headers.Get(key)
		if value == "" {
			continue
		}
		// "Express" or "nginx/1.25.3" -> "express", "nginx"
		hint := strings.ToLower(value)
		if idx := strings.IndexAny(hint, "/ "); idx > 0 {
			hint = hint[:idx]
		}
		if hint != "" {
			return hint
		}
	}

	return ""
}

func (c *Classifier) isAPIPort(port int) bool {
	return c.apiRangeStart > 0 && port >= c.apiRangeStart && port <= c.apiRangeEnd
}

func containsMissingParamMarker(body string) bool {
	lowered := strings.ToLower(body)
	for _, marker := range missingParamMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}

	return false
}
