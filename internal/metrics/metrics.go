package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex          sync.RWMutex
	routeRequests  map[string]int64
	routeMatches   map[string]int64
	responseTimes  map[string][]time.Duration
	statusCodes    map[string]map[int]int64
	upstreamErrors map[string]int64
	healthStatus   map[string]bool
	discovered     int64
	removed        int64
	startTime      time.Time
}

type Snapshot struct {
	TotalRequests      int64                      `json:"total_requests"`
	Uptime             time.Duration              `json:"uptime"`
	Routes             map[string]RouteMetrics    `json:"routes"`
	Upstreams          map[string]UpstreamMetrics `json:"upstreams"`
	ServicesDiscovered int64                      `json:"services_discovered"`
	ServicesRemoved    int64                      `json:"services_removed"`
}

type RouteMetrics struct {
	Requests int64 `json:"requests"`
	Matches  int64 `json:"matches"`
}

type UpstreamMetrics struct {
	Healthy        bool          `json:"healthy"`
	UpstreamErrors int64         `json:"upstream_errors"`
	AvgResponse    time.Duration `json:"avg_response"`
	P50Response    time.Duration `json:"p50_response"`
	P95Response    time.Duration `json:"p95_response"`
	P99Response    time.Duration `json:"p99_response"`
	StatusCodes    map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		routeRequests:  make(map[string]int64),
		routeMatches:   make(map[string]int64),
		responseTimes:  make(map[string][]time.Duration),
		statusCodes:    make(map[string]map[int]int64),
		upstreamErrors: make(map[string]int64),
		healthStatus:   make(map[string]bool),
		startTime:      time.Now(),
	}
}

func (m *Metrics) IncrementRequests(route string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.routeRequests[route]++
}

func (m *Metrics) RecordRouteMatch(route, target string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.routeMatches[route]++
	if _, ok := m.healthStatus[target]; !ok {
		m.healthStatus[target] = true
	}
}

func (m *Metrics) RecordResponse(target string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[target] = append(m.responseTimes[target], duration)

	if len(m.responseTimes[target]) > 1000 {
		m.responseTimes[target] = m.responseTimes[target][1:]
	}

	if m.statusCodes[target] == nil {
		m.statusCodes[target] = make(map[int]int64)
	}
	m.statusCodes[target][statusCode]++
}

func (m *Metrics) RecordUpstreamError(target string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.upstreamErrors[target]++
}

func (m *Metrics) RecordDiscovery(target string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.discovered++
	if _, ok := m.healthStatus[target]; !ok {
		m.healthStatus[target] = true
	}
}

func (m *Metrics) RecordRemoval(target string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.removed++
	delete(m.healthStatus, target)
}

func (m *Metrics) UpdateHealthStatus(target string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthStatus[target] = healthy
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:             time.Since(m.startTime),
		Routes:             make(map[string]RouteMetrics),
		Upstreams:          make(map[string]UpstreamMetrics),
		ServicesDiscovered: m.discovered,
		ServicesRemoved:    m.removed,
	}

	allRoutes := make(map[string]bool)
	for route := range m.routeRequests {
		allRoutes[route] = true
	}
	for route := range m.routeMatches {
		allRoutes[route] = true
	}

	for route := range allRoutes {
		snap.TotalRequests += m.routeRequests[route]
		snap.Routes[route] = RouteMetrics{
			Requests: m.routeRequests[route],
			Matches:  m.routeMatches[route],
		}
	}

	allUpstreams := make(map[string]bool)
	for target := range m.responseTimes {
		allUpstreams[target] = true
	}
	for target := range m.upstreamErrors {
		allUpstreams[target] = true
	}
	for target := range m.healthStatus {
		allUpstreams[target] = true
	}

	for target := range allUpstreams {
		um := UpstreamMetrics{
			Healthy:        m.healthStatus[target],
			UpstreamErrors: m.upstreamErrors[target],
			StatusCodes:    m.statusCodes[target],
		}

		durations := m.responseTimes[target]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			um.AvgResponse = average(sorted)
			um.P50Response = percentile(sorted, 0.50)
			um.P95Response = percentile(sorted, 0.95)
			um.P99Response = percentile(sorted, 0.99)
		}

		snap.Upstreams[target] = um
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
