package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/dev-router/internal/registry"
)

// ProxyHandler serves the router's inspection endpoints.
type ProxyHandler struct {
	logger    *slog.Logger
	registry  *registry.Registry
	startTime time.Time
}

func NewProxyHandler(logger *slog.Logger, reg *registry.Registry) *ProxyHandler {
	return &ProxyHandler{
		logger:    logger,
		registry:  reg,
		startTime: time.Now(),
	}
}

type serviceSummary struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	ResponseTime int64  `json:"response_time_ms"`
}

type healthResponse struct {
	Status   string           `json:"status"`
	Services []serviceSummary `json:"services"`
	Uptime   string           `json:"uptime"`
}

type servicesResponse struct {
	Services     []registry.ServiceRecord `json:"services"`
	TotalCount   int                      `json:"total_count"`
	HealthyCount int                      `json:"healthy_count"`
}

// Health reports the router's own liveness plus the currently healthy
// services.
func (h *ProxyHandler) Health(w http.ResponseWriter, r *http.Request) {
	healthy := h.registry.HealthySnapshot()

	services := make([]serviceSummary, 0, len(healthy))
	for _, record := range healthy {
		services = append(services, serviceSummary{
			Name:         record.Name,
			URL:          record.URL,
			ResponseTime: record.ResponseTime.Milliseconds(),
		})
	}

	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:   "healthy",
		Services: services,
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Services dumps every registry record with total and healthy counts.
func (h *ProxyHandler) Services(w http.ResponseWriter, r *http.Request) {
	all := h.registry.AllSnapshot()

	healthyCount := 0
	for _, record := range all {
		if record.Healthy {
			healthyCount++
		}
	}

	h.writeJSON(w, http.StatusOK, servicesResponse{
		Services:     all,
		TotalCount:   len(all),
		HealthyCount: healthyCount,
	})
}

func (h *ProxyHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", slog.Any("err", err))
	}
}
