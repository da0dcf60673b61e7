package forwarder

import (
	"encoding/json"
	"net/http"
)

// routeNotFoundBody is the 404 payload listing every configured pattern so an
// operator can see why nothing matched.
type routeNotFoundBody struct {
	Error           string   `json:"error"`
	Path            string   `json:"path"`
	AvailableRoutes []string `json:"available_routes"`
}

// targetUnavailableBody is the 503 payload naming the route, the target it
// wanted, and what the registry currently knows about.
type targetUnavailableBody struct {
	Error             string   `json:"error"`
	Route             string   `json:"route"`
	Target            string   `json:"target"`
	AvailableServices []string `json:"available_services"`
}

// upstreamErrorBody is the 502 payload for a live connection that failed.
type upstreamErrorBody struct {
	Error  string `json:"error"`
	Target string `json:"target"`
	Detail string `json:"detail"`
}

func writeRouteNotFound(w http.ResponseWriter, path string, patterns []string) {
	writeJSON(w, http.StatusNotFound, routeNotFoundBody{
		Error:           "no route matched",
		Path:            path,
		AvailableRoutes: patterns,
	})
}

func writeTargetUnavailable(w http.ResponseWriter, route, target string, services []string) {
	writeJSON(w, http.StatusServiceUnavailable, targetUnavailableBody{
		Error:             "target service unavailable",
		Route:             route,
		Target:            target,
		AvailableServices: services,
	})
}

func writeUpstreamError(w http.ResponseWriter, target string, err error) {
	writeJSON(w, http.StatusBadGateway, upstreamErrorBody{
		Error:  "upstream request failed",
		Target: target,
		Detail: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
