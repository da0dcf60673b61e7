// Package forwarder resolves matched route rules to concrete upstream URLs
// and proxies requests to them. Resolution prefers healthy registry entries
// but falls back to a known-unhealthy record (degraded mode) rather than
// failing a request outright. Unresolvable targets and upstream failures are
// turned into structured JSON error responses, never panics.
package forwarder
