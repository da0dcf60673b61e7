// Package health re-probes registered services on a fixed interval and flips
// their healthy flag in the registry. Each service gets its own monitor task,
// started when the service is first registered and cancelled when it is
// removed or the router shuts down.
package health
