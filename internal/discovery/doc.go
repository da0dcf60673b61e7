// Package discovery periodically scans the configured port range, classifies
// whatever is listening, and reconciles the results into the service registry.
// Per-port probes run concurrently under a bounded semaphore and are joined
// with wait-for-all semantics: one slow or failing probe never blocks or
// cancels the others.
package discovery
