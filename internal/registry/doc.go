// Package registry implements the health-annotated service registry. It is
// the single source of truth for discovered backend services: the discovery
// loop and health monitor write to it, the request forwarder reads from it.
package registry
