// Package probe answers a single question: is anything listening on a given
// TCP port right now. It is the cheapest first stage of service discovery.
package probe
