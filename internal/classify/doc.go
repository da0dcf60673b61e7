// Package classify turns an open TCP port into a named, health-annotated
// service record by probing it over HTTP. Ports that accept connections but
// never speak HTTP are still recorded when a static name mapping exists.
package classify
