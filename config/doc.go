// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the router configuration structure:
// server settings, port discovery ranges, health check intervals, proxy
// timeouts, CORS origins, and the ordered route rule list.
package config
