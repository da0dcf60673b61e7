// Package handler exposes the router's own HTTP surface: the /proxy/health
// and /proxy/services inspection endpoints and the CORS middleware applied to
// everything the router serves.
package handler
