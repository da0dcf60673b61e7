package main

import (
	"net/http"

	"github.com/angeloszaimis/dev-router/internal/forwarder"
	"github.com/angeloszaimis/dev-router/internal/handler"
	"github.com/angeloszaimis/dev-router/internal/metrics"
)

func setupRouter(proxyHandler *handler.ProxyHandler, fwd *forwarder.Forwarder, collector *metrics.Collector, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/proxy/health", proxyHandler.Health)
	mux.HandleFunc("/proxy/services", proxyHandler.Services)
	mux.HandleFunc("/proxy/metrics", collector.Handler())
	mux.Handle("/", fwd)

	return handler.CORS(allowedOrigins)(mux)
}
