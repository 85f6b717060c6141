/*
Package monitoring provides Prometheus metrics for the proxy.

# Overview

Tracks the webview-facing HTTP surface, the host channel, the pending-request
correlation table, the content cache, and the localhost prober.

# Features

- HTTP request metrics (latency, throughput, size)
- Channel connection and message counters
- Pending / resolved / expired / unknown-id correlation counters
- Cache hit and miss counters
- Probe failure counter

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))

	metrics.RecordResolved("resource", "response")
	metrics.IncRequestsPending()

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
