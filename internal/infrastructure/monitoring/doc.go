/*
Package monitoring provides Prometheus metrics for the editor backend.

# Features

- HTTP request metrics (latency, throughput, size)
- Storage and import operation metrics
- Editor transitions, debounced saves and reconciliations
- Frame connection and protocol message metrics

Each Metrics value owns its registry.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "storage", "save")
	err := store.Save(ctx, slug, doc)
	timer.StopErr(err)
*/
package monitoring
