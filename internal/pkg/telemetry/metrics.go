package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Data freshness
	MetricCatalogFreshness    = "catalog.data_age_seconds"
	MetricAvailabilityLatency = "realtime.availability_latency"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricResolutions      = "business.resolutions_served"
	MetricEmptyResolutions = "business.resolutions_not_found"
)
