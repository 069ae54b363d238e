package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds the service's metric families. It satisfies the engine's
// MetricsRecorder and the Kafka consumer's EventObserver.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// gRPC
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	// Analysis
	AnalysisTotal    CounterVec
	AnalysisDuration HistogramVec
	CacheLookups     CounterVec

	// Change events
	ChangeEventsTotal  CounterVec
	NotificationsTotal CounterVec
	InsightsPublished  CounterVec
	SnapshotsArchived  CounterVec

	// Infrastructure
	BreakerState       GaugeVec
	BreakerTransitions CounterVec
	HealthCheckStatus  GaugeVec
	ErrorsTotal        CounterVec
}

var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultAnalysisDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}
)

// NewAppMetrics registers every family on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests")

	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "service", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "service", "method")

	m.AnalysisTotal = collector.RegisterCounter("analysis_total", "Analyzer invocations by outcome", "operation", "status")
	m.AnalysisDuration = collector.RegisterHistogram("analysis_duration_seconds", "Analyzer latency", DefaultAnalysisDurationBuckets, "operation")
	m.CacheLookups = collector.RegisterCounter("analysis_cache_lookups_total", "Analysis cache lookups", "result")

	m.ChangeEventsTotal = collector.RegisterCounter("change_events_total", "Consumed collection change events by outcome", "topic", "outcome")
	m.NotificationsTotal = collector.RegisterCounter("notifications_total", "Smart notifications generated", "type")
	m.InsightsPublished = collector.RegisterCounter("insights_published_total", "Envelopes published on the insights topic", "event_type")
	m.SnapshotsArchived = collector.RegisterCounter("snapshots_archived_total", "Analysis snapshots written to object storage", "status")

	m.BreakerState = collector.RegisterGauge("breaker_state", "Circuit breaker state (0=closed, 1=half-open, 2=open)", "name")
	m.BreakerTransitions = collector.RegisterCounter("breaker_transitions_total", "Circuit breaker state changes", "name", "from", "to")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// ObserveAnalysis records one analyzer run.
func (m *AppMetrics) ObserveAnalysis(operation, status string, d time.Duration) {
	m.AnalysisTotal.WithLabelValues(operation, status).Inc()
	m.AnalysisDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *AppMetrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveEvent matches the consumer's observer signature.
func (m *AppMetrics) ObserveEvent(topic, outcome string) {
	m.ChangeEventsTotal.WithLabelValues(topic, outcome).Inc()
}

func (m *AppMetrics) RecordNotifications(kind string, n int) {
	if n <= 0 {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind).Add(float64(n))
}

func (m *AppMetrics) RecordInsightPublished(eventType string) {
	m.InsightsPublished.WithLabelValues(eventType).Inc()
}

func (m *AppMetrics) RecordSnapshot(err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.SnapshotsArchived.WithLabelValues(status).Inc()
}

// RecordBreakerTransition tracks a state change; state is 0 closed, 1
// half-open, 2 open.
func (m *AppMetrics) RecordBreakerTransition(name, from, to string, state int) {
	m.BreakerTransitions.WithLabelValues(name, from, to).Inc()
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *AppMetrics) SetComponentHealth(component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

// RecordHTTPRequest observes a finished request. path should be the route
// pattern, not the raw URL, to bound cardinality.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// TrackInFlight moves the in-flight HTTP gauge up when a request starts and
// down when it finishes.
func (m *AppMetrics) TrackInFlight(started bool) {
	g := m.HTTPActiveRequests.WithLabelValues()
	if started {
		g.Inc()
		return
	}
	g.Dec()
}

func (m *AppMetrics) RecordGRPCRequest(service, method, code string, d time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(d.Seconds())
}

func (m *AppMetrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
