package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engine metrics
	activeEngines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speech_engine_active_engines",
		Help: "Number of running segmentation engines",
	})

	engineLifetime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_engine_lifetime_seconds",
		Help:    "How long engines ran before being stopped",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	framesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_engine_frames_processed_total",
		Help: "Total number of input frames processed",
	}, []string{"mode"})

	samplesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_engine_samples_total",
		Help: "Total audio samples processed",
	}, []string{"kind"}) // kind: "input" or "speech"

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_engine_status_transitions_total",
		Help: "Speech detection status changes",
	}, []string{"status"})

	// Decode metrics
	streamsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_engine_streams_created_total",
		Help: "Total number of backend decode streams opened",
	}, []string{"status"})

	decodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_engine_decode_requests_total",
		Help: "Total number of backend decode calls",
	}, []string{"kind", "status"}) // kind: "intermediate" or "final"

	decodeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speech_engine_decode_latency_seconds",
		Help:    "Backend decode latency in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	}, []string{"kind"})

	flushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_engine_flushes_total",
		Help: "Utterance boundaries signalled to the host",
	}, []string{"kind"}) // kind: "regular" or "eof"

	sentenceTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_engine_sentence_timeouts_total",
		Help: "Sentence windows that closed without speech",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_engine_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speech_engine_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_engine_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// Metrics tracks metrics for a single segmentation engine. A nil *Metrics
// records nothing.
type Metrics struct {
	mode      string
	startTime time.Time
}

// NewEngineMetrics creates a new metrics tracker for an engine running in mode
func NewEngineMetrics(mode string) *Metrics {
	return &Metrics{
		mode:      mode,
		startTime: time.Now(),
	}
}

// RecordEngineStart records a started engine
func (m *Metrics) RecordEngineStart() {
	if m == nil {
		return
	}
	activeEngines.Inc()
}

// RecordEngineEnd records a stopped engine
func (m *Metrics) RecordEngineEnd() {
	if m == nil {
		return
	}
	activeEngines.Dec()
	engineLifetime.Observe(time.Since(m.startTime).Seconds())
}

// RecordFrame records one processed input frame and how much of it was speech
func (m *Metrics) RecordFrame(inputSamples, speechSamples int) {
	if m == nil {
		return
	}
	framesProcessed.WithLabelValues(m.mode).Inc()
	samplesProcessed.WithLabelValues("input").Add(float64(inputSamples))
	samplesProcessed.WithLabelValues("speech").Add(float64(speechSamples))
}

// RecordStatus records a speech detection status transition
func (m *Metrics) RecordStatus(status string) {
	if m == nil {
		return
	}
	statusTransitions.WithLabelValues(status).Inc()
}

// RecordStreamCreate records the outcome of opening a backend stream
func (m *Metrics) RecordStreamCreate(success bool) {
	if m == nil {
		return
	}
	streamsCreated.WithLabelValues(statusLabel(success)).Inc()
}

// RecordDecode records a backend decode call that started at start
func (m *Metrics) RecordDecode(kind string, start time.Time, success bool) {
	if m == nil {
		return
	}
	decodeLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	decodeRequests.WithLabelValues(kind, statusLabel(success)).Inc()
}

// RecordFlush records an utterance boundary
func (m *Metrics) RecordFlush(kind string) {
	if m == nil {
		return
	}
	flushesTotal.WithLabelValues(kind).Inc()
}

// RecordSentenceTimeout records a sentence window that closed empty
func (m *Metrics) RecordSentenceTimeout() {
	if m == nil {
		return
	}
	sentenceTimeouts.Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	if m == nil {
		return
	}
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
