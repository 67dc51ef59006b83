package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the audio bridge
type Metrics struct {
	// Audio frame metrics
	FramesReceived  prometheus.Counter
	FramesProcessed prometheus.Counter
	MalformedFrames prometheus.Counter
	FramesEnhanced  prometheus.Counter
	FrameLatency    prometheus.Histogram
	LatencyExceeded prometheus.Counter

	// VAD metrics
	VADFramesProcessed prometheus.Counter
	VADVoiceDetected   prometheus.Counter
	VADConfidence      prometheus.Histogram

	// Turn-taking metrics
	TurnsStarted prometheus.Counter
	TurnsClosed  prometheus.Counter
	TurnDuration prometheus.Histogram

	// Meeting metrics
	ActiveMeetings  prometheus.Gauge
	MeetingsCreated prometheus.Counter
	MeetingsEnded   prometheus.Counter

	// Router metrics
	ActiveConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	PayloadsDelivered prometheus.Counter
	DeliveryMisses    prometheus.Counter

	// Agent metrics
	AgentRequests  prometheus.Counter
	AgentSuccesses prometheus.Counter
	AgentFailures  prometheus.Counter
	AgentDuration  prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Audio frame metrics
		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_frames_received_total",
			Help: "Total number of audio frames received",
		}),
		FramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_frames_processed_total",
			Help: "Total number of audio frames fully processed",
		}),
		MalformedFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_malformed_frames_total",
			Help: "Total number of frames rejected as malformed",
		}),
		FramesEnhanced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_frames_enhanced_total",
			Help: "Total number of speech frames enhanced",
		}),
		FrameLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_frame_processing_duration_seconds",
			Help:    "End-to-end processing time per audio frame",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		LatencyExceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_latency_target_exceeded_total",
			Help: "Total number of frames that exceeded the latency target",
		}),

		// VAD metrics
		VADFramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_vad_frames_processed_total",
			Help: "Total number of frames classified by VAD",
		}),
		VADVoiceDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_vad_voice_detected_total",
			Help: "Total number of frames classified as speech",
		}),
		VADConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_vad_confidence",
			Help:    "Confidence score of VAD decisions",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),

		// Turn-taking metrics
		TurnsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_turns_started_total",
			Help: "Total number of speaking turns opened",
		}),
		TurnsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_turns_closed_total",
			Help: "Total number of speaking turns closed",
		}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_turn_duration_seconds",
			Help:    "Duration of completed speaking turns",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),

		// Meeting metrics
		ActiveMeetings: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_active_meetings",
			Help: "Current number of active meetings",
		}),
		MeetingsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_meetings_created_total",
			Help: "Total number of meetings initialized",
		}),
		MeetingsEnded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_meetings_ended_total",
			Help: "Total number of meetings ended",
		}),

		// Router metrics
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_active_connections",
			Help: "Current number of live connections",
		}),
		ActiveRooms: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_active_rooms",
			Help: "Current number of rooms with members",
		}),
		PayloadsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_payloads_delivered_total",
			Help: "Total number of payloads delivered to recipients",
		}),
		DeliveryMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_delivery_misses_total",
			Help: "Total number of recipient sends skipped because the channel was not open",
		}),

		// Agent metrics
		AgentRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_agent_requests_total",
			Help: "Total number of AI agent requests sent",
		}),
		AgentSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_agent_successes_total",
			Help: "Total number of successful AI agent requests",
		}),
		AgentFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bridge_agent_failures_total",
			Help: "Total number of failed AI agent requests",
		}),
		AgentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_agent_request_duration_seconds",
			Help:    "Duration of AI agent requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordFrameReceived increments the frames received counter
func (m *Metrics) RecordFrameReceived() {
	m.FramesReceived.Inc()
}

// RecordFrameProcessed records a fully processed frame and its latency
func (m *Metrics) RecordFrameProcessed(durationSeconds float64, exceededTarget bool) {
	m.FramesProcessed.Inc()
	m.FrameLatency.Observe(durationSeconds)
	if exceededTarget {
		m.LatencyExceeded.Inc()
	}
}

// RecordMalformedFrame increments the malformed frames counter
func (m *Metrics) RecordMalformedFrame() {
	m.MalformedFrames.Inc()
}

// RecordFrameEnhanced increments the enhanced frames counter
func (m *Metrics) RecordFrameEnhanced() {
	m.FramesEnhanced.Inc()
}

// RecordVADDecision records one VAD classification
func (m *Metrics) RecordVADDecision(voiceDetected bool, confidence float64) {
	m.VADFramesProcessed.Inc()
	if voiceDetected {
		m.VADVoiceDetected.Inc()
	}
	m.VADConfidence.Observe(confidence)
}

// RecordTurnStarted increments the turns started counter
func (m *Metrics) RecordTurnStarted() {
	m.TurnsStarted.Inc()
}

// RecordTurnClosed records a closed turn and its duration
func (m *Metrics) RecordTurnClosed(durationSeconds float64) {
	m.TurnsClosed.Inc()
	m.TurnDuration.Observe(durationSeconds)
}

// SetActiveMeetings sets the current number of active meetings
func (m *Metrics) SetActiveMeetings(count int) {
	m.ActiveMeetings.Set(float64(count))
}

// RecordMeetingCreated increments the meetings created counter
func (m *Metrics) RecordMeetingCreated() {
	m.MeetingsCreated.Inc()
}

// RecordMeetingEnded increments the meetings ended counter
func (m *Metrics) RecordMeetingEnded() {
	m.MeetingsEnded.Inc()
}

// SetRouterTables sets the connection and room gauges
func (m *Metrics) SetRouterTables(connections, rooms int) {
	m.ActiveConnections.Set(float64(connections))
	m.ActiveRooms.Set(float64(rooms))
}

// RecordDelivery records the outcome of one fan-out
func (m *Metrics) RecordDelivery(delivered, missed int) {
	m.PayloadsDelivered.Add(float64(delivered))
	m.DeliveryMisses.Add(float64(missed))
}

// RecordAgentRequest increments the agent requests counter
func (m *Metrics) RecordAgentRequest() {
	m.AgentRequests.Inc()
}

// RecordAgentSuccess records a successful agent request
func (m *Metrics) RecordAgentSuccess(durationSeconds float64) {
	m.AgentSuccesses.Inc()
	m.AgentDuration.Observe(durationSeconds)
}

// RecordAgentFailure records a failed agent request
func (m *Metrics) RecordAgentFailure(durationSeconds float64) {
	m.AgentFailures.Inc()
	m.AgentDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
