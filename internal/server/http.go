package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shital16-hub/teams/internal/analytics"
	"github.com/Shital16-hub/teams/internal/config"
	"github.com/Shital16-hub/teams/internal/meeting"
	"github.com/Shital16-hub/teams/internal/metrics"
	"github.com/Shital16-hub/teams/internal/pipeline"
	"github.com/Shital16-hub/teams/internal/router"
)

// HTTPServer provides HTTP API endpoints for monitoring and management
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	meetings  *meeting.Manager
	router    *router.Router
	wsServer  *WSServer
	processor *pipeline.Processor
	metrics   *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, meetings *meeting.Manager, r *router.Router,
	wsServer *WSServer, processor *pipeline.Processor, m *metrics.Metrics) *HTTPServer {

	if logger == nil {
		logger = slog.Default()
	}

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		meetings:  meetings,
		router:    r,
		wsServer:  wsServer,
		processor: processor,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Meeting monitoring endpoints
	mux.HandleFunc("/meetings", h.withMetrics("/meetings", h.handleMeetings))
	mux.HandleFunc("/meetings/", h.withMetrics("/meetings/{id}", h.handleMeetingDetail))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	wsStats := h.wsServer.GetStatistics()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "teams-audio-bridge",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"websocket_server": map[string]interface{}{
				"status":            "running",
				"messages_received": wsStats.MessagesReceived,
				"messages_handled":  wsStats.MessagesHandled,
				"protocol_errors":   wsStats.ProtocolErrors,
			},
			"router": map[string]interface{}{
				"status":      "running",
				"connections": wsStats.Connections,
				"rooms":       wsStats.Rooms,
			},
			"meetings": map[string]interface{}{
				"status":       "running",
				"active_count": h.meetings.ActiveMeetings(),
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleMeetings implements the /meetings endpoint
func (h *HTTPServer) handleMeetings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ids := h.meetings.MeetingIDs()

		response := map[string]interface{}{
			"total_meetings": len(ids),
			"timestamp":      time.Now().UTC(),
			"meetings":       ids,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)

	case http.MethodPost:
		var req struct {
			MeetingID    string                    `json:"meeting_id"`
			Participants []meeting.ParticipantInfo `json:"participants"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.MeetingID == "" {
			http.Error(w, "meeting_id is required", http.StatusBadRequest)
			return
		}

		if err := h.meetings.Initialize(req.MeetingID, req.Participants); err != nil {
			if errors.Is(err, meeting.ErrMeetingExists) {
				http.Error(w, "Meeting already exists", http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.metrics.RecordMeetingCreated()
		h.metrics.SetActiveMeetings(h.meetings.ActiveMeetings())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"meeting_id":   req.MeetingID,
			"participants": len(req.Participants),
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleMeetingDetail implements /meetings/{id} and its participants and
// analytics sub-resources.
func (h *HTTPServer) handleMeetingDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/meetings/")
	if rest == "" {
		http.Error(w, "Meeting ID required", http.StatusBadRequest)
		return
	}

	meetingID, sub, _ := strings.Cut(rest, "/")
	subName, subID, _ := strings.Cut(sub, "/")

	switch subName {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.writeMeetingStatus(w, meetingID)
		case http.MethodDelete:
			h.endMeeting(w, meetingID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "participants":
		switch r.Method {
		case http.MethodGet:
			h.writeMeetingParticipants(w, meetingID)
		case http.MethodPost:
			h.addParticipant(w, r, meetingID)
		case http.MethodDelete:
			h.removeParticipant(w, meetingID, subID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "analytics":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.writeMeetingAnalytics(w, meetingID)
	default:
		http.NotFound(w, r)
	}
}

func (h *HTTPServer) endMeeting(w http.ResponseWriter, meetingID string) {
	if err := h.meetings.End(meetingID); err != nil {
		http.Error(w, "Meeting not found", http.StatusNotFound)
		return
	}
	h.metrics.RecordMeetingEnded()
	h.metrics.SetActiveMeetings(h.meetings.ActiveMeetings())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"meeting_id": meetingID,
		"ended":      true,
	})
}

func (h *HTTPServer) addParticipant(w http.ResponseWriter, r *http.Request, meetingID string) {
	var info meeting.ParticipantInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if info.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	if err := h.meetings.AddParticipant(meetingID, info); err != nil {
		if errors.Is(err, meeting.ErrMeetingNotFound) {
			http.Error(w, "Meeting not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"meeting_id":     meetingID,
		"participant_id": info.ID,
	})
}

func (h *HTTPServer) removeParticipant(w http.ResponseWriter, meetingID, participantID string) {
	if participantID == "" {
		http.Error(w, "Participant ID required", http.StatusBadRequest)
		return
	}

	if err := h.meetings.RemoveParticipant(meetingID, participantID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"meeting_id":     meetingID,
		"participant_id": participantID,
		"removed":        true,
	})
}

func (h *HTTPServer) writeMeetingStatus(w http.ResponseWriter, meetingID string) {
	status, err := h.meetings.Status(meetingID)
	if err != nil {
		http.Error(w, "Meeting not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *HTTPServer) writeMeetingParticipants(w http.ResponseWriter, meetingID string) {
	snap, err := h.meetings.Snapshot(meetingID)
	if err != nil {
		http.Error(w, "Meeting not found", http.StatusNotFound)
		return
	}

	participants := make([]meeting.Participant, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		participants = append(participants, p)
	}

	response := map[string]interface{}{
		"meeting_id":   meetingID,
		"participants": participants,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *HTTPServer) writeMeetingAnalytics(w http.ResponseWriter, meetingID string) {
	snap, err := h.meetings.Snapshot(meetingID)
	if err != nil {
		http.Error(w, "Meeting not found", http.StatusNotFound)
		return
	}

	report, err := analytics.Generate(snap)
	if err != nil {
		http.Error(w, "Failed to generate analytics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"server": map[string]interface{}{
			"port":             h.config.Server.Port,
			"bind_address":     h.config.Server.BindAddress,
			"read_timeout":     h.config.Server.ReadTimeout,
			"max_message_size": h.config.Server.MaxMessageSize,
		},
		"audio": map[string]interface{}{
			"sample_rate":    h.config.Audio.SampleRate,
			"channels":       h.config.Audio.Channels,
			"default_format": h.config.Audio.DefaultFormat,
		},
		"vad": map[string]interface{}{
			"fallback_threshold_db": h.config.VAD.FallbackThresholdDB,
			"window_size":           h.config.VAD.WindowSize,
			"min_adapt_samples":     h.config.VAD.MinAdaptSamples,
			"noise_margin_db":       h.config.VAD.NoiseMarginDB,
		},
		"enhancer": map[string]interface{}{
			"gate_threshold":  h.config.Enhancer.GateThreshold,
			"peak_target":     h.config.Enhancer.PeakTarget,
			"high_pass_alpha": h.config.Enhancer.HighPassAlpha,
		},
		"meeting": map[string]interface{}{
			"turn_confidence":  h.config.Meeting.TurnConfidence,
			"event_log_cap":    h.config.Meeting.EventLogCap,
			"idle_timeout":     h.config.Meeting.IdleTimeout,
			"cleanup_interval": h.config.Meeting.CleanupInterval,
		},
		"pipeline": map[string]interface{}{
			"latency_target_ms": h.config.Pipeline.LatencyTargetMs,
			"agent_workers":     h.config.Pipeline.AgentWorkers,
			"agent_queue_size":  h.config.Pipeline.AgentQueueSize,
		},
		"agent": map[string]interface{}{
			"enabled":         h.config.Agent.Enabled,
			"base_url":        h.config.Agent.BaseURL,
			"timeout":         h.config.Agent.Timeout,
			"max_retries":     h.config.Agent.MaxRetries,
			"max_concurrent":  h.config.Agent.MaxConcurrent,
			"respond_enabled": h.config.Agent.RespondEnabled,
			// Note: API key is intentionally omitted for security
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wsStats := h.wsServer.GetStatistics()
	routerStats := h.router.GetStats()
	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"websocket": wsStats,
		"router":    routerStats,
		"meetings": map[string]interface{}{
			"active_count": h.meetings.ActiveMeetings(),
		},
		"pipeline": map[string]interface{}{
			"dropped_agent_jobs": h.processor.DroppedJobs(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Teams Audio Bridge",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                                                        "API documentation",
			"GET /health":                                                  "Service health check",
			"GET /meetings":                                                "List active meeting IDs",
			"POST /meetings":                                               "Initialize a meeting",
			"GET /meetings/{meeting_id}":                                   "Get meeting status",
			"DELETE /meetings/{meeting_id}":                                "End a meeting",
			"GET /meetings/{meeting_id}/participants":                      "List meeting participants",
			"POST /meetings/{meeting_id}/participants":                     "Add a participant",
			"DELETE /meetings/{meeting_id}/participants/{participant_id}": "Remove a participant",
			"GET /meetings/{meeting_id}/analytics":                         "Generate conversation analytics",
			"GET /config":                                                  "Get service configuration",
			"GET /stats":                                                   "Get service statistics",
			"GET /metrics":                                                 "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
