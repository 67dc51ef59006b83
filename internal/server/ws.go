package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Shital16-hub/teams/internal/config"
	"github.com/Shital16-hub/teams/internal/meeting"
	"github.com/Shital16-hub/teams/internal/metrics"
	"github.com/Shital16-hub/teams/internal/pipeline"
	"github.com/Shital16-hub/teams/internal/router"
)

// supportedTypes lists every inbound protocol message type
var supportedTypes = []string{
	"join-room",
	"leave-room",
	"teams-audio",
	"livekit-audio",
	"heartbeat",
	"get-status",
}

// clientMessage is the inbound protocol envelope
type clientMessage struct {
	Type          string `json:"type"`
	RoomName      string `json:"room_name,omitempty"`
	MeetingID     string `json:"meeting_id,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	AudioBase64   string `json:"audio_base64,omitempty"`
	Format        string `json:"format,omitempty"`
	SampleRate    int    `json:"sample_rate,omitempty"`
	Channels      int    `json:"channels,omitempty"`
}

// protocolError is the structured error reply. An unknown message type
// names the supported set; the connection stays open.
type protocolError struct {
	Type           string   `json:"type"`
	Error          string   `json:"error"`
	SupportedTypes []string `json:"supported_types,omitempty"`
}

// WSServer accepts websocket connections and dispatches protocol messages
// to the router, the meeting manager and the audio pipeline.
type WSServer struct {
	config   config.ServerConfig
	audioCfg config.AudioConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader

	router    *router.Router
	meetings  *meeting.Manager
	processor *pipeline.Processor
	metrics   *metrics.Metrics

	server *http.Server

	// Statistics
	messagesReceived atomic.Uint64
	messagesHandled  atomic.Uint64
	protocolErrors   atomic.Uint64
}

// WSStatistics represents websocket server counters
type WSStatistics struct {
	MessagesReceived uint64 `json:"messages_received"`
	MessagesHandled  uint64 `json:"messages_handled"`
	ProtocolErrors   uint64 `json:"protocol_errors"`
	Connections      int    `json:"connections"`
	Rooms            int    `json:"rooms"`
}

// NewWSServer creates the websocket protocol server
func NewWSServer(
	cfg config.ServerConfig,
	audioCfg config.AudioConfig,
	r *router.Router,
	meetings *meeting.Manager,
	processor *pipeline.Processor,
	m *metrics.Metrics,
	logger *slog.Logger,
) *WSServer {
	if logger == nil {
		logger = slog.Default()
	}

	s := &WSServer{
		config:   cfg,
		audioCfg: audioCfg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		router:    r,
		meetings:  meetings,
		processor: processor,
		metrics:   m,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		Handler: mux,
	}

	return s
}

// Start begins accepting websocket connections
func (s *WSServer) Start() error {
	s.logger.Info("Starting websocket server",
		slog.String("address", s.server.Addr),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Websocket server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the websocket server
func (s *WSServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping websocket server...")
	return s.server.Shutdown(ctx)
}

// GetStatistics returns current server counters
func (s *WSServer) GetStatistics() WSStatistics {
	routerStats := s.router.GetStats()
	return WSStatistics{
		MessagesReceived: s.messagesReceived.Load(),
		MessagesHandled:  s.messagesHandled.Load(),
		ProtocolErrors:   s.protocolErrors.Load(),
		Connections:      routerStats.Connections,
		Rooms:            routerStats.Rooms,
	}
}

func (s *WSServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	conn := s.router.Register(wsConn)
	go s.readLoop(conn, wsConn)
}

// readLoop consumes inbound messages for one connection until the transport
// closes. Disconnect cleanup runs exactly once whether the loop exits from a
// read error or an explicit leave.
func (s *WSServer) readLoop(conn *router.Conn, wsConn *websocket.Conn) {
	defer s.router.Disconnect(conn.ID)

	wsConn.SetReadLimit(s.config.MaxMessageSize)
	readTimeout := s.config.GetReadTimeout()
	_ = wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			s.logger.Debug("Connection read ended",
				slog.String("conn_id", conn.ID),
				slog.String("error", err.Error()),
			)
			return
		}

		_ = wsConn.SetReadDeadline(time.Now().Add(readTimeout))
		s.messagesReceived.Add(1)

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(conn, "invalid json", nil)
			continue
		}

		if !s.dispatch(conn, &msg) {
			return
		}
	}
}

// dispatch handles one protocol message. It returns false when the
// connection should close.
func (s *WSServer) dispatch(conn *router.Conn, msg *clientMessage) bool {
	switch msg.Type {
	case "join-room":
		s.handleJoinRoom(conn, msg)
	case "leave-room":
		s.handleLeaveRoom(conn)
	case "teams-audio", "livekit-audio":
		s.handleAudio(conn, msg)
	case "heartbeat":
		s.sendResponse(conn, "heartbeat-response", map[string]any{
			"timestamp": time.Now().UTC(),
		})
	case "get-status":
		s.handleGetStatus(conn, msg)
	default:
		s.sendError(conn, fmt.Sprintf("unknown message type '%s'", msg.Type), supportedTypes)
		return true
	}

	s.messagesHandled.Add(1)
	return true
}

func (s *WSServer) handleJoinRoom(conn *router.Conn, msg *clientMessage) {
	if msg.RoomName == "" {
		s.sendError(conn, "room_name is required", nil)
		return
	}

	if err := s.router.Join(conn.ID, msg.RoomName, msg.MeetingID, msg.ParticipantID); err != nil {
		s.sendError(conn, err.Error(), nil)
		return
	}

	// Register the participant with the meeting, creating the meeting on
	// first join.
	if msg.MeetingID != "" && msg.ParticipantID != "" {
		info := meeting.ParticipantInfo{
			ID:          msg.ParticipantID,
			DisplayName: msg.DisplayName,
		}
		if err := s.meetings.AddParticipant(msg.MeetingID, info); err != nil {
			if err := s.meetings.Initialize(msg.MeetingID, []meeting.ParticipantInfo{info}); err != nil {
				s.logger.Warn("Failed to register participant",
					slog.String("meeting_id", msg.MeetingID),
					slog.String("error", err.Error()),
				)
			} else if s.metrics != nil {
				s.metrics.RecordMeetingCreated()
			}
		}
	}

	if s.metrics != nil {
		stats := s.router.GetStats()
		s.metrics.SetRouterTables(stats.Connections, stats.Rooms)
	}

	s.sendResponse(conn, "join-room-response", map[string]any{
		"connection_id": conn.ID,
		"room_name":     msg.RoomName,
		"meeting_id":    msg.MeetingID,
	})
}

func (s *WSServer) handleLeaveRoom(conn *router.Conn) {
	if err := s.router.Leave(conn.ID); err != nil {
		s.sendError(conn, err.Error(), nil)
		return
	}

	if s.metrics != nil {
		stats := s.router.GetStats()
		s.metrics.SetRouterTables(stats.Connections, stats.Rooms)
	}

	s.sendResponse(conn, "leave-room-response", map[string]any{
		"connection_id": conn.ID,
	})
}

func (s *WSServer) handleAudio(conn *router.Conn, msg *clientMessage) {
	payload, err := base64.StdEncoding.DecodeString(msg.AudioBase64)
	if err != nil {
		s.sendError(conn, "audio_base64 is not valid base64", nil)
		return
	}

	format := msg.Format
	if format == "" {
		format = s.audioCfg.DefaultFormat
	}
	sampleRate := msg.SampleRate
	if sampleRate == 0 {
		sampleRate = s.audioCfg.SampleRate
	}
	channels := msg.Channels
	if channels == 0 {
		channels = s.audioCfg.Channels
	}

	result, err := s.processor.ProcessAudio(context.Background(), pipeline.InboundAudio{
		MeetingID:     msg.MeetingID,
		RoomName:      msg.RoomName,
		ParticipantID: msg.ParticipantID,
		ConnID:        conn.ID,
		Payload:       payload,
		Format:        format,
		SampleRate:    sampleRate,
		Channels:      channels,
	})
	if err != nil {
		s.sendError(conn, err.Error(), nil)
		return
	}

	s.sendResponse(conn, msg.Type+"-response", map[string]any{
		"voice_detected":     result.VoiceDetected,
		"confidence":         result.Confidence,
		"processing_time_ms": result.ProcessingTimeMs,
		"forwarded":          result.Forwarded,
	})
}

func (s *WSServer) handleGetStatus(conn *router.Conn, msg *clientMessage) {
	if msg.MeetingID == "" {
		s.sendError(conn, "meeting_id is required", nil)
		return
	}

	status, err := s.meetings.Status(msg.MeetingID)
	if err != nil {
		s.sendError(conn, err.Error(), nil)
		return
	}

	s.sendResponse(conn, "get-status-response", map[string]any{
		"status": status,
	})
}

func (s *WSServer) sendResponse(conn *router.Conn, responseType string, fields map[string]any) {
	body := map[string]any{"type": responseType}
	for k, v := range fields {
		body[k] = v
	}

	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("Failed to marshal response", slog.String("error", err.Error()))
		return
	}

	if err := conn.Send(websocket.TextMessage, data); err != nil {
		s.logger.Debug("Failed to send response",
			slog.String("conn_id", conn.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *WSServer) sendError(conn *router.Conn, message string, supported []string) {
	s.protocolErrors.Add(1)

	data, err := json.Marshal(protocolError{
		Type:           "error",
		Error:          message,
		SupportedTypes: supported,
	})
	if err != nil {
		return
	}

	_ = conn.Send(websocket.TextMessage, data)
}
