package server

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Shital16-hub/teams/internal/audio"
	"github.com/Shital16-hub/teams/internal/meeting"
	"github.com/Shital16-hub/teams/internal/pipeline"
	"github.com/Shital16-hub/teams/internal/router"
	"github.com/Shital16-hub/teams/internal/vad"
)

// captureChannel records outbound messages instead of writing to a socket
type captureChannel struct {
	mu       sync.Mutex
	messages [][]byte
}

func (c *captureChannel) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, data)
	return nil
}

func (c *captureChannel) SetWriteDeadline(t time.Time) error { return nil }
func (c *captureChannel) Close() error                       { return nil }

func (c *captureChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *captureChannel) message(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages[i]
}

// waitForCapture polls until the channel holds n messages or the deadline hits
func waitForCapture(t *testing.T, ch *captureChannel, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ch.count() >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d messages, got %d", n, ch.count())
}

func newTestWSServer(t *testing.T) (*WSServer, *router.Router, *meeting.Manager) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()

	manager, err := meeting.NewManager(meeting.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	detector, err := vad.NewDetector(vad.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	enhancer := audio.NewEnhancer(audio.DefaultEnhancerConfig(), logger)
	r := router.NewRouter(manager, logger)

	processor, err := pipeline.NewProcessor(pipeline.DefaultConfig(), detector, enhancer, manager, r, nil, nil, logger)
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}

	s := NewWSServer(cfg.Server, cfg.Audio, r, manager, processor, nil, logger)
	return s, r, manager
}

func decodeCapture(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}
	return body
}

func TestDispatchUnknownType(t *testing.T) {
	s, r, _ := newTestWSServer(t)

	ch := &captureChannel{}
	conn := r.Register(ch)

	keepOpen := s.dispatch(conn, &clientMessage{Type: "bogus"})
	if !keepOpen {
		t.Error("Unknown type must not close the connection")
	}

	waitForCapture(t, ch, 1)
	body := decodeCapture(t, ch.message(0))
	if body["type"] != "error" {
		t.Errorf("Expected error message, got %v", body["type"])
	}
	supported, ok := body["supported_types"].([]interface{})
	if !ok || len(supported) != len(supportedTypes) {
		t.Errorf("Expected %d supported types, got %v", len(supportedTypes), body["supported_types"])
	}
}

func TestDispatchHeartbeat(t *testing.T) {
	s, r, _ := newTestWSServer(t)

	ch := &captureChannel{}
	conn := r.Register(ch)

	s.dispatch(conn, &clientMessage{Type: "heartbeat"})

	waitForCapture(t, ch, 1)
	body := decodeCapture(t, ch.message(0))
	if body["type"] != "heartbeat-response" {
		t.Errorf("Expected heartbeat-response, got %v", body["type"])
	}
	if _, ok := body["timestamp"]; !ok {
		t.Error("Expected timestamp in heartbeat response")
	}
}

func TestJoinRoomCreatesMeeting(t *testing.T) {
	s, r, manager := newTestWSServer(t)

	ch := &captureChannel{}
	conn := r.Register(ch)

	s.dispatch(conn, &clientMessage{
		Type:          "join-room",
		RoomName:      "room1",
		MeetingID:     "m1",
		ParticipantID: "alice",
		DisplayName:   "Alice",
	})

	waitForCapture(t, ch, 1)
	body := decodeCapture(t, ch.message(0))
	if body["type"] != "join-room-response" {
		t.Fatalf("Expected join-room-response, got %v", body["type"])
	}
	if body["connection_id"] != conn.ID {
		t.Errorf("Expected connection_id %q, got %v", conn.ID, body["connection_id"])
	}

	status, err := manager.Status("m1")
	if err != nil {
		t.Fatalf("Meeting was not created: %v", err)
	}
	if len(status.ActiveParticipants) != 1 {
		t.Errorf("Expected 1 participant, got %d", len(status.ActiveParticipants))
	}
}

func TestJoinRoomRequiresRoomName(t *testing.T) {
	s, r, _ := newTestWSServer(t)

	ch := &captureChannel{}
	conn := r.Register(ch)

	s.dispatch(conn, &clientMessage{Type: "join-room"})

	waitForCapture(t, ch, 1)
	body := decodeCapture(t, ch.message(0))
	if body["type"] != "error" {
		t.Errorf("Expected error message, got %v", body["type"])
	}
}

func TestAudioMessageDetectsVoice(t *testing.T) {
	s, r, manager := newTestWSServer(t)

	err := manager.Initialize("m1", []meeting.ParticipantInfo{
		{ID: "alice", DisplayName: "Alice"},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	ch := &captureChannel{}
	conn := r.Register(ch)
	if err := r.Join(conn.ID, "room1", "m1", "alice"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	// 160 loud pcm16 samples, well above the fallback threshold
	payload := make([]byte, 320)
	sample := int16(math.Round(0.5 * 32767))
	for i := 0; i < 160; i++ {
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(sample))
	}

	s.dispatch(conn, &clientMessage{
		Type:          "teams-audio",
		RoomName:      "room1",
		MeetingID:     "m1",
		ParticipantID: "alice",
		AudioBase64:   base64.StdEncoding.EncodeToString(payload),
	})

	waitForCapture(t, ch, 1)
	body := decodeCapture(t, ch.message(0))
	if body["type"] != "teams-audio-response" {
		t.Fatalf("Expected teams-audio-response, got %v", body["type"])
	}
	if body["voice_detected"] != true {
		t.Errorf("Expected voice_detected true, got %v", body["voice_detected"])
	}
}

func TestAudioMessageRejectsBadBase64(t *testing.T) {
	s, r, _ := newTestWSServer(t)

	ch := &captureChannel{}
	conn := r.Register(ch)

	s.dispatch(conn, &clientMessage{
		Type:        "teams-audio",
		AudioBase64: "not base64!!!",
	})

	waitForCapture(t, ch, 1)
	body := decodeCapture(t, ch.message(0))
	if body["type"] != "error" {
		t.Errorf("Expected error message, got %v", body["type"])
	}
}

func TestGetStatusRequiresMeetingID(t *testing.T) {
	s, r, _ := newTestWSServer(t)

	ch := &captureChannel{}
	conn := r.Register(ch)

	s.dispatch(conn, &clientMessage{Type: "get-status"})

	waitForCapture(t, ch, 1)
	body := decodeCapture(t, ch.message(0))
	if body["type"] != "error" {
		t.Errorf("Expected error message, got %v", body["type"])
	}
}

func TestGetStatusReturnsMeeting(t *testing.T) {
	s, r, manager := newTestWSServer(t)

	err := manager.Initialize("m1", []meeting.ParticipantInfo{
		{ID: "alice", DisplayName: "Alice"},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	ch := &captureChannel{}
	conn := r.Register(ch)

	s.dispatch(conn, &clientMessage{Type: "get-status", MeetingID: "m1"})

	waitForCapture(t, ch, 1)
	body := decodeCapture(t, ch.message(0))
	if body["type"] != "get-status-response" {
		t.Fatalf("Expected get-status-response, got %v", body["type"])
	}
	if _, ok := body["status"]; !ok {
		t.Error("Expected status payload")
	}
}

func TestLeaveRoom(t *testing.T) {
	s, r, _ := newTestWSServer(t)

	ch := &captureChannel{}
	conn := r.Register(ch)
	if err := r.Join(conn.ID, "room1", "", ""); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	s.dispatch(conn, &clientMessage{Type: "leave-room"})

	waitForCapture(t, ch, 1)
	body := decodeCapture(t, ch.message(0))
	if body["type"] != "leave-room-response" {
		t.Errorf("Expected leave-room-response, got %v", body["type"])
	}

	if members := r.RoomMembers("room1"); len(members) != 0 {
		t.Errorf("Expected empty room after leave, got %d members", len(members))
	}
}
