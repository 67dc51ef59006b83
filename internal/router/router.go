package router

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// TurnCloser receives participant-disconnect notifications so an open
// speaking turn is force-closed when its connection drops.
type TurnCloser interface {
	ParticipantDisconnected(meetingID, participantID string)
}

// Delivery reports the outcome of one fan-out. Delivery is at-most-once per
// recipient: a miss is counted, never retried.
type Delivery struct {
	Recipients int `json:"recipients"`
	Delivered  int `json:"delivered"`
	Missed     int `json:"missed"`
}

// Stats is a point-in-time view of the router tables
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// Router maintains the connection and room tables and moves payloads between
// the peers of a room. Join, leave and route are safe to call concurrently.
type Router struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	rooms map[string]map[string]struct{}

	turns  TurnCloser
	logger *slog.Logger
}

// NewRouter creates a connection router. The turn closer may be nil when
// turn tracking is not wired in.
func NewRouter(turns TurnCloser, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		conns:  make(map[string]*Conn),
		rooms:  make(map[string]map[string]struct{}),
		turns:  turns,
		logger: logger,
	}
}

// Register wraps a channel in a managed connection and adds it to the
// connection table. The connection has no room until it joins one.
func (r *Router) Register(ch Channel) *Conn {
	conn := newConn(uuid.NewString(), ch)

	r.mu.Lock()
	r.conns[conn.ID] = conn
	r.mu.Unlock()

	r.logger.Debug("Connection registered", slog.String("conn_id", conn.ID))
	return conn
}

// Join adds a connection to a room, creating the room entry if absent. A
// connection already in another room is moved. Meeting and participant
// identity are optional and only used for turn cleanup on disconnect.
func (r *Router) Join(connID, roomName, meetingID, participantID string) error {
	if roomName == "" {
		return fmt.Errorf("room name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, connID)
	}

	if conn.room != "" && conn.room != roomName {
		r.removeFromRoomLocked(conn)
	}

	members, ok := r.rooms[roomName]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomName] = members
	}
	members[connID] = struct{}{}

	conn.room = roomName
	conn.meetingID = meetingID
	conn.participantID = participantID

	r.logger.Info("Connection joined room",
		slog.String("conn_id", connID),
		slog.String("room", roomName),
		slog.Int("room_size", len(members)),
	)

	return nil
}

// Leave removes a connection from its room. The room entry is deleted once
// its member set is empty. Leaving with no room joined is a no-op.
func (r *Router) Leave(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, connID)
	}

	r.removeFromRoomLocked(conn)
	return nil
}

// RouteAudio fans a payload out to every other open connection in the
// origin's room. A room with no other members is not an error; the delivery
// simply reports zero recipients. Sends that cannot be enqueued are counted
// as misses and never retried.
func (r *Router) RouteAudio(originID string, payload []byte) (*Delivery, error) {
	r.mu.RLock()
	origin, ok := r.conns[originID]
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, originID)
	}
	if origin.room == "" {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrNotInRoom, originID)
	}

	recipients := r.roomConnsLocked(origin.room, originID)
	r.mu.RUnlock()

	return r.deliver(recipients, websocket.BinaryMessage, payload), nil
}

// Broadcast sends a payload to every open connection in a room, with no
// origin exclusion. An unknown or empty room reports zero recipients.
func (r *Router) Broadcast(roomName string, payload []byte) *Delivery {
	r.mu.RLock()
	recipients := r.roomConnsLocked(roomName, "")
	r.mu.RUnlock()

	return r.deliver(recipients, websocket.TextMessage, payload)
}

// Disconnect removes a connection entirely: implicit leave, table removal
// and channel close. Idempotent, so a transport-level close racing an
// explicit leave triggers cleanup exactly once. If the connection carried a
// participant identity, the turn machine is notified after the tables are
// released.
func (r *Router) Disconnect(connID string) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}

	meetingID := conn.meetingID
	participantID := conn.participantID

	r.removeFromRoomLocked(conn)
	delete(r.conns, connID)
	r.mu.Unlock()

	conn.Close()

	if r.turns != nil && meetingID != "" && participantID != "" {
		r.turns.ParticipantDisconnected(meetingID, participantID)
	}

	r.logger.Info("Connection disconnected", slog.String("conn_id", connID))
}

// Conn looks up a connection by ID
func (r *Router) Conn(connID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[connID]
	return conn, ok
}

// RoomMembers returns the sorted connection IDs in a room
func (r *Router) RoomMembers(roomName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.rooms[roomName]))
	for id := range r.rooms[roomName] {
		members = append(members, id)
	}
	sort.Strings(members)
	return members
}

// GetStats returns current table sizes
func (r *Router) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Connections: len(r.conns),
		Rooms:       len(r.rooms),
	}
}

// removeFromRoomLocked detaches a connection from its room and deletes the
// room once empty. Caller holds r.mu.
func (r *Router) removeFromRoomLocked(conn *Conn) {
	if conn.room == "" {
		return
	}

	if members, ok := r.rooms[conn.room]; ok {
		delete(members, conn.ID)
		if len(members) == 0 {
			delete(r.rooms, conn.room)
			r.logger.Debug("Room deleted", slog.String("room", conn.room))
		}
	}

	conn.room = ""
	conn.meetingID = ""
	conn.participantID = ""
}

// roomConnsLocked collects the open connections of a room, excluding one ID.
// Caller holds r.mu.
func (r *Router) roomConnsLocked(roomName, excludeID string) []*Conn {
	members, ok := r.rooms[roomName]
	if !ok {
		return nil
	}

	recipients := make([]*Conn, 0, len(members))
	for id := range members {
		if id == excludeID {
			continue
		}
		if conn, ok := r.conns[id]; ok {
			recipients = append(recipients, conn)
		}
	}
	return recipients
}

// deliver sends a payload to each recipient independently. One failed send
// never affects delivery to the others.
func (r *Router) deliver(recipients []*Conn, messageType int, payload []byte) *Delivery {
	delivery := &Delivery{Recipients: len(recipients)}

	for _, conn := range recipients {
		if err := conn.Send(messageType, payload); err != nil {
			delivery.Missed++
			r.logger.Debug("Delivery miss",
				slog.String("conn_id", conn.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		delivery.Delivered++
	}

	return delivery
}
