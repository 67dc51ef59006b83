package meeting

import "time"

// ParticipantStatus marks whether a participant is currently in the meeting
type ParticipantStatus string

const (
	ParticipantActive ParticipantStatus = "active"
	ParticipantLeft   ParticipantStatus = "left"
)

// SessionStatus marks the meeting lifecycle state
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// Participant carries per-participant identity and accumulated speaking
// statistics. Participants are retained after leaving, marked left, so turn
// history and analytics stay complete.
type Participant struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Role        string            `json:"role,omitempty"`
	Status      ParticipantStatus `json:"status"`
	JoinedAt    time.Time         `json:"joined_at"`
	LeftAt      time.Time         `json:"left_at"`

	SpeakingTime    time.Duration `json:"speaking_time"`
	TurnCount       int           `json:"turn_count"`
	AvgTurnDuration time.Duration `json:"avg_turn_duration"`
	LastSpokeAt     time.Time     `json:"last_spoke_at"`
	LastActivity    time.Time     `json:"last_activity"`
}

// Turn is a contiguous interval during which one participant is classified
// as speaking. EndedAt stays zero while the turn is open and never changes
// once set.
type Turn struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	Confidence    float64   `json:"confidence"`
}

// Open reports whether the turn has not ended yet
func (t *Turn) Open() bool {
	return t.EndedAt.IsZero()
}

// Duration returns the turn length, zero while the turn is open
func (t *Turn) Duration() time.Duration {
	if t.Open() {
		return 0
	}
	return t.EndedAt.Sub(t.StartedAt)
}

// EventType identifies a conversation event log entry
type EventType string

const (
	EventMeetingStarted    EventType = "meeting-started"
	EventMeetingEnded      EventType = "meeting-ended"
	EventParticipantJoined EventType = "participant-joined"
	EventParticipantLeft   EventType = "participant-left"
	EventTurnStarted       EventType = "turn-started"
	EventTurnEnded         EventType = "turn-ended"
)

// Event is one entry of the bounded conversation event log. The log drops
// its oldest entries silently once it exceeds the configured cap.
type Event struct {
	Type          EventType      `json:"type"`
	ParticipantID string         `json:"participant_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// ActivityResult reports how a voice-activity signal was applied. Signals
// from unknown or left participants are ignored rather than failing the
// request.
type ActivityResult struct {
	Ignored            bool          `json:"ignored"`
	IgnoredReason      string        `json:"ignored_reason,omitempty"`
	TurnStarted        bool          `json:"turn_started"`
	TurnClosed         bool          `json:"turn_closed"`
	ClosedTurnDuration time.Duration `json:"closed_turn_duration,omitempty"`
	ActiveSpeaker      string        `json:"active_speaker,omitempty"`
}

// Status is the on-demand view of a meeting returned by status queries.
// ActiveParticipants excludes participants who left; their turns remain in
// the history.
type Status struct {
	MeetingID          string        `json:"meeting_id"`
	Status             SessionStatus `json:"status"`
	StartedAt          time.Time     `json:"started_at"`
	EndedAt            time.Time     `json:"ended_at"`
	Duration           time.Duration `json:"duration"`
	ActiveParticipants []Participant `json:"active_participants"`
	ActiveSpeaker      string        `json:"active_speaker,omitempty"`
	CurrentTurn        *Turn         `json:"current_turn,omitempty"`
	TotalTurns         int           `json:"total_turns"`
	TotalSpeakingTime  time.Duration `json:"total_speaking_time"`
	EventCount         int           `json:"event_count"`
}

// Snapshot is a deep copy of a meeting's analytical state. The analytics
// engine works on snapshots only and never mutates session state.
type Snapshot struct {
	MeetingID         string
	Status            SessionStatus
	StartedAt         time.Time
	EndedAt           time.Time
	Participants      map[string]Participant
	TurnHistory       []Turn
	TotalTurns        int
	TotalSpeakingTime time.Duration
}

// ParticipantInfo is the inbound identity used when initializing a meeting
// or adding a participant
type ParticipantInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role,omitempty"`
}
