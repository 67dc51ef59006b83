package meeting

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session owns the full state of one meeting: participants, the current
// turn, the append-only turn history and the bounded event log. Every
// mutation goes through the session mutex, so concurrent voice-activity
// reports for one meeting apply as a strict sequence and the single-open-turn
// invariant holds.
type Session struct {
	id        string
	status    SessionStatus
	startedAt time.Time
	endedAt   time.Time

	participants  map[string]*Participant
	activeSpeaker string // Empty iff currentTurn is nil
	currentTurn   *Turn
	turnHistory   []Turn
	events        []Event

	totalTurns        int
	totalSpeakingTime time.Duration
	lastActivity      time.Time

	eventCap int

	mu sync.Mutex
}

func newSession(meetingID string, participants []ParticipantInfo, eventCap int, now time.Time) *Session {
	s := &Session{
		id:           meetingID,
		status:       SessionActive,
		startedAt:    now,
		participants: make(map[string]*Participant, len(participants)),
		lastActivity: now,
		eventCap:     eventCap,
	}

	for _, info := range participants {
		s.addParticipantLocked(info, now)
	}

	s.appendEventLocked(EventMeetingStarted, "", map[string]any{
		"participant_count": len(s.participants),
	}, now)

	return s
}

// addParticipantLocked registers or reactivates a participant. A returning
// participant keeps their accumulated statistics.
func (s *Session) addParticipantLocked(info ParticipantInfo, now time.Time) *Participant {
	if p, exists := s.participants[info.ID]; exists {
		if p.Status == ParticipantLeft {
			p.Status = ParticipantActive
			p.LeftAt = time.Time{}
			p.LastActivity = now
			s.appendEventLocked(EventParticipantJoined, p.ID, map[string]any{"rejoined": true}, now)
		}
		return p
	}

	p := &Participant{
		ID:           info.ID,
		DisplayName:  info.DisplayName,
		Role:         info.Role,
		Status:       ParticipantActive,
		JoinedAt:     now,
		LastActivity: now,
	}
	s.participants[info.ID] = p
	s.appendEventLocked(EventParticipantJoined, p.ID, nil, now)

	return p
}

// voiceActivityLocked applies one voice-activity signal. A speaking signal
// above the confidence threshold opens a turn, force-closing any turn held
// by a different participant first. A non-speaking signal from the active
// speaker closes the current turn.
func (s *Session) voiceActivityLocked(participantID string, isSpeaking bool, confidence float64, threshold float64, now time.Time) *ActivityResult {
	s.lastActivity = now

	p, exists := s.participants[participantID]
	if !exists {
		return &ActivityResult{Ignored: true, IgnoredReason: "unknown participant", ActiveSpeaker: s.activeSpeaker}
	}
	if p.Status == ParticipantLeft {
		return &ActivityResult{Ignored: true, IgnoredReason: "participant left", ActiveSpeaker: s.activeSpeaker}
	}

	p.LastActivity = now
	result := &ActivityResult{}

	switch {
	case isSpeaking && confidence > threshold:
		if s.currentTurn != nil && s.currentTurn.ParticipantID == participantID {
			break // Turn continues.
		}
		if s.currentTurn != nil {
			result.ClosedTurnDuration = s.closeTurnLocked(now)
			result.TurnClosed = true
		}
		s.openTurnLocked(participantID, confidence, now)
		result.TurnStarted = true

	case !isSpeaking:
		if s.currentTurn != nil && s.activeSpeaker == participantID {
			result.ClosedTurnDuration = s.closeTurnLocked(now)
			result.TurnClosed = true
		}
	}

	result.ActiveSpeaker = s.activeSpeaker
	return result
}

// openTurnLocked starts a turn for the participant. Callers must have closed
// any prior turn already.
func (s *Session) openTurnLocked(participantID string, confidence float64, now time.Time) {
	turn := &Turn{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		StartedAt:     now,
		Confidence:    confidence,
	}

	s.currentTurn = turn
	s.activeSpeaker = participantID
	s.participants[participantID].TurnCount++
	s.totalTurns++

	s.appendEventLocked(EventTurnStarted, participantID, map[string]any{
		"turn_id":    turn.ID,
		"confidence": confidence,
	}, now)
}

// closeTurnLocked ends the current turn, records it in the history and folds
// its duration into the speaker's and meeting's statistics. It returns the
// closed turn's duration.
func (s *Session) closeTurnLocked(now time.Time) time.Duration {
	turn := s.currentTurn
	turn.EndedAt = now
	duration := turn.Duration()

	s.turnHistory = append(s.turnHistory, *turn)

	p := s.participants[turn.ParticipantID]
	p.SpeakingTime += duration
	p.LastSpokeAt = now
	if p.TurnCount > 0 {
		p.AvgTurnDuration = p.SpeakingTime / time.Duration(p.TurnCount)
	}

	s.totalSpeakingTime += duration
	s.activeSpeaker = ""
	s.currentTurn = nil

	s.appendEventLocked(EventTurnEnded, turn.ParticipantID, map[string]any{
		"turn_id":     turn.ID,
		"duration_ms": duration.Milliseconds(),
	}, now)

	return duration
}

// removeParticipantLocked marks a participant as left, force-closing their
// turn first when they are the active speaker
func (s *Session) removeParticipantLocked(participantID string, now time.Time) error {
	p, exists := s.participants[participantID]
	if !exists {
		return ErrParticipantNotFound
	}

	if s.activeSpeaker == participantID && s.currentTurn != nil {
		s.closeTurnLocked(now)
	}

	p.Status = ParticipantLeft
	p.LeftAt = now
	s.lastActivity = now
	s.appendEventLocked(EventParticipantLeft, participantID, nil, now)

	return nil
}

// endLocked force-closes any open turn, then marks the meeting ended
func (s *Session) endLocked(now time.Time) {
	if s.status == SessionEnded {
		return
	}

	if s.currentTurn != nil {
		s.closeTurnLocked(now)
	}

	s.status = SessionEnded
	s.endedAt = now
	s.lastActivity = now
	s.appendEventLocked(EventMeetingEnded, "", map[string]any{
		"total_turns": s.totalTurns,
	}, now)
}

// appendEventLocked records a conversation event, silently dropping the
// oldest entry once the log exceeds its cap
func (s *Session) appendEventLocked(eventType EventType, participantID string, payload map[string]any, now time.Time) {
	if len(s.events) >= s.eventCap {
		copy(s.events, s.events[1:])
		s.events = s.events[:s.eventCap-1]
	}

	s.events = append(s.events, Event{
		Type:          eventType,
		ParticipantID: participantID,
		Payload:       payload,
		Timestamp:     now,
	})
}

// statusLocked builds the status view of the session
func (s *Session) statusLocked(now time.Time) *Status {
	active := make([]Participant, 0, len(s.participants))
	for _, p := range s.participants {
		if p.Status == ParticipantActive {
			active = append(active, *p)
		}
	}

	duration := now.Sub(s.startedAt)
	if s.status == SessionEnded {
		duration = s.endedAt.Sub(s.startedAt)
	}

	var current *Turn
	if s.currentTurn != nil {
		c := *s.currentTurn
		current = &c
	}

	return &Status{
		MeetingID:          s.id,
		Status:             s.status,
		StartedAt:          s.startedAt,
		EndedAt:            s.endedAt,
		Duration:           duration,
		ActiveParticipants: active,
		ActiveSpeaker:      s.activeSpeaker,
		CurrentTurn:        current,
		TotalTurns:         s.totalTurns,
		TotalSpeakingTime:  s.totalSpeakingTime,
		EventCount:         len(s.events),
	}
}

// snapshotLocked deep-copies the analytical state of the session
func (s *Session) snapshotLocked() *Snapshot {
	participants := make(map[string]Participant, len(s.participants))
	for id, p := range s.participants {
		participants[id] = *p
	}

	history := make([]Turn, len(s.turnHistory))
	copy(history, s.turnHistory)

	return &Snapshot{
		MeetingID:         s.id,
		Status:            s.status,
		StartedAt:         s.startedAt,
		EndedAt:           s.endedAt,
		Participants:      participants,
		TurnHistory:       history,
		TotalTurns:        s.totalTurns,
		TotalSpeakingTime: s.totalSpeakingTime,
	}
}

// eventsLocked copies the current event log
func (s *Session) eventsLocked() []Event {
	events := make([]Event, len(s.events))
	copy(events, s.events)
	return events
}
