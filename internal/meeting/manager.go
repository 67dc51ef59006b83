package meeting

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config contains meeting manager configuration
type Config struct {
	TurnConfidence  float64       // Confidence required for a speaking signal to open a turn
	EventLogCap     int           // Maximum conversation event log entries per meeting
	IdleTimeout     time.Duration // Inactivity after which a meeting is cleaned up
	CleanupInterval time.Duration // How often the cleanup loop scans meetings
}

// DefaultConfig returns the manager parameters used when the configuration
// does not override them
func DefaultConfig() Config {
	return Config{
		TurnConfidence:  0.7,
		EventLogCap:     200,
		IdleTimeout:     30 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Manager owns all meeting sessions. It is the only component that mutates
// Participant, Turn or Session state; everything else consumes copies.
type Manager struct {
	config Config
	logger *slog.Logger

	sessions map[string]*Session
	mu       sync.RWMutex

	// Called after a meeting is evicted, outside any session lock. Used to
	// release per-meeting state held elsewhere (VAD windows).
	cleanupHook func(meetingID string)

	done chan struct{}
	wg   sync.WaitGroup
}

// NewManager creates a meeting manager
func NewManager(config Config, logger *slog.Logger) (*Manager, error) {
	if config.TurnConfidence < 0 || config.TurnConfidence >= 1 {
		return nil, fmt.Errorf("turn confidence must be in [0, 1), got %f", config.TurnConfidence)
	}

	if config.EventLogCap < 1 {
		return nil, fmt.Errorf("event log cap must be at least 1, got %d", config.EventLogCap)
	}

	if config.IdleTimeout <= 0 {
		return nil, fmt.Errorf("idle timeout must be positive, got %v", config.IdleTimeout)
	}

	if config.CleanupInterval <= 0 {
		return nil, fmt.Errorf("cleanup interval must be positive, got %v", config.CleanupInterval)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		config:   config,
		logger:   logger,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}, nil
}

// SetCleanupHook registers a callback invoked with the meeting ID after a
// meeting is evicted. Must be called before Start.
func (m *Manager) SetCleanupHook(hook func(meetingID string)) {
	m.cleanupHook = hook
}

// Start launches the idle-meeting cleanup loop
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.cleanupLoop()
}

// Stop stops the cleanup loop and waits for it to finish
func (m *Manager) Stop() {
	close(m.done)
	m.wg.Wait()
}

// Initialize creates a meeting session with its starting participants
func (m *Manager) Initialize(meetingID string, participants []ParticipantInfo) error {
	if meetingID == "" {
		return fmt.Errorf("meeting id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[meetingID]; exists {
		return fmt.Errorf("%w: %s", ErrMeetingExists, meetingID)
	}

	m.sessions[meetingID] = newSession(meetingID, participants, m.config.EventLogCap, time.Now())

	m.logger.Info("Meeting initialized",
		slog.String("meeting_id", meetingID),
		slog.Int("participants", len(participants)),
	)

	return nil
}

// AddParticipant registers a participant with an active meeting. Re-adding a
// participant who left reactivates them with their statistics intact.
func (m *Manager) AddParticipant(meetingID string, info ParticipantInfo) error {
	if info.ID == "" {
		return fmt.Errorf("participant id cannot be empty")
	}

	s, err := m.session(meetingID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == SessionEnded {
		return fmt.Errorf("%w: %s", ErrMeetingEnded, meetingID)
	}

	s.addParticipantLocked(info, time.Now())
	s.lastActivity = time.Now()

	return nil
}

// RemoveParticipant marks a participant as left. If they hold the open turn
// it is force-closed first. The participant stays in the session so turn
// history and analytics remain complete.
func (m *Manager) RemoveParticipant(meetingID, participantID string) error {
	s, err := m.session(meetingID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.removeParticipantLocked(participantID, time.Now()); err != nil {
		return fmt.Errorf("%w: %s in meeting %s", err, participantID, meetingID)
	}

	return nil
}

// VoiceActivity applies one voice-activity signal to the meeting's turn
// state machine. Signals from unknown participants yield an ignored result,
// not an error.
func (m *Manager) VoiceActivity(meetingID, participantID string, isSpeaking bool, confidence float64) (*ActivityResult, error) {
	s, err := m.session(meetingID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == SessionEnded {
		return &ActivityResult{Ignored: true, IgnoredReason: "meeting ended"}, nil
	}

	return s.voiceActivityLocked(participantID, isSpeaking, confidence, m.config.TurnConfidence, time.Now()), nil
}

// ParticipantDisconnected handles a transport-level disconnect: when the
// participant holds the open turn it is force-closed. Best effort; unknown
// meetings or participants are a no-op because disconnects can race
// cleanup.
func (m *Manager) ParticipantDisconnected(meetingID, participantID string) {
	s, err := m.session(meetingID)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == SessionEnded {
		return
	}

	if s.activeSpeaker == participantID && s.currentTurn != nil {
		s.closeTurnLocked(time.Now())
		m.logger.Info("Force-closed turn on disconnect",
			slog.String("meeting_id", meetingID),
			slog.String("participant_id", participantID),
		)
	}
}

// End closes any open turn and marks the meeting ended. Ending an already
// ended meeting is a no-op.
func (m *Manager) End(meetingID string) error {
	s, err := m.session(meetingID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.endLocked(time.Now())

	m.logger.Info("Meeting ended",
		slog.String("meeting_id", meetingID),
		slog.Int("total_turns", s.totalTurns),
		slog.Duration("total_speaking_time", s.totalSpeakingTime),
	)

	return nil
}

// Status returns the current view of a meeting
func (m *Manager) Status(meetingID string) (*Status, error) {
	s, err := m.session(meetingID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.statusLocked(time.Now()), nil
}

// Snapshot returns a deep copy of a meeting's analytical state
func (m *Manager) Snapshot(meetingID string) (*Snapshot, error) {
	s, err := m.session(meetingID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked(), nil
}

// Events returns a copy of a meeting's conversation event log
func (m *Manager) Events(meetingID string) ([]Event, error) {
	s, err := m.session(meetingID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.eventsLocked(), nil
}

// MeetingIDs lists the meetings currently held, ended-but-unevicted
// included
func (m *Manager) MeetingIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ActiveMeetings returns the number of meetings currently held
func (m *Manager) ActiveMeetings() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// session looks up a meeting session
func (m *Manager) session(meetingID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[meetingID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrMeetingNotFound, meetingID)
	}
	return s, nil
}

// cleanupLoop periodically evicts meetings idle past the configured timeout.
// Active idle meetings are ended first so an open turn is closed and
// recorded before eviction.
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.cleanupIdle()
		}
	}
}

func (m *Manager) cleanupIdle() {
	now := time.Now()

	m.mu.Lock()
	var evicted []string
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastActivity) > m.config.IdleTimeout
		if idle {
			s.endLocked(now)
			delete(m.sessions, id)
			evicted = append(evicted, id)
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	for _, id := range evicted {
		m.logger.Info("Evicted idle meeting", slog.String("meeting_id", id))
		if m.cleanupHook != nil {
			m.cleanupHook(id)
		}
	}
}
