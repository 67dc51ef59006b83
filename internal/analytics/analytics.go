package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/Shital16-hub/teams/internal/meeting"
)

// Distribution classifies how speaking time is spread across participants
type Distribution string

const (
	DistributionDominated  Distribution = "dominated"
	DistributionUnbalanced Distribution = "unbalanced"
	DistributionBalanced   Distribution = "balanced"
)

// Pattern classifies the turn-taking rhythm of the conversation
type Pattern string

const (
	PatternMonologueHeavy Pattern = "monologue-heavy"
	PatternInteractive    Pattern = "interactive"
)

// Balance classifies what fraction of active participants took at least one turn
type Balance string

const (
	BalanceHighlyInclusive     Balance = "highly-inclusive"
	BalanceModeratelyInclusive Balance = "moderately-inclusive"
	BalanceLowParticipation    Balance = "low-participation"
)

// Recommendation priority levels
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ParticipantStats carries derived per-participant metrics
type ParticipantStats struct {
	ParticipantID      string        `json:"participant_id"`
	DisplayName        string        `json:"display_name"`
	SpeakingTime       time.Duration `json:"speaking_time"`
	SpeakingPercent    float64       `json:"speaking_percent"`
	SpeakingShare      float64       `json:"speaking_share"`
	TurnCount          int           `json:"turn_count"`
	AvgTurnDuration    time.Duration `json:"avg_turn_duration"`
	ParticipationScore float64       `json:"participation_score"`
}

// Recommendation is a deterministic suggestion derived from the classifications
type Recommendation struct {
	Priority string `json:"priority"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Report is the full analytics output for one meeting
type Report struct {
	MeetingID         string             `json:"meeting_id"`
	GeneratedAt       time.Time          `json:"generated_at"`
	MeetingDuration   time.Duration      `json:"meeting_duration"`
	TotalTurns        int                `json:"total_turns"`
	TotalSpeakingTime time.Duration      `json:"total_speaking_time"`
	LongestTurnRun    int                `json:"longest_turn_run"`
	Participants      []ParticipantStats `json:"participants"`
	Distribution      Distribution       `json:"distribution"`
	Pattern           Pattern            `json:"pattern"`
	Balance           Balance            `json:"balance"`
	Recommendations   []Recommendation   `json:"recommendations"`
}

// Generate computes a full analytics report from a meeting snapshot. The
// snapshot is read only; an ongoing meeting is measured up to time.Now().
func Generate(snap *meeting.Snapshot) (*Report, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot cannot be nil")
	}

	now := time.Now()
	endedAt := snap.EndedAt
	if endedAt.IsZero() {
		endedAt = now
	}

	meetingDuration := endedAt.Sub(snap.StartedAt)
	if meetingDuration < 0 {
		meetingDuration = 0
	}

	activeCount := 0
	for _, p := range snap.Participants {
		if p.Status == meeting.ParticipantActive {
			activeCount++
		}
	}

	stats := participantStats(snap, meetingDuration, activeCount)
	longestRun := longestTurnRun(snap.TurnHistory)
	distribution := classifyDistribution(stats)
	pattern := classifyPattern(longestRun)
	balance := classifyBalance(snap, activeCount)

	return &Report{
		MeetingID:         snap.MeetingID,
		GeneratedAt:       now,
		MeetingDuration:   meetingDuration,
		TotalTurns:        snap.TotalTurns,
		TotalSpeakingTime: snap.TotalSpeakingTime,
		LongestTurnRun:    longestRun,
		Participants:      stats,
		Distribution:      distribution,
		Pattern:           pattern,
		Balance:           balance,
		Recommendations:   recommendations(distribution, pattern, balance),
	}, nil
}

// participantStats derives per-participant metrics, sorted by speaking time
// descending with participant ID as the tiebreaker.
func participantStats(snap *meeting.Snapshot, meetingDuration time.Duration, activeCount int) []ParticipantStats {
	stats := make([]ParticipantStats, 0, len(snap.Participants))

	for _, p := range snap.Participants {
		s := ParticipantStats{
			ParticipantID:   p.ID,
			DisplayName:     p.DisplayName,
			SpeakingTime:    p.SpeakingTime,
			TurnCount:       p.TurnCount,
			AvgTurnDuration: p.AvgTurnDuration,
		}

		if meetingDuration > 0 {
			s.SpeakingPercent = float64(p.SpeakingTime) / float64(meetingDuration) * 100
		}
		if snap.TotalSpeakingTime > 0 {
			s.SpeakingShare = float64(p.SpeakingTime) / float64(snap.TotalSpeakingTime) * 100
		}

		s.ParticipationScore = participationScore(p, s.SpeakingShare, meetingDuration, activeCount)
		stats = append(stats, s)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].SpeakingTime != stats[j].SpeakingTime {
			return stats[i].SpeakingTime > stats[j].SpeakingTime
		}
		return stats[i].ParticipantID < stats[j].ParticipantID
	})

	return stats
}

// participationScore is a weighted composite of three sub-scores, each
// clamped to 100. Speaking is measured against an equal share of the total
// speaking time, turns count 10 points each, and presence is the fraction of
// the meeting the participant was in the room.
func participationScore(p meeting.Participant, speakingShare float64, meetingDuration time.Duration, activeCount int) float64 {
	var speakingScore float64
	if activeCount > 0 {
		expectedShare := 100.0 / float64(activeCount)
		speakingScore = clamp100(speakingShare / expectedShare * 100)
	}

	turnScore := clamp100(float64(p.TurnCount) * 10)

	presenceScore := 100.0
	if meetingDuration > 0 && p.Status == meeting.ParticipantLeft && !p.LeftAt.IsZero() {
		present := p.LeftAt.Sub(p.JoinedAt)
		if present < 0 {
			present = 0
		}
		presenceScore = clamp100(float64(present) / float64(meetingDuration) * 100)
	}

	return 0.4*speakingScore + 0.3*turnScore + 0.3*presenceScore
}

// classifyDistribution applies the top-speaker share thresholds: above 70%
// of total speaking time is dominated, above 50% is unbalanced.
func classifyDistribution(stats []ParticipantStats) Distribution {
	var topShare float64
	for _, s := range stats {
		if s.SpeakingShare > topShare {
			topShare = s.SpeakingShare
		}
	}

	switch {
	case topShare > 70:
		return DistributionDominated
	case topShare > 50:
		return DistributionUnbalanced
	default:
		return DistributionBalanced
	}
}

// longestTurnRun counts the longest streak of consecutive turns taken by the
// same participant.
func longestTurnRun(history []meeting.Turn) int {
	longest := 0
	run := 0
	last := ""

	for _, turn := range history {
		if turn.ParticipantID == last {
			run++
		} else {
			run = 1
			last = turn.ParticipantID
		}
		if run > longest {
			longest = run
		}
	}

	return longest
}

func classifyPattern(longestRun int) Pattern {
	if longestRun > 3 {
		return PatternMonologueHeavy
	}
	return PatternInteractive
}

// classifyBalance looks at the fraction of active participants who took at
// least one turn.
func classifyBalance(snap *meeting.Snapshot, activeCount int) Balance {
	if activeCount == 0 {
		return BalanceLowParticipation
	}

	spoke := 0
	for _, p := range snap.Participants {
		if p.Status == meeting.ParticipantActive && p.TurnCount > 0 {
			spoke++
		}
	}

	fraction := float64(spoke) / float64(activeCount)
	switch {
	case fraction > 0.8:
		return BalanceHighlyInclusive
	case fraction > 0.6:
		return BalanceModeratelyInclusive
	default:
		return BalanceLowParticipation
	}
}

// recommendations maps the three classifications to a fixed set of
// suggestions. The same inputs always produce the same output in the same
// order.
func recommendations(distribution Distribution, pattern Pattern, balance Balance) []Recommendation {
	var recs []Recommendation

	switch distribution {
	case DistributionDominated:
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Category: "speaking-balance",
			Message:  "One participant dominates the conversation. Invite others to contribute directly.",
		})
	case DistributionUnbalanced:
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Category: "speaking-balance",
			Message:  "Speaking time is unevenly distributed. Consider round-robin check-ins.",
		})
	}

	if pattern == PatternMonologueHeavy {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Category: "turn-taking",
			Message:  "Long uninterrupted speaking runs detected. Break topics into shorter exchanges.",
		})
	}

	switch balance {
	case BalanceLowParticipation:
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Category: "inclusion",
			Message:  "Most participants have not spoken. Ask quiet participants for their input.",
		})
	case BalanceModeratelyInclusive:
		recs = append(recs, Recommendation{
			Priority: PriorityLow,
			Category: "inclusion",
			Message:  "Some participants have not spoken yet. Leave room for them to join in.",
		})
	}

	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Priority: PriorityLow,
			Category: "general",
			Message:  "Conversation is balanced and inclusive. Keep the current format.",
		})
	}

	return recs
}

func clamp100(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}
