package analytics

import (
	"testing"
	"time"

	"github.com/Shital16-hub/teams/internal/meeting"
)

func testSnapshot(speakingTimes map[string]time.Duration, turnOrder []string) *meeting.Snapshot {
	start := time.Now().Add(-10 * time.Minute)
	end := start.Add(10 * time.Minute)

	snap := &meeting.Snapshot{
		MeetingID:    "m1",
		Status:       meeting.SessionEnded,
		StartedAt:    start,
		EndedAt:      end,
		Participants: make(map[string]meeting.Participant),
	}

	turnCounts := make(map[string]int)
	for _, pid := range turnOrder {
		turnCounts[pid]++
	}

	for pid, st := range speakingTimes {
		snap.Participants[pid] = meeting.Participant{
			ID:           pid,
			DisplayName:  "Participant " + pid,
			Status:       meeting.ParticipantActive,
			JoinedAt:     start,
			SpeakingTime: st,
			TurnCount:    turnCounts[pid],
		}
		snap.TotalSpeakingTime += st
	}

	at := start
	for _, pid := range turnOrder {
		snap.TurnHistory = append(snap.TurnHistory, meeting.Turn{
			ID:            pid + "-turn",
			ParticipantID: pid,
			StartedAt:     at,
			EndedAt:       at.Add(10 * time.Second),
		})
		at = at.Add(15 * time.Second)
	}
	snap.TotalTurns = len(turnOrder)

	return snap
}

func TestGenerateNilSnapshot(t *testing.T) {
	if _, err := Generate(nil); err == nil {
		t.Error("Expected error for nil snapshot")
	}
}

func TestSpeakingDistribution(t *testing.T) {
	tests := []struct {
		name     string
		times    map[string]time.Duration
		expected Distribution
	}{
		{
			name:     "dominated above 70 percent",
			times:    map[string]time.Duration{"p1": 8 * time.Minute, "p2": 2 * time.Minute},
			expected: DistributionDominated,
		},
		{
			name:     "unbalanced above 50 percent",
			times:    map[string]time.Duration{"p1": 6 * time.Minute, "p2": 4 * time.Minute},
			expected: DistributionUnbalanced,
		},
		{
			name:     "balanced at even split",
			times:    map[string]time.Duration{"p1": 5 * time.Minute, "p2": 5 * time.Minute},
			expected: DistributionBalanced,
		},
		{
			name:     "exactly 70 percent is unbalanced not dominated",
			times:    map[string]time.Duration{"p1": 7 * time.Minute, "p2": 3 * time.Minute},
			expected: DistributionUnbalanced,
		},
		{
			name:     "no speaking time is balanced",
			times:    map[string]time.Duration{"p1": 0, "p2": 0},
			expected: DistributionBalanced,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Generate(testSnapshot(tt.times, []string{"p1", "p2"}))
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if report.Distribution != tt.expected {
				t.Errorf("Expected distribution %s, got %s", tt.expected, report.Distribution)
			}
		})
	}
}

func TestTurnTakingPattern(t *testing.T) {
	tests := []struct {
		name        string
		turnOrder   []string
		expectedRun int
		expected    Pattern
	}{
		{"alternating is interactive", []string{"p1", "p2", "p1", "p2", "p1"}, 1, PatternInteractive},
		{"run of three is interactive", []string{"p1", "p1", "p1", "p2"}, 3, PatternInteractive},
		{"run of four is monologue heavy", []string{"p2", "p1", "p1", "p1", "p1"}, 4, PatternMonologueHeavy},
		{"no turns is interactive", nil, 0, PatternInteractive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			times := map[string]time.Duration{"p1": time.Minute, "p2": time.Minute}
			report, err := Generate(testSnapshot(times, tt.turnOrder))
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if report.LongestTurnRun != tt.expectedRun {
				t.Errorf("Expected longest run %d, got %d", tt.expectedRun, report.LongestTurnRun)
			}
			if report.Pattern != tt.expected {
				t.Errorf("Expected pattern %s, got %s", tt.expected, report.Pattern)
			}
		})
	}
}

func TestParticipationBalance(t *testing.T) {
	tests := []struct {
		name      string
		times     map[string]time.Duration
		turnOrder []string
		expected  Balance
	}{
		{
			name:      "all spoke is highly inclusive",
			times:     map[string]time.Duration{"p1": time.Minute, "p2": time.Minute},
			turnOrder: []string{"p1", "p2"},
			expected:  BalanceHighlyInclusive,
		},
		{
			name:      "two of three is moderately inclusive",
			times:     map[string]time.Duration{"p1": time.Minute, "p2": time.Minute, "p3": 0},
			turnOrder: []string{"p1", "p2"},
			expected:  BalanceModeratelyInclusive,
		},
		{
			name:      "one of three is low participation",
			times:     map[string]time.Duration{"p1": time.Minute, "p2": 0, "p3": 0},
			turnOrder: []string{"p1"},
			expected:  BalanceLowParticipation,
		},
		{
			name:      "nobody spoke is low participation",
			times:     map[string]time.Duration{"p1": 0, "p2": 0},
			turnOrder: nil,
			expected:  BalanceLowParticipation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Generate(testSnapshot(tt.times, tt.turnOrder))
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if report.Balance != tt.expected {
				t.Errorf("Expected balance %s, got %s", tt.expected, report.Balance)
			}
		})
	}
}

func TestLeftParticipantsExcludedFromBalance(t *testing.T) {
	snap := testSnapshot(map[string]time.Duration{"p1": time.Minute, "p2": time.Minute}, []string{"p1", "p2"})

	// p3 joined, never spoke, then left. Balance only counts active participants.
	p3 := meeting.Participant{
		ID:          "p3",
		DisplayName: "Participant p3",
		Status:      meeting.ParticipantLeft,
		JoinedAt:    snap.StartedAt,
		LeftAt:      snap.StartedAt.Add(time.Minute),
	}
	snap.Participants["p3"] = p3

	report, err := Generate(snap)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.Balance != BalanceHighlyInclusive {
		t.Errorf("Expected left participant excluded from balance, got %s", report.Balance)
	}
}

func TestParticipantStatsSortedAndScored(t *testing.T) {
	times := map[string]time.Duration{
		"p1": 2 * time.Minute,
		"p2": 6 * time.Minute,
		"p3": 2 * time.Minute,
	}
	report, err := Generate(testSnapshot(times, []string{"p2", "p1", "p2", "p3", "p2"}))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.Participants) != 3 {
		t.Fatalf("Expected 3 participant stats, got %d", len(report.Participants))
	}

	// Sorted by speaking time descending, ID as tiebreaker.
	if report.Participants[0].ParticipantID != "p2" {
		t.Errorf("Expected p2 first, got %s", report.Participants[0].ParticipantID)
	}
	if report.Participants[1].ParticipantID != "p1" || report.Participants[2].ParticipantID != "p3" {
		t.Errorf("Expected tie broken by ID, got %s then %s",
			report.Participants[1].ParticipantID, report.Participants[2].ParticipantID)
	}

	top := report.Participants[0]
	if top.SpeakingShare != 60 {
		t.Errorf("Expected 60%% speaking share, got %.1f", top.SpeakingShare)
	}
	if top.SpeakingPercent != 60 {
		t.Errorf("Expected 60%% of meeting duration, got %.1f", top.SpeakingPercent)
	}

	// p2: speaking score capped at 100 (60% share vs 33.3% expected),
	// turn score 30 (3 turns), presence 100. 0.4*100 + 0.3*30 + 0.3*100 = 79.
	if top.ParticipationScore < 78.9 || top.ParticipationScore > 79.1 {
		t.Errorf("Expected participation score 79, got %.2f", top.ParticipationScore)
	}

	for _, s := range report.Participants {
		if s.ParticipationScore < 0 || s.ParticipationScore > 100 {
			t.Errorf("Participant %s score %.2f out of range", s.ParticipantID, s.ParticipationScore)
		}
	}
}

func TestRecommendationsDeterministic(t *testing.T) {
	times := map[string]time.Duration{"p1": 9 * time.Minute, "p2": 0, "p3": 0}
	snap := testSnapshot(times, []string{"p1", "p1", "p1", "p1", "p1"})

	first, err := Generate(snap)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	second, err := Generate(snap)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(first.Recommendations) != len(second.Recommendations) {
		t.Fatal("Expected identical recommendations for identical input")
	}
	for i := range first.Recommendations {
		if first.Recommendations[i] != second.Recommendations[i] {
			t.Errorf("Recommendation %d differs between runs", i)
		}
	}

	// Dominated + monologue-heavy + low-participation: one per category.
	categories := make(map[string]string)
	for _, r := range first.Recommendations {
		categories[r.Category] = r.Priority
	}
	if categories["speaking-balance"] != PriorityHigh {
		t.Error("Expected high-priority speaking-balance recommendation for dominated meeting")
	}
	if categories["turn-taking"] != PriorityMedium {
		t.Error("Expected medium-priority turn-taking recommendation for monologue-heavy meeting")
	}
	if categories["inclusion"] != PriorityHigh {
		t.Error("Expected high-priority inclusion recommendation for low participation")
	}
}

func TestHealthyMeetingGetsPositiveRecommendation(t *testing.T) {
	times := map[string]time.Duration{"p1": 5 * time.Minute, "p2": 5 * time.Minute}
	report, err := Generate(testSnapshot(times, []string{"p1", "p2", "p1", "p2"}))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.Recommendations) != 1 {
		t.Fatalf("Expected single recommendation, got %d", len(report.Recommendations))
	}
	if report.Recommendations[0].Category != "general" || report.Recommendations[0].Priority != PriorityLow {
		t.Errorf("Expected low-priority general recommendation, got %+v", report.Recommendations[0])
	}
}

func TestOngoingMeetingUsesNow(t *testing.T) {
	snap := testSnapshot(map[string]time.Duration{"p1": time.Minute}, []string{"p1"})
	snap.Status = meeting.SessionActive
	snap.EndedAt = time.Time{}

	report, err := Generate(snap)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.MeetingDuration <= 0 {
		t.Error("Expected positive duration for ongoing meeting")
	}
}
