// Package meeting provides the turn-taking conversation state machine and
// meeting session lifecycle. It derives discrete speaking turns from
// voice-activity signals, accumulates per-participant statistics and keeps a
// bounded conversation event log. All mutations of one meeting are
// serialized; at most one turn is open per meeting at any instant.
package meeting
