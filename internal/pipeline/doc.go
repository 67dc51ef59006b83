// Package pipeline implements the per-frame audio intake path.
// Each inbound payload is decoded, classified by VAD, applied to the
// turn-taking state machine, enhanced when it carries speech, fanned out to
// room peers and queued for the AI agent, all within a configurable latency
// target.
package pipeline
