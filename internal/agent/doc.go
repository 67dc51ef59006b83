// Package agent is the boundary client for the AI voice backend.
// It exposes speech-to-text, response generation and text-to-speech as an
// asynchronous, fallible Provider interface with an HTTP implementation
// featuring retries, concurrency limiting and statistics, plus a demo
// fallback used when the backend is unavailable or disabled.
package agent
