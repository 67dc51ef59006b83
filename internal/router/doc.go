// Package router owns live connections and room membership.
// It wraps each websocket channel with a buffered send queue and write pump,
// maintains the connection and room tables, and fans audio and event payloads
// out to the peers of a room with best-effort, at-most-once delivery.
package router
