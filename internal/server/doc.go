// Package server implements the websocket protocol server and HTTP API endpoints.
// The websocket side speaks the room/audio message protocol over persistent
// connections; the HTTP side provides monitoring, meeting status, analytics
// and Prometheus metrics.
package server
