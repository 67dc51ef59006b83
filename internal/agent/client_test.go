package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
		MaxRetries:    2,
		MaxConcurrent: 4,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for empty base URL")
	}

	c, err := NewClient(Config{BaseURL: "http://localhost:9999"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.config.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout, got %v", c.config.Timeout)
	}
	if c.config.MaxConcurrent != 10 {
		t.Errorf("Expected default concurrency, got %d", c.config.MaxConcurrent)
	}
}

func TestSpeechToText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech-to-text" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("Expected multipart request, got %s", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("Expected audio file field: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello world","confidence":0.93}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	text, err := c.SpeechToText(context.Background(), []byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("SpeechToText failed: %v", err)
	}
	if text != "hello world" {
		t.Errorf("Expected transcript, got %q", text)
	}

	if _, err := c.SpeechToText(context.Background(), nil); err == nil {
		t.Error("Expected error for empty audio")
	}
}

func TestGenerateResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-response" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"a reply"}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	reply, err := c.GenerateResponse(context.Background(), "hello", []string{"earlier"})
	if err != nil {
		t.Fatalf("GenerateResponse failed: %v", err)
	}
	if reply != "a reply" {
		t.Errorf("Expected reply, got %q", reply)
	}

	if _, err := c.GenerateResponse(context.Background(), "", nil); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestTextToSpeech(t *testing.T) {
	audio := []byte{0x52, 0x49, 0x46, 0x46}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write(audio)
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	got, err := c.TextToSpeech(context.Background(), "say this")
	if err != nil {
		t.Fatalf("TextToSpeech failed: %v", err)
	}
	if string(got) != string(audio) {
		t.Errorf("Expected raw audio bytes back, got %v", got)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"text":"recovered"}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	reply, err := c.GenerateResponse(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Expected recovery after retries, got %v", err)
	}
	if reply != "recovered" {
		t.Errorf("Expected recovered reply, got %q", reply)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}

	stats := c.GetStats()
	if stats.TotalRetries != 2 {
		t.Errorf("Expected 2 retries recorded, got %d", stats.TotalRetries)
	}
	if stats.SuccessRequests != 1 || stats.FailedRequests != 0 {
		t.Errorf("Expected 1 success and 0 failures, got %+v", stats)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	if _, err := c.GenerateResponse(context.Background(), "hello", nil); err == nil {
		t.Fatal("Expected error for client error status")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected single attempt for non-retryable error, got %d", calls.Load())
	}

	stats := c.GetStats()
	if stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"server error", errString("HTTP error 503: unavailable"), true},
		{"rate limited", errString("HTTP error 429: slow down"), true},
		{"connection refused", errString("dial tcp: connection refused"), true},
		{"bad request", errString("HTTP error 400: bad input"), false},
		{"not found", errString("HTTP error 404: no such route"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.retryable {
				t.Errorf("Expected retryable=%v, got %v", tt.retryable, got)
			}
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestDemoProvider(t *testing.T) {
	d := NewDemo(0)
	ctx := context.Background()

	text, err := d.SpeechToText(ctx, []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("SpeechToText failed: %v", err)
	}
	if text == "" {
		t.Error("Expected non-empty demo transcript")
	}

	reply, err := d.GenerateResponse(ctx, "hello", []string{"a", "b"})
	if err != nil {
		t.Fatalf("GenerateResponse failed: %v", err)
	}
	if !strings.Contains(reply, "hello") {
		t.Errorf("Expected echo of input, got %q", reply)
	}

	audio, err := d.TextToSpeech(ctx, "hello")
	if err != nil {
		t.Fatalf("TextToSpeech failed: %v", err)
	}
	if len(audio) == 0 {
		t.Error("Expected non-empty demo audio")
	}

	if _, err := d.SpeechToText(ctx, nil); err == nil {
		t.Error("Expected error for empty audio")
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestDemoProviderHonorsContext(t *testing.T) {
	d := NewDemo(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := d.SpeechToText(ctx, []byte{0x01}); err == nil {
		t.Error("Expected context deadline error")
	}
}
