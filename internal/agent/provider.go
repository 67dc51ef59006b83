package agent

import (
	"context"
	"fmt"
	"time"
)

// Provider is the AI collaborator consumed by the pipeline. All calls are
// boundary calls: each carries its own context timeout and must never be
// awaited while holding meeting-state serialization.
type Provider interface {
	SpeechToText(ctx context.Context, audio []byte) (string, error)
	GenerateResponse(ctx context.Context, text string, history []string) (string, error)
	TextToSpeech(ctx context.Context, text string) ([]byte, error)
	Close() error
}

// Demo is the fallback provider used when no backend is configured or the
// real backend is unavailable. Responses are canned but deterministic, so
// the rest of the system can run end to end without external services.
type Demo struct {
	// Delay simulates backend latency. Zero means respond immediately.
	Delay time.Duration
}

// NewDemo creates a demo provider
func NewDemo(delay time.Duration) *Demo {
	return &Demo{Delay: delay}
}

func (d *Demo) wait(ctx context.Context) error {
	if d.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(d.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SpeechToText returns a placeholder transcript sized to the input
func (d *Demo) SpeechToText(ctx context.Context, audio []byte) (string, error) {
	if err := d.wait(ctx); err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio buffer")
	}
	return fmt.Sprintf("[demo transcript of %d audio bytes]", len(audio)), nil
}

// GenerateResponse echoes a canned acknowledgement of the input
func (d *Demo) GenerateResponse(ctx context.Context, text string, history []string) (string, error) {
	if err := d.wait(ctx); err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("empty input text")
	}
	return fmt.Sprintf("I heard: %q. This is a demo response (%d prior messages).", text, len(history)), nil
}

// TextToSpeech returns an empty PCM buffer standing in for synthesized audio
func (d *Demo) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("empty input text")
	}
	// 100ms of 16kHz mono PCM16 silence.
	return make([]byte, 3200), nil
}

// Close is a no-op for the demo provider
func (d *Demo) Close() error {
	return nil
}
