package vad

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Shital16-hub/teams/internal/audio"
)

// epsilon keeps the decibel conversion finite for silent frames
const epsilon = 1e-10

// Config contains detector configuration
type Config struct {
	FallbackThresholdDB float64 // Static threshold used while the window is short
	WindowSize          int     // Rolling window capacity per meeting
	MinAdaptSamples     int     // Window samples required before adapting
	NoiseMarginDB       float64 // Margin added above the noise floor
}

// DefaultConfig returns the detection parameters used when the configuration
// does not override them
func DefaultConfig() Config {
	return Config{
		FallbackThresholdDB: -40,
		WindowSize:          100,
		MinAdaptSamples:     10,
		NoiseMarginDB:       10,
	}
}

// Result is the outcome of a single frame detection
type Result struct {
	VoiceDetected bool    `json:"voice_detected"`
	Confidence    float64 `json:"confidence"`
	EnergyDB      float64 `json:"energy_db"`
	ThresholdDB   float64 `json:"threshold_db"`
}

// Stats represents detector statistics for monitoring
type Stats struct {
	FramesProcessed uint64    `json:"frames_processed"`
	VoiceFrames     uint64    `json:"voice_frames"`
	FailedFrames    uint64    `json:"failed_frames"`
	ActiveMeetings  int       `json:"active_meetings"`
	LastProcessed   time.Time `json:"last_processed"`
}

// Detector classifies frames as speech or non-speech from their RMS energy.
// The threshold adapts per meeting: once enough history exists, it sits a
// fixed margin above the mean energy of recent non-speech frames. With short
// history the static fallback threshold applies; the two thresholds are
// deliberately independent values.
//
// Detect never returns an error: a frame that cannot be processed yields a
// safe non-speech result and is logged.
type Detector struct {
	config Config
	logger *slog.Logger

	windows map[string]*window

	framesProcessed uint64
	voiceFrames     uint64
	failedFrames    uint64
	lastProcessed   time.Time

	mu sync.Mutex
}

// NewDetector creates a detector instance
func NewDetector(config Config, logger *slog.Logger) (*Detector, error) {
	if config.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", config.WindowSize)
	}

	if config.MinAdaptSamples <= 0 || config.MinAdaptSamples > config.WindowSize {
		return nil, fmt.Errorf("min adapt samples must be in [1, %d], got %d",
			config.WindowSize, config.MinAdaptSamples)
	}

	if config.NoiseMarginDB <= 0 {
		return nil, fmt.Errorf("noise margin must be positive, got %f", config.NoiseMarginDB)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		config:  config,
		logger:  logger,
		windows: make(map[string]*window),
	}, nil
}

// Detect classifies a frame for the given meeting and records the outcome in
// the meeting's rolling window
func (d *Detector) Detect(frame *audio.Frame, meetingID string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.framesProcessed++
	d.lastProcessed = time.Now()

	energyDB, err := frameEnergyDB(frame)
	if err != nil {
		d.failedFrames++
		d.logger.Warn("VAD falling back to safe default",
			slog.String("meeting_id", meetingID),
			slog.String("error", err.Error()),
		)
		return Result{VoiceDetected: false, Confidence: 0, EnergyDB: 0, ThresholdDB: d.config.FallbackThresholdDB}
	}

	w, exists := d.windows[meetingID]
	if !exists {
		w = newWindow(d.config.WindowSize)
		d.windows[meetingID] = w
	}

	threshold := d.config.FallbackThresholdDB
	if w.len() >= d.config.MinAdaptSamples {
		if floor, count := w.noiseFloor(); count > 0 {
			threshold = floor + d.config.NoiseMarginDB
		}
	}

	voice := energyDB > threshold
	if voice {
		d.voiceFrames++
	}

	// Heuristic margin score, not a calibrated probability.
	confidence := clamp01((energyDB - threshold + 20) / 40)

	w.push(energyDB, voice)

	return Result{
		VoiceDetected: voice,
		Confidence:    confidence,
		EnergyDB:      energyDB,
		ThresholdDB:   threshold,
	}
}

// RemoveMeeting evicts the rolling window for a meeting that ended
func (d *Detector) RemoveMeeting(meetingID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.windows, meetingID)
}

// WindowLen returns the current window fill for a meeting
func (d *Detector) WindowLen(meetingID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if w, exists := d.windows[meetingID]; exists {
		return w.len()
	}
	return 0
}

// GetStats returns current detector statistics
func (d *Detector) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		FramesProcessed: d.framesProcessed,
		VoiceFrames:     d.voiceFrames,
		FailedFrames:    d.failedFrames,
		ActiveMeetings:  len(d.windows),
		LastProcessed:   d.lastProcessed,
	}
}

// frameEnergyDB computes the RMS energy of a frame in decibels
func frameEnergyDB(frame *audio.Frame) (float64, error) {
	if frame == nil || len(frame.Samples) == 0 {
		return 0, fmt.Errorf("empty frame")
	}

	var sum float64
	for _, s := range frame.Samples {
		sum += s * s
	}

	rms := math.Sqrt(sum / float64(len(frame.Samples)))
	energyDB := 20 * math.Log10(rms+epsilon)

	if math.IsNaN(energyDB) || math.IsInf(energyDB, 0) {
		return 0, fmt.Errorf("non-finite energy")
	}

	return energyDB, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
