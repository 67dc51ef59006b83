package audio

import (
	"log/slog"
	"math"
	"sync/atomic"
)

// EnhancerConfig contains configuration for the speech enhancement chain
type EnhancerConfig struct {
	GateThreshold float64 // Samples below this magnitude are zeroed
	PeakTarget    float64 // Peak magnitude after compression
	HighPassAlpha float64 // Coefficient of the one-pole high-pass filter
}

// DefaultEnhancerConfig returns the enhancement parameters used when the
// configuration does not override them
func DefaultEnhancerConfig() EnhancerConfig {
	return EnhancerConfig{
		GateThreshold: 0.02,
		PeakTarget:    0.7,
		HighPassAlpha: 0.99,
	}
}

// Enhancer applies lightweight speech enhancement to frames the VAD has
// classified as speech: a noise gate, peak-normalizing compression and a
// one-pole high-pass filter against low-frequency rumble.
type Enhancer struct {
	config EnhancerConfig
	logger *slog.Logger

	// Statistics
	framesEnhanced atomic.Uint64
	framesSkipped  atomic.Uint64
}

// NewEnhancer creates an enhancer with the given configuration. Out-of-range
// parameters fall back to defaults rather than failing: enhancement is
// best-effort end to end.
func NewEnhancer(config EnhancerConfig, logger *slog.Logger) *Enhancer {
	defaults := DefaultEnhancerConfig()

	if config.GateThreshold < 0 || config.GateThreshold >= 1 {
		config.GateThreshold = defaults.GateThreshold
	}
	if config.PeakTarget <= 0 || config.PeakTarget > 1 {
		config.PeakTarget = defaults.PeakTarget
	}
	if config.HighPassAlpha <= 0 || config.HighPassAlpha >= 1 {
		config.HighPassAlpha = defaults.HighPassAlpha
	}

	return &Enhancer{
		config: config,
		logger: logger,
	}
}

// Enhance runs the enhancement chain over a copy of the frame. On any
// internal fault the original frame is returned unchanged; enhancement never
// propagates an error to the pipeline.
func (e *Enhancer) Enhance(frame *Frame) *Frame {
	if frame == nil {
		return frame
	}

	if len(frame.Samples) == 0 || !samplesFinite(frame.Samples) {
		e.framesSkipped.Add(1)
		if e.logger != nil {
			e.logger.Warn("Skipping enhancement for unusable frame",
				slog.Int("samples", len(frame.Samples)),
			)
		}
		return frame
	}

	out := frame.Clone()

	e.applyNoiseGate(out.Samples)
	e.applyPeakCompression(out.Samples)
	e.applyHighPass(out.Samples)
	clampSamples(out.Samples)

	e.framesEnhanced.Add(1)
	return out
}

// applyNoiseGate zeroes samples whose magnitude falls below the gate
// threshold
func (e *Enhancer) applyNoiseGate(samples []float64) {
	for i, s := range samples {
		if math.Abs(s) < e.config.GateThreshold {
			samples[i] = 0
		}
	}
}

// applyPeakCompression scales the frame so its peak does not exceed the
// configured target. Frames already under the target are left untouched.
func (e *Enhancer) applyPeakCompression(samples []float64) {
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}

	if peak <= e.config.PeakTarget {
		return
	}

	scale := e.config.PeakTarget / peak
	for i := range samples {
		samples[i] *= scale
	}
}

// applyHighPass runs a one-pole high-pass filter sample by sample:
// y[n] = alpha * (x[n] + y[n-1] - x[n-1])
func (e *Enhancer) applyHighPass(samples []float64) {
	alpha := e.config.HighPassAlpha

	var prevIn, prevOut float64
	for i, s := range samples {
		out := alpha * (s + prevOut - prevIn)
		prevIn = s
		prevOut = out
		samples[i] = out
	}
}

// Stats returns the number of frames enhanced and skipped
func (e *Enhancer) Stats() (enhanced, skipped uint64) {
	return e.framesEnhanced.Load(), e.framesSkipped.Load()
}

// clampSamples bounds samples to the valid normalized range before
// requantization
func clampSamples(samples []float64) {
	for i, s := range samples {
		if s > 1 {
			samples[i] = 1
		} else if s < -1 {
			samples[i] = -1
		}
	}
}

// samplesFinite reports whether every sample is a finite number
func samplesFinite(samples []float64) bool {
	for _, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return false
		}
	}
	return true
}
