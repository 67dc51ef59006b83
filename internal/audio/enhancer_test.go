package audio

import (
	"math"
	"testing"
	"time"
)

func testFrame(samples []float64) *Frame {
	return &Frame{
		Samples:    samples,
		Format:     FormatPCM16,
		SampleRate: 16000,
		Channels:   1,
		Timestamp:  time.Now(),
	}
}

func TestEnhancerNoiseGate(t *testing.T) {
	e := NewEnhancer(EnhancerConfig{
		GateThreshold: 0.05,
		PeakTarget:    0.7,
		HighPassAlpha: 0.99,
	}, nil)

	samples := []float64{0.01, -0.02, 0.04, -0.049}
	e.applyNoiseGate(samples)

	for i, s := range samples {
		if s != 0 {
			t.Errorf("Sample %d below gate threshold not zeroed: %f", i, s)
		}
	}

	loud := []float64{0.1, -0.2}
	e.applyNoiseGate(loud)
	if loud[0] != 0.1 || loud[1] != -0.2 {
		t.Errorf("Samples above gate threshold modified: %v", loud)
	}
}

func TestEnhancerPeakCompression(t *testing.T) {
	e := NewEnhancer(DefaultEnhancerConfig(), nil)

	samples := []float64{0.9, -1.0, 0.45}
	e.applyPeakCompression(samples)

	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}

	if peak > 0.7+1e-9 {
		t.Errorf("Peak after compression exceeds target: %f", peak)
	}

	// Relative levels must be preserved by a uniform scale.
	ratio := samples[0] / samples[2]
	if math.Abs(ratio-2.0) > 1e-9 {
		t.Errorf("Compression changed relative sample levels: ratio %f", ratio)
	}

	// A quiet frame is left untouched.
	quiet := []float64{0.1, -0.3}
	e.applyPeakCompression(quiet)
	if quiet[0] != 0.1 || quiet[1] != -0.3 {
		t.Errorf("Quiet frame modified by compression: %v", quiet)
	}
}

func TestEnhancerHighPassRemovesDC(t *testing.T) {
	e := NewEnhancer(DefaultEnhancerConfig(), nil)

	// A constant (DC) signal should decay toward zero through a high-pass.
	samples := make([]float64, 400)
	for i := range samples {
		samples[i] = 0.5
	}
	e.applyHighPass(samples)

	if math.Abs(samples[len(samples)-1]) >= math.Abs(samples[1]) {
		t.Errorf("High-pass did not attenuate DC: first=%f last=%f",
			samples[1], samples[len(samples)-1])
	}
}

func TestEnhanceReturnsOriginalOnBadFrame(t *testing.T) {
	e := NewEnhancer(DefaultEnhancerConfig(), nil)

	empty := testFrame(nil)
	if got := e.Enhance(empty); got != empty {
		t.Error("Expected empty frame to be returned unchanged")
	}

	nan := testFrame([]float64{0.1, math.NaN()})
	if got := e.Enhance(nan); got != nan {
		t.Error("Expected frame with NaN samples to be returned unchanged")
	}

	if got := e.Enhance(nil); got != nil {
		t.Error("Expected nil frame to pass through")
	}

	_, skipped := e.Stats()
	if skipped != 2 {
		t.Errorf("Expected 2 skipped frames, got %d", skipped)
	}
}

func TestEnhanceDoesNotMutateInput(t *testing.T) {
	e := NewEnhancer(DefaultEnhancerConfig(), nil)

	frame := testFrame([]float64{0.9, -0.8, 0.01})
	out := e.Enhance(frame)

	if out == frame {
		t.Fatal("Enhance returned the input frame for a valid speech frame")
	}
	if frame.Samples[0] != 0.9 || frame.Samples[1] != -0.8 || frame.Samples[2] != 0.01 {
		t.Errorf("Input frame mutated: %v", frame.Samples)
	}

	for i, s := range out.Samples {
		if s > 1 || s < -1 {
			t.Errorf("Output sample %d out of range after clamping: %f", i, s)
		}
	}
}

func TestNewEnhancerInvalidConfigFallsBack(t *testing.T) {
	e := NewEnhancer(EnhancerConfig{GateThreshold: -1, PeakTarget: 2, HighPassAlpha: 0}, nil)

	defaults := DefaultEnhancerConfig()
	if e.config != defaults {
		t.Errorf("Expected invalid config to fall back to defaults, got %+v", e.config)
	}
}
