package audio

import (
	"fmt"
	"time"
)

// Format identifies the wire encoding of an audio payload
type Format string

// Supported payload formats (all little-endian)
const (
	FormatPCM16   Format = "pcm16"
	FormatPCM32   Format = "pcm32"
	FormatFloat32 Format = "float32"
)

// Bytes per sample for each format
const (
	pcm16SampleBytes   = 2
	pcm32SampleBytes   = 4
	float32SampleBytes = 4
)

// Frame represents a decoded audio frame. Samples are normalized to the
// [-1, 1] range regardless of the source format. A frame is immutable once
// decoded; processing stages that modify audio work on a copy.
type Frame struct {
	Samples    []float64 // Normalized samples
	Format     Format    // Format the frame was decoded from
	SampleRate int       // Samples per second
	Channels   int       // Channel count (interleaved)
	Timestamp  time.Time // Capture time
}

// ParseFormat converts a wire format string into a Format
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPCM16, FormatPCM32, FormatFloat32:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", ErrMalformedAudio, s)
	}
}

// SampleBytes returns the byte width of a single sample in this format
func (f Format) SampleBytes() (int, error) {
	switch f {
	case FormatPCM16:
		return pcm16SampleBytes, nil
	case FormatPCM32:
		return pcm32SampleBytes, nil
	case FormatFloat32:
		return float32SampleBytes, nil
	default:
		return 0, fmt.Errorf("%w: unsupported format %q", ErrMalformedAudio, string(f))
	}
}

// Duration returns the playback duration of the frame
func (f *Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	perChannel := len(f.Samples) / f.Channels
	return time.Duration(perChannel) * time.Second / time.Duration(f.SampleRate)
}

// Clone returns a deep copy of the frame
func (f *Frame) Clone() *Frame {
	samples := make([]float64, len(f.Samples))
	copy(samples, f.Samples)

	return &Frame{
		Samples:    samples,
		Format:     f.Format,
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		Timestamp:  f.Timestamp,
	}
}

// String returns a human-readable representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{Format:%s, Samples:%d, SampleRate:%d, Channels:%d}",
		f.Format, len(f.Samples), f.SampleRate, f.Channels)
}
