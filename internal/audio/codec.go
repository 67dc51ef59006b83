package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedAudio indicates a payload that cannot be decoded: wrong
// alignment for the declared format, or an unknown format. The frame is
// dropped and the caller notified; nothing is partially decoded.
var ErrMalformedAudio = errors.New("malformed audio")

// Scale factors between normalized samples and integer PCM
const (
	pcm16Scale = 32768.0
	pcm32Scale = 2147483648.0
)

// Decode converts a transport-encoded payload into a Frame. The payload must
// be byte-aligned to the sample width of the format; a partial trailing
// sample is rejected rather than truncated.
func Decode(payload []byte, format Format, sampleRate, channels int) (*Frame, error) {
	width, err := format.SampleBytes()
	if err != nil {
		return nil, err
	}

	if len(payload)%width != 0 {
		return nil, fmt.Errorf("%w: payload length %d not aligned to %d-byte samples (%s)",
			ErrMalformedAudio, len(payload), width, format)
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrMalformedAudio, sampleRate)
	}

	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count must be positive, got %d", ErrMalformedAudio, channels)
	}

	count := len(payload) / width
	samples := make([]float64, count)

	switch format {
	case FormatPCM16:
		for i := 0; i < count; i++ {
			s := int16(binary.LittleEndian.Uint16(payload[i*pcm16SampleBytes:]))
			samples[i] = float64(s) / pcm16Scale
		}
	case FormatPCM32:
		for i := 0; i < count; i++ {
			s := int32(binary.LittleEndian.Uint32(payload[i*pcm32SampleBytes:]))
			samples[i] = float64(s) / pcm32Scale
		}
	case FormatFloat32:
		for i := 0; i < count; i++ {
			bits := binary.LittleEndian.Uint32(payload[i*float32SampleBytes:])
			samples[i] = float64(math.Float32frombits(bits))
		}
	}

	return &Frame{
		Samples:    samples,
		Format:     format,
		SampleRate: sampleRate,
		Channels:   channels,
		Timestamp:  time.Now(),
	}, nil
}

// Encode converts a frame back into a transport payload. Round trips are
// lossless for PCM-16 and float32; PCM-32 narrowing to PCM-16 loses the low
// bits by design.
func Encode(frame *Frame, format Format) ([]byte, error) {
	if frame == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrMalformedAudio)
	}

	width, err := format.SampleBytes()
	if err != nil {
		return nil, err
	}

	payload := make([]byte, len(frame.Samples)*width)

	switch format {
	case FormatPCM16:
		for i, s := range frame.Samples {
			binary.LittleEndian.PutUint16(payload[i*pcm16SampleBytes:], uint16(quantize16(s)))
		}
	case FormatPCM32:
		for i, s := range frame.Samples {
			binary.LittleEndian.PutUint32(payload[i*pcm32SampleBytes:], uint32(quantize32(s)))
		}
	case FormatFloat32:
		for i, s := range frame.Samples {
			binary.LittleEndian.PutUint32(payload[i*float32SampleBytes:], math.Float32bits(float32(s)))
		}
	}

	return payload, nil
}

// quantize16 converts a normalized sample to int16, clamping to the valid
// sample range
func quantize16(s float64) int16 {
	v := math.Round(s * pcm16Scale)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// quantize32 converts a normalized sample to int32, clamping to the valid
// sample range
func quantize32(s float64) int32 {
	v := math.Round(s * pcm32Scale)
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
