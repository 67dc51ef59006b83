// Package audio provides the frame model, the transport payload codec and the
// speech enhancer for the meeting audio pipeline. Frames carry normalized
// samples; the codec converts to and from little-endian PCM-16, PCM-32 and
// float32 payloads with strict alignment validation.
package audio
