package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeader is the 44-byte RIFF header written ahead of PCM-16 data
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodeWAV renders a frame as a PCM-16 WAV file. The voice agent backend
// accepts WAV uploads, so accumulated speech is wrapped before forwarding.
func EncodeWAV(frame *Frame) ([]byte, error) {
	if frame == nil || len(frame.Samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty frame as WAV")
	}

	if frame.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", frame.SampleRate)
	}

	channels := frame.Channels
	if channels <= 0 {
		channels = 1
	}

	const bitsPerSample = 16
	dataSize := uint32(len(frame.Samples) * pcm16SampleBytes)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   uint16(channels),
		SampleRate:    uint32(frame.SampleRate),
		ByteRate:      uint32(frame.SampleRate) * uint32(channels) * bitsPerSample / 8,
		BlockAlign:    uint16(channels) * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+int(dataSize)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	pcm, err := Encode(frame, FormatPCM16)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WAV data: %w", err)
	}
	buf.Write(pcm)

	return buf.Bytes(), nil
}
