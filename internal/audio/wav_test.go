package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	frame := testFrame([]float64{0, 0.5, -0.5, 0.25})
	data, err := EncodeWAV(frame)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(data) != 44+len(frame.Samples)*2 {
		t.Errorf("Expected %d bytes, got %d", 44+len(frame.Samples)*2, len(data))
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("Missing RIFF/WAVE markers")
	}

	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("Expected sample rate 16000 in header, got %d", rate)
	}

	if dataSize := binary.LittleEndian.Uint32(data[40:44]); dataSize != uint32(len(frame.Samples)*2) {
		t.Errorf("Expected data size %d, got %d", len(frame.Samples)*2, dataSize)
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	if _, err := EncodeWAV(testFrame(nil)); err == nil {
		t.Error("Expected error for empty frame")
	}
	if _, err := EncodeWAV(nil); err == nil {
		t.Error("Expected error for nil frame")
	}
}
