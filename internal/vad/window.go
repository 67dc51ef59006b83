package vad

// energySample is one rolling-window entry: the frame's energy in decibels
// and the speech decision made for it.
type energySample struct {
	energyDB float64
	voice    bool
}

// window is a fixed-capacity ring of recent energy samples for one meeting.
// Once full, each push overwrites the oldest entry; the window never grows
// past its capacity.
type window struct {
	samples []energySample
	next    int
	size    int
}

func newWindow(capacity int) *window {
	return &window{
		samples: make([]energySample, capacity),
	}
}

// push records a sample, dropping the oldest entry when the window is full
func (w *window) push(energyDB float64, voice bool) {
	w.samples[w.next] = energySample{energyDB: energyDB, voice: voice}
	w.next = (w.next + 1) % len(w.samples)
	if w.size < len(w.samples) {
		w.size++
	}
}

// len returns the number of samples currently held
func (w *window) len() int {
	return w.size
}

// noiseFloor returns the mean energy of entries marked non-speech and the
// number of such entries. A count of zero means no noise estimate exists.
func (w *window) noiseFloor() (floor float64, count int) {
	var sum float64
	for i := 0; i < w.size; i++ {
		s := w.samples[i]
		if !s.voice {
			sum += s.energyDB
			count++
		}
	}
	if count == 0 {
		return 0, 0
	}
	return sum / float64(count), count
}
