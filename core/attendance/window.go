package attendance

// ScanWindow buffers the most recently decoded token payloads of one
// scan attempt. It keeps at most `capacity` entries, evicting the
// oldest first, and reports fullness so the caller knows when to
// trigger verification.
type ScanWindow struct {
	capacity int
	payloads []string
}

func NewScanWindow(capacity int) *ScanWindow {
	return &ScanWindow{
		capacity: capacity,
		payloads: make([]string, 0, capacity),
	}
}

// Push appends a decoded payload, evicting the oldest entry when the
// window is already full. It returns true once the window holds
// exactly `capacity` payloads.
func (w *ScanWindow) Push(payload string) bool {
	if len(w.payloads) == w.capacity {
		copy(w.payloads, w.payloads[1:])
		w.payloads = w.payloads[:w.capacity-1]
	}
	w.payloads = append(w.payloads, payload)
	return len(w.payloads) == w.capacity
}

// Payloads returns the buffered payloads, oldest to newest.
func (w *ScanWindow) Payloads() []string {
	out := make([]string, len(w.payloads))
	copy(out, w.payloads)
	return out
}

func (w *ScanWindow) Len() int { return len(w.payloads) }

// Reset discards all buffered payloads.
func (w *ScanWindow) Reset() {
	w.payloads = w.payloads[:0]
}
