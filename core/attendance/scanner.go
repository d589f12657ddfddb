package attendance

// The scan flow is an explicit state machine rather than a pile of
// "ignore events while busy" flags: every transition goes through one
// reducer, which makes the concurrency discipline (at most one
// in-flight verification, decodes dropped while verifying, cancel
// discards everything) checkable in isolation.

// ScanState is the phase of one scan session.
type ScanState int

const (
	StateIdle ScanState = iota
	StateScanning
	StateVerifying
	StateRecorded
	StateFailed
)

func (s ScanState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateVerifying:
		return "verifying"
	case StateRecorded:
		return "recorded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type (
	// Event is an input to the scan state machine.
	Event interface{ isEvent() }

	// EventStart begins scanning. Starting an already-running scan is a
	// no-op.
	EventStart struct{}

	// EventDecode carries one successfully decoded payload and,
	// optionally, a still frame snapshot for liveness vetting.
	// Non-decodes (frames with no visible code) never become events;
	// they are expected steady-state.
	EventDecode struct {
		Payload string
		Frame   string
	}

	// EventVerified reports that the in-flight verification recorded
	// attendance.
	EventVerified struct{ Record Record }

	// EventRejected reports that the in-flight verification failed.
	EventRejected struct{ Err error }

	// EventCancel stops scanning: explicit user cancel or component
	// teardown.
	EventCancel struct{}
)

func (EventStart) isEvent()    {}
func (EventDecode) isEvent()   {}
func (EventVerified) isEvent() {}
func (EventRejected) isEvent() {}
func (EventCancel) isEvent()   {}

type (
	// Effect is a side effect requested by a transition; the driver
	// (websocket handler, test harness) executes it.
	Effect interface{ isEffect() }

	// EffectVerify asks the driver to run one verification attempt with
	// the full scan window. While it is in flight the machine stays in
	// StateVerifying and drops further decodes.
	EffectVerify struct {
		Payloads []string
		Frame    string
	}

	// EffectReleaseCamera asks the driver to release the capture device
	// unconditionally. Emitted on every path out of an active scan.
	EffectReleaseCamera struct{}
)

func (EffectVerify) isEffect()        {}
func (EffectReleaseCamera) isEffect() {}

// Scanner drives one scan session. Not safe for concurrent use; the
// driver serializes events (a websocket read loop already is serial).
type Scanner struct {
	state     ScanState
	window    *ScanWindow
	lastFrame string
	lastErr   error
	record    Record
}

func NewScanner(windowSize int) *Scanner {
	return &Scanner{
		state:  StateIdle,
		window: NewScanWindow(windowSize),
	}
}

func (s *Scanner) State() ScanState { return s.state }

// Progress returns how many payloads of the required window are
// buffered.
func (s *Scanner) Progress() (have, want int) {
	return s.window.Len(), s.window.capacity
}

// Record returns the attendance record of a successful scan; valid
// only in StateRecorded.
func (s *Scanner) Record() Record { return s.record }

// Err returns the failure of the last verification. It is set by the
// rejection that produced it and cleared by the next decode, so a
// retryable failure is reported once, not echoed on every frame of the
// retry.
func (s *Scanner) Err() error { return s.lastErr }

// Apply feeds one event through the reducer and returns the effects
// the driver must execute.
func (s *Scanner) Apply(ev Event) []Effect {
	switch ev := ev.(type) {
	case EventStart:
		if s.state == StateScanning || s.state == StateVerifying {
			return nil // already running
		}
		s.reset()
		s.state = StateScanning
		return nil

	case EventDecode:
		if s.state != StateScanning {
			// dropped, not queued: a queued decode could race the
			// in-flight attempt into a duplicate submission
			return nil
		}
		s.lastErr = nil // a prior rejection has been reported by now
		if ev.Frame != "" {
			s.lastFrame = ev.Frame
		}
		if full := s.window.Push(ev.Payload); !full {
			return nil
		}
		s.state = StateVerifying
		return []Effect{EffectVerify{Payloads: s.window.Payloads(), Frame: s.lastFrame}}

	case EventVerified:
		if s.state != StateVerifying {
			return nil // late result after cancel: never applied
		}
		s.record = ev.Record
		s.state = StateRecorded
		s.window.Reset()
		return []Effect{EffectReleaseCamera{}}

	case EventRejected:
		if s.state != StateVerifying {
			return nil // late result after cancel: never applied
		}
		s.lastErr = ev.Err
		s.window.Reset()
		s.lastFrame = ""
		if Retryable(ev.Err) || IsClassifierUnavailable(ev.Err) || IsRecordingFailure(ev.Err) {
			// user re-scans from the live display
			s.state = StateScanning
			return nil
		}
		s.state = StateFailed
		return []Effect{EffectReleaseCamera{}}

	case EventCancel:
		wasActive := s.state == StateScanning || s.state == StateVerifying
		s.reset()
		s.state = StateIdle
		if wasActive {
			return []Effect{EffectReleaseCamera{}}
		}
		return nil
	}
	return nil
}

func (s *Scanner) reset() {
	s.window.Reset()
	s.lastFrame = ""
	s.lastErr = nil
	s.record = Record{}
}
