package testing

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Alia5/wiistream/device/wiimote"
)

// RecordingDevice is a wiimote.Device that records fired events.
type RecordingDevice struct {
	Accel bool
	IR    bool

	mu     sync.Mutex
	events []wiimote.Event
	notify chan struct{}
}

// NewRecordingDevice creates a RecordingDevice with the given toggles.
func NewRecordingDevice(accel, ir bool) *RecordingDevice {
	return &RecordingDevice{Accel: accel, IR: ir, notify: make(chan struct{}, 1024)}
}

func (d *RecordingDevice) AccelerationEnabled() bool { return d.Accel }
func (d *RecordingDevice) InfraredEnabled() bool     { return d.IR }

func (d *RecordingDevice) Fire(ev wiimote.Event) {
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of all recorded events.
func (d *RecordingDevice) Events() []wiimote.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]wiimote.Event, len(d.events))
	copy(out, d.events)
	return out
}

// WaitEvents blocks until at least n events were recorded or fails the test
// after timeout.
func (d *RecordingDevice) WaitEvents(t *testing.T, n int, timeout time.Duration) []wiimote.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if evs := d.Events(); len(evs) >= n {
			return evs
		}
		select {
		case <-d.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(d.Events()))
			return nil
		}
	}
}

// FrameReceiver replays frames, one per Receive, then returns Err (io.EOF if
// nil).
type FrameReceiver struct {
	Frames [][]byte
	Err    error

	mu sync.Mutex
	i  int
}

func (r *FrameReceiver) Receive(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.i >= len(r.Frames) {
		if r.Err != nil {
			return 0, r.Err
		}
		return 0, io.EOF
	}
	n := copy(buf, r.Frames[r.i])
	r.i++
	return n, nil
}
