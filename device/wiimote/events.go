package wiimote

// EventKind names an event type on the wire and in logs.
type EventKind string

const (
	KindCalibration  EventKind = "calibration"
	KindAcceleration EventKind = "acceleration"
	KindInfrared     EventKind = "infrared"
	KindPressed      EventKind = "button_pressed"
	KindReleased     EventKind = "button_released"
)

// Event is a decoded notification delivered to a Device.
type Event interface {
	Kind() EventKind
}

// CalibrationUpdated is fired after a calibration report replaced the
// stored calibration.
type CalibrationUpdated struct {
	Calibration Calibration
}

// AccelerationSample carries one normalized acceleration sample.
type AccelerationSample struct {
	Acceleration
}

// InfraredFrame carries the four infrared camera slots.
type InfraredFrame struct {
	Blobs Infrared
}

// ButtonPressed is fired on a press transition.
type ButtonPressed struct {
	Button ButtonID
}

// ButtonReleased is fired on a release transition.
type ButtonReleased struct{}

func (CalibrationUpdated) Kind() EventKind { return KindCalibration }
func (AccelerationSample) Kind() EventKind { return KindAcceleration }
func (InfraredFrame) Kind() EventKind      { return KindInfrared }
func (ButtonPressed) Kind() EventKind      { return KindPressed }
func (ButtonReleased) Kind() EventKind     { return KindReleased }

// Device is the collaborator a Streamer decodes for. It owns the report
// toggles and receives every event in frame order.
type Device interface {
	AccelerationEnabled() bool
	InfraredEnabled() bool
	Fire(Event)
}
