package wiimote

// State is everything a session remembers between frames.
type State struct {
	Calibration Calibration
	Calibrated  bool
	Last        Transition
}

// Step decodes one frame against s and returns the next state together with
// the events to fire, in order: calibration, acceleration, infrared, button.
// The returned error is a non-fatal decode problem (currently only an
// acceleration sample that could not be normalized); the events are valid
// regardless.
func (s State) Step(f *Frame, feat Features) (State, []Event, error) {
	var (
		events []Event
		decErr error
	)
	reports := Classify(f.Header(), feat)

	if reports.Has(ReportCalibration) {
		s.Calibration = DecodeCalibration(f)
		s.Calibrated = true
		events = append(events, CalibrationUpdated{Calibration: s.Calibration})
	}
	if reports.Has(ReportAcceleration) {
		var acc Acceleration
		acc, decErr = DecodeAcceleration(f, s.Calibration, s.Calibrated)
		events = append(events, AccelerationSample{Acceleration: acc})
	}
	if reports.Has(ReportInfrared) {
		events = append(events, InfraredFrame{Blobs: DecodeInfrared(f)})
	}
	if next, fired := DecodeButtons(s.Last, f[OffsetButtonsA], f[OffsetButtonsB]); fired {
		s.Last = next
		if next.Kind == Pressed {
			events = append(events, ButtonPressed{Button: next.Button})
		} else {
			events = append(events, ButtonReleased{})
		}
	}
	return s, events, decErr
}
