package wiimote

import "strings"

// Reports is the set of sub-reports present in a frame.
type Reports uint8

const (
	ReportCalibration Reports = 1 << iota
	ReportAcceleration
	ReportInfrared
	ReportButtons
)

// Has reports whether all bits of r2 are set in r.
func (r Reports) Has(r2 Reports) bool { return r&r2 == r2 }

func (r Reports) String() string {
	var parts []string
	if r.Has(ReportCalibration) {
		parts = append(parts, "calibration")
	}
	if r.Has(ReportAcceleration) {
		parts = append(parts, "acceleration")
	}
	if r.Has(ReportInfrared) {
		parts = append(parts, "infrared")
	}
	if r.Has(ReportButtons) {
		parts = append(parts, "buttons")
	}
	return strings.Join(parts, "|")
}

// Features are the collaborator controlled report toggles.
type Features struct {
	Acceleration bool
	Infrared     bool
}

// Classify decides which sub-decoders apply to a frame with the given
// header. The decisions are independent; buttons are always present.
func Classify(header byte, feat Features) Reports {
	r := ReportButtons
	if header == HeaderCalibration {
		r |= ReportCalibration
	}
	if feat.Infrared && header == HeaderInfrared {
		r |= ReportInfrared
	}
	if feat.Acceleration && hasAcceleration(header) {
		r |= ReportAcceleration
	}
	return r
}

func hasAcceleration(header byte) bool {
	for _, m := range accelMasks {
		if header&m == m {
			return true
		}
	}
	return false
}
