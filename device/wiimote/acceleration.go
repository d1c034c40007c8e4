package wiimote

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotCalibrated is returned when acceleration arrives before any
	// calibration report.
	ErrNotCalibrated = errors.New("calibration not yet available")
	// ErrDegenerateCalibration is returned when an axis has equal zero-g and
	// one-g readings.
	ErrDegenerateCalibration = errors.New("degenerate calibration")
)

// Acceleration is one normalized sample. 0 is the zero-g reading and 1 the
// one-g reading of an axis; noise may push values outside [0,1].
// Valid is false when the calibration could not normalize every axis, in
// which case the affected axes are 0.
type Acceleration struct {
	X, Y, Z float64
	Valid   bool
}

// DecodeAcceleration normalizes the raw readings at bytes 4..6.
// The sample is always returned; a non-nil error explains why it is not
// Valid.
func DecodeAcceleration(f *Frame, cal Calibration, calibrated bool) (Acceleration, error) {
	if !calibrated {
		return Acceleration{}, ErrNotCalibrated
	}
	x, okX := normalize(f[OffsetAccel], cal.X0, cal.X1)
	y, okY := normalize(f[OffsetAccel+1], cal.Y0, cal.Y1)
	z, okZ := normalize(f[OffsetAccel+2], cal.Z0, cal.Z1)
	s := Acceleration{X: x, Y: y, Z: z, Valid: okX && okY && okZ}
	if !s.Valid {
		return s, fmt.Errorf("%w: axis %s", ErrDegenerateCalibration, strings.Join(cal.DegenerateAxes(), ","))
	}
	return s, nil
}

func normalize(raw, zero, one uint8) (float64, bool) {
	if one == zero {
		return 0, false
	}
	return (float64(raw) - float64(zero)) / (float64(one) - float64(zero)), true
}
