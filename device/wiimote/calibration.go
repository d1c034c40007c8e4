package wiimote

import "fmt"

// Calibration holds the zero-g and one-g raw reference readings per axis.
type Calibration struct {
	X0, Y0, Z0 uint8
	X1, Y1, Z1 uint8
}

// DecodeCalibration extracts the calibration block of a 0x21 report.
// Values are taken as is; implausible calibrations are only detected when
// they are used.
func DecodeCalibration(f *Frame) Calibration {
	return Calibration{
		X0: f[7],
		Y0: f[8],
		Z0: f[9],
		X1: f[11],
		Y1: f[12],
		Z1: f[13],
	}
}

// DegenerateAxes lists the axes whose one-g reading equals the zero-g
// reading.
func (c Calibration) DegenerateAxes() []string {
	var axes []string
	if c.X1 == c.X0 {
		axes = append(axes, "x")
	}
	if c.Y1 == c.Y0 {
		axes = append(axes, "y")
	}
	if c.Z1 == c.Z0 {
		axes = append(axes, "z")
	}
	return axes
}

func (c Calibration) String() string {
	return fmt.Sprintf("zero=(%d,%d,%d) one=(%d,%d,%d)", c.X0, c.Y0, c.Z0, c.X1, c.Y1, c.Z1)
}
