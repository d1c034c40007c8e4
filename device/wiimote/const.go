package wiimote

// FrameSize is the length of every input report received from the controller,
// including the leading transport byte.
const FrameSize = 19

// Frame byte offsets.
const (
	OffsetTransport = 0
	OffsetHeader    = 1
	OffsetButtonsA  = 2
	OffsetButtonsB  = 3
	OffsetAccel     = 4
	OffsetPayload   = 7
)

// TransportInput is the L2CAP DATA|INPUT byte that precedes every report.
const TransportInput byte = 0xA1

// Report header bytes.
const (
	HeaderCalibration byte = 0x21
	HeaderInfrared    byte = 0x33
)

// Acceleration header masks. A header carries acceleration when
// header&mask == mask for any of them. The masks overlap (all share 0x31),
// so 0x33 frames carry both infrared and acceleration and any header with
// 0x31 set matches. This is the controller stream's historical behaviour
// and is kept as is.
var accelMasks = [...]byte{0x31, 0x33, 0x35, 0x37}

// ButtonID identifies a physical button.
type ButtonID uint8

const (
	ButtonNone  ButtonID = 0
	ButtonTwo   ButtonID = 1
	ButtonOne   ButtonID = 2
	ButtonB     ButtonID = 3
	ButtonA     ButtonID = 4
	ButtonMinus ButtonID = 5
	ButtonHome  ButtonID = 8
	ButtonLeft  ButtonID = 9
	ButtonRight ButtonID = 10
	ButtonDown  ButtonID = 11
	ButtonUp    ButtonID = 12
	ButtonPlus  ButtonID = 13
)

var buttonNames = map[ButtonID]string{
	ButtonTwo:   "2",
	ButtonOne:   "1",
	ButtonB:     "B",
	ButtonA:     "A",
	ButtonMinus: "MINUS",
	ButtonHome:  "HOME",
	ButtonLeft:  "LEFT",
	ButtonRight: "RIGHT",
	ButtonDown:  "DOWN",
	ButtonUp:    "UP",
	ButtonPlus:  "PLUS",
}

func (b ButtonID) String() string {
	if s, ok := buttonNames[b]; ok {
		return s
	}
	return "NONE"
}

type buttonBit struct {
	mask byte
	id   ButtonID
}

// Priority ordered bit tables for the two button bytes.
var (
	buttonsB = [...]buttonBit{
		{0x01, ButtonTwo},
		{0x02, ButtonOne},
		{0x04, ButtonB},
		{0x08, ButtonA},
		{0x10, ButtonMinus},
		{0x80, ButtonHome},
	}
	buttonsA = [...]buttonBit{
		{0x01, ButtonLeft},
		{0x02, ButtonRight},
		{0x04, ButtonDown},
		{0x08, ButtonUp},
		{0x10, ButtonPlus},
	}
)

// releaseMask covers the bits 0x20, 0x40 and 0x60 of both button bytes that
// signal a release.
const releaseMask byte = 0x60
