package wiimote

// TransitionKind is the kind of the last emitted button transition.
type TransitionKind uint8

const (
	Idle TransitionKind = iota
	Pressed
	Released
)

func (k TransitionKind) String() string {
	switch k {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	default:
		return "idle"
	}
}

// Transition is the last emitted button transition. Button is only set for
// Pressed. Only Kind is consulted when decoding the next frame: while a
// press is outstanding no further press fires, whichever button it is,
// until a release was seen.
type Transition struct {
	Kind   TransitionKind
	Button ButtonID
}

// DecodeButtons applies the edge triggered button rules to the button bytes
// a (offset 2) and b (offset 3). It returns the new transition and whether
// it was emitted this frame. At most one transition fires per frame; the
// highest priority pressed bit wins.
func DecodeButtons(last Transition, a, b byte) (Transition, bool) {
	if last.Kind != Pressed {
		for _, bb := range buttonsB {
			if b&bb.mask == bb.mask {
				return Transition{Kind: Pressed, Button: bb.id}, true
			}
		}
		for _, ba := range buttonsA {
			if a&ba.mask == ba.mask {
				return Transition{Kind: Pressed, Button: ba.id}, true
			}
		}
	}
	if last.Kind != Released && a&releaseMask != 0 && b&releaseMask != 0 {
		return Transition{Kind: Released}, true
	}
	return last, false
}
