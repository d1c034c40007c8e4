package wiimote

// Blob is one infrared light source as reported by the camera.
// X and Y are 10 bit; Size is 4 bit. Slots without a source carry whatever
// the camera sent (usually 0x3FF/0x3FF/0x0F).
type Blob struct {
	X    uint16
	Y    uint16
	Size uint8
}

// Infrared holds the four camera slots in report order.
type Infrared [4]Blob

// DecodeInfrared unpacks the basic infrared block (bytes 7..18). Each slot
// is three bytes: x low, y low, and a packed byte carrying the high bits of
// y (0xC0), the high bits of x (0x30) and the size (0x0F).
func DecodeInfrared(f *Frame) Infrared {
	var ir Infrared
	for i := range ir {
		o := OffsetPayload + i*3
		p := f[o+2]
		ir[i] = Blob{
			X:    uint16(f[o]) + uint16(p&0x30)<<4,
			Y:    uint16(f[o+1]) + uint16(p&0xC0)<<2,
			Size: p & 0x0F,
		}
	}
	return ir
}
