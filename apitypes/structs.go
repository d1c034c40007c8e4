package apitypes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Alia5/wiistream/device/wiimote"
)

// ApiError represents an RFC 7807 (problem+json) error sent to a peer.
type ApiError struct {
	// Status is the HTTP-style status code (e.g., 400, 401, 500)
	Status int `json:"status"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Detail is a human-readable explanation specific to this occurrence
	Detail string `json:"detail"`
}

func (e ApiError) Error() string {
	if e.Status == 0 && e.Title == "" {
		return "unknown error"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

func ErrBadRequest(detail string) ApiError {
	return ApiError{Status: 400, Title: "Bad Request", Detail: detail}
}
func ErrUnauthorized(detail string) ApiError {
	return ApiError{Status: 401, Title: "Unauthorized", Detail: detail}
}
func ErrInternal(detail string) ApiError {
	return ApiError{Status: 500, Title: "Internal Server Error", Detail: detail}
}

// WrapError normalizes any error into ApiError.
func WrapError(err error) ApiError {
	if ae, ok := err.(*ApiError); ok {
		return *ae
	}
	if ae, ok := err.(ApiError); ok {
		return ae
	}
	return ErrInternal(err.Error())
}

// --

// Event is the JSON envelope every sink publishes.
type Event struct {
	Session string            `json:"session"`
	Kind    wiimote.EventKind `json:"kind"`
	Time    time.Time         `json:"time"`
	Payload any               `json:"payload,omitempty"`
}

type Calibration struct {
	Zero [3]uint8 `json:"zero"`
	One  [3]uint8 `json:"one"`
}

type Acceleration struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Valid bool    `json:"valid"`
}

type Blob struct {
	X    uint16 `json:"x"`
	Y    uint16 `json:"y"`
	Size uint8  `json:"size"`
}

type Infrared struct {
	Blobs [4]Blob `json:"blobs"`
}

type ButtonPressed struct {
	ID   uint8  `json:"id"`
	Name string `json:"name"`
}

// NewEvent converts a decoded event into its wire envelope.
func NewEvent(session string, at time.Time, ev wiimote.Event) Event {
	out := Event{Session: session, Kind: ev.Kind(), Time: at.UTC()}
	switch e := ev.(type) {
	case wiimote.CalibrationUpdated:
		c := e.Calibration
		out.Payload = Calibration{Zero: [3]uint8{c.X0, c.Y0, c.Z0}, One: [3]uint8{c.X1, c.Y1, c.Z1}}
	case wiimote.AccelerationSample:
		out.Payload = Acceleration{X: e.X, Y: e.Y, Z: e.Z, Valid: e.Valid}
	case wiimote.InfraredFrame:
		var ir Infrared
		for i, b := range e.Blobs {
			ir.Blobs[i] = Blob{X: b.X, Y: b.Y, Size: b.Size}
		}
		out.Payload = ir
	case wiimote.ButtonPressed:
		out.Payload = ButtonPressed{ID: uint8(e.Button), Name: e.Button.String()}
	}
	return out
}

// HexUint16 is a USB vendor/product id that accepts both numbers and hex
// strings ("0x057e", "057e", 1406) in flags and config files.
type HexUint16 uint16

func (h HexUint16) String() string { return fmt.Sprintf("0x%04x", uint16(h)) }

func (h *HexUint16) UnmarshalText(text []byte) error {
	v, err := parseUint16OrHex(string(text))
	if err != nil {
		return err
	}
	*h = HexUint16(v)
	return nil
}

func (h HexUint16) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *HexUint16) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := parseUint16OrHex(raw)
	if err != nil {
		return err
	}
	*h = HexUint16(v)
	return nil
}

// parseUint16OrHex accepts either a JSON number or a hex string like "0x12ac"
func parseUint16OrHex(v any) (uint16, error) {
	switch val := v.(type) {
	case float64:
		if val < 0 || val > 65535 {
			return 0, fmt.Errorf("value %v out of uint16 range", val)
		}
		return uint16(val), nil
	case string:
		s := strings.TrimSpace(val)
		base := 10
		if strings.HasPrefix(strings.ToLower(s), "0x") {
			s = s[2:]
			base = 16
		} else if strings.ContainsAny(s, "abcdefABCDEF") {
			base = 16
		}
		parsed, err := strconv.ParseUint(s, base, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid hex/numeric string %q: %w", val, err)
		}
		return uint16(parsed), nil
	default:
		return 0, fmt.Errorf("expected number or hex string, got %T", v)
	}
}
