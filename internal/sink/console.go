package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/Alia5/wiistream/apitypes"
)

// Console output formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// ConsoleSink prints one line per event: human readable on a terminal,
// JSON lines otherwise (or as forced by the format).
type ConsoleSink struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

// NewConsoleSink creates a console sink writing to w. FormatAuto picks text
// when w is a terminal.
func NewConsoleSink(w io.Writer, format string) *ConsoleSink {
	useJSON := false
	switch strings.ToLower(format) {
	case FormatJSON:
		useJSON = true
	case FormatText:
	default:
		useJSON = !isTerminal(w)
	}
	return &ConsoleSink{w: w, json: useJSON}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *ConsoleSink) Handle(ev apitypes.Event) {
	var line []byte
	if c.json {
		b, err := json.Marshal(ev)
		if err != nil {
			return
		}
		line = append(b, '\n')
	} else {
		line = []byte(formatText(ev) + "\n")
	}
	c.mu.Lock()
	_, _ = c.w.Write(line)
	c.mu.Unlock()
}

func formatText(ev apitypes.Event) string {
	prefix := fmt.Sprintf("%s %-15s", ev.Time.Format("15:04:05.000"), ev.Kind)
	switch p := ev.Payload.(type) {
	case apitypes.Calibration:
		return fmt.Sprintf("%s zero=%v one=%v", prefix, p.Zero, p.One)
	case apitypes.Acceleration:
		s := fmt.Sprintf("%s x=%+.3f y=%+.3f z=%+.3f", prefix, p.X, p.Y, p.Z)
		if !p.Valid {
			s += " (uncalibrated)"
		}
		return s
	case apitypes.Infrared:
		var sb strings.Builder
		sb.WriteString(prefix)
		for i, b := range p.Blobs {
			fmt.Fprintf(&sb, " [%d] %4d,%4d s%-2d", i, b.X, b.Y, b.Size)
		}
		return sb.String()
	case apitypes.ButtonPressed:
		return fmt.Sprintf("%s %s (%d)", prefix, p.Name, p.ID)
	default:
		return strings.TrimRight(prefix, " ")
	}
}
