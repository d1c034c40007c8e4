package log

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger dumps raw controller frames.
type RawLogger interface {
	Log(session string, data []byte)
}

type rawLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewRaw creates a new RawLogger. A nil writer gives a no-op logger.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

// Log writes one line per frame with timestamp, session, report header and
// hex dump. Safe for concurrent sessions sharing one writer.
func (r *rawLogger) Log(session string, data []byte) {
	if len(data) == 0 || r.w == nil {
		return
	}

	var hexbuf bytes.Buffer
	const hexdigits = "0123456789abcdef"
	for i, b := range data {
		if i > 0 {
			hexbuf.WriteByte(' ')
		}
		hexbuf.WriteByte(hexdigits[b>>4])
		hexbuf.WriteByte(hexdigits[b&0x0f])
	}

	header := "--"
	if len(data) > 1 {
		header = fmt.Sprintf("%02x", data[1])
	}

	line := fmt.Sprintf("%s %s report %s: %d bytes, hex: %s\n",
		time.Now().Format("2006/01/02 15:04:05.000"),
		session,
		header,
		len(data),
		hexbuf.String())

	r.mu.Lock()
	_, _ = r.w.Write([]byte(line))
	r.mu.Unlock()
}
