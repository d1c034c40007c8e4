package sink

import (
	"context"
	"log/slog"

	"github.com/Alia5/wiistream/apitypes"
	"github.com/Alia5/wiistream/device/wiimote"
	"github.com/Alia5/wiistream/internal/log"
)

// LogSink writes events to a slog.Logger. High rate reports (acceleration,
// infrared) go to trace level, the rest to info.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Handle(ev apitypes.Event) {
	level := slog.LevelInfo
	switch ev.Kind {
	case wiimote.KindAcceleration, wiimote.KindInfrared:
		level = log.LevelTrace
	}
	l.logger.Log(context.Background(), level, "event",
		"session", ev.Session,
		"kind", string(ev.Kind),
		"payload", ev.Payload)
}
