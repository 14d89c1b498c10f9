// Package diag is the engine's error-handling side channel (§7 of the core
// contract): the core never fails a render, it reports precondition and
// geometry diagnostics through a Sink instead. The CLI wires a Sink backed
// by zerolog plus a rotating log file, and the cgo API one backed by a
// console-only zerolog logger; package-internal code and tests can use Nop
// or a recording sink instead.
package diag

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink receives advisory diagnostics. Implementations must not block or
// fail the caller; a diagnostic is informational only.
type Sink interface {
	Warn(event string, fields map[string]interface{})
}

// Nop discards every diagnostic; the default for package-internal use and
// tests that don't care about the side channel.
var Nop Sink = nopSink{}

type nopSink struct{}

func (nopSink) Warn(string, map[string]interface{}) {}

// ZerologSink adapts a zerolog.Logger to Sink: the CLI builds that logger
// around a console writer plus a rotating file (NewFileLogger), the cgo API
// around a console writer only.
type ZerologSink struct {
	Logger zerolog.Logger
}

func (z ZerologSink) Warn(event string, fields map[string]interface{}) {
	e := z.Logger.Warn().Str("event", event)
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(event)
}

// NewFileLogger builds a zerolog.Logger that writes to both the console
// (os.Stderr) and a size/age-rotated log file at path, following the
// teacher's console-writer convention while persisting diagnostics past
// process exit.
func NewFileLogger(path string, levelStr string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	console := zerolog.ConsoleWriter{Out: os.Stderr}
	rotating := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	multi := io.MultiWriter(console, rotating)
	return zerolog.New(multi).Level(level).With().Timestamp().Logger()
}
