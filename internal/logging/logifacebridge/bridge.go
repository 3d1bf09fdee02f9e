// Package logifacebridge adapts github.com/joeycumines/logiface (backed by
// github.com/joeycumines/stumpy's zero-allocation JSON event) onto this
// module's logging.Logger interface, the way the teacher's own
// logiface-slog / logiface-zerolog submodules adapt the same core onto a
// foreign logging surface.
//
// Wire this in cmd/ binaries; package tests use logging.NewNoOpLogger or an
// in-memory recorder instead.
package logifacebridge

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/open-ran-go/gnb-mac-rlc/internal/logging"
)

// Bridge implements logging.Logger on top of a stumpy-backed logiface.Logger.
type Bridge struct {
	logger *logiface.Logger[*stumpy.Event]
}

// New constructs a Bridge writing newline-delimited JSON to w (os.Stderr if
// nil) at the given minimum logging.Level.
func New(w io.Writer, level logging.Level) *Bridge {
	if w == nil {
		w = os.Stderr
	}
	return &Bridge{
		logger: stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(w)),
			stumpy.L.WithLevel(toLogifaceLevel(level)),
		),
	}
}

// IsEnabled implements logging.Logger.
func (b *Bridge) IsEnabled(level logging.Level) bool {
	return b.logger.Level() >= toLogifaceLevel(level)
}

// Log implements logging.Logger.
func (b *Bridge) Log(e logging.Entry) {
	builder := b.logger.Build(toLogifaceLevel(e.Level))
	if builder == nil {
		return
	}
	builder = builder.Str("category", e.Category)
	if e.CellID != 0 {
		builder = builder.Uint64("cell", uint64(e.CellID))
	}
	if e.UEID != 0 {
		builder = builder.Uint64("ue", uint64(e.UEID))
	}
	if e.Bearer != 0 {
		builder = builder.Uint64("bearer", uint64(e.Bearer))
	}
	for k, v := range e.Fields {
		builder = builder.Any(k, v)
	}
	if e.Err != nil {
		builder = builder.Err(e.Err)
	}
	builder.Log(e.Message)
}

func toLogifaceLevel(level logging.Level) logiface.Level {
	switch level {
	case logging.LevelDebug:
		return logiface.LevelDebug
	case logging.LevelInfo:
		return logiface.LevelInformational
	case logging.LevelWarn:
		return logiface.LevelWarning
	case logging.LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
