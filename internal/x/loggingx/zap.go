package loggingx

import (
	"fmt"

	"github.com/dogmatiq/dodeca/logging"
	"go.uber.org/zap"
)

// Zap is a logging.Logger that writes to a zap logger.
//
// Messages are written at the info level, debug messages at the debug level.
type Zap struct {
	Logger *zap.Logger
}

var _ logging.Logger = Zap{}

// Log writes an application log message formatted according to a format
// specifier.
func (z Zap) Log(f string, v ...any) {
	z.Logger.Info(fmt.Sprintf(f, v...))
}

// LogString writes a pre-formatted application log message.
func (z Zap) LogString(s string) {
	z.Logger.Info(s)
}

// Debug writes a debug log message formatted according to a format
// specifier. The message is only formatted if debug logging is enabled.
func (z Zap) Debug(f string, v ...any) {
	if z.IsDebug() {
		z.Logger.Debug(fmt.Sprintf(f, v...))
	}
}

// DebugString writes a pre-formatted debug log message.
func (z Zap) DebugString(s string) {
	z.Logger.Debug(s)
}

// IsDebug returns true if the zap logger is enabled at the debug level.
func (z Zap) IsDebug() bool {
	return z.Logger.Core().Enabled(zap.DebugLevel)
}
