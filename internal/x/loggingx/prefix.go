package loggingx

import (
	"fmt"
	"strings"

	"github.com/dogmatiq/dodeca/logging"
)

// WithPrefix returns a logger that prepends a formatted prefix to each
// message written to target.
func WithPrefix(target logging.Logger, f string, v ...any) logging.Logger {
	p := fmt.Sprintf(f, v...)

	return prefixed{
		target: target,
		prefix: p,
		escape: strings.ReplaceAll(p, "%", "%%"),
	}
}

// prefixed is a logger that prepends a prefix to each message. escape is the
// prefix with format verbs escaped, for use in format strings.
type prefixed struct {
	target logging.Logger
	prefix string
	escape string
}

func (p prefixed) Log(f string, v ...any) {
	p.target.Log(p.escape+f, v...)
}

func (p prefixed) LogString(s string) {
	p.target.LogString(p.prefix + s)
}

func (p prefixed) Debug(f string, v ...any) {
	p.target.Debug(p.escape+f, v...)
}

func (p prefixed) DebugString(s string) {
	p.target.DebugString(p.prefix + s)
}

func (p prefixed) IsDebug() bool {
	return p.target.IsDebug()
}
