package mlog

import (
	"io"
	"strings"

	"github.com/dogmatiq/iago/must"
)

// String returns a log line consisting of the given ID labels, icons and
// text. Empty text segments are omitted.
func String(
	ids []IconWithLabel,
	icons []Icon,
	text ...string,
) string {
	var b strings.Builder
	writeLine(&b, ids, icons, text)
	return b.String()
}

// Write writes the log line produced by String() to w.
func Write(
	w io.Writer,
	ids []IconWithLabel,
	icons []Icon,
	text ...string,
) (n int, err error) {
	defer must.Recover(&err)
	return writeLine(w, ids, icons, text), nil
}

// writeLine writes a log line to w. It panics if w returns an error.
func writeLine(
	w io.Writer,
	ids []IconWithLabel,
	icons []Icon,
	text []string,
) (n int) {
	for _, id := range ids {
		n += must.WriteTo(w, id)
		n += must.WriteString(w, "  ")
	}

	for _, i := range icons {
		n += must.WriteTo(w, i)
		n += must.WriteString(w, " ")
	}

	sep := " "
	for _, t := range text {
		if t == "" {
			continue
		}

		n += must.WriteString(w, sep)
		n += must.WriteString(w, t)
		sep = " " + string(SeparatorIcon) + " "
	}

	return n
}
