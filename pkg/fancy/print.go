// Package fancy prints colored status lines for the command line tools.
package fancy

import (
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora"
)

var (
	Info  = aurora.White
	Ok    = aurora.Green
	Warn  = aurora.Yellow
	Error = aurora.Red
)

// Plain leaves the text uncolored.
func Plain(arg any) aurora.Value {
	return aurora.Reset(arg)
}

type Level = func(arg any) aurora.Value

// fieldWidth is the width labels are padded to by Ffield.
const fieldWidth = 28

func Fprintln(w io.Writer, level Level, args ...any) {
	_, _ = fmt.Fprintln(w, level(fmt.Sprint(args...)))
}

func Fprintf(w io.Writer, level Level, format string, args ...any) {
	_, _ = fmt.Fprint(w, level(fmt.Sprintf(format, args...)))
}

// Ffield prints a "Label......: value" line.
func Ffield(w io.Writer, level Level, label string, value any) {
	dots := fieldWidth - len(label)
	if dots < 1 {
		dots = 1
	}
	Fprintln(w, level, fmt.Sprintf("%s%s: %v", label, strings.Repeat(".", dots), value))
}

func Finfoln(w io.Writer, args ...any) {
	Fprintln(w, Info, args...)
}

func Finfof(w io.Writer, format string, args ...any) {
	Fprintf(w, Info, format, args...)
}

func Fokln(w io.Writer, args ...any) {
	Fprintln(w, Ok, args...)
}

func Fwarnln(w io.Writer, args ...any) {
	Fprintln(w, Warn, args...)
}

func Fwarnf(w io.Writer, format string, args ...any) {
	Fprintf(w, Warn, format, args...)
}

func Ferrorln(w io.Writer, args ...any) {
	Fprintln(w, Error, args...)
}

func Ferrorf(w io.Writer, format string, args ...any) {
	Fprintf(w, Error, format, args...)
}
