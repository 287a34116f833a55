package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// message colors using fatih/color.
var (
	warnColor    = color.New(color.FgYellow)
	overdueColor = color.New(color.FgRed, color.Bold)
	doneColor    = color.New(color.FgGreen)
)

// warnf writes a highlighted warning line.
func warnf(w io.Writer, format string, args ...any) {
	warnColor.Fprintf(w, "Warning: "+format+"\n", args...)
}

// summaryf writes the pipeline summary, red when any stage is overdue.
func summaryf(w io.Writer, overdue int, allDone bool, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	switch {
	case overdue > 0:
		overdueColor.Fprintln(w, line)
	case allDone:
		doneColor.Fprintln(w, line)
	default:
		fmt.Fprintln(w, line)
	}
}
