// Package ui formats the terminal output of the para command.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	Bold   = color.New(color.Bold).SprintFunc()
	Faint  = color.New(color.Faint).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()

	// Out receives status messages. Command results that scripts consume,
	// such as paths and JSON, go to stdout instead.
	Out io.Writer = os.Stderr
)

// Info prints an informational message with a cyan arrow.
func Info(format string, args ...any) {
	fmt.Fprintf(Out, "%s %s\n", Cyan("→"), fmt.Sprintf(format, args...))
}

// Success prints a success message with a green checkmark.
func Success(format string, args ...any) {
	fmt.Fprintf(Out, "%s %s\n", Green("✔"), fmt.Sprintf(format, args...))
}

// Warn prints a warning with a yellow circle.
func Warn(format string, args ...any) {
	fmt.Fprintf(Out, "%s %s\n", Yellow("○"), fmt.Sprintf(format, args...))
}

// Fail prints an error message with a red cross.
func Fail(format string, args ...any) {
	fmt.Fprintf(Out, "%s %s\n", Red("✘"), fmt.Sprintf(format, args...))
}

// Dim prints a de-emphasised line.
func Dim(format string, args ...any) {
	fmt.Fprintln(Out, Faint(fmt.Sprintf(format, args...)))
}

// StatusColor colors a session status name.
func StatusColor(status string) string {
	switch status {
	case "Active":
		return Green(status)
	case "Review":
		return Yellow(status)
	case "Cancelled":
		return Red(status)
	}
	return status
}
