package ui

import (
	"fmt"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorWarn   = 179 // amber
	colorError  = 203 // red
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderError returns s in the error (red) color.
func RenderError(s string) string { return paint(colorError, s) }

// RenderWarn returns s in the warning (amber) color.
func RenderWarn(s string) string { return paint(colorWarn, s) }

// RenderStatus colors a booking status.
func RenderStatus(s model.BookingStatus) string {
	switch s {
	case model.BookingScheduled:
		return paint(colorOK, string(s))
	case model.BookingCancelled:
		return paint(colorError, string(s))
	}
	return string(s)
}

// RenderGroup colors a field group tag; system and other groups are muted
// since operators cannot delete them.
func RenderGroup(g model.FieldGroup) string {
	if g.Deletable() {
		return RenderAccent(string(g))
	}
	return RenderMuted(string(g))
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
