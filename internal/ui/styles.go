package ui

import (
	"fmt"

	"github.com/alfredjeanlab/reqtrace/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorMuted  = 245 // medium gray
	colorWarn   = 179 // amber
	colorOK     = 114 // green
	colorAlert  = 203 // red
)

var noColor bool

var statusColors = map[model.Status]int{
	model.StatusDraft:       colorMuted,
	model.StatusReview:      colorWarn,
	model.StatusApproved:    colorAccent,
	model.StatusImplemented: colorAccent,
	model.StatusVerified:    colorOK,
	model.StatusClosed:      colorOK,
}

var priorityColors = map[model.Priority]int{
	model.PriorityLow:      colorMuted,
	model.PriorityHigh:     colorWarn,
	model.PriorityCritical: colorAlert,
}

func paint(code int, s string) string {
	if noColor || code == 0 {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	return paint(colorAccent, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	return paint(colorMuted, s)
}

// RenderWarn returns s in the warning (amber) color.
func RenderWarn(s string) string {
	return paint(colorWarn, s)
}

// RenderStatus colors a status by lifecycle stage.
func RenderStatus(s model.Status) string {
	return paint(statusColors[s], string(s))
}

// RenderPriority colors LOW, HIGH and CRITICAL; MEDIUM stays plain.
func RenderPriority(p model.Priority) string {
	return paint(priorityColors[p], string(p))
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
