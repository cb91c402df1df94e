package model

import "time"

// ViolationKind identifies the environment signal that produced a violation.
type ViolationKind string

const (
	ViolationTabSwitch      ViolationKind = "tab_switch"
	ViolationWindowBlur     ViolationKind = "window_blur"
	ViolationFullscreenExit ViolationKind = "fullscreen_exit"
	ViolationCopyAttempt    ViolationKind = "copy_attempt"
	ViolationRightClick     ViolationKind = "right_click"
	ViolationKeyboardBlock  ViolationKind = "keyboard_block"
)

// Violation is one entry of the append-only integrity log. Violations are
// advisory: they are recorded and surfaced, never used to end a session.
type Violation struct {
	Kind        ViolationKind `json:"kind"`
	Timestamp   time.Time     `json:"timestamp"`
	Description string        `json:"description"`
}

// violationDescriptions are the human-readable advisory texts.
var violationDescriptions = map[ViolationKind]string{
	ViolationTabSwitch:      "Tab switch detected. Stay on the exam screen.",
	ViolationWindowBlur:     "Exam window lost focus. Return to the exam.",
	ViolationFullscreenExit: "Fullscreen mode was exited. Please return to fullscreen.",
	ViolationCopyAttempt:    "Copying exam content is not allowed.",
	ViolationRightClick:     "Right-click is disabled during the exam.",
	ViolationKeyboardBlock:  "That keyboard shortcut is disabled during the exam.",
}

// DescribeViolation returns the advisory text for a signal kind. Unknown
// kinds (e.g. from a pluggable camera capability) get a generic text so the
// monitor never rejects a registered signal.
func DescribeViolation(kind ViolationKind) string {
	if d, ok := violationDescriptions[kind]; ok {
		return d
	}
	return "Integrity policy deviation detected."
}

// KnownViolationKind reports whether the kind is part of the canonical set.
func KnownViolationKind(kind ViolationKind) bool {
	_, ok := violationDescriptions[kind]
	return ok
}
