package model

import "testing"

func TestKnownViolationKindCoversCanonicalSet(t *testing.T) {
	canonical := []ViolationKind{
		ViolationTabSwitch,
		ViolationWindowBlur,
		ViolationFullscreenExit,
		ViolationCopyAttempt,
		ViolationRightClick,
		ViolationKeyboardBlock,
	}
	for _, k := range canonical {
		if !KnownViolationKind(k) {
			t.Errorf("canonical kind %q reported unknown", k)
		}
		if DescribeViolation(k) == "" {
			t.Errorf("canonical kind %q has no advisory text", k)
		}
	}

	if KnownViolationKind("camera_face_missing") {
		t.Error("non-canonical kind must report unknown")
	}
	if DescribeViolation("camera_face_missing") == "" {
		t.Error("unknown kinds still get the generic advisory text")
	}
}
