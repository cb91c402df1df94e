package engine

import (
	"context"
	"errors"
)

// ErrDisplayDenied is returned when the exclusive-display capability could
// not be acquired. Entry to the active phase is blocked until the candidate
// explicitly retries.
var ErrDisplayDenied = errors.New("exclusive display capability denied")

// DisplayCapability abstracts the exclusive display mode (fullscreen). The
// engine consumes it as a capability interface; it never reimplements the
// environment API. Release must be safe to call unconditionally, including
// when Acquire was never granted.
type DisplayCapability interface {
	Acquire(ctx context.Context) error
	Release()
}

// AcknowledgedDisplay is the server-side capability backed by a client
// acknowledgement: the browser reports that it entered fullscreen before
// the active phase begins.
type AcknowledgedDisplay struct {
	acknowledged bool
}

// NewAcknowledgedDisplay builds the capability from the consent-gate payload.
func NewAcknowledgedDisplay(acknowledged bool) *AcknowledgedDisplay {
	return &AcknowledgedDisplay{acknowledged: acknowledged}
}

// Acquire succeeds only if the client acknowledged fullscreen entry.
func (d *AcknowledgedDisplay) Acquire(ctx context.Context) error {
	if !d.acknowledged {
		return ErrDisplayDenied
	}
	return nil
}

// Release is a no-op server-side; the client exits fullscreen on the
// terminal screen. Kept so teardown is unconditional and symmetric.
func (d *AcknowledgedDisplay) Release() {}
