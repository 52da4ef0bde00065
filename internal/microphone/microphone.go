package microphone

import (
	"context"

	"github.com/foxseedlab/kikitorin/internal/audio"
)

// CaptureGrant is the capability handed out once microphone access is
// granted: a live PCM source plus the obligation to Release it.
type CaptureGrant interface {
	audio.Source
	Release()
}

// Gate wraps platform permission acquisition for audio capture. A failed
// RequestAccess means the platform or the user denied the microphone.
type Gate interface {
	RequestAccess(ctx context.Context) (CaptureGrant, error)
}
