package transcriber

import (
	"context"

	"github.com/foxseedlab/kikitorin/internal/audio"
)

// Transcript is the single result of one completed capture cycle.
type Transcript struct {
	Text string
}

// Settings identifies the caller and voice profile to the speech backend.
type Settings struct {
	CredentialsJSON string
	VoiceProfileID  string
	Language        string
	Location        string
}

// Transcriber is the capability surface the session controller depends on.
// Warmup is idempotent on success. Start opens exactly one capture fed from
// src; Stop ends it and returns the transcript. IsActive is a diagnostics
// query only. Close tears the backend down for good.
type Transcriber interface {
	Warmup(ctx context.Context) error
	Start(ctx context.Context, src audio.Source) error
	Stop(ctx context.Context) (Transcript, error)
	IsActive() bool
	Close() error
}

// Factory constructs the transcriber owned by one controller instance.
type Factory func(settings Settings) (Transcriber, error)
