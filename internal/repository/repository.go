package repository

import (
	"context"
	"time"
)

type CreateSessionInput struct {
	VoiceProfileID string
	MicSource      string
	StartedAt      time.Time
}

type CompleteSessionInput struct {
	SessionID string
	EndedAt   time.Time
	Status    SessionStatus
}

type SaveTranscriptInput struct {
	SessionID  string
	Content    string
	CapturedAt time.Time
}

type Repository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*RecordingSession, error)
	CompleteSession(ctx context.Context, input CompleteSessionInput) error
	SaveTranscript(ctx context.Context, input SaveTranscriptInput) error
	ListRecentSessions(ctx context.Context, limit int) ([]RecordingSession, error)
}
