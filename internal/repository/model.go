package repository

import "time"

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

type RecordingSession struct {
	ID             string
	VoiceProfileID string
	MicSource      string
	StartedAt      time.Time
	EndedAt        *time.Time
	Status         SessionStatus
}

type TranscriptRecord struct {
	ID         string
	SessionID  string
	Content    string
	CapturedAt time.Time
	CreatedAt  time.Time
}
