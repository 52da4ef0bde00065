package webhook

import (
	"context"
	"time"
)

type TranscriptPayload struct {
	SessionID       string    `json:"session_id,omitempty"`
	VoiceProfileID  string    `json:"voice_profile_id"`
	Text            string    `json:"text"`
	CapturedAt      time.Time `json:"captured_at"`
	DurationSeconds int64     `json:"duration_seconds"`
}

type Sender interface {
	SendTranscript(ctx context.Context, payload TranscriptPayload) error
}
