package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	internalwebhook "github.com/foxseedlab/kikitorin/internal/webhook"
)

func TestSendTranscript_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	err := sender.SendTranscript(context.Background(), internalwebhook.TranscriptPayload{Text: "hello"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendTranscript_Success(t *testing.T) {
	var got internalwebhook.TranscriptPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	payload := internalwebhook.TranscriptPayload{
		SessionID:       "session-1",
		VoiceProfileID:  "projects/p/locations/global/recognizers/default",
		Text:            "hello world",
		CapturedAt:      time.Now().UTC().Truncate(time.Second),
		DurationSeconds: 12,
	}
	sender := NewHTTPSender(server.URL)
	if err := sender.SendTranscript(context.Background(), payload); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.Text != "hello world" || got.SessionID != "session-1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.DurationSeconds != 12 {
		t.Fatalf("unexpected duration: %d", got.DurationSeconds)
	}
}

func TestSendTranscript_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	err := sender.SendTranscript(context.Background(), internalwebhook.TranscriptPayload{Text: "x"})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
