package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	extmicrophone "github.com/foxseedlab/kikitorin/external/microphone"
	"github.com/foxseedlab/kikitorin/internal/audio"
	"github.com/foxseedlab/kikitorin/internal/controller"
	"github.com/foxseedlab/kikitorin/internal/microphone"
	"github.com/foxseedlab/kikitorin/internal/repository"
	"github.com/foxseedlab/kikitorin/internal/transcriber"
	"github.com/foxseedlab/kikitorin/internal/webhook"
)

type stubTranscriber struct {
	active bool
}

func (s *stubTranscriber) Warmup(_ context.Context) error { return nil }
func (s *stubTranscriber) Start(_ context.Context, _ audio.Source) error {
	s.active = true
	return nil
}
func (s *stubTranscriber) Stop(_ context.Context) (transcriber.Transcript, error) {
	s.active = false
	return transcriber.Transcript{Text: "stub transcript"}, nil
}
func (s *stubTranscriber) IsActive() bool { return s.active }
func (s *stubTranscriber) Close() error   { return nil }

type stubGrant struct{}

func (stubGrant) ReadPCM(_ []byte) (int, error) { return 0, nil }
func (stubGrant) Release()                      {}

type stubGate struct{}

func (stubGate) RequestAccess(_ context.Context) (microphone.CaptureGrant, error) {
	return stubGrant{}, nil
}

type stubRepository struct {
	sessions []repository.RecordingSession
}

func (r *stubRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.RecordingSession, error) {
	return &repository.RecordingSession{ID: "session-1", VoiceProfileID: input.VoiceProfileID, StartedAt: input.StartedAt, Status: repository.SessionStatusRunning}, nil
}
func (r *stubRepository) CompleteSession(_ context.Context, _ repository.CompleteSessionInput) error {
	return nil
}
func (r *stubRepository) SaveTranscript(_ context.Context, _ repository.SaveTranscriptInput) error {
	return nil
}
func (r *stubRepository) ListRecentSessions(_ context.Context, _ int) ([]repository.RecordingSession, error) {
	return r.sessions, nil
}

type stubWebhook struct{}

func (stubWebhook) SendTranscript(_ context.Context, _ webhook.TranscriptPayload) error { return nil }

type recordingMixer struct {
	packets int
}

func (m *recordingMixer) WriteOpusPacket(_ string, _ []byte) { m.packets++ }
func (m *recordingMixer) ReadMixedPCM(_ []byte) (int, error) { return 0, nil }
func (m *recordingMixer) Close()                             {}

func newTestServer(t *testing.T, initialize bool, remote *extmicrophone.RemoteGate, repo repository.Repository) *Server {
	t.Helper()
	if repo == nil {
		repo = &stubRepository{}
	}
	session := controller.SessionConfig{
		Credential:     `{"type":"service_account"}`,
		VoiceProfileID: "projects/p/locations/global/recognizers/default",
	}
	factory := func(_ transcriber.Settings) (transcriber.Transcriber, error) {
		return &stubTranscriber{}, nil
	}
	var gate microphone.Gate = stubGate{}
	if remote != nil {
		gate = remote
	}
	ctrl := controller.New(session, "test", factory, gate, repo, stubWebhook{}, nil)
	if initialize {
		if err := ctrl.Initialize(context.Background()); err != nil {
			t.Fatalf("initialize failed: %v", err)
		}
	}
	return NewServer(":0", ctrl, remote, repo)
}

func decodeStatus(t *testing.T, resp *http.Response) statusResponse {
	t.Helper()
	defer resp.Body.Close()
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	return status
}

func TestStartStop_FullCycle(t *testing.T) {
	server := httptest.NewServer(newTestServer(t, true, nil, nil).Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/v1/recording/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected start status: %d", resp.StatusCode)
	}
	status := decodeStatus(t, resp)
	if !status.Recording || status.State != controller.StateRecording {
		t.Fatalf("expected recording status, got %+v", status)
	}

	resp, err = http.Post(server.URL+"/v1/recording/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("stop request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stop status: %d", resp.StatusCode)
	}
	status = decodeStatus(t, resp)
	if status.Recording || status.State != controller.StateReady {
		t.Fatalf("expected ready status, got %+v", status)
	}
}

func TestStart_BeforeInitializeIsConflict(t *testing.T) {
	server := httptest.NewServer(newTestServer(t, false, nil, nil).Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/v1/recording/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if body.Kind != controller.KindNotReady || !body.Recoverable {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestStop_WhileIdleIsOK(t *testing.T) {
	server := httptest.NewServer(newTestServer(t, true, nil, nil).Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/v1/recording/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("stop request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	status := decodeStatus(t, resp)
	if status.State != controller.StateReady {
		t.Fatalf("expected ready, got %+v", status)
	}
}

func TestSessions_ListsPersistedCycles(t *testing.T) {
	repo := &stubRepository{sessions: []repository.RecordingSession{{
		ID:             "session-1",
		VoiceProfileID: "projects/p/locations/global/recognizers/default",
		StartedAt:      time.Now(),
		Status:         repository.SessionStatusCompleted,
	}}}
	server := httptest.NewServer(newTestServer(t, true, nil, repo).Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/sessions")
	if err != nil {
		t.Fatalf("sessions request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var sessions []repository.RecordingSession
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("failed to decode sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "session-1" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestAudio_WithoutRemoteSourceIsConflict(t *testing.T) {
	server := httptest.NewServer(newTestServer(t, true, nil, nil).Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/v1/audio", "application/octet-stream", strings.NewReader("packet"))
	if err != nil {
		t.Fatalf("audio request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestAudio_RoutesPacketsToLiveCapture(t *testing.T) {
	mixer := &recordingMixer{}
	remote := extmicrophone.NewRemoteGate(func() audio.Mixer { return mixer })
	apiServer := newTestServer(t, true, remote, nil)
	server := httptest.NewServer(apiServer.Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/v1/recording/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected start status: %d", resp.StatusCode)
	}

	resp, err = http.Post(server.URL+"/v1/audio?stream=client-1", "application/octet-stream", strings.NewReader("opus"))
	if err != nil {
		t.Fatalf("audio request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected audio status: %d", resp.StatusCode)
	}
	if mixer.packets != 1 {
		t.Fatalf("expected one routed packet, got %d", mixer.packets)
	}
}
