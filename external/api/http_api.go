package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/foxseedlab/kikitorin/external/microphone"
	"github.com/foxseedlab/kikitorin/internal/controller"
	"github.com/foxseedlab/kikitorin/internal/repository"
)

const (
	maxAudioPacketBytes = 64 << 10
	recentSessionsLimit = 50
)

// Server is the HTTP control surface: start/stop the recording cycle,
// inspect state, list persisted cycles, and ingest remote opus packets.
// Transcripts are delivered through the controller's callbacks and the
// webhook, not through HTTP responses.
type Server struct {
	addr   string
	ctrl   *controller.Controller
	remote *microphone.RemoteGate
	repo   repository.Repository
	srv    *http.Server
}

// NewServer wires the control API. remote may be nil when the local
// microphone source is configured; the audio ingest endpoint then rejects.
func NewServer(addr string, ctrl *controller.Controller, remote *microphone.RemoteGate, repo repository.Repository) *Server {
	return &Server{addr: addr, ctrl: ctrl, remote: remote, repo: repo}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/recording/start", s.handleStart)
	mux.HandleFunc("POST /v1/recording/stop", s.handleStop)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/sessions", s.handleSessions)
	mux.HandleFunc("POST /v1/audio", s.handleAudio)
	return mux
}

func (s *Server) Run() error {
	s.srv = &http.Server{Addr: s.addr, Handler: s.Handler()}
	slog.Info("control api listening", "addr", s.addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type statusResponse struct {
	State       controller.State `json:"state"`
	Initialized bool             `json:"initialized"`
	Recording   bool             `json:"recording"`
	Loading     bool             `json:"loading"`
}

type errorResponse struct {
	Error       string               `json:"error"`
	Kind        controller.ErrorKind `json:"kind,omitempty"`
	Recoverable bool                 `json:"recoverable"`
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	// The capture outlives the request, so the request context is not used.
	if err := s.ctrl.StartRecording(context.Background()); err != nil {
		writeError(w, err)
		return
	}
	s.writeStatus(w)
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.StopRecording(context.Background()); err != nil {
		writeError(w, err)
		return
	}
	s.writeStatus(w)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeStatus(w)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.repo.ListRecentSessions(r.Context(), recentSessionsLimit)
	if err != nil {
		slog.Error("failed to list sessions", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list sessions"})
		return
	}
	if sessions == nil {
		sessions = []repository.RecordingSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "remote capture is not enabled"})
		return
	}
	streamID := r.URL.Query().Get("stream")
	if streamID == "" {
		streamID = "default"
	}
	packet, err := io.ReadAll(io.LimitReader(r.Body, maxAudioPacketBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read packet"})
		return
	}
	s.remote.PushPacket(streamID, packet)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) writeStatus(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, statusResponse{
		State:       s.ctrl.State(),
		Initialized: s.ctrl.IsInitialized(),
		Recording:   s.ctrl.IsRecording(),
		Loading:     s.ctrl.IsLoading(),
	})
}

func writeError(w http.ResponseWriter, err error) {
	kind := controller.KindOf(err)
	writeJSON(w, statusCodeForKind(kind), errorResponse{
		Error:       err.Error(),
		Kind:        kind,
		Recoverable: controller.IsRecoverable(err),
	})
}

func statusCodeForKind(kind controller.ErrorKind) int {
	switch kind {
	case controller.KindNotReady:
		return http.StatusConflict
	case controller.KindPermission:
		return http.StatusForbidden
	case controller.KindDisposed:
		return http.StatusGone
	case controller.KindStart, controller.KindStop:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
