// Package controller owns the voice-capture session lifecycle: microphone
// acquisition, the transcription collaborator, and observer-facing state.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/kikitorin/internal/microphone"
	"github.com/foxseedlab/kikitorin/internal/repository"
	"github.com/foxseedlab/kikitorin/internal/transcriber"
	"github.com/foxseedlab/kikitorin/internal/webhook"
)

// State is the lifecycle position of one controller instance. It is the
// single source of truth for which operations are currently legal.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateRecording     State = "recording"
	StateProcessing    State = "processing"
	StateDisposed      State = "disposed"

	// Transient phase between Ready and Recording while microphone access
	// and collaborator start are in flight. Surfaced to observers as the
	// loading flag, not a distinct state.
	stateStarting State = "starting"
	// Initialization failed for good; surfaced as Uninitialized.
	stateFailed State = "failed"
)

// SessionConfig identifies the caller and voice profile. Both fields are
// required; validation happens on Initialize without touching the network.
type SessionConfig struct {
	Credential     string
	VoiceProfileID string
}

func (s SessionConfig) validate() error {
	if s.Credential == "" {
		return errors.New("credential is required")
	}
	if s.VoiceProfileID == "" {
		return errors.New("voice profile id is required")
	}
	return nil
}

// Handler receives the outcome of recording cycles. OnResult fires exactly
// once per successful stop; OnError fires once per failed operation. Both
// run synchronously on the calling goroutine and must not block.
type Handler interface {
	OnResult(text string)
	OnError(err error)
}

// Callbacks adapts plain functions to Handler. Nil functions are no-ops.
type Callbacks struct {
	Result func(text string)
	Error  func(err error)
}

func (c Callbacks) OnResult(text string) {
	if c.Result != nil {
		c.Result(text)
	}
}

func (c Callbacks) OnError(err error) {
	if c.Error != nil {
		c.Error(err)
	}
}

// Snapshot is the observer-facing view of controller state.
type Snapshot struct {
	State       State
	Initialized bool
	Recording   bool
	Loading     bool
}

// Controller is the voice session state machine. One instance owns one
// transcriber and at most one microphone grant; neither is shared across
// instances. All transitions are serialized; collaborator calls happen
// outside the lock so unrelated work is never blocked.
type Controller struct {
	session        SessionConfig
	micSource      string
	newTranscriber transcriber.Factory
	mic            microphone.Gate
	repo           repository.Repository
	webhook        webhook.Sender
	handler        Handler

	mu        sync.Mutex
	state     State
	loading   bool
	initErr   error
	stt       transcriber.Transcriber
	grant     microphone.CaptureGrant
	cycle     *repository.RecordingSession
	startedAt time.Time
	observers []func(Snapshot)
}

func New(session SessionConfig, micSource string, newTranscriber transcriber.Factory, mic microphone.Gate, repo repository.Repository, wh webhook.Sender, handler Handler) *Controller {
	if handler == nil {
		handler = Callbacks{}
	}
	return &Controller{
		session:        session,
		micSource:      micSource,
		newTranscriber: newTranscriber,
		mic:            mic,
		repo:           repo,
		webhook:        wh,
		handler:        handler,
		state:          StateUninitialized,
	}
}

// Initialize validates the session config, constructs the transcriber, and
// warms it up. Any failure is fatal to this instance: the controller stays
// unusable and the caller must construct a new one to retry. Calling
// Initialize again after success is a no-op.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateDisposed:
		c.mu.Unlock()
		return c.reportError(errDisposed("initialize"))
	case stateFailed:
		err := c.initErr
		c.mu.Unlock()
		return err
	case StateUninitialized:
	default:
		c.mu.Unlock()
		return nil
	}
	c.state = StateInitializing
	c.mu.Unlock()
	c.publish()

	if err := c.session.validate(); err != nil {
		return c.failInitialization(newError(KindConfiguration, false, err))
	}

	stt, err := c.newTranscriber(transcriber.Settings{
		CredentialsJSON: c.session.Credential,
		VoiceProfileID:  c.session.VoiceProfileID,
	})
	if err != nil {
		return c.failInitialization(newError(KindInitialization, false, fmt.Errorf("construct transcriber: %w", err)))
	}
	if err := stt.Warmup(ctx); err != nil {
		_ = stt.Close()
		return c.failInitialization(newError(KindInitialization, false, fmt.Errorf("transcriber warmup: %w", err)))
	}

	c.mu.Lock()
	if c.state != StateInitializing {
		c.mu.Unlock()
		_ = stt.Close()
		return errDisposed("initialize")
	}
	c.stt = stt
	c.state = StateReady
	c.mu.Unlock()
	c.publish()
	slog.Info("voice session ready", "voice_profile_id", c.session.VoiceProfileID)
	return nil
}

func (c *Controller) failInitialization(verr *Error) error {
	c.mu.Lock()
	if c.state == StateInitializing {
		c.state = stateFailed
		c.initErr = verr
	}
	c.mu.Unlock()
	c.publish()
	return c.reportError(verr)
}

// StartRecording acquires the microphone and opens a capture on the
// transcriber. Rejected with a not-ready error unless state is Ready; a
// denial from the microphone gate surfaces as a permission error and the
// controller returns to Ready in both cases.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return c.reportError(errDisposed("start recording"))
	}
	if c.state != StateReady {
		state := c.publicStateLocked()
		c.mu.Unlock()
		return c.reportError(newError(KindNotReady, true, fmt.Errorf("cannot start recording in state %q", state)))
	}
	c.state = stateStarting
	c.loading = true
	stt := c.stt
	c.mu.Unlock()
	c.publish()

	grant, err := c.mic.RequestAccess(ctx)
	if err != nil {
		return c.failStart(newError(KindPermission, true, fmt.Errorf("microphone access denied: %w", err)))
	}

	if err := stt.Start(ctx, grant); err != nil {
		grant.Release()
		return c.failStart(newError(KindStart, true, fmt.Errorf("transcriber start: %w", err)))
	}

	startedAt := time.Now()
	cycle := c.persistCycleStart(ctx, startedAt)

	c.mu.Lock()
	if c.state != stateStarting {
		// Disposed while suspended; Close already tore down the transcriber.
		c.mu.Unlock()
		grant.Release()
		return errDisposed("start recording")
	}
	c.grant = grant
	c.cycle = cycle
	c.startedAt = startedAt
	c.state = StateRecording
	c.loading = false
	c.mu.Unlock()
	c.publish()
	slog.Info("recording started", "mic_source", c.micSource)
	return nil
}

func (c *Controller) failStart(verr *Error) error {
	c.mu.Lock()
	if c.state == stateStarting {
		c.state = StateReady
	}
	c.loading = false
	c.mu.Unlock()
	c.publish()
	return c.reportError(verr)
}

// StopRecording ends the capture and delivers the transcript through the
// result callback. Stopping while not recording is a tolerated no-op: UI
// double-clicks are expected, so no callback fires and nothing changes.
func (c *Controller) StopRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return c.reportError(errDisposed("stop recording"))
	}
	if c.state != StateRecording {
		c.mu.Unlock()
		return nil
	}
	c.state = StateProcessing
	c.loading = true
	stt := c.stt
	grant := c.grant
	c.grant = nil
	cycle := c.cycle
	c.cycle = nil
	startedAt := c.startedAt
	c.mu.Unlock()
	c.publish()

	result, err := stt.Stop(ctx)
	grant.Release()
	endedAt := time.Now()

	c.mu.Lock()
	if c.state != StateProcessing {
		c.mu.Unlock()
		return errDisposed("stop recording")
	}
	c.state = StateReady
	c.loading = false
	c.mu.Unlock()
	c.publish()

	if err != nil {
		c.persistCycleEnd(ctx, cycle, endedAt, repository.SessionStatusFailed)
		return c.reportError(newError(KindStop, true, fmt.Errorf("transcriber stop: %w", err)))
	}

	c.persistCycleEnd(ctx, cycle, endedAt, repository.SessionStatusCompleted)
	c.persistTranscript(ctx, cycle, result.Text, endedAt)
	c.deliverWebhook(ctx, cycle, result.Text, startedAt, endedAt)

	c.handler.OnResult(result.Text)
	slog.Info("recording cycle completed", "duration", endedAt.Sub(startedAt))
	return nil
}

// Close disposes the controller: the microphone grant and the transcriber
// are released and every later call fails with a disposed error. Closing
// twice is a no-op.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisposed
	c.loading = false
	grant := c.grant
	c.grant = nil
	stt := c.stt
	c.stt = nil
	c.cycle = nil
	c.mu.Unlock()
	c.publish()

	if grant != nil {
		grant.Release()
	}
	if stt != nil {
		if err := stt.Close(); err != nil {
			slog.Error("failed to close transcriber", "error", err)
		}
	}
	return nil
}

// Subscribe registers a state-change observer. Observers run synchronously
// after every transition and must not block.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publicStateLocked()
}

func (c *Controller) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializedLocked()
}

func (c *Controller) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRecording
}

func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller) publicStateLocked() State {
	switch c.state {
	case stateStarting:
		return StateReady
	case stateFailed:
		return StateUninitialized
	default:
		return c.state
	}
}

func (c *Controller) initializedLocked() bool {
	switch c.state {
	case StateReady, stateStarting, StateRecording, StateProcessing:
		return true
	default:
		return false
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:       c.publicStateLocked(),
		Initialized: c.initializedLocked(),
		Recording:   c.state == StateRecording,
		Loading:     c.loading,
	}
}

func (c *Controller) publish() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	observers := make([]func(Snapshot), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

func (c *Controller) reportError(verr *Error) error {
	c.handler.OnError(verr)
	return verr
}

func errDisposed(op string) *Error {
	return newError(KindDisposed, false, fmt.Errorf("%s: controller disposed", op))
}

func (c *Controller) persistCycleStart(ctx context.Context, startedAt time.Time) *repository.RecordingSession {
	if c.repo == nil {
		return nil
	}
	cycle, err := c.repo.CreateSession(ctx, repository.CreateSessionInput{
		VoiceProfileID: c.session.VoiceProfileID,
		MicSource:      c.micSource,
		StartedAt:      startedAt,
	})
	if err != nil {
		slog.Error("failed to persist recording session", "error", err)
		return nil
	}
	return cycle
}

func (c *Controller) persistCycleEnd(ctx context.Context, cycle *repository.RecordingSession, endedAt time.Time, status repository.SessionStatus) {
	if c.repo == nil || cycle == nil {
		return
	}
	err := c.repo.CompleteSession(ctx, repository.CompleteSessionInput{
		SessionID: cycle.ID,
		EndedAt:   endedAt,
		Status:    status,
	})
	if err != nil {
		slog.Error("failed to complete recording session", "error", err, "session_id", cycle.ID)
	}
}

func (c *Controller) persistTranscript(ctx context.Context, cycle *repository.RecordingSession, text string, capturedAt time.Time) {
	if c.repo == nil || cycle == nil {
		return
	}
	err := c.repo.SaveTranscript(ctx, repository.SaveTranscriptInput{
		SessionID:  cycle.ID,
		Content:    text,
		CapturedAt: capturedAt,
	})
	if err != nil {
		slog.Error("failed to save transcript", "error", err, "session_id", cycle.ID)
	}
}

func (c *Controller) deliverWebhook(ctx context.Context, cycle *repository.RecordingSession, text string, startedAt, endedAt time.Time) {
	if c.webhook == nil {
		return
	}
	payload := webhook.TranscriptPayload{
		VoiceProfileID:  c.session.VoiceProfileID,
		Text:            text,
		CapturedAt:      endedAt,
		DurationSeconds: int64(endedAt.Sub(startedAt).Seconds()),
	}
	if cycle != nil {
		payload.SessionID = cycle.ID
	}
	if err := c.webhook.SendTranscript(ctx, payload); err != nil {
		slog.Error("failed to send transcript webhook", "error", err)
	}
}
