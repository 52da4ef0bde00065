package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/kikitorin/internal/audio"
	"github.com/foxseedlab/kikitorin/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	audioSampleRateHertz  = 48000
	audioChannelCount     = 2
	audioFrameInterval    = 20 * time.Millisecond
	audioFrameBytes       = audioSampleRateHertz / 1000 * int(audioFrameInterval/time.Millisecond) * audioChannelCount * 2
)

// CloudSpeechTranscriber implements the transcriber contract over the
// Cloud Speech v2 streaming API. One capture cycle maps to one
// StreamingRecognize call; the transcript is the joined final results.
type CloudSpeechTranscriber struct {
	settings transcriber.Settings

	mu     sync.Mutex
	client *speech.Client
	active *captureStream
}

func NewCloudSpeechTranscriber(settings transcriber.Settings) transcriber.Transcriber {
	settings.Location = strings.TrimSpace(settings.Location)
	if settings.Location == "" {
		settings.Location = "global"
	}
	return &CloudSpeechTranscriber{settings: settings}
}

func (t *CloudSpeechTranscriber) Warmup(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return nil
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(t.settings.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{option.WithAuthCredentials(creds)}
	if t.settings.Location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", t.settings.Location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create speech client: %w", err)
	}
	if _, err := client.GetRecognizer(ctx, &speechpb.GetRecognizerRequest{Name: t.settings.VoiceProfileID}); err != nil {
		_ = client.Close()
		return fmt.Errorf("resolve recognizer %q: %w", t.settings.VoiceProfileID, err)
	}

	t.client = client
	slog.Info("cloud speech warmed up", "recognizer", t.settings.VoiceProfileID, "location", t.settings.Location)
	return nil
}

func (t *CloudSpeechTranscriber) Start(ctx context.Context, src audio.Source) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return errors.New("transcriber not warmed up")
	}
	if t.active != nil {
		return errors.New("capture already open")
	}

	stream, err := t.client.StreamingRecognize(ctx)
	if err != nil {
		return fmt.Errorf("open recognize stream: %w", err)
	}
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer: t.settings.VoiceProfileID,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					LanguageCodes: []string{t.settings.Language},
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
							SampleRateHertz:   audioSampleRateHertz,
							AudioChannelCount: audioChannelCount,
						},
					},
					Features: &speechpb.RecognitionFeatures{},
				},
			},
		},
	}); err != nil {
		_ = stream.CloseSend()
		return fmt.Errorf("send recognize config: %w", err)
	}

	cs := &captureStream{
		stream:   stream,
		stopPump: make(chan struct{}),
		pumpDone: make(chan struct{}),
		recvDone: make(chan struct{}),
	}
	t.active = cs
	go cs.pump(src)
	go cs.receive()
	slog.Info("cloud speech capture started", "recognizer", t.settings.VoiceProfileID)
	return nil
}

func (t *CloudSpeechTranscriber) Stop(_ context.Context) (transcriber.Transcript, error) {
	t.mu.Lock()
	cs := t.active
	t.active = nil
	t.mu.Unlock()
	if cs == nil {
		return transcriber.Transcript{}, errors.New("no capture open")
	}

	close(cs.stopPump)
	<-cs.pumpDone
	if err := cs.stream.CloseSend(); err != nil {
		<-cs.recvDone
		return transcriber.Transcript{}, fmt.Errorf("close recognize stream: %w", err)
	}
	<-cs.recvDone

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.recvErr != nil {
		return transcriber.Transcript{}, fmt.Errorf("recognize stream failed: %w", cs.recvErr)
	}
	return transcriber.Transcript{Text: strings.Join(cs.finals, " ")}, nil
}

func (t *CloudSpeechTranscriber) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != nil
}

func (t *CloudSpeechTranscriber) Close() error {
	t.mu.Lock()
	cs := t.active
	t.active = nil
	client := t.client
	t.client = nil
	t.mu.Unlock()

	if cs != nil {
		close(cs.stopPump)
		<-cs.pumpDone
		_ = cs.stream.CloseSend()
	}
	if client != nil {
		return client.Close()
	}
	return nil
}

type captureStream struct {
	stream   speechpb.Speech_StreamingRecognizeClient
	stopPump chan struct{}
	pumpDone chan struct{}
	recvDone chan struct{}

	mu      sync.Mutex
	finals  []string
	recvErr error
}

func (cs *captureStream) pump(src audio.Source) {
	defer close(cs.pumpDone)
	ticker := time.NewTicker(audioFrameInterval)
	defer ticker.Stop()
	buf := make([]byte, audioFrameBytes)
	for {
		select {
		case <-cs.stopPump:
			return
		case <-ticker.C:
			n, err := src.ReadPCM(buf)
			if err != nil {
				slog.Warn("failed to read capture pcm", "error", err)
				return
			}
			if n == 0 {
				continue
			}
			req := &speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{Audio: buf[:n]},
			}
			if err := cs.stream.Send(req); err != nil {
				if !isExpectedStreamEnd(err) {
					slog.Error("failed to write pcm to recognize stream", "error", err)
				}
				return
			}
		}
	}
}

func (cs *captureStream) receive() {
	defer close(cs.recvDone)
	for {
		resp, err := cs.stream.Recv()
		if err != nil {
			if !isExpectedStreamEnd(err) {
				cs.mu.Lock()
				cs.recvErr = err
				cs.mu.Unlock()
			}
			return
		}
		for _, result := range resp.GetResults() {
			if !result.GetIsFinal() || len(result.GetAlternatives()) == 0 {
				continue
			}
			text := strings.TrimSpace(result.GetAlternatives()[0].GetTranscript())
			if text == "" {
				continue
			}
			cs.mu.Lock()
			cs.finals = append(cs.finals, text)
			cs.mu.Unlock()
		}
	}
}

func isExpectedStreamEnd(err error) bool {
	if err == io.EOF || errors.Is(err, context.Canceled) {
		return true
	}
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Canceled
}
