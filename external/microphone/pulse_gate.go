package microphone

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/foxseedlab/kikitorin/internal/microphone"
	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	captureSampleRate = 48000
	// Unread capture beyond this is discarded oldest-first.
	pcmBufferLimit = 4 << 20
)

// PulseGate acquires the local microphone through the PulseAudio server.
// Any failure to connect, resolve, or open the source is surfaced as a
// denial; the controller translates it into a permission error.
type PulseGate struct {
	deviceMatch string
}

func NewPulseGate(deviceMatch string) microphone.Gate {
	return &PulseGate{deviceMatch: strings.TrimSpace(deviceMatch)}
}

func (g *PulseGate) RequestAccess(_ context.Context) (microphone.CaptureGrant, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("kikitorin"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := g.resolveSource(client)
	if err != nil {
		client.Close()
		return nil, err
	}

	grant := &pulseGrant{client: client}
	writer := pulse.NewWriter(writerFunc(grant.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordStereo,
		pulse.RecordSampleRate(captureSampleRate),
		pulse.RecordMediaName("kikitorin capture"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open record stream: %w", err)
	}
	grant.stream = stream
	stream.Start()
	return grant, nil
}

func (g *PulseGate) resolveSource(client *pulse.Client) (*pulse.Source, error) {
	if g.deviceMatch == "" || g.deviceMatch == "default" {
		source, err := client.DefaultSource()
		if err != nil {
			return nil, fmt.Errorf("resolve default source: %w", err)
		}
		return source, nil
	}
	source, err := client.SourceByID(g.deviceMatch)
	if err != nil {
		return nil, fmt.Errorf("resolve source %q: %w", g.deviceMatch, err)
	}
	return source, nil
}

type pulseGrant struct {
	client *pulse.Client
	stream *pulse.RecordStream

	mu       sync.Mutex
	buf      []byte
	released bool
}

func (p *pulseGrant) onPCM(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return 0, io.EOF
	}
	p.buf = append(p.buf, b...)
	if len(p.buf) > pcmBufferLimit {
		p.buf = p.buf[len(p.buf)-pcmBufferLimit:]
	}
	return len(b), nil
}

func (p *pulseGrant) ReadPCM(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(buf, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *pulseGrant) Release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.released = true
	p.mu.Unlock()

	p.stream.Stop()
	p.stream.Close()
	p.client.Close()
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
