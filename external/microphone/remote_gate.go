package microphone

import (
	"context"
	"errors"
	"sync"

	"github.com/foxseedlab/kikitorin/internal/audio"
	"github.com/foxseedlab/kikitorin/internal/microphone"
)

var errCaptureBusy = errors.New("remote capture already granted")

// RemoteGate accepts opus packets pushed by remote capture clients and
// exposes the mixed PCM as the microphone source. At most one grant is
// open at a time; a second request while one is live counts as a denial.
type RemoteGate struct {
	newMixer audio.MixerFactory

	mu     sync.Mutex
	active *remoteGrant
}

func NewRemoteGate(newMixer audio.MixerFactory) *RemoteGate {
	return &RemoteGate{newMixer: newMixer}
}

func (g *RemoteGate) RequestAccess(_ context.Context) (microphone.CaptureGrant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active != nil {
		return nil, errCaptureBusy
	}
	grant := &remoteGrant{gate: g, mixer: g.newMixer()}
	g.active = grant
	return grant, nil
}

// PushPacket routes one opus packet into the live grant's mixer. Packets
// arriving while no capture is open are dropped.
func (g *RemoteGate) PushPacket(streamID string, opusPacket []byte) {
	g.mu.Lock()
	grant := g.active
	g.mu.Unlock()
	if grant == nil {
		return
	}
	grant.mixer.WriteOpusPacket(streamID, opusPacket)
}

func (g *RemoteGate) releaseGrant(grant *remoteGrant) {
	g.mu.Lock()
	if g.active == grant {
		g.active = nil
	}
	g.mu.Unlock()
}

type remoteGrant struct {
	gate  *RemoteGate
	mixer audio.Mixer

	releaseOnce sync.Once
}

func (r *remoteGrant) ReadPCM(buf []byte) (int, error) {
	return r.mixer.ReadMixedPCM(buf)
}

func (r *remoteGrant) Release() {
	r.releaseOnce.Do(func() {
		r.gate.releaseGrant(r)
		r.mixer.Close()
	})
}
