package microphone

import (
	"context"
	"testing"

	"github.com/foxseedlab/kikitorin/internal/audio"
)

type fakeMixer struct {
	packets map[string][][]byte
	pcm     []byte
	closed  bool
}

func (m *fakeMixer) WriteOpusPacket(streamID string, opus []byte) {
	if m.packets == nil {
		m.packets = make(map[string][][]byte)
	}
	m.packets[streamID] = append(m.packets[streamID], opus)
}

func (m *fakeMixer) ReadMixedPCM(buf []byte) (int, error) {
	n := copy(buf, m.pcm)
	m.pcm = m.pcm[n:]
	return n, nil
}

func (m *fakeMixer) Close() { m.closed = true }

func newTestGate() (*RemoteGate, *fakeMixer) {
	mixer := &fakeMixer{}
	gate := NewRemoteGate(func() audio.Mixer { return mixer })
	return gate, mixer
}

func TestRequestAccess_SecondGrantDenied(t *testing.T) {
	gate, _ := newTestGate()

	grant, err := gate.RequestAccess(context.Background())
	if err != nil {
		t.Fatalf("expected grant, got %v", err)
	}
	if _, err := gate.RequestAccess(context.Background()); err == nil {
		t.Fatal("expected second request to be denied while grant is live")
	}

	grant.Release()
	if _, err := gate.RequestAccess(context.Background()); err != nil {
		t.Fatalf("expected grant after release, got %v", err)
	}
}

func TestPushPacket_RoutesToLiveGrant(t *testing.T) {
	gate, mixer := newTestGate()

	gate.PushPacket("client-1", []byte{1, 2, 3})
	if len(mixer.packets) != 0 {
		t.Fatal("expected packets before grant to be dropped")
	}

	grant, err := gate.RequestAccess(context.Background())
	if err != nil {
		t.Fatalf("expected grant, got %v", err)
	}
	gate.PushPacket("client-1", []byte{4, 5})
	if got := len(mixer.packets["client-1"]); got != 1 {
		t.Fatalf("expected one routed packet, got %d", got)
	}

	grant.Release()
	gate.PushPacket("client-1", []byte{6})
	if got := len(mixer.packets["client-1"]); got != 1 {
		t.Fatalf("expected packets after release to be dropped, got %d", got)
	}
}

func TestRelease_ClosesMixerOnce(t *testing.T) {
	gate, mixer := newTestGate()

	grant, err := gate.RequestAccess(context.Background())
	if err != nil {
		t.Fatalf("expected grant, got %v", err)
	}
	pcm := make([]byte, 4)
	mixer.pcm = []byte{9, 9, 9, 9}
	n, err := grant.ReadPCM(pcm)
	if err != nil || n != 4 {
		t.Fatalf("unexpected read: n=%d err=%v", n, err)
	}

	grant.Release()
	grant.Release()
	if !mixer.closed {
		t.Fatal("expected mixer to be closed on release")
	}
}
