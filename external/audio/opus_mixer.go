//go:build opus

package audio

import (
	"encoding/binary"
	"sync"

	"github.com/foxseedlab/kikitorin/internal/audio"
	"github.com/hraban/opus"
)

const (
	sampleRate      = 48000
	channels        = 2
	frameSizeMs     = 20
	samplesPerFrame = sampleRate * frameSizeMs * channels / 1000
)

// streamLane holds the decoder and pending frames for one remote audio stream.
type streamLane struct {
	decoder *opus.Decoder
	frames  [][]int16
}

func (l *streamLane) push(frame []int16) {
	l.frames = append(l.frames, frame)
}

func (l *streamLane) pop() ([]int16, bool) {
	if len(l.frames) == 0 {
		return nil, false
	}
	f := l.frames[0]
	l.frames = l.frames[1:]
	return f, true
}

type OpusMixer struct {
	mu     sync.Mutex
	lanes  map[string]*streamLane
	closed bool
}

func NewOpusMixer() audio.Mixer {
	return &OpusMixer{lanes: make(map[string]*streamLane)}
}

func (m *OpusMixer) WriteOpusPacket(streamID string, opusData []byte) {
	if len(opusData) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	lane, ok := m.lanes[streamID]
	if !ok {
		dec, err := opus.NewDecoder(sampleRate, channels)
		if err != nil {
			return
		}
		lane = &streamLane{decoder: dec}
		m.lanes[streamID] = lane
	}
	pcm := make([]int16, samplesPerFrame)
	n, err := lane.decoder.Decode(opusData, pcm)
	if err != nil || n == 0 {
		return
	}
	totalSamples := n * channels
	if totalSamples > samplesPerFrame {
		totalSamples = samplesPerFrame
	}
	frame := make([]int16, totalSamples)
	copy(frame, pcm[:totalSamples])
	lane.push(frame)
}

func (m *OpusMixer) ReadMixedPCM(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.hasQueuedFrames() {
		return 0, nil
	}
	mixed := make([]int16, samplesPerFrame)
	for _, lane := range m.lanes {
		frame, ok := lane.pop()
		if !ok {
			continue
		}
		for i := 0; i < len(frame) && i < samplesPerFrame; i++ {
			mixed[i] = clampPCM(int32(mixed[i]) + int32(frame[i]))
		}
	}

	toWrite := len(buf) / 2
	if toWrite > samplesPerFrame {
		toWrite = samplesPerFrame
	}
	for i := 0; i < toWrite; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(mixed[i]))
	}
	return toWrite * 2, nil
}

func (m *OpusMixer) hasQueuedFrames() bool {
	for _, lane := range m.lanes {
		if len(lane.frames) > 0 {
			return true
		}
	}
	return false
}

func clampPCM(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func (m *OpusMixer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.lanes = nil
}
