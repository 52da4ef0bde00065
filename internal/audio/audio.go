package audio

// Source yields interleaved little-endian 16-bit PCM from an open capture.
// A short read (including zero) means no audio is buffered right now, not EOF.
type Source interface {
	ReadPCM(buf []byte) (int, error)
}

// Mixer turns per-stream opus packets into a single mixed PCM feed.
type Mixer interface {
	WriteOpusPacket(streamID string, opus []byte)
	ReadMixedPCM(buf []byte) (int, error)
	Close()
}

type MixerFactory func() Mixer
