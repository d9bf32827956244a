package domain

import "time"

// AudioBuffer holds interleaved float32 PCM samples.
type AudioBuffer struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// Frames is the number of samples per channel.
func (b *AudioBuffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration is the playback length of the buffer.
func (b *AudioBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Empty reports whether the buffer has nothing playable.
func (b *AudioBuffer) Empty() bool {
	return b == nil || b.SampleRate <= 0 || b.Channels <= 0 || b.Frames() == 0
}
