package dialogue

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dkeye/Classroom/internal/domain"
)

const (
	snapshotVersion = 1
	// SnapshotSize is the encoded length: version, int32 index, playing flag.
	SnapshotSize = 6
)

// EncodeSnapshot writes st using the fixed snapshot schema.
func EncodeSnapshot(st State) []byte {
	b := make([]byte, SnapshotSize)
	b[0] = snapshotVersion
	binary.LittleEndian.PutUint32(b[1:5], uint32(int32(st.Index)))
	if st.Playing {
		b[5] = 1
	}
	return b
}

// DecodeSnapshot is the inverse of EncodeSnapshot. It rejects anything that
// would produce a state breaking the invariants.
func DecodeSnapshot(b []byte) (State, error) {
	if len(b) != SnapshotSize {
		return State{}, fmt.Errorf("%w: length %d", ErrMalformedSnapshot, len(b))
	}
	if b[0] != snapshotVersion {
		return State{}, fmt.Errorf("%w: version %d", ErrMalformedSnapshot, b[0])
	}
	var playing bool
	switch b[5] {
	case 0:
	case 1:
		playing = true
	default:
		return State{}, fmt.Errorf("%w: playing flag %d", ErrMalformedSnapshot, b[5])
	}
	st := State{Index: int(int32(binary.LittleEndian.Uint32(b[1:5]))), Playing: playing}
	if !st.Valid(-1) {
		return State{}, fmt.Errorf("%w: invalid state %s", ErrMalformedSnapshot, st)
	}
	return st, nil
}

// EncodeSamples reinterprets float32 samples as little-endian bytes.
func EncodeSamples(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// DecodeSamples is the bit-exact inverse of EncodeSamples.
func DecodeSamples(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of samples", ErrMalformedAudio, len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// NewAudioData packs buf for delivery under the given dialogue index.
func NewAudioData(index int, buf *domain.AudioBuffer) (AudioData, error) {
	if buf.Empty() {
		return AudioData{}, fmt.Errorf("%w: empty buffer for entry %d", ErrMalformedAudio, index)
	}
	return AudioData{
		Index:      index,
		Samples:    EncodeSamples(buf.Samples),
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
	}, nil
}

// AudioFrameOverhead covers the envelope and payload fields around the
// base64 samples of an audio frame.
const AudioFrameOverhead = 1 << 12

// AudioFrameSize is an upper bound on the wire size of an audio frame that
// carries sampleBytes of encoded samples.
func AudioFrameSize(sampleBytes int) int64 {
	return int64(base64.StdEncoding.EncodedLen(sampleBytes)) + AudioFrameOverhead
}

// Buffer rebuilds a playable buffer from the payload.
func (a AudioData) Buffer() (*domain.AudioBuffer, error) {
	if a.Index < 0 {
		return nil, fmt.Errorf("%w: index %d", ErrMalformedAudio, a.Index)
	}
	if a.SampleRate <= 0 || a.Channels <= 0 {
		return nil, fmt.Errorf("%w: rate=%d channels=%d", ErrMalformedAudio, a.SampleRate, a.Channels)
	}
	samples, err := DecodeSamples(a.Samples)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 || len(samples)%a.Channels != 0 {
		return nil, fmt.Errorf("%w: %d samples over %d channels", ErrMalformedAudio, len(samples), a.Channels)
	}
	return &domain.AudioBuffer{SampleRate: a.SampleRate, Channels: a.Channels, Samples: samples}, nil
}
