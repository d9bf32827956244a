// Package audio reads and writes RIFF/WAVE files for entry audio and local
// playback.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dkeye/Classroom/internal/domain"
)

const (
	formatPCM   = 1
	formatFloat = 3
)

var ErrNotWAV = errors.New("not a WAV file")

// ReadWAV decodes 16-bit PCM or 32-bit float WAV data into float32 samples.
// Float data is kept bit for bit.
func ReadWAV(r io.Reader) (*domain.AudioBuffer, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		tag      uint16
		channels uint16
		rate     uint32
		bits     uint16
		haveFmt  bool
		data     []byte
	)
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		off += 8
		if size < 0 || off+size > len(b) {
			return nil, fmt.Errorf("%w: chunk %q overruns file", ErrNotWAV, id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			tag = binary.LittleEndian.Uint16(b[off:])
			channels = binary.LittleEndian.Uint16(b[off+2:])
			rate = binary.LittleEndian.Uint32(b[off+4:])
			bits = binary.LittleEndian.Uint16(b[off+14:])
			haveFmt = true
		case "data":
			data = b[off : off+size]
		}
		// chunks are word aligned
		off += size + size&1
	}
	if !haveFmt || data == nil {
		return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrNotWAV)
	}
	if channels == 0 || rate == 0 {
		return nil, fmt.Errorf("%w: bad format", ErrNotWAV)
	}

	buf := &domain.AudioBuffer{SampleRate: int(rate), Channels: int(channels)}
	switch {
	case tag == formatPCM && bits == 16:
		buf.Samples = PCM16ToFloat(data)
	case tag == formatFloat && bits == 32:
		buf.Samples = make([]float32, len(data)/4)
		for i := range buf.Samples {
			buf.Samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %d/%d bits", ErrNotWAV, tag, bits)
	}
	// drop a trailing partial frame
	buf.Samples = buf.Samples[:len(buf.Samples)-len(buf.Samples)%buf.Channels]
	return buf, nil
}

func ReadWAVFile(path string) (*domain.AudioBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// WriteWAV encodes buf as 32-bit float WAV.
func WriteWAV(w io.Writer, buf *domain.AudioBuffer) error {
	if buf == nil || buf.Channels <= 0 || buf.SampleRate <= 0 {
		return errors.New("audio: invalid buffer")
	}
	dataLen := uint32(len(buf.Samples) * 4)
	blockAlign := uint16(buf.Channels * 4)

	hdr := make([]byte, 44)
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], 36+dataLen)
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], formatFloat)
	binary.LittleEndian.PutUint16(hdr[22:], uint16(buf.Channels))
	binary.LittleEndian.PutUint32(hdr[24:], uint32(buf.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:], uint32(buf.SampleRate)*uint32(blockAlign))
	binary.LittleEndian.PutUint16(hdr[32:], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:], 32)
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], dataLen)
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	body := make([]byte, dataLen)
	for i, s := range buf.Samples {
		binary.LittleEndian.PutUint32(body[i*4:], math.Float32bits(s))
	}
	_, err := w.Write(body)
	return err
}

// PCM16ToFloat converts little-endian signed 16-bit samples to [-1,1).
// An odd trailing byte is ignored.
func PCM16ToFloat(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(b[i*2:]))) / 32768
	}
	return out
}
