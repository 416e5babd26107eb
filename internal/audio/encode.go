package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV renders mono float32 samples as a 16-bit PCM WAV file in memory.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	sb := &seekBuffer{}
	if err := encodePCM16(sb, samples, sampleRate); err != nil {
		return nil, err
	}
	return sb.buf, nil
}

// WriteWAV writes mono float32 samples to path as 16-bit PCM WAV.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodePCM16(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteInterleavedWAV writes integer PCM frames with an arbitrary channel
// count and bit depth. Used for fixtures and tooling.
func WriteInterleavedWAV(w io.WriteSeeker, data []int, sampleRate, channels, bitDepth int) error {
	enc := wav.NewEncoder(w, sampleRate, bitDepth, channels, formatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}

func encodePCM16(w io.WriteSeeker, samples []float32, sampleRate int) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = floatToPCM16(s)
	}
	return WriteInterleavedWAV(w, data, sampleRate, 1, 16)
}

func floatToPCM16(s float32) int {
	v := math.Round(float64(s) * math.MaxInt16)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int(v)
}

// seekBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}
