package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV format tags.
const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

var errCorrupt = errors.New("invalid waveform")

// Waveform is a decoded WAV file with channels de-interleaved and samples
// normalized to [-1, 1].
type Waveform struct {
	Channels   [][]float32
	SampleRate int
	BitDepth   int
}

// Frames returns the number of samples per channel.
func (w *Waveform) Frames() int {
	if len(w.Channels) == 0 {
		return 0
	}
	return len(w.Channels[0])
}

// LoadWAV decodes the WAV file at path. Errors wrapping errCorrupt mean the
// file is not a usable waveform.
func LoadWAV(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAV decodes integer PCM (8/16/24/32-bit) or 32-bit float WAV data.
func DecodeWAV(r io.ReadSeeker) (*Waveform, error) {
	if declared, available, ok := dataChunkSize(r); ok && available < declared {
		return nil, fmt.Errorf("%w: truncated data chunk (%d of %d bytes)", errCorrupt, available, declared)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", errCorrupt)
	}

	format := int(d.WavAudioFormat)
	depth := int(d.BitDepth)
	channels := int(d.NumChans)
	switch {
	case format == formatFloat && depth == 32:
	case format == formatPCM || format == formatExtensible:
		if depth != 8 && depth != 16 && depth != 24 && depth != 32 {
			return nil, fmt.Errorf("%w: unsupported bit depth %d", errCorrupt, depth)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format tag %d/%d-bit", errCorrupt, format, depth)
	}
	if d.SampleRate == 0 {
		return nil, fmt.Errorf("%w: zero sample rate", errCorrupt)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("%w: no samples", errCorrupt)
	}
	bytesPerSample := (depth-1)/8 + 1
	if d.PCMSize > 0 && len(buf.Data)*bytesPerSample < d.PCMSize {
		return nil, fmt.Errorf("%w: truncated data chunk (%d of %d bytes)",
			errCorrupt, len(buf.Data)*bytesPerSample, d.PCMSize)
	}
	if len(buf.Data)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples do not fill %d channels", errCorrupt, len(buf.Data), channels)
	}

	return &Waveform{
		Channels:   deinterleave(buf, channels, format == formatFloat, depth),
		SampleRate: int(d.SampleRate),
		BitDepth:   depth,
	}, nil
}

// dataChunkSize walks the RIFF chunk headers and reports the size the data
// chunk declares and the bytes actually present after its header. The
// decoder pads short reads with stale bytes, so the comparison has to be
// made against the stream length. ok is false when no data chunk header
// can be read.
func dataChunkSize(r io.ReadSeeker) (declared, available int64, ok bool) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, false
	}
	pos := int64(12) // "RIFF", size, "WAVE"
	var hdr [8]byte
	for pos+8 <= end {
		if _, err := r.Seek(pos, io.SeekStart); err != nil {
			return 0, 0, false
		}
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return 0, 0, false
		}
		size := int64(binary.LittleEndian.Uint32(hdr[4:]))
		pos += 8
		if string(hdr[:4]) == "data" {
			return size, end - pos, true
		}
		pos += size + size&1
	}
	return 0, 0, false
}

func deinterleave(buf *goaudio.IntBuffer, channels int, isFloat bool, depth int) [][]float32 {
	frames := len(buf.Data) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	scale := float32(math.Ldexp(1, depth-1))
	for i, v := range buf.Data {
		var s float32
		switch {
		case isFloat:
			s = math.Float32frombits(uint32(int32(v)))
		case depth == 8:
			// 8-bit WAV is unsigned with a 128 midpoint.
			s = float32(v-128) / 128
		default:
			s = float32(v) / scale
		}
		out[i%channels][i/channels] = s
	}
	return out
}
