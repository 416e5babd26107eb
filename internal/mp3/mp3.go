// Package mp3 is an in-process substitute for the ffmpeg converter that
// handles MP3 input only.
package mp3

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"yt2text/internal/audio"
	"yt2text/internal/errs"
	"yt2text/internal/media"
)

// readChunk is the number of decoded bytes read between context checks.
const readChunk = 64 * 1024

// Converter decodes MP3 files and writes the canonical 16 kHz mono 16-bit
// WAV next to the input.
type Converter struct {
	SampleRate int
}

func NewConverter() *Converter {
	return &Converter{SampleRate: media.CanonicalSampleRate}
}

func (c *Converter) Convert(ctx context.Context, in string) (string, error) {
	if !strings.EqualFold(filepath.Ext(in), ".mp3") {
		return "", errs.New(errs.KindConversion, "mp3", "in-process converter only accepts .mp3 input, got "+filepath.Ext(in))
	}

	f, err := os.Open(in)
	if err != nil {
		return "", errs.Wrap(errs.KindConversion, "mp3", "could not open input", err)
	}
	defer f.Close()

	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		return "", errs.Wrap(errs.KindConversion, "mp3", "not a decodable MP3 stream", err)
	}

	left, right, err := decodeStereo(ctx, dec)
	if err != nil {
		return "", errs.Wrap(errs.KindConversion, "mp3", "decoding failed", err)
	}
	if len(left) == 0 {
		return "", errs.New(errs.KindConversion, "mp3", "MP3 stream contains no audio frames")
	}

	mono := audio.Resample(audio.Average(left, right), dec.SampleRate(), c.SampleRate)

	out := media.WithExt(in, "wav")
	tmpFile, err := os.CreateTemp(filepath.Dir(out), strings.TrimSuffix(filepath.Base(out), ".wav")+".*.part.wav")
	if err != nil {
		return "", errs.Wrap(errs.KindConversion, "mp3", "could not create temporary output", err)
	}
	tmp := tmpFile.Name()
	tmpFile.Close()
	if err := audio.WriteWAV(tmp, mono, c.SampleRate); err != nil {
		os.Remove(tmp)
		return "", errs.Wrap(errs.KindConversion, "mp3", "could not write waveform", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return "", errs.Wrap(errs.KindConversion, "mp3", "could not commit waveform", err)
	}

	slog.Info("conversion complete",
		"converter", "mp3",
		"source_rate_hz", dec.SampleRate(),
		"samples", len(mono),
		"output", out)
	return out, nil
}

// decodeStereo reads the decoder's interleaved 16-bit LE stereo output.
func decodeStereo(ctx context.Context, r io.Reader) (left, right []float32, err error) {
	buf := make([]byte, readChunk)
	var pending []byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		n, rerr := r.Read(buf)
		pending = append(pending, buf[:n]...)
		whole := len(pending) - len(pending)%4
		for i := 0; i < whole; i += 4 {
			lv := int16(binary.LittleEndian.Uint16(pending[i:]))
			rv := int16(binary.LittleEndian.Uint16(pending[i+2:]))
			left = append(left, float32(lv)/32768)
			right = append(right, float32(rv)/32768)
		}
		pending = pending[whole:]
		if rerr == io.EOF {
			return left, right, nil
		}
		if rerr != nil {
			return nil, nil, fmt.Errorf("read pcm: %w", rerr)
		}
	}
}
