// Package audio turns canonical waveform files into the mono float32 sample
// buffers consumed by the recognizer.
package audio

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"yt2text/internal/errs"
	"yt2text/internal/media"
)

// SampleBuffer is mono float32 audio in [-1, 1] at SampleRate.
type SampleBuffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the length of the buffer in time.
func (b *SampleBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Preparer loads waveform files. TargetRate defaults to 16 kHz.
type Preparer struct {
	TargetRate int
}

func NewPreparer() *Preparer {
	return &Preparer{TargetRate: media.CanonicalSampleRate}
}

// Prepare loads path, normalizes it to float32 at the target rate and
// downmixes it to mono. It never returns an empty buffer.
func (p *Preparer) Prepare(ctx context.Context, path string) (*SampleBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.KindCorruptAudio, "prepare", "cancelled before loading audio", err)
	}

	target := p.TargetRate
	if target <= 0 {
		target = media.CanonicalSampleRate
	}

	w, err := LoadWAV(path)
	if err != nil {
		msg := "could not read waveform file"
		if errors.Is(err, errCorrupt) {
			msg = "invalid or corrupted WAV file"
		}
		return nil, errs.Wrap(errs.KindCorruptAudio, "prepare", msg, err)
	}

	channels := w.Channels
	if w.SampleRate != target {
		slog.Debug("resampling waveform", "from_hz", w.SampleRate, "to_hz", target)
		resampled := make([][]float32, len(channels))
		for i, ch := range channels {
			resampled[i] = Resample(ch, w.SampleRate, target)
		}
		channels = resampled
	}

	mono := Downmix(channels)
	if len(mono) == 0 {
		return nil, errs.New(errs.KindCorruptAudio, "prepare", "waveform contains no samples")
	}

	buf := &SampleBuffer{Samples: mono, SampleRate: target}
	slog.Info("audio prepared",
		"file", filepath.Base(path),
		"source_channels", len(w.Channels),
		"source_rate_hz", w.SampleRate,
		"source_bits", w.BitDepth,
		"samples", len(mono),
		"duration", buf.Duration().String())
	return buf, nil
}
