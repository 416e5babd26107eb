// Package transcribe runs windowed inference over a sample buffer and
// stitches the per-window text into a transcript.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"yt2text/internal/audio"
	"yt2text/internal/errs"
	"yt2text/internal/model"
)

// Default windowing parameters.
const (
	DefaultWindow = 30 * time.Second
	DefaultStride = 5 * time.Second
)

// Chunk is the text recognized for one window.
type Chunk struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Transcript is the ordered chunk list and their concatenated text.
type Transcript struct {
	Text   string  `json:"text"`
	Chunks []Chunk `json:"chunks"`
}

// Empty reports whether no speech was recognized.
func (t *Transcript) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}

// Engine transcribes sample buffers using a shared recognizer handle. The
// handle belongs to the caller; Engine never closes it.
type Engine struct {
	Model  *model.Shared
	Window time.Duration
	Stride time.Duration
}

func NewEngine(shared *model.Shared, window, stride time.Duration) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	if stride < 0 {
		stride = DefaultStride
	}
	return &Engine{Model: shared, Window: window, Stride: stride}
}

// Transcribe runs one inference per window in chronological order. Overlap
// between windows is not deduplicated; the non-empty window texts are joined
// with single spaces. An empty result is not an error.
func (e *Engine) Transcribe(ctx context.Context, buf *audio.SampleBuffer) (*Transcript, error) {
	if buf == nil || len(buf.Samples) == 0 {
		return nil, errs.New(errs.KindModel, "transcribe", "empty sample buffer")
	}

	windows, err := Plan(len(buf.Samples), buf.SampleRate, e.Window, e.Stride)
	if err != nil {
		return nil, errs.Wrap(errs.KindModel, "transcribe", "invalid windowing", err)
	}

	lease, err := e.Model.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	slog.Info("starting transcription",
		"windows", len(windows),
		"window", e.Window.String(),
		"stride", e.Stride.String(),
		"duration", buf.Duration().String())

	chunks := make([]Chunk, 0, len(windows))
	for _, w := range windows {
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.KindModel, "transcribe", "transcription cancelled", ctx.Err())
		default:
		}

		start := time.Now()
		text, err := lease.Recognize(ctx, buf.Samples[w.Start:w.End], buf.SampleRate)
		if err != nil {
			return nil, errs.Wrap(errs.KindModel, "recognize",
				fmt.Sprintf("inference failed on window %d/%d", w.Index+1, len(windows)), err)
		}

		chunks = append(chunks, Chunk{
			Index: w.Index,
			Start: offset(w.Start, buf.SampleRate),
			End:   offset(w.End, buf.SampleRate),
			Text:  text,
		})
		slog.Debug("window transcribed",
			"window", fmt.Sprintf("%d/%d", w.Index+1, len(windows)),
			"chars", len(text),
			"elapsed", time.Since(start).String())
	}

	t := &Transcript{Text: join(chunks), Chunks: chunks}
	slog.Info("transcription complete", "chars", len(t.Text), "empty", t.Empty())
	return t, nil
}

func join(chunks []Chunk) string {
	if len(chunks) == 1 {
		return chunks[0].Text
	}
	var text string
	for _, c := range chunks {
		if c.Text == "" {
			continue
		}
		if text != "" {
			text += " "
		}
		text += c.Text
	}
	return text
}
