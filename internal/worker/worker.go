package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"yt2text/internal/audio"
	"yt2text/internal/errs"
	"yt2text/internal/ffmpeg"
	"yt2text/internal/media"
	"yt2text/internal/transcribe"
	"yt2text/internal/youtube"
)

// Downloader persists the audio of a validated source. *youtube.Fetcher
// implements it.
type Downloader interface {
	FetchSource(ctx context.Context, src *youtube.MediaSource) (*media.Artifact, error)
}

// Converter turns a compressed file into a canonical 16 kHz mono WAV and
// returns its path. *ffmpeg.Converter and *mp3.Converter implement it.
type Converter interface {
	Convert(ctx context.Context, in string) (string, error)
}

// Preparer loads a canonical WAV into a sample buffer.
type Preparer interface {
	Prepare(ctx context.Context, path string) (*audio.SampleBuffer, error)
}

// Transcriber runs windowed recognition over a sample buffer.
type Transcriber interface {
	Transcribe(ctx context.Context, buf *audio.SampleBuffer) (*transcribe.Transcript, error)
}

// Result is the outcome of one pipeline run.
type Result struct {
	Transcription string             `json:"transcription"`
	VideoID       string             `json:"video_id,omitempty"`
	Title         string             `json:"title,omitempty"`
	Chunks        []transcribe.Chunk `json:"chunks,omitempty"`
	RunID         string             `json:"-"`
}

// Empty reports whether no speech was detected.
func (r *Result) Empty() bool {
	return r == nil || strings.TrimSpace(r.Transcription) == ""
}

// Pipeline wires download, conversion, preprocessing and transcription.
// Stages run sequentially and the first failure is returned unchanged.
type Pipeline struct {
	Downloader  Downloader
	Converter   Converter
	Preparer    Preparer
	Transcriber Transcriber

	// KeepArtifacts leaves the downloaded file and the converted WAV in the
	// data directory after the run.
	KeepArtifacts bool
	// ProbeMedia logs ffprobe details of the downloaded file.
	ProbeMedia bool
}

func New(d Downloader, c Converter, p Preparer, t Transcriber) *Pipeline {
	return &Pipeline{Downloader: d, Converter: c, Preparer: p, Transcriber: t, KeepArtifacts: true}
}

// Run transcribes the video behind rawURL. An invalid URL fails before any
// network or filesystem access.
func (p *Pipeline) Run(ctx context.Context, rawURL string) (*Result, error) {
	src, err := youtube.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := slog.With("run_id", runID, "video_id", src.VideoID)
	start := time.Now()
	log.Info("run started", "url", src.URL)

	compressed, err := p.Downloader.FetchSource(ctx, src)
	if err != nil {
		log.Error("download failed", "err", err)
		return nil, err
	}
	defer p.cleanup(log, compressed)

	if p.ProbeMedia {
		ffmpeg.LogMediaInfo(ctx, compressed.Path)
	}

	res, err := p.fromCompressed(ctx, log, compressed.Path)
	if err != nil {
		return nil, err
	}
	res.RunID = runID
	res.VideoID = src.VideoID
	res.Title = src.Title

	log.Info("run finished", "elapsed", time.Since(start).Round(time.Millisecond).String(), "empty", res.Empty())
	return res, nil
}

// RunFile transcribes a local compressed audio file. The input file is never
// removed.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errs.Wrap(errs.KindInvalidSource, "stat", "input file not found", err)
	}

	runID := uuid.NewString()
	log := slog.With("run_id", runID, "file", filepath.Base(path))
	start := time.Now()
	log.Info("run started")

	if p.ProbeMedia {
		ffmpeg.LogMediaInfo(ctx, path)
	}

	res, err := p.fromCompressed(ctx, log, path)
	if err != nil {
		return nil, err
	}
	res.RunID = runID

	log.Info("run finished", "elapsed", time.Since(start).Round(time.Millisecond).String(), "empty", res.Empty())
	return res, nil
}

func (p *Pipeline) fromCompressed(ctx context.Context, log *slog.Logger, path string) (*Result, error) {
	wavPath, err := p.Converter.Convert(ctx, path)
	if err != nil {
		log.Error("conversion failed", "err", err)
		return nil, err
	}
	defer p.cleanup(log, &media.Artifact{Path: wavPath, Format: media.Canonical()})

	buf, err := p.Preparer.Prepare(ctx, wavPath)
	if err != nil {
		log.Error("preprocessing failed", "err", err)
		return nil, err
	}
	log.Debug("audio prepared", "samples", len(buf.Samples), "duration", buf.Duration().String())

	t, err := p.Transcriber.Transcribe(ctx, buf)
	if err != nil {
		log.Error("transcription failed", "err", err)
		return nil, err
	}
	return &Result{Transcription: t.Text, Chunks: t.Chunks}, nil
}

func (p *Pipeline) cleanup(log *slog.Logger, a *media.Artifact) {
	if p.KeepArtifacts {
		return
	}
	if err := a.Remove(); err != nil {
		log.Debug("cleanup artifact", "file", filepath.Base(a.Path), "err", err)
	}
}
