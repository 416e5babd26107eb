package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"yt2text/internal/audio"
	"yt2text/internal/config"
	"yt2text/internal/errs"
	"yt2text/internal/ffmpeg"
	"yt2text/internal/model"
	"yt2text/internal/mp3"
	"yt2text/internal/render"
	"yt2text/internal/transcribe"
	"yt2text/internal/worker"
	"yt2text/internal/youtube"
)

// buildPipeline wires the stages from cfg. The returned model handle is
// owned by the caller and must be closed once every run has finished.
func buildPipeline(c *config.Config) (*worker.Pipeline, *model.Shared, error) {
	var conv worker.Converter
	switch c.Converter {
	case config.ConverterMP3:
		conv = mp3.NewConverter()
	default:
		if !ffmpeg.Available(c.FFmpegPath) {
			return nil, nil, errs.New(errs.KindConversion, "ffmpeg",
				fmt.Sprintf("%s not found in PATH (install ffmpeg or use --converter mp3)", c.FFmpegPath))
		}
		conv = ffmpeg.NewConverter(c.FFmpegPath)
	}

	shared := model.NewShared(model.NewOpenAILoader(c.OpenAIOptions()), c.Model.InferenceSlots)
	fetcher := youtube.NewFetcher(youtube.NewClientSource(c.DownloadTimeout), c.DataDir)

	p := worker.New(fetcher, conv, audio.NewPreparer(), transcribe.NewEngine(shared, c.Window, c.Stride))
	p.KeepArtifacts = c.KeepArtifacts
	p.ProbeMedia = verbose
	return p, shared, nil
}

// signalContext is cancelled on SIGINT/SIGTERM and, when timeout is
// positive, after timeout.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func closeModel(shared *model.Shared) {
	if err := shared.Close(); err != nil {
		slog.Warn("closing recognizer", "err", err)
	}
}

// emit writes res to stdout, or to path when path is set. An empty text
// result prints a note on stderr in place of stdout output; a file is
// always written.
func emit(res *worker.Result, format render.Format, path string) (err error) {
	if res.Empty() && format == render.FormatText {
		fmt.Fprintln(os.Stderr, "No speech detected.")
		if path == "" {
			return nil
		}
	}

	var w io.Writer = os.Stdout
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		f, ferr := os.Create(path)
		if ferr != nil {
			return fmt.Errorf("create output file: %w", ferr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close output file: %w", cerr)
			}
		}()
		w = f
	}
	if err := render.Write(w, format, res); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if path != "" {
		slog.Info("transcript saved", "path", path)
	}
	return nil
}

// checkURLConverter rejects converters that cannot read YouTube audio-only
// streams, which arrive as m4a or webm.
func checkURLConverter(c *config.Config) error {
	if c.Converter == config.ConverterMP3 {
		return errs.New(errs.KindConfig, "converter",
			"the mp3 converter only reads .mp3 files; use --converter ffmpeg for YouTube URLs")
	}
	return nil
}

// outputPath resolves where one of several results goes. With a single
// result output is taken literally; otherwise it names a directory.
func outputPath(output, name string, format render.Format, multiple bool) string {
	if output == "" || !multiple {
		return output
	}
	return filepath.Join(output, name+"."+format.Ext())
}
