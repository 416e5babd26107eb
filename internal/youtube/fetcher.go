// Package youtube downloads the audio-only track of a YouTube video to disk.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"yt2text/internal/errs"
	"yt2text/internal/media"
)

// Video is the metadata of a resolved video plus the audio format that
// Stream will deliver.
type Video struct {
	ID       string
	Title    string
	Author   string
	Duration time.Duration
	MimeType string
	Size     int64 // expected stream length, 0 when unknown

	ref any // source-specific handle
}

// Source resolves video metadata and opens audio-only streams.
type Source interface {
	Lookup(ctx context.Context, videoID string) (*Video, error)
	Stream(ctx context.Context, v *Video) (io.ReadCloser, error)
}

// Fetcher persists the audio track of a video into DataDir.
type Fetcher struct {
	Source  Source
	DataDir string
}

func NewFetcher(src Source, dataDir string) *Fetcher {
	return &Fetcher{Source: src, DataDir: dataDir}
}

// Fetch validates rawURL, resolves its metadata and writes the audio stream
// to <DataDir>/<title>-<id>.<ext>. The file only appears under its final name
// once the whole stream has been received.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*media.Artifact, error) {
	src, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return f.FetchSource(ctx, src)
}

// FetchSource is Fetch for an already validated source. src is filled in
// with the resolved title and base name.
func (f *Fetcher) FetchSource(ctx context.Context, src *MediaSource) (*media.Artifact, error) {
	video, err := f.Source.Lookup(ctx, src.VideoID)
	if err != nil {
		return nil, errs.Wrap(errs.KindDownload, "lookup", "could not retrieve video metadata", err)
	}
	src.Title = video.Title
	src.BaseName = BaseName(video.Title, src.VideoID)

	if err := os.MkdirAll(f.DataDir, 0755); err != nil {
		return nil, errs.Wrap(errs.KindDownload, "mkdir", "could not create data directory", err)
	}

	ext := media.ExtForMime(video.MimeType)
	finalPath := filepath.Join(f.DataDir, src.BaseName+"."+ext)

	slog.Info("downloading audio",
		"video_id", src.VideoID,
		"title", video.Title,
		"duration", video.Duration.String(),
		"output", filepath.Base(finalPath))

	stream, err := f.Source.Stream(ctx, video)
	if err != nil {
		return nil, errs.Wrap(errs.KindDownload, "stream", "could not open audio stream", err)
	}
	defer stream.Close()

	n, err := writeStream(ctx, stream, finalPath, video.Size)
	if err != nil {
		return nil, errs.Wrap(errs.KindDownload, "stream", "audio stream failed", err)
	}

	slog.Info("download finished", "video_id", src.VideoID, "bytes", n, "path", finalPath)

	return &media.Artifact{
		Path: finalPath,
		Size: n,
		Format: media.Format{
			Container: ext,
			MimeType:  video.MimeType,
		},
	}, nil
}

// writeStream copies r into a uniquely named sibling .part file and renames
// it to path on EOF. On any error the partial file is removed. Concurrent
// writers of the same path never share a partial file.
func writeStream(ctx context.Context, r io.Reader, path string, expected int64) (int64, error) {
	out, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create partial file for %s: %w", filepath.Base(path), err)
	}
	tmp := out.Name()

	pw := &progressWriter{
		writer:   out,
		total:    expected,
		callback: logProgress(filepath.Base(path)),
	}
	n, copyErr := io.Copy(pw, &ctxReader{ctx: ctx, r: r})
	closeErr := out.Close()

	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmp)
		return n, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return n, fmt.Errorf("commit %s: %w", filepath.Base(path), err)
	}
	return n, nil
}

// ctxReader fails reads once ctx is done so a stalled stream cannot outlive
// the request.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
