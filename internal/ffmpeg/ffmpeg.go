package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"yt2text/internal/errs"
	"yt2text/internal/media"
)

// maxDetail bounds how much tool output is kept on an error.
const maxDetail = 4096

// MediaInfo holds duration and codec information from ffprobe.
type MediaInfo struct {
	Duration float64
	Codec    string
}

// Available returns true if the named binary (default "ffmpeg") is on the PATH.
func Available(binary string) bool {
	if binary == "" {
		binary = "ffmpeg"
	}
	_, err := exec.LookPath(binary)
	return err == nil
}

// Converter transcodes compressed audio into the canonical 16 kHz mono
// signed 16-bit little-endian WAV by running ffmpeg.
type Converter struct {
	Binary     string
	SampleRate int
	Channels   int
}

func NewConverter(binary string) *Converter {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Converter{
		Binary:     binary,
		SampleRate: media.CanonicalSampleRate,
		Channels:   media.CanonicalChannels,
	}
}

// Args returns the fixed argument list for converting in to out.
func (c *Converter) Args(in, out string) []string {
	return []string{
		"-y", "-i", in,
		"-ar", strconv.Itoa(c.SampleRate),
		"-ac", strconv.Itoa(c.Channels),
		"-c:a", "pcm_s16le",
		out,
	}
}

// Convert writes <in without ext>.wav and returns its path. The call blocks
// until ffmpeg exits; cancelling ctx kills the process. Partial output never
// remains under the final name.
func (c *Converter) Convert(ctx context.Context, in string) (string, error) {
	out := media.WithExt(in, "wav")
	if out == in {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".canonical.wav"
	}
	tmp, err := tempPath(out)
	if err != nil {
		return "", errs.Wrap(errs.KindConversion, "ffmpeg", "could not create temporary output", err)
	}

	slog.Info("converting audio", "input", filepath.Base(in), "output", filepath.Base(out))

	cmd := exec.CommandContext(ctx, c.Binary, c.Args(in, tmp)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(tmp)
		detail := tail(output)
		if ctx.Err() != nil {
			return "", errs.WithDetail(errs.KindConversion, "ffmpeg", "conversion cancelled", detail, ctx.Err())
		}
		slog.Error("ffmpeg failed", "input", filepath.Base(in), "err", err, "output", detail)
		return "", errs.WithDetail(errs.KindConversion, "ffmpeg", "ffmpeg conversion failed", detail, err)
	}

	st, err := os.Stat(tmp)
	if err != nil || st.Size() == 0 {
		os.Remove(tmp)
		return "", errs.WithDetail(errs.KindConversion, "ffmpeg", "ffmpeg produced no output file", tail(output), err)
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return "", errs.Wrap(errs.KindConversion, "ffmpeg", "could not commit converted file", err)
	}

	slog.Info("conversion complete", "output", out, "bytes", st.Size())
	return out, nil
}

// tempPath reserves a unique sibling of out ending in .part.wav, so ffmpeg
// still infers the WAV muxer and concurrent conversions never share it.
func tempPath(out string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(out), strings.TrimSuffix(filepath.Base(out), ".wav")+".*.part.wav")
	if err != nil {
		return "", err
	}
	name := f.Name()
	return name, f.Close()
}

func tail(output []byte) string {
	output = bytes.TrimSpace(output)
	if len(output) > maxDetail {
		output = output[len(output)-maxDetail:]
	}
	return string(output)
}

// probeOutput mirrors ffprobe JSON structure.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecName string `json:"codec_name"`
	} `json:"streams"`
}

// ProbeMedia uses ffprobe to get media duration and audio codec.
func ProbeMedia(ctx context.Context, path string) (*MediaInfo, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name:format=duration",
		"-of", "json",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (*MediaInfo, error) {
	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("ffprobe JSON parse error: %w", err)
	}

	dur, _ := strconv.ParseFloat(probe.Format.Duration, 64)

	codec := "N/A"
	if len(probe.Streams) > 0 && probe.Streams[0].CodecName != "" {
		codec = probe.Streams[0].CodecName
	}

	return &MediaInfo{Duration: dur, Codec: codec}, nil
}

// LogMediaInfo logs file size and, when ffprobe is installed, duration and
// codec. It never fails the caller.
func LogMediaInfo(ctx context.Context, path string) *MediaInfo {
	stat, err := os.Stat(path)
	if err != nil {
		slog.Warn("cannot stat file", "path", path, "err", err)
		return nil
	}

	attrs := []any{"file", filepath.Base(path), "size_mb", fmt.Sprintf("%.2f", float64(stat.Size())/(1024*1024))}

	info, err := ProbeMedia(ctx, path)
	if err == nil && info != nil {
		minutes := int(info.Duration) / 60
		seconds := int(info.Duration) % 60
		attrs = append(attrs, "duration", fmt.Sprintf("%02d:%02d", minutes, seconds), "codec", info.Codec)
	} else if !errors.Is(err, exec.ErrNotFound) {
		slog.Debug("ffprobe unavailable", "err", err)
	}

	slog.Info("media info", attrs...)
	return info
}
