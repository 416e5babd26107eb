// Package render writes pipeline results as plain text, JSON or SRT.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"yt2text/internal/errs"
	"yt2text/internal/transcribe"
	"yt2text/internal/worker"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatSRT  Format = "srt"
)

// DefaultCharsPerLine is the SRT line width.
const DefaultCharsPerLine = 42

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatSRT:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", errs.New(errs.KindConfig, "format", fmt.Sprintf("unknown output format %q (want text, json or srt)", s))
}

// Ext is the file extension used when writing f to disk.
func (f Format) Ext() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// Write renders res in format f.
func Write(w io.Writer, f Format, res *worker.Result) error {
	switch f {
	case FormatJSON:
		return JSON(w, res, true)
	case FormatSRT:
		return SRT(w, res, DefaultCharsPerLine)
	default:
		return Text(w, res)
	}
}

// Text writes the transcription followed by a newline.
func Text(w io.Writer, res *worker.Result) error {
	_, err := fmt.Fprintln(w, res.Transcription)
	return err
}

// JSON writes the result object. Without metadata only the transcription
// field is emitted.
func JSON(w io.Writer, res *worker.Result, metadata bool) error {
	out := res
	if !metadata {
		out = &worker.Result{Transcription: res.Transcription}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(out)
}

// SRT writes one cue per non-empty chunk. Consecutive windows overlap, so a
// cue ends where the next one starts.
func SRT(w io.Writer, res *worker.Result, maxCPL int) error {
	if maxCPL <= 0 {
		maxCPL = DefaultCharsPerLine
	}
	chunks := cueChunks(res)

	var b strings.Builder
	for i, c := range chunks {
		end := c.End
		if i+1 < len(chunks) && chunks[i+1].Start < end {
			end = chunks[i+1].Start
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, formatSRTTime(c.Start), formatSRTTime(end), wrapText(c.Text, maxCPL))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func cueChunks(res *worker.Result) []transcribe.Chunk {
	var out []transcribe.Chunk
	for _, c := range res.Chunks {
		if strings.TrimSpace(c.Text) != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 && strings.TrimSpace(res.Transcription) != "" {
		// Results without chunk metadata become a single cue of unknown length.
		out = []transcribe.Chunk{{End: transcribe.DefaultWindow, Text: res.Transcription}}
	}
	return out
}

// formatSRTTime renders d as HH:MM:SS,mmm.
func formatSRTTime(d time.Duration) string {
	ms := int64(math.Abs(float64(d.Milliseconds())))
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
