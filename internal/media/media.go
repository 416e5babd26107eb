// Package media holds the artifact descriptors passed between pipeline stages.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Canonical waveform parameters expected by the recognizer.
const (
	CanonicalSampleRate = 16000
	CanonicalChannels   = 1
	CanonicalBitDepth   = 16
)

// Format describes the encoding of an artifact. Zero values mean unknown.
type Format struct {
	Container  string // file extension without dot: "m4a", "webm", "wav", ...
	MimeType   string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Canonical returns the format produced by every converter.
func Canonical() Format {
	return Format{
		Container:  "wav",
		MimeType:   "audio/wav",
		SampleRate: CanonicalSampleRate,
		Channels:   CanonicalChannels,
		BitDepth:   CanonicalBitDepth,
	}
}

// Artifact is a file on disk owned by the pipeline run that created it.
type Artifact struct {
	Path   string
	Format Format
	Size   int64
}

func (a *Artifact) String() string {
	return fmt.Sprintf("%s (%s, %d bytes)", filepath.Base(a.Path), a.Format.Container, a.Size)
}

// Remove deletes the artifact file, ignoring files that are already gone.
func (a *Artifact) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ExtForMime maps an audio MIME type (parameters allowed) to a file extension.
func ExtForMime(mime string) string {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
	switch base {
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "m4a"
	case "audio/webm":
		return "webm"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/ogg":
		return "ogg"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	}
	return "audio"
}

// WithExt replaces the extension of path with ext (no leading dot).
func WithExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
}
