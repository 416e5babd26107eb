package youtube

import (
	"net/url"
	"regexp"
	"strings"

	"yt2text/internal/errs"
)

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	// Everything outside the word and whitespace classes.
	titleStrip = regexp.MustCompile(`[^\w\s]`)
)

var watchHosts = map[string]bool{
	"www.youtube.com":   true,
	"youtube.com":       true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
}

// pathPrefixes are the non-watch URL forms that carry the id as the next
// path segment.
var pathPrefixes = []string{"/shorts/", "/live/", "/embed/", "/v/"}

// MediaSource is a validated source URL plus the metadata derived from it.
type MediaSource struct {
	URL      string
	VideoID  string
	Title    string
	BaseName string
}

// ParseURL validates raw against the accepted YouTube URL forms and extracts
// the video id. It performs no I/O.
func ParseURL(raw string) (*MediaSource, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errs.New(errs.KindInvalidSource, "parse_url", "empty URL")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidSource, "parse_url", "malformed URL", err)
	}
	if u.Scheme != "https" {
		return nil, errs.New(errs.KindInvalidSource, "parse_url", "URL must use https")
	}

	host := strings.ToLower(u.Host)
	var id string
	switch {
	case host == "youtu.be":
		id = strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0]
	case watchHosts[host]:
		id = idFromPath(u)
	default:
		return nil, errs.New(errs.KindInvalidSource, "parse_url", "unsupported host "+u.Host)
	}

	if !videoIDPattern.MatchString(id) {
		return nil, errs.New(errs.KindInvalidSource, "parse_url", "URL does not reference a video")
	}
	return &MediaSource{URL: raw, VideoID: id}, nil
}

func idFromPath(u *url.URL) string {
	if u.Path == "/watch" {
		return u.Query().Get("v")
	}
	for _, prefix := range pathPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			return strings.SplitN(strings.TrimPrefix(u.Path, prefix), "/", 2)[0]
		}
	}
	return ""
}

// SanitizeTitle removes every character outside the word and whitespace
// classes so the result is safe to use as a file name.
func SanitizeTitle(title string) string {
	return strings.TrimSpace(titleStrip.ReplaceAllString(title, ""))
}

// BaseName derives the artifact base name. The video id is always part of
// the name so equal titles never share files.
func BaseName(title, videoID string) string {
	clean := SanitizeTitle(title)
	if clean == "" {
		return videoID
	}
	return clean + "-" + videoID
}
