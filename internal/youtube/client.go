package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	yt "github.com/kkdai/youtube/v2"
)

const lookupTimeout = 30 * time.Second

// ClientSource is the production Source backed by github.com/kkdai/youtube.
type ClientSource struct {
	client *yt.Client
}

// NewClientSource builds a Source whose requests go through the browser
// header transport. A zero timeout leaves streaming unbounded; cancellation
// still applies through the request context.
func NewClientSource(timeout time.Duration) *ClientSource {
	httpClient := &http.Client{
		Transport: newHeaderTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
	return &ClientSource{client: &yt.Client{HTTPClient: httpClient}}
}

type resolved struct {
	video  *yt.Video
	format *yt.Format
}

func (s *ClientSource) Lookup(ctx context.Context, videoID string) (*Video, error) {
	lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	v, err := s.client.GetVideoContext(lctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", videoID, err)
	}

	format := bestAudioFormat(v.Formats)
	if format == nil {
		return nil, fmt.Errorf("video %s has no audio-only format", videoID)
	}

	return &Video{
		ID:       v.ID,
		Title:    v.Title,
		Author:   v.Author,
		Duration: v.Duration,
		MimeType: format.MimeType,
		Size:     format.ContentLength,
		ref:      resolved{video: v, format: format},
	}, nil
}

func (s *ClientSource) Stream(ctx context.Context, v *Video) (io.ReadCloser, error) {
	r, ok := v.ref.(resolved)
	if !ok {
		return nil, errors.New("video was not resolved by this source")
	}
	stream, _, err := s.client.GetStreamContext(ctx, r.video, r.format)
	if err != nil {
		return nil, fmt.Errorf("open stream itag %d: %w", r.format.ItagNo, err)
	}
	return stream, nil
}

// bestAudioFormat returns the highest-bitrate audio-only format.
func bestAudioFormat(formats yt.FormatList) *yt.Format {
	var best *yt.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") || f.AudioChannels == 0 {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}
