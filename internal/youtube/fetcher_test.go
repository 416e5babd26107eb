package youtube

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	yt "github.com/kkdai/youtube/v2"

	"yt2text/internal/errs"
)

// chunkReader returns one chunk per Read call, then err (io.EOF by default).
type chunkReader struct {
	chunks [][]byte
	err    error
	closed bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

type fakeSource struct {
	video     Video
	stream    *chunkReader
	lookups   int
	streams   int
	lookupErr error
}

func (s *fakeSource) Lookup(_ context.Context, id string) (*Video, error) {
	s.lookups++
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	v := s.video
	v.ID = id
	return &v, nil
}

func (s *fakeSource) Stream(_ context.Context, _ *Video) (io.ReadCloser, error) {
	s.streams++
	return s.stream, nil
}

func TestFetch_WritesChunksInOrder(t *testing.T) {
	chunks := [][]byte{[]byte("first-"), []byte("second-"), bytes.Repeat([]byte("x"), 70000)}
	var want []byte
	for _, c := range chunks {
		want = append(want, c...)
	}

	src := &fakeSource{
		video:  Video{Title: "My: Video!", MimeType: `audio/mp4; codecs="mp4a.40.2"`, Size: int64(len(want))},
		stream: &chunkReader{chunks: chunks},
	}
	dir := filepath.Join(t.TempDir(), "data")
	f := NewFetcher(src, dir)

	art, err := f.Fetch(context.Background(), "https://www.youtube.com/watch?v=TEST123")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if got, want := art.Path, filepath.Join(dir, "My Video-TEST123.m4a"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
	data, err := os.ReadFile(art.Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != len(want) {
		t.Fatalf("file length = %d, want %d", len(data), len(want))
	}
	if !bytes.Equal(data, want) {
		t.Error("file content is not the chunks in arrival order")
	}
	if art.Size != int64(len(want)) {
		t.Errorf("artifact size = %d, want %d", art.Size, len(want))
	}
	if !src.stream.closed {
		t.Error("stream was not closed")
	}
	assertNoPartials(t, dir)
}

func assertNoPartials(t *testing.T, dir string) {
	t.Helper()
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Errorf("partial file %s left behind", e.Name())
		}
	}
}

// barrierSource holds every stream open until n streams have been opened,
// so concurrent downloads of one video overlap.
type barrierSource struct {
	n       int
	payload []byte
	wg      sync.WaitGroup
	once    sync.Once
}

func (s *barrierSource) Lookup(_ context.Context, id string) (*Video, error) {
	return &Video{ID: id, Title: "Same", MimeType: "audio/mp4"}, nil
}

func (s *barrierSource) Stream(context.Context, *Video) (io.ReadCloser, error) {
	s.once.Do(func() { s.wg.Add(s.n) })
	s.wg.Done()
	return &barrierReader{wait: &s.wg, r: bytes.NewReader(s.payload)}, nil
}

type barrierReader struct {
	wait   *sync.WaitGroup
	waited bool
	r      io.Reader
}

func (b *barrierReader) Read(p []byte) (int, error) {
	if !b.waited {
		b.wait.Wait()
		b.waited = true
	}
	// One byte per call keeps both partial files open at the same time.
	return b.r.Read(p[:1])
}

func (b *barrierReader) Close() error { return nil }

func TestFetch_ConcurrentSameVideo(t *testing.T) {
	const n = 2
	payload := bytes.Repeat([]byte("audio"), 200)
	src := &barrierSource{n: n, payload: payload}
	dir := t.TempDir()
	f := NewFetcher(src, dir)

	var wg sync.WaitGroup
	errsCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mediaSrc, err := ParseURL("https://www.youtube.com/watch?v=TEST123")
			if err != nil {
				errsCh <- err
				return
			}
			_, err = f.FetchSource(context.Background(), mediaSrc)
			errsCh <- err
		}()
	}
	wg.Wait()
	close(errsCh)

	for err := range errsCh {
		if err != nil {
			t.Errorf("concurrent fetch failed: %v", err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "Same-TEST123.m4a"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("final file has %d bytes, want %d", len(data), len(payload))
	}
	assertNoPartials(t, dir)
}

func TestFetch_InvalidURLDoesNoIO(t *testing.T) {
	src := &fakeSource{stream: &chunkReader{}}
	dir := filepath.Join(t.TempDir(), "data")
	f := NewFetcher(src, dir)

	_, err := f.Fetch(context.Background(), "https://example.com/watch?v=abc")
	if !errs.IsKind(err, errs.KindInvalidSource) {
		t.Fatalf("expected invalid source, got %v", err)
	}
	if src.lookups != 0 || src.streams != 0 {
		t.Errorf("source was called: lookups=%d streams=%d", src.lookups, src.streams)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("data directory was created for an invalid URL")
	}
}

func TestFetch_StreamErrorRemovesPartial(t *testing.T) {
	src := &fakeSource{
		video:  Video{Title: "Broken", MimeType: "audio/webm"},
		stream: &chunkReader{chunks: [][]byte{[]byte("partial")}, err: errors.New("connection reset")},
	}
	dir := t.TempDir()
	f := NewFetcher(src, dir)

	_, err := f.Fetch(context.Background(), "https://youtu.be/abc")
	if !errs.IsKind(err, errs.KindDownload) {
		t.Fatalf("expected download error, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty data dir, found %d entries", len(entries))
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	src := &fakeSource{
		video:  Video{Title: "Slow", MimeType: "audio/webm"},
		stream: &chunkReader{chunks: [][]byte{[]byte("a"), []byte("b")}},
	}
	dir := t.TempDir()
	f := NewFetcher(src, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "https://youtu.be/abc")
	if !errs.IsKind(err, errs.KindDownload) {
		t.Fatalf("expected download error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no files after cancellation, found %d", len(entries))
	}
}

func TestFetch_LookupError(t *testing.T) {
	src := &fakeSource{lookupErr: errors.New("video unavailable")}
	f := NewFetcher(src, t.TempDir())

	_, err := f.Fetch(context.Background(), "https://youtu.be/abc")
	if !errs.IsKind(err, errs.KindDownload) {
		t.Fatalf("expected download error, got %v", err)
	}
	if src.streams != 0 {
		t.Error("stream opened after failed lookup")
	}
}

func TestBestAudioFormat(t *testing.T) {
	formats := yt.FormatList{
		{ItagNo: 18, MimeType: `video/mp4; codecs="avc1, mp4a"`, Bitrate: 500000, AudioChannels: 2},
		{ItagNo: 139, MimeType: `audio/mp4; codecs="mp4a.40.5"`, Bitrate: 48000, AudioChannels: 2},
		{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 160000, AudioChannels: 2},
		{ItagNo: 999, MimeType: `audio/webm`, Bitrate: 900000, AudioChannels: 0},
	}
	best := bestAudioFormat(formats)
	if best == nil || best.ItagNo != 251 {
		t.Fatalf("best = %+v, want itag 251", best)
	}
	if bestAudioFormat(formats[:1]) != nil {
		t.Error("expected nil when there is no audio-only format")
	}
}

func TestHeaderTransport(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	client := &http.Client{Transport: newHeaderTransport(nil)}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got.Get("User-Agent") == "" || got.Get("Accept-Language") == "" {
		t.Errorf("browser headers missing: %v", got)
	}
	if got.Get("Accept") != "application/json" {
		t.Errorf("caller header overwritten: %q", got.Get("Accept"))
	}
	if got.Get("Referer") != "https://www.youtube.com/" {
		t.Errorf("referer = %q", got.Get("Referer"))
	}
}
