package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt2text/internal/audio"
	"yt2text/internal/errs"
	"yt2text/internal/media"
	"yt2text/internal/model"
	"yt2text/internal/transcribe"
	"yt2text/internal/youtube"
)

var streamChunks = [][]byte{[]byte("chunk-one|"), []byte("chunk-two|"), []byte("chunk-three")}

type fakeSource struct {
	lookups atomic.Int32
	streams atomic.Int32
}

func (s *fakeSource) Lookup(_ context.Context, id string) (*youtube.Video, error) {
	s.lookups.Add(1)
	return &youtube.Video{ID: id, Title: "Test Tone", MimeType: "audio/mp4"}, nil
}

func (s *fakeSource) Stream(context.Context, *youtube.Video) (io.ReadCloser, error) {
	s.streams.Add(1)
	readers := make([]io.Reader, len(streamChunks))
	for i, c := range streamChunks {
		readers[i] = bytes.NewReader(c)
	}
	return io.NopCloser(io.MultiReader(readers...)), nil
}

// toneConverter ignores its input and writes one second of a 440 Hz tone.
type toneConverter struct {
	mu    sync.Mutex
	input [][]byte
	err   error
}

func (c *toneConverter) Convert(_ context.Context, in string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.input = append(c.input, data)
	c.mu.Unlock()

	samples := make([]float32, media.CanonicalSampleRate)
	for i := range samples {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*440*float64(i)/media.CanonicalSampleRate))
	}
	out := media.WithExt(in, "wav")
	return out, audio.WriteWAV(out, samples, media.CanonicalSampleRate)
}

func tonePipeline(t *testing.T, dataDir string, rec model.Func) (*Pipeline, *fakeSource, *toneConverter) {
	t.Helper()
	src := &fakeSource{}
	conv := &toneConverter{}
	engine := transcribe.NewEngine(model.NewShared(model.Static(rec), 1), transcribe.DefaultWindow, transcribe.DefaultStride)
	return New(youtube.NewFetcher(src, dataDir), conv, audio.NewPreparer(), engine), src, conv
}

func toneModel(context.Context, []float32, int) (string, error) { return "tone", nil }

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	p, src, conv := tonePipeline(t, dir, toneModel)

	res, err := p.Run(context.Background(), "https://www.youtube.com/watch?v=TEST123")
	require.NoError(t, err)

	assert.Equal(t, "tone", res.Transcription)
	assert.Equal(t, "TEST123", res.VideoID)
	assert.Equal(t, "Test Tone", res.Title)
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Chunks, 1)
	assert.Equal(t, int32(1), src.lookups.Load())

	require.Len(t, conv.input, 1)
	assert.Equal(t, "chunk-one|chunk-two|chunk-three", string(conv.input[0]))

	assert.FileExists(t, filepath.Join(dir, "Test Tone-TEST123.m4a"))
	assert.FileExists(t, filepath.Join(dir, "Test Tone-TEST123.wav"))
}

func TestRun_InvalidURLDoesNoIO(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	p, src, conv := tonePipeline(t, dir, toneModel)

	for _, u := range []string{"", "not a url", "https://example.com/watch?v=abc", "http://www.youtube.com/watch?v=abc", "https://www.youtube.com/watch"} {
		_, err := p.Run(context.Background(), u)
		assert.True(t, errs.IsKind(err, errs.KindInvalidSource), "url %q: %v", u, err)
	}

	assert.Equal(t, int32(0), src.lookups.Load())
	assert.Equal(t, int32(0), src.streams.Load())
	assert.Empty(t, conv.input)
	assert.NoDirExists(t, dir)
}

func TestRun_ReturnsStageErrorUnchanged(t *testing.T) {
	p, _, conv := tonePipeline(t, t.TempDir(), toneModel)
	want := errs.WithDetail(errs.KindConversion, "ffmpeg", "ffmpeg conversion failed", "Invalid data found", errors.New("exit status 1"))
	conv.err = want

	_, err := p.Run(context.Background(), "https://youtu.be/TEST123")
	require.Error(t, err)
	assert.Same(t, want, err)
}

func TestRun_ModelErrorKind(t *testing.T) {
	p, _, _ := tonePipeline(t, t.TempDir(), func(context.Context, []float32, int) (string, error) {
		return "", errors.New("inference backend crashed")
	})

	_, err := p.Run(context.Background(), "https://youtu.be/TEST123")
	assert.True(t, errs.IsKind(err, errs.KindModel), "got %v", err)
}

func TestRun_EmptyTranscriptIsSuccess(t *testing.T) {
	p, _, _ := tonePipeline(t, t.TempDir(), func(context.Context, []float32, int) (string, error) {
		return "", nil
	})

	res, err := p.Run(context.Background(), "https://youtu.be/TEST123")
	require.NoError(t, err)
	assert.Equal(t, "", res.Transcription)
	assert.True(t, res.Empty())
}

func TestRun_RemovesArtifactsWhenNotKept(t *testing.T) {
	dir := t.TempDir()
	p, _, _ := tonePipeline(t, dir, toneModel)
	p.KeepArtifacts = false

	_, err := p.Run(context.Background(), "https://www.youtube.com/shorts/TEST123")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "talk.mp3")
	require.NoError(t, os.WriteFile(in, []byte("compressed"), 0644))

	p, src, _ := tonePipeline(t, dir, toneModel)
	p.KeepArtifacts = false

	res, err := p.RunFile(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "tone", res.Transcription)
	assert.Empty(t, res.VideoID)
	assert.Equal(t, int32(0), src.lookups.Load())

	assert.FileExists(t, in, "input file must survive the run")
	assert.NoFileExists(t, filepath.Join(dir, "talk.wav"))
}

func TestRunFile_Missing(t *testing.T) {
	p, _, _ := tonePipeline(t, t.TempDir(), toneModel)
	_, err := p.RunFile(context.Background(), filepath.Join(t.TempDir(), "nope.m4a"))
	assert.True(t, errs.IsKind(err, errs.KindInvalidSource))
}

func TestRunBatch_OrderedAndIndependent(t *testing.T) {
	p, src, _ := tonePipeline(t, t.TempDir(), toneModel)

	urls := []string{
		"https://www.youtube.com/watch?v=AAA111",
		"ftp://youtube.com/watch?v=BBB222",
		"https://m.youtube.com/watch?v=CCC333",
		"https://youtu.be/DDD444",
	}
	results := p.RunBatch(context.Background(), urls, 2)
	require.Len(t, results, len(urls))

	for i, r := range results {
		assert.Equal(t, urls[i], r.URL)
	}
	assert.True(t, errs.IsKind(results[1].Err, errs.KindInvalidSource))
	assert.Nil(t, results[1].Result)

	for _, i := range []int{0, 2, 3} {
		require.NoError(t, results[i].Err)
		assert.Equal(t, "tone", results[i].Result.Transcription)
	}
	assert.Equal(t, "AAA111", results[0].Result.VideoID)
	assert.Equal(t, "DDD444", results[3].Result.VideoID)
	assert.Equal(t, int32(3), src.lookups.Load())
}

func TestRunBatch_SameVideoRunsOnce(t *testing.T) {
	dir := t.TempDir()
	p, src, _ := tonePipeline(t, dir, toneModel)
	p.KeepArtifacts = false

	urls := []string{
		"https://www.youtube.com/watch?v=TEST123",
		"https://youtu.be/OTHER1",
		"https://youtu.be/TEST123",
	}
	results := p.RunBatch(context.Background(), urls, 3)
	require.Len(t, results, 3)

	for i, r := range results {
		require.NoError(t, r.Err, "url %d", i)
		assert.Equal(t, urls[i], r.URL)
		assert.Equal(t, "tone", r.Result.Transcription)
	}
	assert.Equal(t, "TEST123", results[2].Result.VideoID)
	assert.Equal(t, int32(2), src.lookups.Load(), "one run per distinct video")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
