package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"yt2text/internal/audio"
)

// OpenAIOptions configures the Whisper-compatible transcription backend.
type OpenAIOptions struct {
	APIKey            string
	BaseURL           string // empty for api.openai.com; any OpenAI-compatible server otherwise
	Model             string
	Language          string
	Prompt            string
	RequestsPerMinute int
	Timeout           time.Duration
}

// transcriber is the subset of *openai.Client used by OpenAIRecognizer.
type transcriber interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// OpenAIRecognizer sends each window as a WAV upload to the audio
// transcription endpoint.
type OpenAIRecognizer struct {
	client  transcriber
	opts    OpenAIOptions
	limiter *rate.Limiter
}

// NewOpenAILoader returns a Loader building an OpenAIRecognizer. The options
// are validated when the loader runs, so a missing key fails the first
// request rather than startup.
func NewOpenAILoader(opts OpenAIOptions) Loader {
	return func(ctx context.Context) (Recognizer, error) {
		if opts.APIKey == "" && opts.BaseURL == "" {
			return nil, errors.New("OPENAI_API_KEY is not set and no base URL is configured")
		}
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
		}
		return newOpenAIRecognizer(openai.NewClientWithConfig(cfg), opts), nil
	}
}

func newOpenAIRecognizer(client transcriber, opts OpenAIOptions) *OpenAIRecognizer {
	if opts.Model == "" {
		opts.Model = openai.Whisper1
	}
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		// Tokens per second = RPM / 60.
		limit = rate.Limit(float64(opts.RequestsPerMinute) / 60.0)
	}
	return &OpenAIRecognizer{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (r *OpenAIRecognizer) Recognize(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	data, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("encode window: %w", err)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.opts.Model,
		FilePath: "window.wav",
		Reader:   bytes.NewReader(data),
		Language: r.opts.Language,
		Prompt:   r.opts.Prompt,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	return resp.Text, nil
}

func (r *OpenAIRecognizer) Close() error { return nil }
