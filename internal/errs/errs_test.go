package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "with cause",
			err:      Wrap(KindDownload, "fetch", "stream failed", errors.New("connection reset")),
			contains: []string{"[download:fetch]", "stream failed", "connection reset"},
		},
		{
			name:     "without cause",
			err:      New(KindInvalidSource, "parse", "unsupported host"),
			contains: []string{"[invalid_source:parse]", "unsupported host"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, substr := range tt.contains {
				assert.Contains(t, tt.err.Error(), substr)
			}
		})
	}
}

func TestError_DetailNotInMessage(t *testing.T) {
	err := WithDetail(KindConversion, "ffmpeg", "ffmpeg exited with status 1", "Invalid data found when processing input", nil)
	assert.NotContains(t, err.Error(), "Invalid data")
	assert.Equal(t, "Invalid data found when processing input", err.Detail)
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(KindModel, "op", "msg", nil))
}

func TestWrap_KeepsFirstKind(t *testing.T) {
	inner := New(KindCorruptAudio, "prepare", "truncated data chunk")
	outer := Wrap(KindModel, "transcribe", "inference failed", fmt.Errorf("stage: %w", inner))

	assert.Equal(t, KindCorruptAudio, KindOf(outer))
	assert.True(t, IsKind(outer, KindCorruptAudio))
	assert.False(t, IsKind(outer, KindModel))
}

func TestUnwrap_ReachesCause(t *testing.T) {
	err := Wrap(KindDownload, "fetch", "cancelled", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKindOf_Untyped(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindInvalidSource, false},
		{KindDownload, true},
		{KindConversion, false},
		{KindCorruptAudio, false},
		{KindModel, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, New(tt.kind, "op", "msg").Retryable(), "kind %s", tt.kind)
	}
}

func TestUserMessage(t *testing.T) {
	err := Wrap(KindConversion, "ffmpeg", "ffmpeg exited with status 1", errors.New("exit status 1"))
	msg := UserMessage(fmt.Errorf("run: %w", err))
	require.NotEmpty(t, msg)
	assert.Equal(t, "Could not convert the downloaded audio: ffmpeg exited with status 1", msg)

	assert.Equal(t, "Please provide a valid YouTube URL.", UserMessage(New(KindInvalidSource, "parse", "bad host")))
	assert.Equal(t, "Invalid input: input file not found", UserMessage(New(KindInvalidSource, "stat", "input file not found")))
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
	assert.Empty(t, UserMessage(nil))
}

func TestUserMessage_Cancellation(t *testing.T) {
	cancelled := Wrap(KindCorruptAudio, "prepare", "cancelled before loading audio", context.Canceled)
	assert.Equal(t, "The request was cancelled.", UserMessage(cancelled))
	assert.True(t, IsKind(cancelled, KindCorruptAudio), "kind is kept for logs")

	timedOut := Wrap(KindModel, "recognize", "inference failed", fmt.Errorf("slot: %w", context.DeadlineExceeded))
	assert.Equal(t, "The request timed out.", UserMessage(timedOut))
}
