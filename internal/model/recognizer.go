// Package model owns the speech-recognition backend: the Recognizer
// interface, its implementations, and the shared handle through which the
// process reuses one loaded recognizer.
package model

import "context"

// Recognizer converts mono float32 samples to text.
type Recognizer interface {
	// Recognize transcribes samples recorded at sampleRate Hz.
	Recognize(ctx context.Context, samples []float32, sampleRate int) (string, error)
	// Close releases backend resources.
	Close() error
}

// Loader creates a Recognizer. It is called at most once per successful
// initialization of a Shared handle.
type Loader func(ctx context.Context) (Recognizer, error)

// Func adapts a plain function to Recognizer.
type Func func(ctx context.Context, samples []float32, sampleRate int) (string, error)

func (f Func) Recognize(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	return f(ctx, samples, sampleRate)
}

func (f Func) Close() error { return nil }

// Static returns a Loader that always yields r.
func Static(r Recognizer) Loader {
	return func(context.Context) (Recognizer, error) { return r, nil }
}
