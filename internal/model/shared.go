package model

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"yt2text/internal/errs"
)

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("model handle closed")

// Shared is a reference-counted handle to a lazily loaded Recognizer.
//
// The recognizer is loaded on the first Acquire; a failed load is not
// remembered, so the next Acquire tries again. Recognize calls made through
// leases are limited to the configured number of inference slots. Close
// stops new acquisitions and releases the recognizer once the last
// outstanding lease is released.
type Shared struct {
	load  Loader
	slots *semaphore.Weighted

	mu       sync.Mutex
	loading  chan struct{} // non-nil while a load is in flight
	rec      Recognizer
	refs     int
	closed   bool
	closeErr error
	done     chan struct{} // closed when the recognizer has been torn down
}

// NewShared returns a handle that loads its recognizer with load. slots
// bounds concurrent inference calls; values below 1 mean 1.
func NewShared(load Loader, slots int) *Shared {
	if slots < 1 {
		slots = 1
	}
	return &Shared{
		load:  load,
		slots: semaphore.NewWeighted(int64(slots)),
		done:  make(chan struct{}),
	}
}

// Lease is one holder's reference to the shared recognizer.
type Lease struct {
	s    *Shared
	once sync.Once
}

// Acquire returns a lease on the recognizer, loading it if needed.
func (s *Shared) Acquire(ctx context.Context) (*Lease, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, errs.Wrap(errs.KindModel, "acquire", "recognizer is shut down", ErrClosed)
		}
		if s.rec != nil {
			s.refs++
			s.mu.Unlock()
			return &Lease{s: s}, nil
		}
		if wait := s.loading; wait != nil {
			s.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, errs.Wrap(errs.KindModel, "acquire", "cancelled while the recognizer was loading", ctx.Err())
			}
		}

		s.loading = make(chan struct{})
		s.mu.Unlock()

		start := time.Now()
		rec, err := s.load(ctx)

		s.mu.Lock()
		close(s.loading)
		s.loading = nil
		if s.closed {
			// Close ran during the load and left teardown to this path.
			s.rec = rec
			s.mu.Unlock()
			s.teardown()
			return nil, errs.Wrap(errs.KindModel, "acquire", "recognizer is shut down", ErrClosed)
		}
		if err != nil {
			s.mu.Unlock()
			return nil, errs.Wrap(errs.KindModel, "load", "could not initialize the recognizer", err)
		}
		s.rec = rec
		s.refs++
		s.mu.Unlock()

		slog.Info("recognizer loaded", "elapsed", time.Since(start).String())
		return &Lease{s: s}, nil
	}
}

// Recognize runs one inference call, waiting for a free slot.
func (l *Lease) Recognize(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if err := l.s.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.s.slots.Release(1)

	l.s.mu.Lock()
	rec := l.s.rec
	l.s.mu.Unlock()
	if rec == nil {
		return "", ErrClosed
	}
	return rec.Recognize(ctx, samples, sampleRate)
}

// Release drops the lease. Calling it more than once has no effect.
func (l *Lease) Release() {
	l.once.Do(func() {
		s := l.s
		s.mu.Lock()
		s.refs--
		teardown := s.closed && s.refs == 0
		s.mu.Unlock()
		if teardown {
			s.teardown()
		}
	})
}

// Refs returns the number of outstanding leases.
func (s *Shared) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// Loaded reports whether the recognizer is currently initialized.
func (s *Shared) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec != nil
}

// Close shuts the handle down. Without outstanding leases the recognizer is
// closed immediately; otherwise it is closed by the last Release, or by the
// in-flight load once it returns. Close
// returns the recognizer's own Close error when teardown happens inline.
func (s *Shared) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	teardown := s.refs == 0 && s.loading == nil
	s.mu.Unlock()

	if !teardown {
		return nil
	}
	s.teardown()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// Done is closed once the recognizer has been torn down.
func (s *Shared) Done() <-chan struct{} {
	return s.done
}

func (s *Shared) teardown() {
	s.mu.Lock()
	rec := s.rec
	s.rec = nil
	s.mu.Unlock()

	var err error
	if rec != nil {
		err = rec.Close()
		slog.Info("recognizer closed", "err", err)
	}

	s.mu.Lock()
	s.closeErr = err
	s.mu.Unlock()
	close(s.done)
}
