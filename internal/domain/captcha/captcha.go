// Package captcha manages the human-verification challenge lifecycle.
//
// A challenge is single-use: it is fetched on login-view entry, consumed by
// one login attempt, and must be refreshed before any retry. The expected
// answer never resides client-side; only the question text is held here.
package captcha

import (
	"context"
	"sync"

	"github.com/gradepredict/console/pkg/logger"
	"github.com/gradepredict/console/pkg/metrics"
)

// Fetcher supplies a fresh challenge question from the backend.
type Fetcher interface {
	Captcha(ctx context.Context) (string, error)
}

// Flow owns the current challenge for the login form.
type Flow struct {
	mu       sync.Mutex
	fetcher  Fetcher
	question string
	consumed bool
	logger   logger.Logger
}

// Option applies a configuration option to the Flow.
type Option func(*Flow)

// WithLogger sets a custom logger for the flow.
func WithLogger(log logger.Logger) Option {
	return func(f *Flow) {
		if log != nil {
			f.logger = log
		}
	}
}

// New creates a Flow with no challenge loaded; Refresh must be called before
// the login form can be submitted.
func New(fetcher Fetcher, opts ...Option) *Flow {
	f := &Flow{
		fetcher: fetcher,
		logger:  logger.Named("captcha"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Refresh fetches a new challenge, replacing any previous one. On transport
// failure the question is cleared so the form stays unsubmittable.
func (f *Flow) Refresh(ctx context.Context) error {
	question, err := f.fetcher.Captcha(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.question = ""
		f.consumed = false
		f.logger.Warn(ctx, "captcha fetch failed", logger.Error(err))
		return err
	}

	f.question = question
	f.consumed = false
	metrics.RecordCaptchaRefresh()
	return nil
}

// Question returns the current challenge question, or "" when unavailable.
func (f *Flow) Question() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.question
}

// Ready reports whether a fresh, unconsumed challenge is loaded.
func (f *Flow) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.question != "" && !f.consumed
}

// Invalidate marks the current challenge as consumed. A consumed challenge
// is never resubmitted; Refresh must run before the next attempt.
func (f *Flow) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumed = true
}
