// Package report surfaces failed intents to the user and to error tracking.
package report

import (
	"context"
	"errors"
	"sync"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/d60-Lab/sagesync/internal/apperr"
	"github.com/d60-Lab/sagesync/pkg/logger"
)

// Reporter receives each failed intent exactly once. fallback is the text
// shown when err carries no user-facing message.
type Reporter interface {
	Report(ctx context.Context, err error, fallback string)
}

// Func adapts a plain function.
type Func func(ctx context.Context, err error, fallback string)

func (f Func) Report(ctx context.Context, err error, fallback string) { f(ctx, err, fallback) }

// Nop drops everything.
var Nop Reporter = Func(func(context.Context, error, string) {})

type logReporter struct {
	log *zap.Logger
}

// NewLog writes reports to the named zap logger.
func NewLog() Reporter {
	return &logReporter{log: logger.Named("report")}
}

func (r *logReporter) Report(_ context.Context, err error, fallback string) {
	if skip(err) {
		return
	}
	r.log.Warn(apperr.UserMessage(err, fallback),
		zap.Error(err),
		zap.Int("status", apperr.StatusOf(err)),
		zap.Bool("validation", apperr.IsValidation(err)),
	)
}

type sentryReporter struct {
	hub *sentry.Hub
}

// NewSentry sends transport failures to sentry. Validation failures are
// user mistakes and stay local.
func NewSentry(hub *sentry.Hub) Reporter {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &sentryReporter{hub: hub}
}

func (r *sentryReporter) Report(ctx context.Context, err error, fallback string) {
	if skip(err) || apperr.IsValidation(err) {
		return
	}
	hub := r.hub
	if h := sentry.GetHubFromContext(ctx); h != nil {
		hub = h
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("user_message", apperr.UserMessage(err, fallback))
		if status := apperr.StatusOf(err); status > 0 {
			scope.SetLevel(sentry.LevelWarning)
		}
		hub.CaptureException(err)
	})
}

type multi []Reporter

// Multi fans a report out to every reporter.
func Multi(rs ...Reporter) Reporter {
	return multi(rs)
}

func (m multi) Report(ctx context.Context, err error, fallback string) {
	for _, r := range m {
		r.Report(ctx, err, fallback)
	}
}

func skip(err error) bool {
	return err == nil || errors.Is(err, apperr.ErrActionDisabled) || errors.Is(err, context.Canceled)
}

// Entry is one report kept by a Recorder.
type Entry struct {
	Err     error
	Message string
}

// Recorder keeps reports in memory. Views poll it for toasts and tests use
// it to count reports.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Report(_ context.Context, err error, fallback string) {
	if skip(err) {
		return
	}
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Err: err, Message: apperr.UserMessage(err, fallback)})
	r.mu.Unlock()
}

func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Drain returns and clears the recorded entries.
func (r *Recorder) Drain() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.entries
	r.entries = nil
	return out
}
