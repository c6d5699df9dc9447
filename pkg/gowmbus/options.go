package gowmbus

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	internalopts "github.com/witoldo7/gowmbus/internal/options"
)

// AnalyzeOptions configures a single analysis.
type AnalyzeOptions struct {
	// Driver forces a driver by name and skips header based resolution.
	Driver string
}

func (opts AnalyzeOptions) apply(ctx context.Context) context.Context {
	return internalopts.WithDriver(ctx, opts.Driver)
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger; the logrus standard logger is used otherwise.
func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Analyzer) {
		if log != nil {
			a.log = log
		}
	}
}

// WithObserver reports every analysis to o.
func WithObserver(o Observer) Option {
	return func(a *Analyzer) { a.observer = o }
}

// WithClock replaces time.Now, mostly for reproducible timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}
