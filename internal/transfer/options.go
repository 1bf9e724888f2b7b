package transfer

import (
	"log/slog"
	"time"

	"github.com/mangobank/ledger/internal/ledger"
)

// Defaults for New.
const (
	DefaultMaxRetries  = 5
	DefaultTimeout     = 5 * time.Second
	DefaultBackoffBase = 2 * time.Millisecond
	DefaultBackoffMax  = 100 * time.Millisecond
)

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRetries sets how many times a version conflict is retried before
// the transfer fails with a contention error. Zero means a single attempt.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n < 0 {
			n = 0
		}
		e.maxRetries = n
	}
}

// WithTimeout bounds each Transfer call. Zero disables the engine's own
// deadline; the caller's context still applies.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithBackoff sets the base delay between retries. The delay doubles per
// attempt up to DefaultBackoffMax and is fully jittered. Zero retries
// immediately.
func WithBackoff(base time.Duration) Option {
	return func(e *Engine) {
		e.backoffBase = base
	}
}

// WithClock sets the clock used for record timestamps.
func WithClock(c ledger.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the generator for transfer ids.
func WithIDGenerator(g ledger.IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithFailureAudit makes the engine append a failed record when a transfer
// is rejected for insufficient funds. Failed records never move money and
// never appear in history.
func WithFailureAudit(enabled bool) Option {
	return func(e *Engine) {
		e.failureAudit = enabled
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}
