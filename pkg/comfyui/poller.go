package comfyui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultPollInterval is the fixed delay between two status queries.
const DefaultPollInterval = time.Second

// HistoryGetter reads the history entry of a prompt. A nil entry means the
// server has not recorded the prompt yet.
type HistoryGetter interface {
	History(ctx context.Context, promptID string) (*HistoryEntry, error)
}

// Poller waits for a queued prompt to finish.
type Poller struct {
	history      HistoryGetter
	interval     time.Duration
	initialDelay time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the delay slept before every status query.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithInitialDelay adds a one-off wait before the first tick.
func WithInitialDelay(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.initialDelay = d
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clock clockwork.Clock) PollerOption {
	return func(p *Poller) {
		p.clock = clock
	}
}

// WithPollerLogger sets the poller logger.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

func NewPoller(history HistoryGetter, opts ...PollerOption) *Poller {
	p := &Poller{
		history:  history,
		interval: DefaultPollInterval,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// MaxAttempts is the number of ticks that fit in timeout, at least one.
func (p *Poller) MaxAttempts(timeout time.Duration) int {
	n := int(timeout / p.interval)
	if n < 1 {
		return 1
	}

	return n
}

// Wait polls the history of promptID until it completes, fails or the tick
// budget for timeout runs out. Every tick sleeps before it queries. A failing
// status query ends the wait immediately.
func (p *Poller) Wait(ctx context.Context, promptID string, timeout time.Duration) (*HistoryEntry, error) {
	if p.initialDelay > 0 {
		if err := p.sleep(ctx, p.initialDelay); err != nil {
			return nil, err
		}
	}

	maxAttempts := p.MaxAttempts(timeout)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, err
		}

		p.logger.DebugContext(ctx, "Checking job status",
			"prompt_id", promptID,
			"attempt", attempt,
			"max_attempts", maxAttempts)

		entry, err := p.history.History(ctx, promptID)
		if err != nil {
			return nil, err
		}

		if entry == nil {
			p.logger.DebugContext(ctx, "Prompt not found in history", "prompt_id", promptID)

			continue
		}

		if entry.Status == nil || !entry.Status.Completed {
			continue
		}

		if entry.Status.Failed() {
			return entry, fmt.Errorf("%w: prompt %s reported status %q", ErrJobFailed, promptID, entry.Status.StatusStr)
		}

		p.logger.InfoContext(ctx, "Job completed", "prompt_id", promptID, "attempts", attempt)

		return entry, nil
	}

	return nil, fmt.Errorf("%w: prompt %s not completed after %s", ErrTimeout, promptID, timeout)
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-p.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
