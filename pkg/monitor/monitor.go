// Package monitor periodically probes a ComfyUI server and publishes the outcome.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/comfyflow/pkg/eventbus"
	"github.com/dukex/comfyflow/pkg/events"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule probes once a minute.
const DefaultSchedule = "@every 1m"

const probeTimeout = 10 * time.Second

var ErrNotProbed = errors.New("comfyui server not probed yet")

// Target is the server being probed.
type Target interface {
	BaseURL() string
	SystemStats(ctx context.Context) (map[string]any, error)
}

// Status is the outcome of the latest probe.
type Status struct {
	Ready     bool      `json:"ready"`
	Error     string    `json:"error,omitempty"`
	Latency   int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

type Monitor struct {
	target    Target
	schedule  string
	publisher eventbus.EventPublisher
	clock     clockwork.Clock
	logger    *slog.Logger

	cron *cron.Cron

	mu   sync.RWMutex
	last *Status
}

type Option func(*Monitor)

func WithSchedule(schedule string) Option {
	return func(m *Monitor) {
		m.schedule = schedule
	}
}

func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(m *Monitor) {
		m.publisher = publisher
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(m *Monitor) {
		m.clock = clock
	}
}

func New(target Target, logger *slog.Logger, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		target:   target,
		schedule: DefaultSchedule,
		clock:    clockwork.NewRealClock(),
		logger:   logger.With("module", "comfyui_monitor", "api_url", target.BaseURL()),
	}

	for _, opt := range opts {
		opt(m)
	}

	if _, err := cron.ParseStandard(m.schedule); err != nil {
		return nil, fmt.Errorf("invalid probe schedule '%s': %w", m.schedule, err)
	}

	return m, nil
}

// Start probes once and then on every tick of the schedule until Stop.
func (m *Monitor) Start(ctx context.Context) error {
	m.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	entryID, err := m.cron.AddFunc(m.schedule, func() {
		m.Probe(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to add probe job: %w", err)
	}

	m.Probe(ctx)
	m.cron.Start()

	m.logger.Info("Started ComfyUI monitor", "schedule", m.schedule, "entry_id", entryID)

	return nil
}

func (m *Monitor) Stop() {
	if m.cron == nil {
		return
	}

	<-m.cron.Stop().Done()
	m.logger.Info("Stopped ComfyUI monitor")
}

// Probe checks the server once, records the outcome and publishes it.
func (m *Monitor) Probe(ctx context.Context) Status {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := m.clock.Now()
	_, err := m.target.SystemStats(probeCtx)
	status := Status{
		Ready:     err == nil,
		Latency:   m.clock.Since(start).Milliseconds(),
		CheckedAt: m.clock.Now().UTC(),
	}

	if err != nil {
		status.Error = err.Error()
		m.logger.Warn("ComfyUI server not ready", "error", err)
	} else {
		m.logger.Debug("ComfyUI server ready", "latency_ms", status.Latency)
	}

	m.mu.Lock()
	m.last = &status
	m.mu.Unlock()

	if m.publisher != nil {
		event := events.ComfyUIProbed{
			BaseEvent: events.NewBaseEvent(events.ComfyUIProbedEvent, ""),
			APIURL:    m.target.BaseURL(),
			Ready:     status.Ready,
			Error:     status.Error,
			LatencyMs: status.Latency,
		}

		if err := m.publisher.Publish(ctx, m.target.BaseURL(), event); err != nil {
			m.logger.Error("Failed to publish probe event", "error", err)
		}
	}

	return status
}

// Last returns the latest probe outcome.
func (m *Monitor) Last() (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.last == nil {
		return Status{}, ErrNotProbed
	}

	return *m.last, nil
}
