package plansync

import (
	"context"
	"time"
)

// Refresher is what the Scheduler drives. Store implements it.
type Refresher interface {
	Refresh()
}

// Ticker delivers periodic ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop() { t.t.Stop() }

// NewTimeTicker is the default TickerFunc backed by time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTicker replaces the ticker factory, for deterministic tests.
func WithTicker(f TickerFunc) SchedulerOption {
	return func(s *Scheduler) {
		if f != nil {
			s.newTicker = f
		}
	}
}

// Scheduler refreshes a target immediately when started, then on every
// interval tick and on every manual Trigger.
type Scheduler struct {
	target    Refresher
	interval  time.Duration
	newTicker TickerFunc
	trigger   chan struct{}
}

// NewScheduler creates a Scheduler. An interval <= 0 disables periodic
// refreshes; Trigger still works.
func NewScheduler(target Refresher, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		target:    target,
		interval:  interval,
		newTicker: NewTimeTicker,
		trigger:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the configured refresh interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Trigger requests a refresh now. Triggers arriving before the pending one is
// handled are coalesced; Trigger never blocks.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes immediately and then keeps refreshing until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.target.Refresh()

	var tick <-chan time.Time
	if s.interval > 0 {
		t := s.newTicker(s.interval)
		defer t.Stop()
		tick = t.C()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			s.target.Refresh()
		case <-s.trigger:
			s.target.Refresh()
		}
	}
}
