package plansync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/planpanel/internal/plan"
)

// DefaultRequestTimeout bounds a single remote call.
const DefaultRequestTimeout = 15 * time.Second

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for remote call outcomes.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRequestTimeout sets the timeout of each remote call.
func WithRequestTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock replaces time.Now for LastSavedAt stamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type command struct {
	apply func(State) (State, *Request, error)
	reply chan error
}

type result struct {
	req Request
	doc plan.Document
	err error
	at  time.Time
}

// Store drives a State against a plan.Remote.
//
// Concurrency model: a single event loop goroutine owns the State. Intents,
// remote results, subscriptions and snapshot reads reach it through channels.
// Remote calls run on their own goroutines and report back to the loop.
type Store struct {
	remote  plan.Remote
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	commandCh     chan command
	resultCh      chan result
	viewCh        chan chan View
	subscribeCh   chan chan View
	unsubscribeCh chan chan View
	idleCh        chan chan struct{}

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewStore starts a Store for key. Nothing is fetched until Refresh is
// called, usually by a Scheduler.
func NewStore(remote plan.Remote, key plan.Key, opts ...StoreOption) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		remote:        remote,
		logger:        slog.Default(),
		timeout:       DefaultRequestTimeout,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
		commandCh:     make(chan command),
		resultCh:      make(chan result),
		viewCh:        make(chan chan View),
		subscribeCh:   make(chan chan View),
		unsubscribeCh: make(chan chan View),
		idleCh:        make(chan chan struct{}),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run(New(key))
	return s
}

func (s *Store) run(st State) {
	defer close(s.stopped)

	subs := make(map[chan View]struct{})
	var waiters []chan struct{}
	inflight := 0

	publish := func() {
		v := st.View()
		for ch := range subs {
			// Latest view wins: drop a stale unread one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}

	execute := func(req *Request) {
		if req == nil {
			return
		}
		inflight++
		go s.execute(*req)
	}

	releaseWaiters := func() {
		if inflight > 0 {
			return
		}
		for _, w := range waiters {
			close(w)
		}
		waiters = nil
	}

	for {
		select {
		case <-s.stopCh:
			for ch := range subs {
				close(ch)
			}
			for _, w := range waiters {
				close(w)
			}
			return

		case cmd := <-s.commandCh:
			next, req, err := cmd.apply(st)
			if err == nil {
				st = next
				execute(req)
				publish()
			}
			cmd.reply <- err

		case res := <-s.resultCh:
			inflight--
			switch res.req.Op {
			case OpFetch:
				st = st.FetchDone(res.req, res.doc, res.err)
			case OpSave:
				var req *Request
				st, req = st.SaveDone(res.req, res.doc, res.err, res.at)
				execute(req)
			}
			publish()
			releaseWaiters()

		case resp := <-s.viewCh:
			resp <- st.View()

		case ch := <-s.subscribeCh:
			subs[ch] = struct{}{}
			ch <- st.View()

		case ch := <-s.unsubscribeCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case w := <-s.idleCh:
			waiters = append(waiters, w)
			releaseWaiters()
		}
	}
}

func (s *Store) execute(req Request) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	var (
		doc plan.Document
		err error
	)
	switch req.Op {
	case OpFetch:
		doc, err = s.remote.Fetch(ctx, req.Key)
	case OpSave:
		doc, err = s.remote.Save(ctx, req.Key, req.Content)
	}
	if err != nil {
		s.logger.Warn("plansync: remote call failed",
			slog.String("op", req.Op.String()),
			slog.String("date", req.Key.String()),
			slog.String("error", err.Error()))
	} else {
		s.logger.Debug("plansync: remote call done",
			slog.String("op", req.Op.String()),
			slog.String("date", req.Key.String()))
	}

	select {
	case s.resultCh <- result{req: req, doc: doc, err: err, at: s.now()}:
	case <-s.stopCh:
	}
}

func (s *Store) do(apply func(State) (State, *Request, error)) error {
	if s.closed.Load() {
		return ErrClosed
	}
	cmd := command{apply: apply, reply: make(chan error, 1)}
	select {
	case s.commandCh <- cmd:
	case <-s.stopped:
		return ErrClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-s.stopped:
		return ErrClosed
	}
}

// Refresh fetches the active key unless a fetch is already outstanding.
func (s *Store) Refresh() {
	_ = s.do(func(st State) (State, *Request, error) {
		next, req := st.Refresh()
		return next, req, nil
	})
}

// SelectKey switches the store to another document key.
func (s *Store) SelectKey(key plan.Key) error {
	return s.do(func(st State) (State, *Request, error) {
		return st.SelectKey(key)
	})
}

// BeginEdit starts an edit session.
func (s *Store) BeginEdit() error {
	return s.do(func(st State) (State, *Request, error) {
		next, err := st.BeginEdit()
		return next, nil, err
	})
}

// UpdateDraft replaces the draft of the edit session.
func (s *Store) UpdateDraft(text string) error {
	return s.do(func(st State) (State, *Request, error) {
		next, err := st.UpdateDraft(text)
		return next, nil, err
	})
}

// FormatDraft formats the draft as a checklist.
func (s *Store) FormatDraft() error {
	return s.do(func(st State) (State, *Request, error) {
		next, err := st.FormatDraft()
		return next, nil, err
	})
}

// Save saves the draft of the edit session.
func (s *Store) Save() error {
	return s.do(func(st State) (State, *Request, error) {
		return st.Save()
	})
}

// Cancel ends the edit session, discarding a dirty draft only when confirm is
// true.
func (s *Store) Cancel(confirm bool) error {
	return s.do(func(st State) (State, *Request, error) {
		next, err := st.Cancel(confirm)
		return next, nil, err
	})
}

// ToggleLine optimistically toggles the checklist item at line index.
func (s *Store) ToggleLine(index int) error {
	return s.do(func(st State) (State, *Request, error) {
		return st.ToggleLine(index)
	})
}

// Snapshot returns the current view.
func (s *Store) Snapshot() View {
	resp := make(chan View, 1)
	select {
	case s.viewCh <- resp:
	case <-s.stopped:
		return View{}
	}
	select {
	case v := <-resp:
		return v
	case <-s.stopped:
		return View{}
	}
}

// Subscribe returns a channel receiving the latest view after every change.
// The current view is delivered immediately. Slow readers only see the most
// recent view.
func (s *Store) Subscribe() chan View {
	ch := make(chan View, 1)
	if s.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case s.subscribeCh <- ch:
	case <-s.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(ch chan View) {
	if s.closed.Load() {
		return
	}
	select {
	case s.unsubscribeCh <- ch:
	case <-s.stopped:
	}
}

// WaitIdle blocks until no remote call is outstanding or ctx is done.
func (s *Store) WaitIdle(ctx context.Context) error {
	w := make(chan struct{})
	select {
	case s.idleCh <- w:
	case <-s.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the event loop and cancels outstanding remote calls.
func (s *Store) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.cancel()
		close(s.stopCh)
	}
	<-s.stopped
}
