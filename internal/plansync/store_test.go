package plansync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/starford/planpanel/internal/plan"
	"github.com/starford/planpanel/internal/testutil"
)

// fakeRemote is an in-memory plan.Remote. Gates, when set, hold a call until
// a value is received on them or the call's context ends.
type fakeRemote struct {
	mu        sync.Mutex
	docs      map[plan.Key]string
	fetchErr  error
	saveErr   error
	fetchGate chan struct{}
	saveGate  chan struct{}
	fetches   int
	saves     int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{docs: make(map[plan.Key]string)}
}

func (f *fakeRemote) set(key plan.Key, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[key] = content
}

func (f *fakeRemote) get(key plan.Key) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[key]
}

func (f *fakeRemote) counts() (fetches, saves int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, f.saves
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRemote) Fetch(ctx context.Context, key plan.Key) (plan.Document, error) {
	f.mu.Lock()
	gate := f.fetchGate
	f.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return plan.Document{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return plan.Document{}, f.fetchErr
	}
	content, ok := f.docs[key]
	return plan.Document{
		Key:     key,
		Content: content,
		Path:    "DailyNotes/" + string(key) + ".md",
		Exists:  ok,
		IsEmpty: plan.IsBlank(content),
	}, nil
}

func (f *fakeRemote) Save(ctx context.Context, key plan.Key, content string) (plan.Document, error) {
	f.mu.Lock()
	gate := f.saveGate
	f.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return plan.Document{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return plan.Document{}, f.saveErr
	}
	f.docs[key] = content
	return plan.Document{
		Key:     key,
		Content: content,
		Path:    "DailyNotes/" + string(key) + ".md",
		Exists:  true,
		IsEmpty: plan.IsBlank(content),
	}, nil
}

func testStore(t *testing.T, remote plan.Remote) *Store {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	s := NewStore(remote, day,
		WithLogger(logger),
		WithRequestTimeout(5*time.Second),
		WithClock(func() time.Time { return savedAt }))
	t.Cleanup(s.Close)
	return s
}

func waitIdle(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
}

func TestStore_RefreshThenToggle(t *testing.T) {
	remote := newFakeRemote()
	remote.set(day, "- [ ] Buy milk\n- [x] Walk dog")
	s := testStore(t, remote)

	s.Refresh()
	waitIdle(t, s)
	v := s.Snapshot()
	if v.Phase != PhaseLoaded || v.Document.Content != "- [ ] Buy milk\n- [x] Walk dog" {
		t.Fatalf("view = %+v", v)
	}

	if err := s.ToggleLine(0); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)

	want := "- [x] Buy milk\n- [x] Walk dog"
	if got := remote.get(day); got != want {
		t.Errorf("remote = %q, want %q", got, want)
	}
	v = s.Snapshot()
	if v.Document.Content != want || v.Saving {
		t.Errorf("view = %+v", v)
	}
	if !v.Status.LastSavedAt.Equal(savedAt) {
		t.Errorf("last saved = %v", v.Status.LastSavedAt)
	}
}

func TestStore_NonChecklistToggleMakesNoCall(t *testing.T) {
	remote := newFakeRemote()
	remote.set(day, "Notes: remember milk")
	s := testStore(t, remote)
	s.Refresh()
	waitIdle(t, s)

	if err := s.ToggleLine(0); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)
	if _, saves := remote.counts(); saves != 0 {
		t.Errorf("saves = %d, want 0", saves)
	}
	if v := s.Snapshot(); v.Document.Content != "Notes: remember milk" {
		t.Errorf("content = %q", v.Document.Content)
	}
}

func TestStore_FetchFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.fetchErr = errors.New("dial tcp: connection refused")
	s := testStore(t, remote)

	s.Refresh()
	waitIdle(t, s)
	v := s.Snapshot()
	if v.Document.Exists || !v.Document.IsEmpty || v.Document.Content != "" {
		t.Errorf("document = %+v", v.Document)
	}
	if v.Status.Error != "dial tcp: connection refused" {
		t.Errorf("error = %q", v.Status.Error)
	}
	if v.Phase != PhaseLoadFailed {
		t.Errorf("phase = %v", v.Phase)
	}
}

func TestStore_ToggleFailureRollsBack(t *testing.T) {
	remote := newFakeRemote()
	remote.set(day, "- [ ] a")
	s := testStore(t, remote)
	s.Refresh()
	waitIdle(t, s)

	remote.mu.Lock()
	remote.saveErr = errors.New("read-only vault")
	remote.docs[day] = "- [ ] a\n- [ ] added elsewhere"
	remote.mu.Unlock()

	if err := s.ToggleLine(0); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)

	v := s.Snapshot()
	if v.Document.Content != "- [ ] a\n- [ ] added elsewhere" {
		t.Errorf("content = %q, want remote truth", v.Document.Content)
	}
	if v.Status.Error != "read-only vault" {
		t.Errorf("error = %q", v.Status.Error)
	}
	if v.Saving {
		t.Error("save flag not cleared")
	}
}

func TestStore_SecondSaveRejected(t *testing.T) {
	remote := newFakeRemote()
	remote.set(day, "- [ ] a\n- [ ] b")
	s := testStore(t, remote)
	s.Refresh()
	waitIdle(t, s)

	gate := make(chan struct{})
	remote.mu.Lock()
	remote.saveGate = gate
	remote.mu.Unlock()

	if err := s.ToggleLine(0); err != nil {
		t.Fatal(err)
	}
	if err := s.ToggleLine(1); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("second toggle err = %v", err)
	}
	if err := s.BeginEdit(); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("BeginEdit err = %v", err)
	}
	if v := s.Snapshot(); !v.Saving || v.Document.Content != "- [x] a\n- [ ] b" {
		t.Errorf("optimistic view = %+v", v)
	}

	close(gate)
	waitIdle(t, s)
	if _, saves := remote.counts(); saves != 1 {
		t.Errorf("saves = %d, want 1", saves)
	}
	if got := remote.get(day); got != "- [x] a\n- [ ] b" {
		t.Errorf("remote = %q", got)
	}
}

func TestStore_DraftSurvivesScheduledRefresh(t *testing.T) {
	remote := newFakeRemote()
	remote.set(day, "old")
	s := testStore(t, remote)

	ticks := make(chan time.Time)
	sched := NewScheduler(s, time.Minute, WithTicker(func(time.Duration) Ticker {
		return &fakeTicker{ch: ticks}
	}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sched.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return s.Snapshot().Phase == PhaseLoaded
	}, "initial refresh did not load the document")

	if err := s.BeginEdit(); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateDraft("new text"); err != nil {
		t.Fatal(err)
	}

	remote.set(day, "changed remotely")
	ticks <- time.Now()
	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return s.Snapshot().Document.Content == "changed remotely"
	}, "scheduled refresh did not update content")

	v := s.Snapshot()
	if v.Draft != "new text" || !v.Editing || !v.Dirty {
		t.Errorf("view = %+v", v)
	}
}

func TestStore_SessionSave(t *testing.T) {
	remote := newFakeRemote()
	s := testStore(t, remote)
	s.Refresh()
	waitIdle(t, s)

	if v := s.Snapshot(); v.Document.Exists {
		t.Fatalf("document should not exist yet: %+v", v.Document)
	}
	if err := s.BeginEdit(); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateDraft("Buy milk\n- Walk dog"); err != nil {
		t.Fatal(err)
	}
	if err := s.FormatDraft(); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)

	if got := remote.get(day); got != "- [ ] Buy milk\n- [ ] Walk dog" {
		t.Errorf("remote = %q", got)
	}
	v := s.Snapshot()
	if v.Editing || !v.Document.Exists || v.Phase != PhaseLoaded {
		t.Errorf("view = %+v", v)
	}
}

func TestStore_CancelDirtyGate(t *testing.T) {
	remote := newFakeRemote()
	remote.set(day, "a")
	s := testStore(t, remote)
	s.Refresh()
	waitIdle(t, s)

	_ = s.BeginEdit()
	_ = s.UpdateDraft("b")
	if err := s.Cancel(false); !errors.Is(err, ErrUnconfirmedDiscard) {
		t.Fatalf("err = %v", err)
	}
	if v := s.Snapshot(); !v.Editing || v.Draft != "b" {
		t.Errorf("view changed by rejected cancel: %+v", v)
	}
	if err := s.Cancel(true); err != nil {
		t.Fatal(err)
	}
	if v := s.Snapshot(); v.Editing || v.Draft != "a" || v.Dirty {
		t.Errorf("view = %+v", v)
	}
}

func TestStore_SelectKey(t *testing.T) {
	remote := newFakeRemote()
	remote.set(day, "today")
	remote.set("2025-01-02", "tomorrow")
	s := testStore(t, remote)
	s.Refresh()
	waitIdle(t, s)

	if err := s.SelectKey("2025-01-02"); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)
	v := s.Snapshot()
	if v.Key != "2025-01-02" || v.Document.Content != "tomorrow" {
		t.Errorf("view = %+v", v)
	}
}

func TestStore_SubscribeGetsLatestView(t *testing.T) {
	remote := newFakeRemote()
	remote.set(day, "- [ ] a")
	s := testStore(t, remote)

	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	select {
	case v := <-ch:
		if v.Phase != PhaseIdle {
			t.Errorf("initial phase = %v", v.Phase)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial view")
	}

	s.Refresh()
	waitIdle(t, s)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-ch:
			if v.Phase == PhaseLoaded && v.Document.Content == "- [ ] a" {
				return
			}
		case <-deadline:
			t.Fatal("never saw the loaded view")
		}
	}
}

func TestStore_CloseCancelsOutstandingCalls(t *testing.T) {
	remote := newFakeRemote()
	remote.fetchGate = make(chan struct{})
	s := NewStore(remote, day, WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))

	s.Refresh()
	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an outstanding fetch")
	}

	if err := s.ToggleLine(0); !errors.Is(err, ErrClosed) {
		t.Errorf("err after close = %v", err)
	}
	if v := s.Snapshot(); v.Key != "" {
		t.Errorf("snapshot after close = %+v", v)
	}
	s.Close()
}
