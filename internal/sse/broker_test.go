package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncRecorder is an httptest.ResponseRecorder safe to read while the
// handler is still writing.
type syncRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func newSyncRecorder() *syncRecorder { return &syncRecorder{rec: httptest.NewRecorder()} }

func (s *syncRecorder) Header() http.Header { return s.rec.Header() }

func (s *syncRecorder) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Write(p)
}

func (s *syncRecorder) WriteHeader(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.WriteHeader(code)
}

func (s *syncRecorder) Flush() {}

func (s *syncRecorder) Body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Body.String()
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypePlanUpdated, Data: PlanEventData{Date: "2025-01-01"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\n") {
			t.Errorf("missing event id in %q", s)
		}
		if !strings.Contains(s, "event: plan.updated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"date":"2025-01-01"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishPlanEvent_ListThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event triggers plans.changed, the second one is throttled.
	b.PublishPlanEvent("created", "2025-01-01")
	b.PublishPlanEvent("updated", "2025-01-02")
	// Unknown kinds are dropped.
	b.PublishPlanEvent("renamed", "2025-01-03")

	time.Sleep(50 * time.Millisecond)
	listCount := 0
	planCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, TypePlansChanged) {
				listCount++
			} else {
				planCount++
			}
		default:
			break loop
		}
	}

	if planCount != 2 {
		t.Errorf("plan events = %d, want 2", planCount)
	}
	if listCount != 1 {
		t.Errorf("plans.changed events = %d, want 1 (throttled)", listCount)
	}
}

func TestPublishPlanEvent_Types(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{"created", "event: plan.created\ndata: {\"date\":\"2025-01-01\"}"},
		{"updated", "event: plan.updated\ndata: {\"date\":\"2025-01-01\"}"},
		{"deleted", "event: plan.deleted\ndata: {\"date\":\"2025-01-01\"}"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			b := NewBroker(time.Hour)
			defer b.Close()
			ch := b.Subscribe()
			defer b.Unsubscribe(ch)

			b.PublishPlanEvent(tt.kind, "2025-01-01")
			select {
			case msg := <-ch:
				if !strings.Contains(string(msg), tt.want) {
					t.Errorf("msg = %q, want %q", msg, tt.want)
				}
			case <-time.After(time.Second):
				t.Fatal("timeout waiting for message")
			}
		})
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100*time.Millisecond, WithHeartbeat(0))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req = req.WithContext(ctx)
	w := newSyncRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishPlanEvent("updated", "2025-01-01")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body()
	if !strings.HasPrefix(body, ": connected\n\n") {
		t.Errorf("handler should greet with a comment: %q", body)
	}
	if !strings.Contains(body, "event: plan.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	b := NewBroker(time.Second, WithHeartbeat(20*time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := newSyncRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !strings.Contains(w.Body(), ": ping") {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if !strings.Contains(w.Body(), ": ping\n\n") {
		t.Errorf("expected heartbeat comment, got %q", w.Body())
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: TypePlanUpdated, Data: PlanEventData{Date: "2025-01-01"}})
	b.PublishPlanEvent("updated", "2025-01-01")
}
