package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/planpanel/internal/plan"
)

// Event is one server-sent event.
type Event struct {
	ID   string
	Type string
	Data string
}

// Key returns the plan date carried by a plan.* event, or "" if none.
func (e Event) Key() plan.Key {
	var body struct {
		Date plan.Key `json:"date"`
	}
	if err := json.Unmarshal([]byte(e.Data), &body); err != nil {
		return ""
	}
	return body.Date
}

// readEvents parses an event stream and calls fn for every complete event.
// Comment lines are skipped.
func readEvents(r io.Reader, fn func(Event)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var (
		ev   Event
		data []string
	)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			if ev.Type != "" || len(data) > 0 {
				if ev.Type == "" {
					ev.Type = "message"
				}
				ev.Data = strings.Join(data, "\n")
				fn(ev)
			}
			ev, data = Event{}, nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			ev.ID = value
		case "event":
			ev.Type = value
		case "data":
			data = append(data, value)
		}
	}
	return sc.Err()
}

// Stream connects once to the event endpoint and calls fn for each event
// until the connection ends or ctx is cancelled. connected, if non-nil, is
// called once the server has accepted the subscription.
func (c *Client) Stream(ctx context.Context, connected func(), fn func(Event)) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("/events", nil), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("remote: events: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if connected != nil {
		connected()
	}
	if err := readEvents(resp.Body, fn); err != nil && ctx.Err() == nil {
		return fmt.Errorf("remote: read events: %w", err)
	}
	return nil
}

// Listen follows the event stream until ctx is cancelled, reconnecting with
// exponential backoff. connected runs after every successful (re)connect so
// the caller can refetch whatever it may have missed.
func (c *Client) Listen(ctx context.Context, connected func(), fn func(Event)) error {
	backoff := c.minBackoff
	for {
		err := c.Stream(ctx, func() {
			backoff = c.minBackoff
			if connected != nil {
				connected()
			}
		}, fn)
		if ctx.Err() != nil {
			return nil
		}

		var se *StatusError
		if errors.As(err, &se) && (se.Code == http.StatusForbidden || se.Code == http.StatusUnauthorized) {
			return err
		}
		if err != nil {
			c.logger.Warn("remote: event stream failed", slog.String("error", err.Error()), slog.Duration("retry_in", backoff))
		} else {
			c.logger.Debug("remote: event stream closed", slog.Duration("retry_in", backoff))
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}
