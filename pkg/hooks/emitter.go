// Package hooks provides the best-effort event emitter shared by agentpulse hooks.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/agentpulse/internal/config"
	"github.com/thebtf/agentpulse/pkg/events"
)

// State is the terminal state of one emission.
type State int

const (
	// StateSent means the server accepted the event with a 2xx response.
	StateSent State = iota
	// StateDropped means no event reached the server. Nothing is retried.
	StateDropped
)

func (s State) String() string {
	if s == StateSent {
		return "sent"
	}
	return "dropped"
}

// Reason explains a dropped emission.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonInvalidInput Reason = "invalid_input"
	ReasonEncode       Reason = "encode"
	ReasonTimeout      Reason = "timeout"
	ReasonTransport    Reason = "transport"
	ReasonRejected     Reason = "rejected"
)

// Outcome reports what happened to one emission. It is informational only;
// hooks never turn it into a failure.
type Outcome struct {
	State      State
	Reason     Reason
	EventID    string
	StatusCode int
	Err        error
}

// Sent reports whether the server accepted the event.
func (o Outcome) Sent() bool { return o.State == StateSent }

func dropped(reason Reason, eventID string, err error) Outcome {
	return Outcome{State: StateDropped, Reason: reason, EventID: eventID, Err: err}
}

// Builder turns a parsed payload into the event to send.
type Builder func(events.Input) events.Event

// Emitter posts lifecycle events to the ingestion endpoint.
type Emitter struct {
	client  *http.Client
	url     string
	timeout time.Duration
}

// NewEmitter creates an Emitter for the configured server.
func NewEmitter(cfg config.ServerConfig) *Emitter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	return &Emitter{
		client:  &http.Client{},
		url:     cfg.EventsURL(),
		timeout: timeout,
	}
}

// URL returns the ingestion endpoint.
func (e *Emitter) URL() string { return e.url }

// Timeout returns the hard per-request timeout.
func (e *Emitter) Timeout() time.Duration { return e.timeout }

// Emit reads a JSON payload from r, builds an event and sends it once.
// Unreadable or non-object input is dropped before any network call.
func (e *Emitter) Emit(ctx context.Context, r io.Reader, build Builder) Outcome {
	data, err := io.ReadAll(r)
	if err != nil {
		return dropped(ReasonInvalidInput, "", fmt.Errorf("read input: %w", err))
	}

	in, err := events.ParseInput(data)
	if err != nil {
		return dropped(ReasonInvalidInput, "", fmt.Errorf("parse input: %w", err))
	}

	return e.Send(ctx, build(in))
}

// Send posts ev with a single attempt bounded by the emitter timeout.
func (e *Emitter) Send(ctx context.Context, ev events.Event) Outcome {
	body, err := json.Marshal(ev)
	if err != nil {
		return dropped(ReasonEncode, ev.EventID(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return dropped(ReasonTransport, ev.EventID(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return dropped(ReasonTimeout, ev.EventID(), err)
		}
		return dropped(ReasonTransport, ev.EventID(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		o := dropped(ReasonRejected, ev.EventID(), fmt.Errorf("request failed: %s", resp.Status))
		o.StatusCode = resp.StatusCode
		return o
	}

	return Outcome{State: StateSent, EventID: ev.EventID(), StatusCode: resp.StatusCode}
}
