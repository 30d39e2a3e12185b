// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// Frame is a decoded outbound envelope.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FakeTransport records every frame sent to it.
type FakeTransport struct {
	id uuid.UUID

	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	closeErr error
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{id: uuid.New()}
}

func (f *FakeTransport) ID() uuid.UUID { return f.id }

func (f *FakeTransport) Send(msg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.frames = append(f.frames, msg)
}

func (f *FakeTransport) Close(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeErr = err
}

func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Frames decodes everything received so far.
func (f *FakeTransport) Frames(t testing.TB) []Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, 0, len(f.frames))
	for _, raw := range f.frames {
		var fr Frame
		if err := json.Unmarshal(raw, &fr); err != nil {
			t.Fatalf("undecodable frame %q: %v", raw, err)
		}
		out = append(out, fr)
	}
	return out
}

// Events lists the event names received, in order.
func (f *FakeTransport) Events(t testing.TB) []string {
	t.Helper()
	frames := f.Frames(t)
	names := make([]string, len(frames))
	for i, fr := range frames {
		names[i] = fr.Event
	}
	return names
}

// Last returns the most recent frame carrying event.
func (f *FakeTransport) Last(t testing.TB, event string) Frame {
	t.Helper()
	frames := f.Frames(t)
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Event == event {
			return frames[i]
		}
	}
	t.Fatalf("no %q frame received; got %v", event, f.Events(t))
	return Frame{}
}

// Reset forgets recorded frames.
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

// DecodePayload unmarshals a frame payload into v.
func DecodePayload(t testing.TB, fr Frame, v any) {
	t.Helper()
	if err := json.Unmarshal(fr.Payload, v); err != nil {
		t.Fatalf("decode %s payload %q: %v", fr.Event, fr.Payload, err)
	}
}
