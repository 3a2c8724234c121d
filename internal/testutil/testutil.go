// Package testutil provides deterministic collaborators for client tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/AtRiskMedia/zori-go/internal/domain/events"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/fingerprint"
)

// SequentialIDs mints predictable identifiers: vis_0001, ses_0001, evt_0001.
type SequentialIDs struct {
	mu                     sync.Mutex
	visitor, session, evts int
}

func (s *SequentialIDs) VisitorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visitor++
	return fmt.Sprintf("vis_%04d", s.visitor)
}

func (s *SequentialIDs) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session++
	return fmt.Sprintf("ses_%04d", s.session)
}

func (s *SequentialIDs) EventID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evts++
	return fmt.Sprintf("evt_%04d", s.evts)
}

// Delivery is one payload handed to a RecordingTransport.
type Delivery struct {
	Endpoint string
	Payload  any
}

// RecordingTransport records every payload it is asked to send.
type RecordingTransport struct {
	mu         sync.Mutex
	deliveries []Delivery
	err        error
}

// Fail makes subsequent sends return err (nil restores success).
func (r *RecordingTransport) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Send implements transport.Transport.
func (r *RecordingTransport) Send(_ context.Context, endpoint string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{Endpoint: endpoint, Payload: payload})
	return r.err
}

// Deliveries returns a copy of everything sent so far.
func (r *RecordingTransport) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Envelopes returns the event envelopes sent to the ingest endpoint.
func (r *RecordingTransport) Envelopes() []events.Envelope {
	var out []events.Envelope
	for _, d := range r.Deliveries() {
		if env, ok := d.Payload.(events.Envelope); ok {
			out = append(out, env)
		}
	}
	return out
}

// Named returns the envelopes with the given event name.
func (r *RecordingTransport) Named(name string) []events.Envelope {
	var out []events.Envelope
	for _, env := range r.Envelopes() {
		if env.EventName == name {
			out = append(out, env)
		}
	}
	return out
}

// Identifies returns the identify payloads sent.
func (r *RecordingTransport) Identifies() []events.IdentifyPayload {
	var out []events.IdentifyPayload
	for _, d := range r.Deliveries() {
		if p, ok := d.Payload.(events.IdentifyPayload); ok {
			out = append(out, p)
		}
	}
	return out
}

// Reset forgets recorded deliveries.
func (r *RecordingTransport) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
}

// FakeCollector returns a fixed profile and counts calls.
type FakeCollector struct {
	mu      sync.Mutex
	calls   int
	Profile fingerprint.Profile
	Err     error
}

// Collect implements fingerprint.Collector.
func (f *FakeCollector) Collect(context.Context) (fingerprint.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.Profile, f.Err
}

// Calls returns how many times Collect ran.
func (f *FakeCollector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// JSON renders v for assertions on wire shapes.
func JSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(raw)
}
