package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/atelier-studio/atelier/pkg/schema"
)

func TestAppendEventAssignsSequence(t *testing.T) {
	s := newTestStore(t)
	el := NewEventLog(s)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := &Event{RunID: "run-1", NodeID: "n1", Type: schema.EventNodeProcessing}
		if err := el.AppendEvent(ctx, e); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if e.Sequence != int64(i+1) {
			t.Errorf("event %d: sequence %d", i, e.Sequence)
		}
	}
}

func TestSequencesAreIndependentPerRun(t *testing.T) {
	s := newTestStore(t)
	el := NewEventLog(s)
	ctx := context.Background()

	a := &Event{RunID: "run-a", Type: schema.EventRunStarted}
	b := &Event{RunID: "run-b", Type: schema.EventRunStarted}
	if err := el.AppendEvent(ctx, a); err != nil {
		t.Fatalf("append a: %v", err)
	}
	if err := el.AppendEvent(ctx, b); err != nil {
		t.Fatalf("append b: %v", err)
	}
	if a.Sequence != 1 || b.Sequence != 1 {
		t.Errorf("sequences leaked across runs: a=%d b=%d", a.Sequence, b.Sequence)
	}
}

func TestAppendEventConcurrent(t *testing.T) {
	s := newTestStore(t)
	el := NewEventLog(s)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- el.AppendEvent(ctx, &Event{RunID: "run-1", NodeID: "n1", Type: schema.EventNodeProcessing})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := el.GetEvents(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(events) != n {
		t.Fatalf("expected %d events, got %d", n, len(events))
	}
	for i, e := range events {
		if e.Sequence != int64(i+1) {
			t.Fatalf("sequence gap at %d: %d", i, e.Sequence)
		}
	}
}

func TestGetEventsSince(t *testing.T) {
	s := newTestStore(t)
	el := NewEventLog(s)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := el.AppendEvent(ctx, &Event{RunID: "run-1", Type: schema.EventNodeProcessing, NodeID: "n"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	tail, err := el.GetEvents(ctx, "run-1", 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(tail) != 2 || tail[0].Sequence != 4 {
		t.Errorf("since filter: %d events, first seq %d", len(tail), tail[0].Sequence)
	}
}

func TestReplayEventsReconstructsNodeStates(t *testing.T) {
	s := newTestStore(t)
	el := NewEventLog(s)
	ctx := context.Background()

	result, _ := json.Marshal("data:image/png;base64,AAAA")
	sequence := []*Event{
		{RunID: "run-1", Type: schema.EventRunStarted},
		{RunID: "run-1", NodeID: "gen", Type: schema.EventNodeProcessing},
		{RunID: "run-1", NodeID: "gen", Type: schema.EventNodeCompleted, Payload: result},
		{RunID: "run-1", NodeID: "canvas", Type: schema.EventNodeProcessing},
		{RunID: "run-1", NodeID: "canvas", Type: schema.EventNodeFailed, Payload: json.RawMessage(`backend down`)},
		{RunID: "run-1", Type: schema.EventRunCompleted},
	}
	for _, e := range sequence {
		if err := el.AppendEvent(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	states, err := el.ReplayEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 node states, got %d", len(states))
	}

	gen := states["gen"]
	if gen.Status != schema.StatusCompleted {
		t.Errorf("gen status: %s", gen.Status)
	}
	if gen.StartedAt == nil || gen.CompletedAt == nil {
		t.Error("gen timestamps missing")
	}
	if string(gen.Result) != string(result) {
		t.Errorf("gen result: %s", gen.Result)
	}

	canvas := states["canvas"]
	if canvas.Status != schema.StatusError {
		t.Errorf("canvas status: %s", canvas.Status)
	}
	if canvas.Error != "backend down" {
		t.Errorf("canvas error: %q", canvas.Error)
	}
}

func TestReplayEventsEmptyRun(t *testing.T) {
	s := newTestStore(t)
	el := NewEventLog(s)

	states, err := el.ReplayEvents(context.Background(), "never-ran")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(states) != 0 {
		t.Errorf("expected no states, got %d", len(states))
	}
}

func TestReplayEventsDetectsSequenceGap(t *testing.T) {
	s := newTestStore(t)
	el := NewEventLog(s)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := el.AppendEvent(ctx, &Event{RunID: "run-1", NodeID: "n", Type: schema.EventNodeProcessing}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	// Punch a hole in the log.
	if _, err := s.DB().Exec(`DELETE FROM events WHERE run_id = 'run-1' AND sequence = 2`); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err := el.ReplayEvents(ctx, "run-1")
	if err == nil {
		t.Fatal("expected sequence gap error")
	}
}
