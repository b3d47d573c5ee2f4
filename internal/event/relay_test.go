package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	xerrors "TechHub-Embassy/internal/errors"
	"TechHub-Embassy/internal/orchestrator"
)

type fakeDispatcher struct {
	mu        sync.Mutex
	handled   []orchestrator.Event
	busyFirst map[string]bool
	processed atomic.Int32
}

func (f *fakeDispatcher) Handle(_ context.Context, ev orchestrator.Event) (*orchestrator.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busyFirst[ev.ProjectID] {
		f.busyFirst[ev.ProjectID] = false
		return nil, xerrors.New(xerrors.CodeProjectBusy, "busy")
	}
	f.handled = append(f.handled, ev)
	f.processed.Add(1)
	return &orchestrator.Outcome{NextAction: orchestrator.NextDone, ProjectID: ev.ProjectID}, nil
}

func publishEvent(t *testing.T, queue Producer, ev orchestrator.Event) {
	t.Helper()
	payload, err := Envelope{Event: ev}.Encode()
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	if err := queue.Publish(context.Background(), payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestRelayDispatchesEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	queue := NewMemoryQueue(64)
	dispatcher := &fakeDispatcher{busyFirst: map[string]bool{}}
	relay := NewRelay(dispatcher, queue, queue, WithWorkerCount(4))

	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("relay exited: %v", err)
		}
	}()

	total := 20
	for i := 0; i < total; i++ {
		publishEvent(t, queue, orchestrator.Event{
			Type:      "resume_project",
			ProjectID: fmt.Sprintf("p-%d", i),
		})
	}

	deadline := time.After(3 * time.Second)
	for dispatcher.processed.Load() < int32(total) {
		select {
		case <-deadline:
			t.Fatalf("processed %d of %d events", dispatcher.processed.Load(), total)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRelayRequeuesBusyEventOnce(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	queue := NewMemoryQueue(64)
	dispatcher := &fakeDispatcher{busyFirst: map[string]bool{"p-busy": true}}
	relay := NewRelay(dispatcher, queue, queue, WithWorkerCount(1))

	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("relay exited: %v", err)
		}
	}()

	publishEvent(t, queue, orchestrator.Event{Type: "request_match", ProjectID: "p-busy"})

	deadline := time.After(3 * time.Second)
	for dispatcher.processed.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("busy event was not requeued and processed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	if len(dispatcher.handled) != 1 || dispatcher.handled[0].ProjectID != "p-busy" {
		t.Fatalf("unexpected handled events: %+v", dispatcher.handled)
	}
}

func TestRelayDropsMalformedPayload(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	queue := NewMemoryQueue(4)
	dispatcher := &fakeDispatcher{busyFirst: map[string]bool{}}
	relay := NewRelay(dispatcher, queue, queue)

	go func() { _ = relay.Start(ctx) }()

	if err := queue.Publish(ctx, "{not json"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	publishEvent(t, queue, orchestrator.Event{Type: "resume_project", ProjectID: "p-1"})

	deadline := time.After(800 * time.Millisecond)
	for dispatcher.processed.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("valid event after malformed payload was not processed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
