package system

import (
	"context"
	"fmt"
	"testing"
)

type stubService struct {
	name     string
	startErr error
	events   *[]string
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Start(ctx context.Context) error {
	*s.events = append(*s.events, "start:"+s.name)
	return s.startErr
}

func (s *stubService) Stop(ctx context.Context) error {
	*s.events = append(*s.events, "stop:"+s.name)
	return nil
}

func TestStartAndStopOrder(t *testing.T) {
	var events []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&stubService{name: name, events: &events}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("events = %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, events[i], want[i])
		}
	}
}

func TestStartFailureRollsBack(t *testing.T) {
	var events []string
	m := NewManager()
	_ = m.Register(&stubService{name: "ok", events: &events})
	_ = m.Register(&stubService{name: "bad", startErr: fmt.Errorf("boom"), events: &events})
	_ = m.Register(&stubService{name: "never", events: &events})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}

	want := []string{"start:ok", "start:bad", "stop:ok"}
	if len(events) != len(want) {
		t.Fatalf("events = %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, events[i], want[i])
		}
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	var events []string
	m := NewManager()
	if err := m.Register(&stubService{name: "x", events: &events}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(&stubService{name: "x", events: &events}); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestRegisterRejectedAfterStart(t *testing.T) {
	var events []string
	m := NewManager()
	_ = m.Register(&stubService{name: "x", events: &events})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Register(&stubService{name: "y", events: &events}); err == nil {
		t.Fatal("expected registration error after start")
	}
}
