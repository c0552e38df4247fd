package feed

import "testing"

func TestSubscribeBeforeFirstPublishGetsNoReplay(t *testing.T) {
	f := New[int]()

	calls := 0
	f.Subscribe(func([]int) { calls++ })
	if calls != 0 {
		t.Fatalf("expected no replay on empty feed, got %d calls", calls)
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	f := New[int]()

	var a, b []int
	f.Subscribe(func(s []int) { a = s })
	f.Subscribe(func(s []int) { b = s })

	f.Publish([]int{1, 2, 3})
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("snapshots not delivered: a=%v b=%v", a, b)
	}
}

func TestLateSubscriberGetsReplay(t *testing.T) {
	f := New[string]()
	f.Publish([]string{"x"})

	var got []string
	f.Subscribe(func(s []string) { got = s })
	if len(got) != 1 || got[0] != "x" {
		t.Fatalf("expected replay of last snapshot, got %v", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	f := New[int]()

	calls := 0
	cancel := f.Subscribe(func([]int) { calls++ })
	f.Publish([]int{1})
	cancel()
	cancel() // second call is a no-op
	f.Publish([]int{2})

	if calls != 1 {
		t.Fatalf("expected 1 delivery, got %d", calls)
	}
	if f.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", f.Len())
	}
}

func TestResetClearsReplay(t *testing.T) {
	f := New[int]()
	f.Publish([]int{1})
	f.Reset()

	calls := 0
	f.Subscribe(func([]int) { calls++ })
	if calls != 0 {
		t.Fatalf("expected no replay after reset, got %d", calls)
	}
}
