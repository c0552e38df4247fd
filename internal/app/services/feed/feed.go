// Package feed implements the snapshot broadcast used by the reactive
// stores. Subscribers always receive the full current snapshot, never
// deltas, so a late subscriber and an early one converge on the same view.
package feed

import "sync"

// Feed fans a snapshot out to registered subscribers.
type Feed[T any] struct {
	mu       sync.Mutex
	nextID   int
	subs     map[int]func([]T)
	snapshot []T
	primed   bool
}

// New returns an empty feed with no subscribers.
func New[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[int]func([]T))}
}

// Subscribe registers fn and, if a snapshot has been published before,
// replays it immediately. The returned function removes the subscription;
// calling it more than once is harmless.
func (f *Feed[T]) Subscribe(fn func([]T)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	replay := f.primed
	snapshot := f.snapshot
	f.mu.Unlock()

	if replay {
		fn(snapshot)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Publish stores the snapshot and delivers it to every subscriber.
func (f *Feed[T]) Publish(snapshot []T) {
	f.mu.Lock()
	f.snapshot = snapshot
	f.primed = true
	fns := make([]func([]T), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// Reset clears the cached snapshot so the next subscriber gets no replay
// until something is published again.
func (f *Feed[T]) Reset() {
	f.mu.Lock()
	f.snapshot = nil
	f.primed = false
	f.mu.Unlock()
}

// Len reports the number of active subscribers.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
