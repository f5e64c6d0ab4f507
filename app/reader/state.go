package reader

import "sync"

// State holds the current published snapshot. Publication is an atomic
// whole-value replace: two concurrent publishers can never interleave a
// half-updated snapshot.
type State struct {
	mu       sync.Mutex
	cur      Snapshot
	watchers map[chan Snapshot]struct{}
	closed   bool
}

// NewState creates a State with an empty snapshot.
func NewState() *State {
	return &State{watchers: map[chan Snapshot]struct{}{}}
}

// Get returns the current snapshot.
func (s *State) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Update derives a new snapshot from the current one with apply and
// publishes it, returning the published value. The apply function must not
// mutate the previous snapshot's slices in place.
func (s *State) Update(apply func(Snapshot) Snapshot) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = apply(s.cur)

	// latest-wins delivery: a slow watcher observes the newest snapshot,
	// not every intermediate one
	for ch := range s.watchers {
		select {
		case ch <- s.cur:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s.cur:
			default:
			}
		}
	}

	return s.cur
}

// Watch returns a channel receiving published snapshots. The current
// snapshot is delivered immediately; the channel is closed on Unwatch or
// when the State is closed.
func (s *State) Watch() <-chan Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch
	}

	ch <- s.cur
	s.watchers[ch] = struct{}{}

	return ch
}

// Unwatch removes the watcher channel and closes it, releasing a consumer
// ranging over it.
func (s *State) Unwatch(ch <-chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for wch := range s.watchers {
		if wch == ch {
			delete(s.watchers, wch)
			close(wch)
			return
		}
	}
}

// Close closes all watcher channels. Further Watch calls return an already
// closed channel.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for ch := range s.watchers {
		close(ch)
	}
	s.watchers = map[chan Snapshot]struct{}{}
}
