// Package debounce provides the one scheduling primitive the client core
// coalesces bursts with: a keyed cancel-and-restart timer map.
//
// Contract per Schedule(key, delay, fn):
//
//  1. A pending timer for key is cancelled; its callback is discarded.
//     Later calls fully supersede earlier ones for the same key — there is
//     no merging across calls.
//  2. A fresh timer is armed for delay.
//  3. On expiry, fn runs. Callbacks that need "the state now" must read it
//     inside fn, not capture it at schedule time; that is what makes rapid
//     double-toggles collapse to one call carrying the final value.
//
// Keys are independent: scheduling under "like:42" never touches a pending
// "favorite:42" or "like:43".
//
// One deliberate gap, inherited from the product's consistency bar: a
// callback that has already started running cannot be cancelled, so a fire
// can race a newer mutation. Payloads read at fire time keep that race
// harmless for last-write-wins state.
package debounce

import (
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	timer *time.Timer
	fn    func()
}

// Scheduler owns the timer map. Safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	logger  *slog.Logger
	stopped bool
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		entries: make(map[string]*entry),
		logger:  logger.With(slog.String("component", "debounce")),
	}
}

// Schedule arms (or re-arms) the timer for key. After Stop, calls are
// ignored.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if prev, ok := s.entries[key]; ok {
		prev.timer.Stop()
		s.logger.Debug("superseding pending sync", slog.String("key", key))
	}

	e := &entry{fn: fn}
	e.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// Only forget the entry if it is still ours; a Schedule call that
		// raced this fire has already replaced it.
		if cur, ok := s.entries[key]; ok && cur == e {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		fn()
	})
	s.entries[key] = e
}

// Pending reports whether a timer is armed for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Flush fires the pending callback for key immediately, if any. Returns
// true when a callback ran.
func (s *Scheduler) Flush(key string) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && e.timer.Stop() {
		delete(s.entries, key)
		s.mu.Unlock()
		e.fn()
		return true
	}
	s.mu.Unlock()
	return false
}

// FlushAll fires every pending callback immediately. Used at shutdown so
// the final intended state reaches the backend instead of dying with the
// process.
func (s *Scheduler) FlushAll() int {
	s.mu.Lock()
	var fns []func()
	for key, e := range s.entries {
		if e.timer.Stop() {
			fns = append(fns, e.fn)
		}
		delete(s.entries, key)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Stop cancels every pending timer without running anything and rejects
// further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, key)
	}
}
