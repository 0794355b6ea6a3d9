// Package history provides the capped, append-only log of past
// notifications for later browsing.
package history

import (
	"errors"
	"sync"
	"time"

	"github.com/fluxshell/notifd/internal/model"
)

// DefaultCapacity is the default number of retained entries.
const DefaultCapacity = 100

// compactionFactor bounds on-disk growth: the backing file is rewritten
// down to the live window once it holds this many times the capacity,
// so a single append never pays for a full rewrite on its own.
const compactionFactor = 2

// ErrStoreClosed is returned for operations on a closed store.
var ErrStoreClosed = errors.New("history store is closed")

// Entry is a retired notification snapshot.
type Entry struct {
	model.Record

	// Reason the record left the stack: expired, dismissed,
	// closed-by-source, undelivered.
	Reason    string    `json:"reason,omitempty"`
	RetiredAt time.Time `json:"retired_at"`
}

// FilterOptions specifies criteria for listing history entries.
type FilterOptions struct {
	AppFilter string // Exact match on app name
	Urgency   *int   // Filter by urgency level (nil = any)
	Limit     int    // Maximum results (0 = unlimited)
}

// Store keeps the most recent entries in a ring: appending past
// capacity silently drops the oldest. Thread-safe.
//
// The window lives in entries[start:]. Overflow advances start instead
// of shifting, and the slice is compacted once per capacity's worth of
// appends, keeping Append O(1) amortized.
type Store struct {
	mu          sync.RWMutex
	entries     []Entry
	start       int
	capacity    int
	persistence Persistence
	fileLen     int // entries in the backing file since the last compaction
	onEvict     func(Entry)
	closed      bool
}

// NewStore creates a Store with the given capacity. Non-positive
// capacities fall back to DefaultCapacity. If persistence is not nil,
// entries are mirrored to it.
func NewStore(capacity int, persistence Persistence) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		entries:     make([]Entry, 0, capacity),
		capacity:    capacity,
		persistence: persistence,
	}
}

// SetOnEvict registers a callback invoked for every entry dropped from
// the ring, whether by overflow, Clear, or RemoveApp. The callback runs
// with the store lock held and must not call back into the store.
func (s *Store) SetOnEvict(fn func(Entry)) {
	s.mu.Lock()
	s.onEvict = fn
	s.mu.Unlock()
}

func (s *Store) evict(e Entry) {
	if s.onEvict != nil {
		s.onEvict(e)
	}
}

// window returns the live entries, oldest first. Caller holds the lock.
func (s *Store) window() []Entry {
	return s.entries[s.start:]
}

// Append adds an entry, dropping the oldest when at capacity. The drop
// is ring behavior, not an error.
func (s *Store) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	for len(s.entries)-s.start >= s.capacity {
		s.evict(s.entries[s.start])
		s.entries[s.start] = Entry{}
		s.start++
	}
	s.entries = append(s.entries, e)

	if s.start >= s.capacity {
		s.entries = append(s.entries[:0], s.entries[s.start:]...)
		s.start = 0
	}

	if s.persistence == nil {
		return nil
	}
	if err := s.persistence.Append(e); err != nil {
		return err
	}
	s.fileLen++
	if s.fileLen > compactionFactor*s.capacity {
		if err := s.persistence.Rewrite(s.window()); err != nil {
			return err
		}
		s.fileLen = len(s.window())
	}
	return nil
}

// List returns a fresh snapshot of entries matching the filter, newest
// first. Re-querying yields a new snapshot, never a live view.
func (s *Store) List(opts FilterOptions) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Entry
	for i := len(s.entries) - 1; i >= s.start; i-- {
		e := s.entries[i]

		if opts.AppFilter != "" && e.AppName != opts.AppFilter {
			continue
		}
		if opts.Urgency != nil && e.Urgency != *opts.Urgency {
			continue
		}

		result = append(result, e)
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}
	return result
}

// All returns a snapshot of every entry, newest first.
func (s *Store) All() []Entry {
	return s.List(FilterOptions{})
}

// Len returns the number of retained entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries) - s.start
}

// Capacity returns the retention cap.
func (s *Store) Capacity() int { return s.capacity }

// Clear empties the store. Active notifications are unaffected; this
// only drops retained history.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	for _, e := range s.window() {
		s.evict(e)
	}
	s.entries = s.entries[:0]
	s.start = 0
	s.fileLen = 0
	if s.persistence != nil {
		return s.persistence.Clear()
	}
	return nil
}

// RemoveApp drops every retained entry for the given app. Used by the
// per-app replacement policy.
func (s *Store) RemoveApp(appName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	kept := s.entries[:0]
	removed := 0
	for _, e := range s.window() {
		if e.AppName == appName {
			s.evict(e)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	s.start = 0

	if removed == 0 || s.persistence == nil {
		return nil
	}
	if err := s.persistence.Rewrite(s.entries); err != nil {
		return err
	}
	s.fileLen = len(s.entries)
	return nil
}

// Hydrate loads entries from persistence, keeping only the newest
// window that fits the capacity.
func (s *Store) Hydrate() error {
	if s.persistence == nil {
		return nil
	}

	entries, err := s.persistence.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fileLen = len(entries)
	if len(entries) > s.capacity {
		entries = entries[len(entries)-s.capacity:]
	}
	s.entries = append(s.entries[:0], entries...)
	s.start = 0
	return nil
}

// Close releases the persistence layer. Further operations fail with
// ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.persistence != nil {
		return s.persistence.Close()
	}
	return nil
}
