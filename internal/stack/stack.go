// Package stack implements the bounded, cursor-navigable collection of
// currently displayable notification records. It is a pure data
// structure: no I/O, no timers, so its invariants are independently
// testable.
package stack

import (
	"fmt"

	"github.com/fluxshell/notifd/internal/model"
)

// DefaultCapacity is the default maximum number of simultaneously
// displayable records.
const DefaultCapacity = 5

// NoCursor is the cursor value when the stack is empty.
const NoCursor = -1

// Stack is an ordered sequence of records, oldest first, with a cursor
// pointing at the currently displayed record. All methods are
// single-goroutine; serialization is the caller's job.
type Stack struct {
	capacity int
	records  []*model.Record
	cursor   int
}

// New creates an empty stack with the given capacity.
// Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *Stack {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stack{
		capacity: capacity,
		records:  make([]*model.Record, 0, capacity),
		cursor:   NoCursor,
	}
}

// Len returns the number of records on the stack.
func (s *Stack) Len() int { return len(s.records) }

// Capacity returns the maximum number of records the stack holds.
func (s *Stack) Capacity() int { return s.capacity }

// Cursor returns the index of the currently displayed record, or
// NoCursor when the stack is empty.
func (s *Stack) Cursor() int { return s.cursor }

// Current returns the record at the cursor, or nil when empty.
func (s *Stack) Current() *model.Record {
	if s.cursor == NoCursor {
		return nil
	}
	return s.records[s.cursor]
}

// At returns the record at index i. Out-of-range access is a
// programming error and panics.
func (s *Stack) At(i int) *model.Record {
	if i < 0 || i >= len(s.records) {
		panic(fmt.Sprintf("stack: index %d out of range [0,%d)", i, len(s.records)))
	}
	return s.records[i]
}

// Records returns a copy of the ordered record slice, oldest first.
func (s *Stack) Records() []*model.Record {
	out := make([]*model.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record with the given id and its index, or (nil, -1).
func (s *Stack) Get(id string) (*model.Record, int) {
	for i, r := range s.records {
		if r.ID == id {
			return r, i
		}
	}
	return nil, -1
}

// GetBySourceID returns the record with the given source id, or nil.
func (s *Stack) GetBySourceID(sourceID uint32) *model.Record {
	for _, r := range s.records {
		if r.SourceID == sourceID {
			return r
		}
	}
	return nil
}

// Push appends a record as the newest entry and moves the cursor to
// it. If the stack is full, records are evicted first: the oldest
// low/normal record goes before any critical one, and a critical
// record is evicted only when every resident is critical (then oldest
// by creation). The evicted records are returned, oldest first.
func (s *Stack) Push(r *model.Record) []*model.Record {
	var evicted []*model.Record
	for len(s.records) >= s.capacity {
		evicted = append(evicted, s.evictOne())
	}

	s.records = append(s.records, r)
	s.cursor = len(s.records) - 1
	s.check()
	return evicted
}

// SetCapacity changes the record limit. Shrinking below the current
// length evicts immediately, using the usual victim preference; the
// evicted records are returned oldest first.
func (s *Stack) SetCapacity(capacity int) []*model.Record {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	// Evict before lowering the limit: removeAt rechecks the
	// invariants after every single removal.
	var evicted []*model.Record
	for len(s.records) > capacity {
		evicted = append(evicted, s.evictOne())
	}
	s.capacity = capacity
	s.check()
	return evicted
}

// evictOne removes and returns the preferred eviction victim.
func (s *Stack) evictOne() *model.Record {
	victim := 0
	found := false
	for i, r := range s.records {
		if r.Urgency != model.UrgencyCritical {
			victim = i
			found = true
			break
		}
	}
	if !found {
		// All critical: evict the oldest by creation time.
		for i := 1; i < len(s.records); i++ {
			if s.records[i].CreatedAt.Before(s.records[victim].CreatedAt) {
				victim = i
			}
		}
	}
	return s.removeAt(victim)
}

// Remove removes the record with the given id. It returns the removed
// record, or nil if the id is not present.
func (s *Stack) Remove(id string) *model.Record {
	_, i := s.Get(id)
	if i < 0 {
		return nil
	}
	return s.removeAt(i)
}

// RemoveCurrent removes the record at the cursor, or returns nil when
// the stack is empty.
func (s *Stack) RemoveCurrent() *model.Record {
	if s.cursor == NoCursor {
		return nil
	}
	return s.removeAt(s.cursor)
}

// removeAt removes the record at index i, adjusting the cursor: a
// removal at the cursor prefers the next-older record, a removal below
// the cursor shifts it down, and the result is clamped to the valid
// range.
func (s *Stack) removeAt(i int) *model.Record {
	r := s.records[i]
	s.records = append(s.records[:i], s.records[i+1:]...)

	if len(s.records) == 0 {
		s.cursor = NoCursor
		return r
	}

	switch {
	case i == s.cursor:
		s.cursor = max(0, i-1)
	case i < s.cursor:
		s.cursor--
	}
	if s.cursor >= len(s.records) {
		s.cursor = len(s.records) - 1
	}
	s.check()
	return r
}

// Replace swaps the record with the given id for a new one in place,
// keeping its stack position. Returns the old record, or nil if the id
// is not present.
func (s *Stack) Replace(id string, r *model.Record) *model.Record {
	old, i := s.Get(id)
	if i < 0 {
		return nil
	}
	s.records[i] = r
	s.cursor = i
	s.check()
	return old
}

// Previous moves the cursor one record older. At the oldest record it
// is a no-op and reports false.
func (s *Stack) Previous() bool {
	if s.cursor <= 0 {
		return false
	}
	s.cursor--
	return true
}

// Next moves the cursor one record newer. At the newest record it is a
// no-op and reports false.
func (s *Stack) Next() bool {
	if s.cursor == NoCursor || s.cursor >= len(s.records)-1 {
		return false
	}
	s.cursor++
	return true
}

// Clear removes every record and resets the cursor, returning the
// removed records oldest first.
func (s *Stack) Clear() []*model.Record {
	out := s.records
	s.records = make([]*model.Record, 0, s.capacity)
	s.cursor = NoCursor
	return out
}

// check enforces the structural invariants. Violations are programming
// errors, never recoverable conditions.
func (s *Stack) check() {
	if len(s.records) > s.capacity {
		panic(fmt.Sprintf("stack: %d records exceeds capacity %d", len(s.records), s.capacity))
	}
	if len(s.records) == 0 {
		if s.cursor != NoCursor {
			panic("stack: cursor set on empty stack")
		}
		return
	}
	if s.cursor < 0 || s.cursor >= len(s.records) {
		panic(fmt.Sprintf("stack: cursor %d out of range [0,%d)", s.cursor, len(s.records)))
	}
}
