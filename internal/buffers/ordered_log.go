// ordered_log.go — Generic append-only log with arrival-time tracking.
// Entries are never evicted, edited or removed; Snapshot copies them out in
// arrival order. Not synchronized: the owner serializes access (the session
// recorder holds its own mutex around every call).
package buffers

import "time"

// OrderedLog is an append-only sequence of entries with a parallel slice of
// arrival times.
type OrderedLog[T any] struct {
	entries []T
	addedAt []time.Time // Parallel slice: when each entry was appended
}

// NewOrderedLog creates a log with room for sizeHint entries before the first
// reallocation.
func NewOrderedLog[T any](sizeHint int) *OrderedLog[T] {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &OrderedLog[T]{
		entries: make([]T, 0, sizeHint),
		addedAt: make([]time.Time, 0, sizeHint),
	}
}

// Append adds entry in amortized O(1) and returns its position.
func (l *OrderedLog[T]) Append(entry T, at time.Time) int {
	l.entries = append(l.entries, entry)
	l.addedAt = append(l.addedAt, at)
	return len(l.entries) - 1
}

// Len returns the number of entries.
func (l *OrderedLog[T]) Len() int {
	return len(l.entries)
}

// LastAddedAt returns when the newest entry was appended; ok is false for an
// empty log.
func (l *OrderedLog[T]) LastAddedAt() (at time.Time, ok bool) {
	if len(l.addedAt) == 0 {
		return time.Time{}, false
	}
	return l.addedAt[len(l.addedAt)-1], true
}

// Snapshot returns a copy of all entries, oldest first. The result never
// aliases the log's storage. An empty log yields an empty, non-nil slice so
// serialized reports show [] rather than null.
func (l *OrderedLog[T]) Snapshot() []T {
	out := make([]T, len(l.entries))
	copy(out, l.entries)
	return out
}
