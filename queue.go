package courier

import (
	"github.com/Tap30/courier-go/adapters"
)

// Queue holds the two disjoint record sets of the pipeline: pending (not yet
// sent) and in-flight (sent, awaiting an outcome). Records are keyed by message ID.
//
// Queue is not safe for concurrent use; the Dispatcher goroutine owns it.
type Queue struct {
	pending  map[string]Event
	inFlight map[string]Event
}

// NewQueue creates and returns a new empty Queue.
func NewQueue() *Queue {
	return &Queue{
		pending:  make(map[string]Event),
		inFlight: make(map[string]Event),
	}
}

// Contains reports whether a record with the same message ID is pending or in flight.
func (q *Queue) Contains(event Event) bool {
	if _, ok := q.pending[event.MessageID]; ok {
		return true
	}
	_, ok := q.inFlight[event.MessageID]
	return ok
}

// Insert adds event to the pending set. It returns false, leaving the queue
// unchanged, if a record with the same message ID is already pending or in flight.
func (q *Queue) Insert(event Event) bool {
	if q.Contains(event) {
		return false
	}
	q.pending[event.MessageID] = event
	return true
}

// Evict removes the oldest pending records until pending plus in-flight fits
// within maxSize, or pending is empty. In-flight records are never evicted.
// The evicted records are returned oldest first.
func (q *Queue) Evict(maxSize int) []Event {
	excess := q.Len() - maxSize
	if excess <= 0 || len(q.pending) == 0 {
		return nil
	}
	evicted := q.oldestPending(excess)
	for _, e := range evicted {
		delete(q.pending, e.MessageID)
	}
	return evicted
}

// TakeBatch moves up to n of the oldest pending records to the in-flight set and
// returns them oldest first.
func (q *Queue) TakeBatch(n int) []Event {
	batch := q.oldestPending(n)
	for _, e := range batch {
		delete(q.pending, e.MessageID)
		q.inFlight[e.MessageID] = e
	}
	return batch
}

// Complete removes batch from the in-flight set.
func (q *Queue) Complete(batch []Event) {
	for _, e := range batch {
		delete(q.inFlight, e.MessageID)
	}
}

// Requeue moves batch from the in-flight set back to pending.
func (q *Queue) Requeue(batch []Event) {
	for _, e := range batch {
		if _, ok := q.inFlight[e.MessageID]; !ok {
			continue
		}
		delete(q.inFlight, e.MessageID)
		q.pending[e.MessageID] = e
	}
}

// PendingLen returns the number of pending records.
func (q *Queue) PendingLen() int {
	return len(q.pending)
}

// InFlightLen returns the number of in-flight records.
func (q *Queue) InFlightLen() int {
	return len(q.inFlight)
}

// Len returns the number of pending and in-flight records together.
func (q *Queue) Len() int {
	return len(q.pending) + len(q.inFlight)
}

// IsEmpty reports whether no records are pending.
func (q *Queue) IsEmpty() bool {
	return len(q.pending) == 0
}

// Pending returns the pending records, oldest first.
func (q *Queue) Pending() []Event {
	return sortedValues(q.pending)
}

// InFlight returns the in-flight records, oldest first.
func (q *Queue) InFlight() []Event {
	return sortedValues(q.inFlight)
}

// ToSlice returns the union of pending and in-flight records, oldest first.
// This is the set written to the snapshot.
func (q *Queue) ToSlice() []Event {
	events := make([]Event, 0, q.Len())
	for _, e := range q.pending {
		events = append(events, e)
	}
	for _, e := range q.inFlight {
		events = append(events, e)
	}
	adapters.SortEvents(events)
	return events
}

// LoadFromSlice replaces the queue contents: every record becomes pending.
// Duplicate message IDs collapse to one record.
func (q *Queue) LoadFromSlice(events []Event) {
	q.pending = make(map[string]Event, len(events))
	q.inFlight = make(map[string]Event)
	for _, e := range events {
		q.pending[e.MessageID] = e
	}
}

func (q *Queue) oldestPending(n int) []Event {
	if n <= 0 || len(q.pending) == 0 {
		return nil
	}
	events := sortedValues(q.pending)
	if n < len(events) {
		events = events[:n]
	}
	return events
}

func sortedValues(set map[string]Event) []Event {
	events := make([]Event, 0, len(set))
	for _, e := range set {
		events = append(events, e)
	}
	adapters.SortEvents(events)
	return events
}
