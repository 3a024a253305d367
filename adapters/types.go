package adapters

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Reserved event names produced by the client façade.
const (
	EventScreen       = "$screen"
	EventIdentify     = "$identify"
	EventCreateAlias  = "$create_alias"
	EventBackgrounded = "Application Backgrounded"
)

// Event is a single analytics record. It is treated as immutable once queued.
//
// Two events are the same record iff their MessageID matches; Timestamp is used
// only for ordering.
type Event struct {
	Timestamp  time.Time
	MessageID  string
	DistinctID string
	Name       string
	Properties ldvalue.ValueMap
}

// NewEvent creates an event stamped with the current time and a fresh message ID.
func NewEvent(name, distinctID string, properties ldvalue.ValueMap) Event {
	return Event{
		Timestamp:  time.Now().UTC(),
		MessageID:  uuid.NewString(),
		DistinctID: distinctID,
		Name:       name,
		Properties: properties,
	}
}

// Equal reports whether e and other are the same record.
func (e Event) Equal(other Event) bool {
	return e.MessageID == other.MessageID
}

// Less orders events by timestamp, breaking ties by message ID.
func (e Event) Less(other Event) bool {
	if !e.Timestamp.Equal(other.Timestamp) {
		return e.Timestamp.Before(other.Timestamp)
	}
	return e.MessageID < other.MessageID
}

// SortEvents sorts events oldest first.
func SortEvents(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].Less(events[j])
	})
}

// HTTPResponse represents the response from an HTTP request.
type HTTPResponse struct {
	OK     bool
	Status int
	Body   []byte
}
