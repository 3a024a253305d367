package adapters

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Wire field names of an event record.
const (
	fieldTimestamp  = "timestamp"
	fieldMessageID  = "message_id"
	fieldDistinctID = "distinct_id"
	fieldEvent      = "event"
	fieldProperties = "properties"
)

// TimestampFormat is the ISO-8601 layout used for every timestamp on the wire and on disk.
const TimestampFormat = time.RFC3339Nano

// largest integer a float64 holds exactly
const maxExactInt = 1 << 53

// ErrNonFiniteNumber is reported when a value holds NaN or an infinity, which
// JSON cannot represent.
var ErrNonFiniteNumber = errors.New("non-finite number")

// WriteToJSONWriter encodes the event with a fixed field order and sorted property keys.
func (e Event) WriteToJSONWriter(w *jwriter.Writer) {
	obj := w.Object()
	obj.Name(fieldTimestamp).String(e.Timestamp.UTC().Format(TimestampFormat))
	obj.Name(fieldMessageID).String(e.MessageID)
	obj.Name(fieldDistinctID).String(e.DistinctID)
	obj.Name(fieldEvent).String(e.Name)
	WriteValueMap(obj.Name(fieldProperties), e.Properties)
	obj.End()
}

// ReadFromJSONReader decodes an event. Unknown fields are skipped.
func (e *Event) ReadFromJSONReader(r *jreader.Reader) {
	var out Event
	for obj := r.Object().WithRequiredProperties([]string{fieldMessageID}); obj.Next(); {
		switch string(obj.Name()) {
		case fieldTimestamp:
			s := r.String()
			if r.Error() != nil {
				return
			}
			ts, err := time.Parse(TimestampFormat, s)
			if err != nil {
				r.AddError(err)
				return
			}
			out.Timestamp = ts.UTC()
		case fieldMessageID:
			out.MessageID = r.String()
		case fieldDistinctID:
			out.DistinctID = r.String()
		case fieldEvent:
			out.Name = r.String()
		case fieldProperties:
			out.Properties.ReadFromJSONReader(r)
		}
	}
	if r.Error() == nil {
		*e = out
	}
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	w := jwriter.NewWriter()
	e.WriteToJSONWriter(&w)
	return w.Bytes(), w.Error()
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	r := jreader.NewReader(data)
	e.ReadFromJSONReader(&r)
	return r.Error()
}

// CheckEncodable reports whether e can be written as valid JSON.
func CheckEncodable(e Event) error {
	w := jwriter.NewWriter()
	e.WriteToJSONWriter(&w)
	return w.Error()
}

// WriteEvents writes events as a JSON array.
func WriteEvents(w *jwriter.Writer, events []Event) {
	arr := w.Array()
	for _, e := range events {
		e.WriteToJSONWriter(w)
	}
	arr.End()
}

// EncodeEvents serializes events as a JSON array.
func EncodeEvents(events []Event) ([]byte, error) {
	w := jwriter.NewWriter()
	WriteEvents(&w, events)
	if err := w.Error(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeEvents parses a JSON array of events. A null document yields an empty slice.
func DecodeEvents(data []byte) ([]Event, error) {
	r := jreader.NewReader(data)
	events := []Event{}
	for arr := r.ArrayOrNull(); arr.Next(); {
		var e Event
		e.ReadFromJSONReader(&r)
		if r.Error() != nil {
			break
		}
		events = append(events, e)
	}
	if err := r.Error(); err != nil {
		return nil, err
	}
	if err := r.RequireEOF(); err != nil {
		return nil, err
	}
	return events, nil
}

// EncodeValueMap serializes a mapping with sorted keys.
func EncodeValueMap(m ldvalue.ValueMap) ([]byte, error) {
	w := jwriter.NewWriter()
	WriteValueMap(&w, m)
	if err := w.Error(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeValueMap parses a JSON object. A null document yields an empty mapping.
func DecodeValueMap(data []byte) (ldvalue.ValueMap, error) {
	r := jreader.NewReader(data)
	var m ldvalue.ValueMap
	m.ReadFromJSONReader(&r)
	if err := r.Error(); err != nil {
		return ldvalue.ValueMap{}, err
	}
	if err := r.RequireEOF(); err != nil {
		return ldvalue.ValueMap{}, err
	}
	return m, nil
}

// WriteValueMap writes m as a JSON object with keys in ascending order.
// An undefined mapping is written as an empty object.
func WriteValueMap(w *jwriter.Writer, m ldvalue.ValueMap) {
	if m.Count() == 0 {
		obj := w.Object()
		obj.End()
		return
	}
	WriteValue(w, m.AsValue())
}

// WriteValue writes v canonically: object keys sorted, integral numbers without
// a fractional part.
func WriteValue(w *jwriter.Writer, v ldvalue.Value) {
	switch v.Type() {
	case ldvalue.BoolType:
		w.Bool(v.BoolValue())
	case ldvalue.NumberType:
		f := v.Float64Value()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			w.AddError(fmt.Errorf("%w: %v", ErrNonFiniteNumber, f))
			w.Null()
			return
		}
		if v.IsInt() && math.Abs(f) < maxExactInt {
			w.Int(v.IntValue())
		} else {
			w.Float64(f)
		}
	case ldvalue.StringType:
		w.String(v.StringValue())
	case ldvalue.ArrayType:
		arr := w.Array()
		for i := 0; i < v.Count(); i++ {
			WriteValue(w, v.GetByIndex(i))
		}
		arr.End()
	case ldvalue.ObjectType:
		keys := v.Keys(nil)
		sort.Strings(keys)
		obj := w.Object()
		for _, k := range keys {
			WriteValue(obj.Name(k), v.GetByKey(k))
		}
		obj.End()
	default:
		w.Null()
	}
}
