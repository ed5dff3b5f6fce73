// Package event provides the in-memory event record for skydb.
//
// An Event is one timestamped fact about an object: an optional action and an
// optional dictionary of data points keyed by small integers. Events are plain
// values with no references to other events, so two events can be used from
// different goroutines freely. A single event is not safe for concurrent
// mutation.
package event

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Timestamp is a point in time in milliseconds since the Unix epoch
type Timestamp int64

// ObjectID identifies the entity an event occurred on. Zero is a valid id.
type ObjectID uint64

// ActionID identifies a discrete action. Zero means "no action".
type ActionID uint32

// Key identifies a data point within an event's dictionary
type Key uint16

// NoAction is the action id of an event without an action
const NoAction ActionID = 0

// Entry is a read-only view of one data point
type Entry struct {
	Key   Key
	Value string
}

// Event represents the state change of an object at a point in time
type Event struct {
	Timestamp Timestamp
	ObjectID  ObjectID
	ActionID  ActionID

	data map[Key]string
}

// New creates an event with an empty data dictionary
func New(timestamp Timestamp, objectID ObjectID, actionID ActionID) *Event {
	return &Event{
		Timestamp: timestamp,
		ObjectID:  objectID,
		ActionID:  actionID,
	}
}

// SetData stores value under key, replacing any previous value
func (e *Event) SetData(key Key, value string) {
	if e.data == nil {
		e.data = make(map[Key]string)
	}
	e.data[key] = value
}

// SetDataBytes stores a copy of value under key. The caller may reuse value
// once SetDataBytes returns.
func (e *Event) SetDataBytes(key Key, value []byte) {
	e.SetData(key, string(value))
}

// UnsetData removes key from the dictionary. Removing an absent key is a no-op.
func (e *Event) UnsetData(key Key) {
	delete(e.data, key)
}

// GetData returns the entry stored under key and whether it exists
func (e *Event) GetData(key Key) (Entry, bool) {
	value, ok := e.data[key]
	if !ok {
		return Entry{}, false
	}
	return Entry{Key: key, Value: value}, true
}

// DataCount returns the number of entries in the dictionary
func (e *Event) DataCount() int {
	return len(e.data)
}

// HasAction reports whether the event carries an action
func (e *Event) HasAction() bool {
	return e.ActionID != NoAction
}

// HasData reports whether the event carries any data points
func (e *Event) HasData() bool {
	return len(e.data) > 0
}

// Keys returns the dictionary keys in ascending order. This is the order the
// codec writes entries in.
func (e *Event) Keys() []Key {
	keys := make([]Key, 0, len(e.data))
	for k := range e.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Entries returns every data point in ascending key order
func (e *Event) Entries() []Entry {
	keys := e.Keys()
	entries := make([]Entry, len(keys))
	for i, k := range keys {
		entries[i] = Entry{Key: k, Value: e.data[k]}
	}
	return entries
}

// Free releases the dictionary and zeroes the event. A freed event can be
// reused as a freshly created one.
func (e *Event) Free() {
	e.Timestamp = 0
	e.ObjectID = 0
	e.ActionID = NoAction
	e.data = nil
}

// Reset is an alias for Free that reads better when an event is recycled
func (e *Event) Reset() {
	e.Free()
}

// Clone returns a deep copy of the event
func (e *Event) Clone() *Event {
	c := New(e.Timestamp, e.ObjectID, e.ActionID)
	for k, v := range e.data {
		c.SetData(k, v)
	}
	return c
}

// Equal reports whether two events have the same fields and dictionary
// contents. Dictionary order is not significant.
func (e *Event) Equal(other *Event) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.Timestamp != other.Timestamp || e.ObjectID != other.ObjectID || e.ActionID != other.ActionID {
		return false
	}
	if len(e.data) != len(other.data) {
		return false
	}
	for k, v := range e.data {
		if ov, ok := other.data[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Time returns the event timestamp as a time.Time
func (e *Event) Time() time.Time {
	return time.UnixMilli(int64(e.Timestamp))
}

// FromTime converts t to a millisecond Timestamp
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// String returns a stable human-readable form of the event
func (e *Event) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ts=%d object=%d action=%d", e.Timestamp, e.ObjectID, e.ActionID)
	if len(e.data) > 0 {
		sb.WriteString(" data={")
		for i, entry := range e.Entries() {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%d:%q", entry.Key, entry.Value)
		}
		sb.WriteString("}")
	}
	return sb.String()
}

// Range calls fn for every data point until fn returns false. Iteration
// order is unspecified; use Entries for a stable order.
func (e *Event) Range(fn func(key Key, value string) bool) {
	for k, v := range e.data {
		if !fn(k, v) {
			return
		}
	}
}
