package codec

import (
	"encoding/binary"
	"math"

	"github.com/ssargent/skydb/pkg/event"
)

// varintLayout encodes a record as
//
//	[Flags(1)][Timestamp(v)][ObjectID(v)][ActionID(v)?][Count(v) {Key(v) Len(v) Value}*]?
//
// where (v) is an unsigned LEB128 varint. The timestamp is written as the
// two's complement bit pattern of the int64.
type varintLayout struct{}

// uvarintLen returns the number of bytes binary.PutUvarint writes for v
func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func (varintLayout) length(e *event.Event) int {
	n := 1 + uvarintLen(uint64(e.Timestamp)) + uvarintLen(uint64(e.ObjectID))
	if e.HasAction() {
		n += uvarintLen(uint64(e.ActionID))
	}
	if e.HasData() {
		n += uvarintLen(uint64(e.DataCount()))
		e.Range(func(key event.Key, value string) bool {
			n += uvarintLen(uint64(key)) + uvarintLen(uint64(len(value))) + len(value)
			return true
		})
	}
	return n
}

func (varintLayout) validate(e *event.Event) error {
	return nil
}

func (varintLayout) serialize(e *event.Event, buf []byte) int {
	flags := FlagsFor(e)
	buf[0] = byte(flags)
	off := 1
	off += binary.PutUvarint(buf[off:], uint64(e.Timestamp))
	off += binary.PutUvarint(buf[off:], uint64(e.ObjectID))

	if flags.Has(FlagAction) {
		off += binary.PutUvarint(buf[off:], uint64(e.ActionID))
	}

	if flags.Has(FlagData) {
		off += binary.PutUvarint(buf[off:], uint64(e.DataCount()))
		for _, entry := range e.Entries() {
			off += binary.PutUvarint(buf[off:], uint64(entry.Key))
			off += binary.PutUvarint(buf[off:], uint64(len(entry.Value)))
			off += copy(buf[off:], entry.Value)
		}
	}

	return off
}

func (varintLayout) deserialize(e *event.Event, buf []byte) (int, error) {
	d := &decoder{buf: buf}

	flags, err := d.flags()
	if err != nil {
		return 0, err
	}

	ts, err := d.uvarint("timestamp", math.MaxUint64)
	if err != nil {
		return 0, err
	}
	e.Timestamp = event.Timestamp(ts)

	objectID, err := d.uvarint("object_id", math.MaxUint64)
	if err != nil {
		return 0, err
	}
	e.ObjectID = event.ObjectID(objectID)

	if flags.Has(FlagAction) {
		actionID, err := d.uvarint("action_id", math.MaxUint32)
		if err != nil {
			return 0, err
		}
		e.ActionID = event.ActionID(actionID)
	}

	if flags.Has(FlagData) {
		start := d.off
		count, err := d.uvarint("data_count", math.MaxInt32)
		if err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, decodeErr(start, "data_count", ErrMalformedData)
		}

		for i := uint64(0); i < count; i++ {
			key, err := d.uvarint("entry.key", math.MaxUint16)
			if err != nil {
				return 0, err
			}
			size, err := d.uvarint("entry.length", math.MaxInt32)
			if err != nil {
				return 0, err
			}
			value, err := d.readBytes("entry.value", int(size))
			if err != nil {
				return 0, err
			}
			e.SetDataBytes(event.Key(key), value)
		}
	}

	return d.off, nil
}

// uvarint reads a varint and rejects values above limit
func (d *decoder) uvarint(field string, limit uint64) (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.off:])
	switch {
	case n == 0:
		return 0, decodeErr(d.off, field, ErrTruncated)
	case n < 0:
		return 0, decodeErr(d.off, field, ErrOverflow)
	case v > limit:
		return 0, decodeErr(d.off, field, ErrOverflow)
	}
	d.off += n
	return v, nil
}
