package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ssargent/skydb/pkg/event"
)

// Fixed layout field widths
const (
	fixedFlagsSize     = 1
	fixedTimestampSize = 8
	fixedActionSize    = 4
	fixedDataSizeSize  = 2
	fixedKeySize       = 2
	fixedValueLenSize  = 1

	fixedEntryOverhead = fixedKeySize + fixedValueLenSize

	// MaxFixedValueLen is the longest value the fixed layout can hold
	MaxFixedValueLen = math.MaxUint8
	// MaxFixedDataSize is the largest data section the fixed layout can hold
	MaxFixedDataSize = math.MaxUint16
)

// fixedLayout encodes a record as
//
//	[Flags(1)][Timestamp(8)][ActionID(4)?][DataSize(2) {Key(2) Len(1) Value}*]?
//
// with little-endian integers. DataSize is the byte length of the entries
// that follow it. The object id is not written.
type fixedLayout struct{}

func (fixedLayout) dataSize(e *event.Event) int {
	n := 0
	e.Range(func(_ event.Key, value string) bool {
		n += fixedEntryOverhead + len(value)
		return true
	})
	return n
}

func (l fixedLayout) length(e *event.Event) int {
	n := fixedFlagsSize + fixedTimestampSize
	if e.HasAction() {
		n += fixedActionSize
	}
	if e.HasData() {
		n += fixedDataSizeSize + l.dataSize(e)
	}
	return n
}

func (l fixedLayout) validate(e *event.Event) error {
	var err error
	e.Range(func(key event.Key, value string) bool {
		if len(value) > MaxFixedValueLen {
			err = fmt.Errorf("%w: key %d has %d bytes, max %d", ErrValueTooLong, key, len(value), MaxFixedValueLen)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if size := l.dataSize(e); size > MaxFixedDataSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrDataTooLarge, size, MaxFixedDataSize)
	}
	return nil
}

func (l fixedLayout) serialize(e *event.Event, buf []byte) int {
	flags := FlagsFor(e)
	buf[0] = byte(flags)
	off := fixedFlagsSize

	binary.LittleEndian.PutUint64(buf[off:], uint64(e.Timestamp))
	off += fixedTimestampSize

	if flags.Has(FlagAction) {
		binary.LittleEndian.PutUint32(buf[off:], uint32(e.ActionID))
		off += fixedActionSize
	}

	if flags.Has(FlagData) {
		binary.LittleEndian.PutUint16(buf[off:], uint16(l.dataSize(e)))
		off += fixedDataSizeSize
		for _, entry := range e.Entries() {
			binary.LittleEndian.PutUint16(buf[off:], uint16(entry.Key))
			off += fixedKeySize
			buf[off] = byte(len(entry.Value))
			off += fixedValueLenSize
			off += copy(buf[off:], entry.Value)
		}
	}

	return off
}

func (fixedLayout) deserialize(e *event.Event, buf []byte) (int, error) {
	d := &decoder{buf: buf}

	flags, err := d.flags()
	if err != nil {
		return 0, err
	}

	b, err := d.readBytes("timestamp", fixedTimestampSize)
	if err != nil {
		return 0, err
	}
	e.Timestamp = event.Timestamp(binary.LittleEndian.Uint64(b))

	if flags.Has(FlagAction) {
		b, err := d.readBytes("action_id", fixedActionSize)
		if err != nil {
			return 0, err
		}
		e.ActionID = event.ActionID(binary.LittleEndian.Uint32(b))
	}

	if flags.Has(FlagData) {
		b, err := d.readBytes("data_size", fixedDataSizeSize)
		if err != nil {
			return 0, err
		}
		start := d.off
		size := int(binary.LittleEndian.Uint16(b))
		if size == 0 {
			return 0, decodeErr(start-fixedDataSizeSize, "data_size", ErrMalformedData)
		}
		section, err := d.readBytes("data", size)
		if err != nil {
			return 0, err
		}

		// Entries must tile the declared section exactly
		sd := &decoder{buf: section}
		for sd.remaining() > 0 {
			hdr, err := sd.readBytes("entry.header", fixedEntryOverhead)
			if err != nil {
				return 0, decodeErr(start+sd.off, "entry.header", ErrMalformedData)
			}
			key := binary.LittleEndian.Uint16(hdr)
			value, err := sd.readBytes("entry.value", int(hdr[fixedKeySize]))
			if err != nil {
				return 0, decodeErr(start+sd.off, "entry.value", ErrMalformedData)
			}
			e.SetDataBytes(event.Key(key), value)
		}
	}

	return d.off, nil
}
