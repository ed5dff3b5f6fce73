package codec

import (
	"fmt"
	"strings"

	"github.com/ssargent/skydb/pkg/event"
)

// Flags records which optional sections follow the fixed part of a record
type Flags uint8

const (
	// FlagAction marks a record that carries an action id
	FlagAction Flags = 1 << iota
	// FlagData marks a record that carries a data section
	FlagData

	knownFlags = FlagAction | FlagData
)

// FlagsFor returns the flags an event serializes with
func FlagsFor(e *event.Event) Flags {
	var f Flags
	if e.HasAction() {
		f |= FlagAction
	}
	if e.HasData() {
		f |= FlagData
	}
	return f
}

// Has reports whether every bit of flag is set
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// Layout selects the wire layout used by an EventCodec
type Layout uint8

const (
	// LayoutVarint writes every integer as a variable-length integer and
	// includes the object id in each record.
	LayoutVarint Layout = iota
	// LayoutFixed writes little-endian fixed-width integers and omits the
	// object id, which the enclosing block or key is expected to carry.
	LayoutFixed
)

func (l Layout) String() string {
	switch l {
	case LayoutVarint:
		return "varint"
	case LayoutFixed:
		return "fixed"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

// ParseLayout converts a layout name to a Layout
func ParseLayout(name string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "varint":
		return LayoutVarint, nil
	case "fixed":
		return LayoutFixed, nil
	default:
		return 0, fmt.Errorf("unknown codec layout %q", name)
	}
}

// layoutCodec is implemented once per wire layout. length and serialize must
// agree byte for byte.
type layoutCodec interface {
	length(e *event.Event) int
	validate(e *event.Event) error
	serialize(e *event.Event, buf []byte) int
	deserialize(e *event.Event, buf []byte) (int, error)
}

// EventCodec serializes and deserializes events. It holds no state beyond its
// layout and is safe for concurrent use.
type EventCodec struct {
	layout Layout
	impl   layoutCodec
}

// NewEventCodec creates a codec using the varint layout
func NewEventCodec() *EventCodec {
	return NewEventCodecWithLayout(LayoutVarint)
}

// NewEventCodecWithLayout creates a codec for the given layout. Unknown
// layouts fall back to LayoutVarint.
func NewEventCodecWithLayout(layout Layout) *EventCodec {
	switch layout {
	case LayoutFixed:
		return &EventCodec{layout: LayoutFixed, impl: fixedLayout{}}
	default:
		return &EventCodec{layout: LayoutVarint, impl: varintLayout{}}
	}
}

// Layout returns the wire layout of the codec
func (c *EventCodec) Layout() Layout {
	return c.layout
}

// SerializedLength returns the exact number of bytes Serialize writes for e
func (c *EventCodec) SerializedLength(e *event.Event) int {
	return c.impl.length(e)
}

// Serialize writes e into buf and returns the number of bytes written.
// buf must hold at least SerializedLength(e) bytes. Nothing is written when
// an error is returned.
func (c *EventCodec) Serialize(e *event.Event, buf []byte) (int, error) {
	if err := c.impl.validate(e); err != nil {
		return 0, err
	}
	need := c.impl.length(e)
	if len(buf) < need {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, need, len(buf))
	}
	return c.impl.serialize(e, buf), nil
}

// Deserialize reads one record from the start of buf into e and returns the
// number of bytes consumed. e should be freshly created. On error e may be
// partially populated and must not be trusted.
func (c *EventCodec) Deserialize(e *event.Event, buf []byte) (int, error) {
	return c.impl.deserialize(e, buf)
}

// Encode serializes e into a newly allocated buffer of exact size
func (c *EventCodec) Encode(e *event.Event) ([]byte, error) {
	buf := make([]byte, c.impl.length(e))
	if _, err := c.Serialize(e, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Decode deserializes one record from the start of buf into a new event
func (c *EventCodec) Decode(buf []byte) (*event.Event, int, error) {
	e := event.New(0, 0, event.NoAction)
	n, err := c.impl.deserialize(e, buf)
	if err != nil {
		e.Free()
		return nil, 0, err
	}
	return e, n, nil
}

// decoder is a bounds-checked cursor over a record
type decoder struct {
	buf []byte
	off int
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) readByte(field string) (byte, error) {
	if d.remaining() < 1 {
		return 0, decodeErr(d.off, field, ErrTruncated)
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

func (d *decoder) readBytes(field string, n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, decodeErr(d.off, field, ErrTruncated)
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) flags() (Flags, error) {
	start := d.off
	b, err := d.readByte("flags")
	if err != nil {
		return 0, err
	}
	f := Flags(b)
	if f&^knownFlags != 0 {
		return 0, decodeErr(start, "flags", fmt.Errorf("%w: 0x%02x", ErrInvalidFlags, b))
	}
	return f, nil
}
