// Package codec provides event serialization and deserialization for skydb.
//
// The codec packs one event.Event into a self-describing, variable-shape
// record and unpacks it again. Records carry no framing of their own: a
// storage layer places many records back to back and walks them by advancing
// each Deserialize call by the number of bytes it consumed.
//
// # Record Format
//
// Every record starts with a one byte flags field:
//
//	bit 0 (FlagAction): an action id follows
//	bit 1 (FlagData):   a data section follows
//
// Two layouts share that header.
//
// LayoutVarint (the default) writes every integer as an unsigned LEB128
// variable-length integer: seven bits per byte, least significant group
// first, high bit set on every byte except the last.
//
//	[Flags][Timestamp][ObjectID][ActionID]?[Count {Key Len Value}*]?
//
// LayoutFixed is the legacy on-disk layout. Integers are little-endian and
// fixed width, and the object id is left to the enclosing container:
//
//	[Flags(1)][Timestamp(8)][ActionID(4)]?[DataSize(2) {Key(2) Len(1) Value}*]?
//
// DataSize is the byte length of the entries that follow it, so values are
// limited to 255 bytes and a data section to 65535 bytes.
//
// In both layouts values are raw bytes with no terminator and entries are
// written in ascending key order.
//
// # Usage
//
//	c := codec.NewEventCodec()
//
//	e := event.New(1325376000000, 42, 20)
//	e.SetData(1, "foo")
//
//	buf := make([]byte, c.SerializedLength(e))
//	if _, err := c.Serialize(e, buf); err != nil {
//	    return err
//	}
//
//	decoded := event.New(0, 0, event.NoAction)
//	n, err := c.Deserialize(decoded, buf)
//	if err != nil {
//	    return err
//	}
//
// # Error Handling
//
// Every decode failure is a *DecodeError carrying the offset and field that
// failed; errors.Is(err, ErrDecode) matches all of them and errors.Is with
// ErrTruncated, ErrInvalidFlags, ErrOverflow or ErrMalformedData narrows the
// cause. The codec never repairs a malformed record.
//
// # Thread Safety
//
// EventCodec instances hold no mutable state and are safe for concurrent use.
// Events are not; do not serialize an event while another goroutine mutates it.
package codec
