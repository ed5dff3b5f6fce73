package store

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/ssargent/skydb/pkg/codec"
	"github.com/ssargent/skydb/pkg/event"
)

// BlockHeaderSize is the encoded size of a BlockHeader
// Format: [CRC32(4)][ObjectID(8)][Count(4)][Size(4)][Layout(1)]
const BlockHeaderSize = 21

// BlockHeader describes a run of back-to-back event records for one object
type BlockHeader struct {
	CRC32    uint32         // CRC32 checksum over everything after this field
	ObjectID event.ObjectID // Object every event in the block belongs to
	Count    uint32         // Number of event records
	Size     uint32         // Size of the record data in bytes
	Layout   codec.Layout   // Codec layout the records were written with
}

// Block is a header plus its packed event records
type Block struct {
	BlockHeader
	Data []byte
}

// NewBlock packs events for objectID into a block using c
func NewBlock(c *codec.EventCodec, objectID event.ObjectID, events []*event.Event) (*Block, error) {
	data, err := PackEvents(c, events)
	if err != nil {
		return nil, err
	}
	if len(data) > maxBlockSize {
		return nil, fmt.Errorf("block for object %d too large: %d bytes", objectID, len(data))
	}

	b := &Block{
		BlockHeader: BlockHeader{
			ObjectID: objectID,
			Count:    uint32(len(events)),
			Size:     uint32(len(data)),
			Layout:   c.Layout(),
		},
		Data: data,
	}
	b.CRC32 = b.calculateCRC32()
	return b, nil
}

// EncodedSize returns the total size of the block when encoded
func (b *Block) EncodedSize() int {
	return BlockHeaderSize + len(b.Data)
}

// Encode serializes the block header and data
func (b *Block) Encode() []byte {
	buf := make([]byte, b.EncodedSize())
	b.putHeader(buf)
	copy(buf[BlockHeaderSize:], b.Data)
	return buf
}

func (b *Block) putHeader(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], b.CRC32)
	binary.LittleEndian.PutUint64(buf[4:], uint64(b.ObjectID))
	binary.LittleEndian.PutUint32(buf[12:], b.Count)
	binary.LittleEndian.PutUint32(buf[16:], b.Size)
	buf[20] = byte(b.Layout)
}

// DecodeBlockHeader reads a header from the first BlockHeaderSize bytes of data
func DecodeBlockHeader(data []byte) (BlockHeader, error) {
	if len(data) < BlockHeaderSize {
		return BlockHeader{}, fmt.Errorf("data too short for block header: %d < %d", len(data), BlockHeaderSize)
	}
	return BlockHeader{
		CRC32:    binary.LittleEndian.Uint32(data[0:4]),
		ObjectID: event.ObjectID(binary.LittleEndian.Uint64(data[4:12])),
		Count:    binary.LittleEndian.Uint32(data[12:16]),
		Size:     binary.LittleEndian.Uint32(data[16:20]),
		Layout:   codec.Layout(data[20]),
	}, nil
}

// DecodeBlock deserializes an encoded block. The data slice is not copied.
func DecodeBlock(data []byte) (*Block, error) {
	h, err := DecodeBlockHeader(data)
	if err != nil {
		return nil, err
	}
	end := uint64(BlockHeaderSize) + uint64(h.Size)
	if uint64(len(data)) < end {
		return nil, fmt.Errorf("data too short for block size: %d < %d", len(data), end)
	}
	return &Block{BlockHeader: h, Data: data[BlockHeaderSize:end]}, nil
}

// Validate checks the integrity of a block using CRC32
func (b *Block) Validate() error {
	if crc := b.calculateCRC32(); b.CRC32 != crc {
		return fmt.Errorf("%w: CRC32 mismatch: %d != %d", ErrCorruption, b.CRC32, crc)
	}
	if b.Layout != codec.LayoutVarint && b.Layout != codec.LayoutFixed {
		return fmt.Errorf("%w: unknown layout %d", ErrCorruption, uint8(b.Layout))
	}
	if b.Size != uint32(len(b.Data)) {
		return fmt.Errorf("%w: size mismatch: header %d, data %d", ErrCorruption, b.Size, len(b.Data))
	}
	return nil
}

// Events unpacks the block's records. Every event gets the block's object id.
func (b *Block) Events() ([]*event.Event, error) {
	c := codec.NewEventCodecWithLayout(b.Layout)
	capHint := int(b.Count)
	if capHint > len(b.Data) {
		capHint = len(b.Data)
	}
	events := make([]*event.Event, 0, capHint)
	err := ScanEvents(c, b.Data, func(_ int, e *event.Event) error {
		e.ObjectID = b.ObjectID
		events = append(events, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if uint32(len(events)) != b.Count {
		return nil, fmt.Errorf("%w: block declares %d events, found %d", ErrCorruption, b.Count, len(events))
	}
	return events, nil
}

// calculateCRC32 computes the checksum over the header (excluding the CRC field) and data
func (b *Block) calculateCRC32() uint32 {
	var hdr [BlockHeaderSize]byte
	b.putHeader(hdr[:])

	crc := crc32.NewIEEE()
	crc.Write(hdr[4:])
	crc.Write(b.Data)
	return crc.Sum32()
}

// PackEvents serializes events back to back into one exactly sized buffer
func PackEvents(c *codec.EventCodec, events []*event.Event) ([]byte, error) {
	total := 0
	for _, e := range events {
		total += c.SerializedLength(e)
	}

	buf := make([]byte, total)
	off := 0
	for i, e := range events {
		n, err := c.Serialize(e, buf[off:])
		if err != nil {
			return nil, fmt.Errorf("serialize event %d: %w", i, err)
		}
		off += n
	}
	return buf, nil
}

// UnpackEvents deserializes every record in buf
func UnpackEvents(c *codec.EventCodec, buf []byte) ([]*event.Event, error) {
	var events []*event.Event
	err := ScanEvents(c, buf, func(_ int, e *event.Event) error {
		events = append(events, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ScanEvents walks back-to-back records in buf, advancing by the bytes each
// record consumed. The scan stops at the first decode error or the first
// error returned by fn.
func ScanEvents(c *codec.EventCodec, buf []byte, fn func(index int, e *event.Event) error) error {
	for i, off := 0, 0; off < len(buf); i++ {
		e, n, err := c.Decode(buf[off:])
		if err != nil {
			return &ScanError{Index: i, Offset: off, Err: err}
		}
		if err := fn(i, e); err != nil {
			return err
		}
		off += n
	}
	return nil
}

// ScanError reports which record in a buffer failed to decode
type ScanError struct {
	Index  int   // Position of the record in the buffer
	Offset int   // Byte offset of the record
	Err    error // Decode error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("record %d at offset %d: %v", e.Index, e.Offset, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
