// Package storage keeps each object's event path as a single pebble value
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/golang/snappy"
	"go.uber.org/zap"

	"github.com/ssargent/skydb/pkg/codec"
	"github.com/ssargent/skydb/pkg/event"
	"github.com/ssargent/skydb/pkg/logging"
	"github.com/ssargent/skydb/pkg/metrics"
	"github.com/ssargent/skydb/pkg/store"
)

// Compression selects how path values are stored
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionSnappy
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none" or "snappy". An empty string means snappy.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "snappy":
		return CompressionSnappy, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// valueHeaderSize covers the layout and compression bytes in front of every value
const valueHeaderSize = 2

var (
	ErrPathNotFound = errors.New("path not found")
	ErrBadValue     = errors.New("malformed path value")
)

// Options configures a PathStorage
type Options struct {
	Layout      codec.Layout
	Compression Compression
	Sync        bool // fsync every write
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// PathStorage stores every event of an object, its path, under one key.
// Key: big-endian object id. Value: [layout(1)][compression(1)][records].
type PathStorage struct {
	db      *pebble.DB
	codec   *codec.EventCodec
	opts    Options
	logger  *zap.Logger
	writeMu sync.Mutex // serializes read-modify-write appends
}

// NewPathStorage opens or creates a pebble database at path
func NewPathStorage(path string, opts Options) (*PathStorage, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PathStorage{
		db:     db,
		codec:  codec.NewEventCodecWithLayout(opts.Layout),
		opts:   opts,
		logger: logging.OrNop(opts.Logger).Named("storage"),
	}, nil
}

func (s *PathStorage) writeOptions() *pebble.WriteOptions {
	if s.opts.Sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func objectKey(objectID event.ObjectID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(objectID))
	return key
}

// Append adds events to the end of the object's path
func (s *PathStorage) Append(objectID event.ObjectID, events ...*event.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.load(objectID)
	if err != nil && !errors.Is(err, ErrPathNotFound) {
		return err
	}

	records, err := store.PackEvents(s.codec, events)
	if err != nil {
		return err
	}
	s.opts.Metrics.RecordEncoded(s.codec.Layout(), len(events), len(records))

	if existing != nil {
		if existing.layout != s.codec.Layout() {
			// Re-encode the stored path so the value holds a single layout
			old, err := existing.events()
			if err != nil {
				return err
			}
			repacked, err := store.PackEvents(s.codec, old)
			if err != nil {
				return fmt.Errorf("re-encode path of object %d: %w", objectID, err)
			}
			s.logger.Debug("re-encoded path",
				zap.Uint64("object_id", uint64(objectID)),
				zap.Stringer("from", existing.layout),
				zap.Stringer("to", s.codec.Layout()),
			)
			existing.records = repacked
		}
		records = append(existing.records, records...)
	}

	return s.db.Set(objectKey(objectID), s.encodeValue(records), s.writeOptions())
}

// Events returns the object's path in append order
func (s *PathStorage) Events(objectID event.ObjectID) ([]*event.Event, error) {
	v, err := s.load(objectID)
	if err != nil {
		return nil, err
	}

	events, err := v.events()
	if err != nil {
		s.opts.Metrics.RecordDecodeError(v.layout, err)
		return nil, fmt.Errorf("decode path of object %d: %w", objectID, err)
	}
	for _, e := range events {
		e.ObjectID = objectID
	}
	s.opts.Metrics.RecordDecoded(v.layout, len(events))
	return events, nil
}

// Delete removes an object's path. Deleting an absent path is not an error.
func (s *PathStorage) Delete(objectID event.ObjectID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.Delete(objectKey(objectID), s.writeOptions())
}

// ObjectIDs returns every object with a stored path in ascending order
func (s *PathStorage) ObjectIDs() ([]event.ObjectID, error) {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return nil, err
	}

	var ids []event.ObjectID
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != 8 {
			continue
		}
		ids = append(ids, event.ObjectID(binary.BigEndian.Uint64(key)))
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return nil, err
	}
	return ids, iter.Close()
}

// Close closes the underlying database
func (s *PathStorage) Close() error {
	return s.db.Close()
}

// pathValue is a decoded value header with its uncompressed records
type pathValue struct {
	layout  codec.Layout
	records []byte
}

func (v *pathValue) events() ([]*event.Event, error) {
	return store.UnpackEvents(codec.NewEventCodecWithLayout(v.layout), v.records)
}

func (s *PathStorage) load(objectID event.ObjectID) (*pathValue, error) {
	data, closer, err := s.db.Get(objectKey(objectID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrPathNotFound
		}
		return nil, err
	}
	defer closer.Close()

	return decodeValue(data)
}

func (s *PathStorage) encodeValue(records []byte) []byte {
	payload := records
	if s.opts.Compression == CompressionSnappy {
		payload = snappy.Encode(nil, records)
	}

	value := make([]byte, valueHeaderSize+len(payload))
	value[0] = byte(s.codec.Layout())
	value[1] = byte(s.opts.Compression)
	copy(value[valueHeaderSize:], payload)
	return value
}

// decodeValue copies out of data, which pebble owns until the closer runs
func decodeValue(data []byte) (*pathValue, error) {
	if len(data) < valueHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadValue, len(data))
	}

	layout := codec.Layout(data[0])
	if layout != codec.LayoutVarint && layout != codec.LayoutFixed {
		return nil, fmt.Errorf("%w: unknown layout %d", ErrBadValue, data[0])
	}

	payload := data[valueHeaderSize:]
	switch Compression(data[1]) {
	case CompressionNone:
		records := make([]byte, len(payload))
		copy(records, payload)
		return &pathValue{layout: layout, records: records}, nil
	case CompressionSnappy:
		records, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
		}
		return &pathValue{layout: layout, records: records}, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrBadValue, data[1])
	}
}
