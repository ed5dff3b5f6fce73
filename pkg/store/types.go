package store

import (
	"errors"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ssargent/skydb/pkg/codec"
	"github.com/ssargent/skydb/pkg/metrics"
)

// IndexEntry represents the location of an event block in the log
type IndexEntry struct {
	SegmentID ksuid.KSUID // ID of the segment file
	Offset    int64       // Byte offset within the segment
	Size      uint32      // Size of the encoded block in bytes
	Count     uint32      // Number of events in the block
}

// LogWriterConfig holds configuration for the log writer
type LogWriterConfig struct {
	FilePath      string        // Path to the active segment file
	FsyncInterval time.Duration // How often to fsync (0 = every write)
	BufferSize    int           // Write buffer size
}

// LogReaderConfig holds configuration for the log reader
type LogReaderConfig struct {
	FilePath    string // Path to the segment file
	StartOffset int64  // Offset to start reading from
}

// EventStoreConfig holds configuration for the event store
type EventStoreConfig struct {
	DataDir        string           // Directory for segment files
	FsyncInterval  time.Duration    // Fsync interval for durability
	BufferSize     int              // Write buffer size (0 = 64KB)
	MaxSegmentSize int64            // Size at which a new segment is started (0 = never)
	Layout         codec.Layout     // Codec layout for new blocks
	Logger         *zap.Logger      // Optional logger
	Metrics        *metrics.Metrics // Optional metrics
}

// RecoveryResult summarizes what Open found in the segment files
type RecoveryResult struct {
	SegmentsOpened   int
	BlocksValidated  int64
	BlocksTruncated  int64
	FileSizeBefore   int64
	FileSizeAfter    int64
	IndexRebuilt     bool
	RecoveryDuration time.Duration
}

// StoreStats holds statistics about the store
type StoreStats struct {
	Objects  int
	Blocks   int
	Events   int64
	Segments int
	DataSize int64
}

// BlockIterator provides streaming access to blocks
type BlockIterator interface {
	Next() bool
	Block() *Block
	Offset() int64
	Err() error
	Close() error
}

// Errors
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrCorruption     = errors.New("data corruption detected")
	ErrStoreClosed    = errors.New("store is not open")
)

const (
	defaultBufferSize = 64 * 1024 // 64KB buffer
	maxBlockSize      = 1 << 30
	segmentExt        = ".events"
)
