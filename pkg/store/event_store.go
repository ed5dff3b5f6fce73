package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ssargent/skydb/pkg/codec"
	"github.com/ssargent/skydb/pkg/event"
	"github.com/ssargent/skydb/pkg/logging"
)

// EventStore is an append-only log of event blocks split across segment files.
// Each Append writes one block holding the events of a single object.
type EventStore struct {
	config   EventStoreConfig
	codec    *codec.EventCodec
	logger   *zap.Logger
	segments []ksuid.KSUID
	readers  map[ksuid.KSUID]*LogReader
	writer   *LogWriter
	active   ksuid.KSUID
	index    *BlockIndex
	mutex    sync.RWMutex
	isOpen   bool
}

// NewEventStore creates a new event store instance. Call Open before use.
func NewEventStore(config EventStoreConfig) (*EventStore, error) {
	if config.DataDir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(config.DataDir, 0750); err != nil {
		return nil, err
	}

	return &EventStore{
		config:  config,
		codec:   codec.NewEventCodecWithLayout(config.Layout),
		logger:  logging.OrNop(config.Logger).Named("store"),
		readers: make(map[ksuid.KSUID]*LogReader),
		index:   NewBlockIndex(),
	}, nil
}

// Open validates every segment, truncates corrupted tails and rebuilds the index
func (s *EventStore) Open() (*RecoveryResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isOpen {
		return &RecoveryResult{}, nil
	}

	startTime := time.Now()

	segments, err := s.listSegments()
	if err != nil {
		return nil, err
	}

	result := &RecoveryResult{IndexRebuilt: true}
	for _, id := range segments {
		if err := s.validateSegment(id, result); err != nil {
			return nil, err
		}
	}

	if len(segments) == 0 {
		segments = append(segments, ksuid.New())
		s.config.Metrics.RecordSegmentCreated()
	}
	s.segments = segments
	s.active = segments[len(segments)-1]

	writer, err := s.openWriter(s.active)
	if err != nil {
		return nil, err
	}
	s.writer = writer

	for _, id := range s.segments {
		reader, err := NewLogReader(LogReaderConfig{FilePath: s.segmentPath(id)})
		if err != nil {
			s.closeAll()
			return nil, err
		}
		s.readers[id] = reader

		if err := s.index.BuildFromLog(id, reader); err != nil {
			s.closeAll()
			return nil, fmt.Errorf("rebuild index from segment %s: %w", id, err)
		}
	}

	result.SegmentsOpened = len(s.segments)
	result.RecoveryDuration = time.Since(startTime)
	s.isOpen = true

	s.logger.Info("event store opened",
		zap.String("data_dir", s.config.DataDir),
		zap.Int("segments", result.SegmentsOpened),
		zap.Int64("blocks", result.BlocksValidated),
		zap.Int64("truncated", result.BlocksTruncated),
		zap.Duration("duration", result.RecoveryDuration),
	)
	s.config.Metrics.UpdateStoreStats(s.index.Size(), s.writer.Size())

	return result, nil
}

// Append writes events as a single block for objectID. An empty call is a no-op.
func (s *EventStore) Append(objectID event.ObjectID, events ...*event.Event) (err error) {
	startTime := time.Now()
	defer func() {
		s.config.Metrics.RecordStoreOperation("append", err == nil, time.Since(startTime))
	}()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return ErrStoreClosed
	}
	if len(events) == 0 {
		return nil
	}

	block, err := NewBlock(s.codec, objectID, events)
	if err != nil {
		return err
	}

	offset, err := s.writer.Append(block)
	if err != nil {
		return err
	}

	s.index.Add(objectID, IndexEntry{
		SegmentID: s.active,
		Offset:    offset,
		Size:      uint32(block.EncodedSize()),
		Count:     block.Count,
	})

	s.config.Metrics.RecordEncoded(s.codec.Layout(), len(events), len(block.Data))
	s.config.Metrics.RecordBlockAppended()

	if s.config.MaxSegmentSize > 0 && s.writer.Size() >= s.config.MaxSegmentSize {
		if err := s.rotate(); err != nil {
			return fmt.Errorf("rotate segment: %w", err)
		}
	}

	s.config.Metrics.UpdateStoreStats(s.index.Size(), s.writer.Size())
	return nil
}

// Events returns every event of objectID in append order
func (s *EventStore) Events(objectID event.ObjectID) (events []*event.Event, err error) {
	startTime := time.Now()
	defer func() {
		s.config.Metrics.RecordStoreOperation("events", err == nil || errors.Is(err, ErrObjectNotFound), time.Since(startTime))
	}()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isOpen {
		return nil, ErrStoreClosed
	}

	entries, exists := s.index.Get(objectID)
	if !exists {
		return nil, ErrObjectNotFound
	}

	// Blocks in the active segment may still sit in the write buffer
	if err := s.writer.Flush(); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		reader, ok := s.readers[entry.SegmentID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown segment %s", ErrCorruption, entry.SegmentID)
		}
		block, err := reader.ReadAt(entry.Offset)
		if err != nil {
			return nil, err
		}
		blockEvents, err := block.Events()
		if err != nil {
			s.config.Metrics.RecordDecodeError(block.Layout, err)
			return nil, err
		}
		s.config.Metrics.RecordDecoded(block.Layout, len(blockEvents))
		events = append(events, blockEvents...)
	}

	return events, nil
}

// Scan visits every block in log order, oldest segment first. Returning an
// error from fn stops the scan and returns that error.
func (s *EventStore) Scan(fn func(block *Block) error) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isOpen {
		return ErrStoreClosed
	}

	if err := s.writer.Flush(); err != nil {
		return err
	}

	for _, id := range s.segments {
		if err := s.scanSegment(id, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *EventStore) scanSegment(id ksuid.KSUID, fn func(block *Block) error) error {
	// A private reader keeps the shared readers' cursors untouched
	reader, err := NewLogReader(LogReaderConfig{FilePath: s.segmentPath(id)})
	if err != nil {
		return err
	}
	defer reader.Close()

	iterator := reader.Iterator()
	defer iterator.Close()

	for iterator.Next() {
		if err := fn(iterator.Block()); err != nil {
			return err
		}
	}
	return iterator.Err()
}

// ObjectIDs returns every object with at least one event, in ascending order
func (s *EventStore) ObjectIDs() ([]event.ObjectID, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isOpen {
		return nil, ErrStoreClosed
	}
	return s.index.ObjectIDs(), nil
}

// Stats returns store statistics
func (s *EventStore) Stats() *StoreStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isOpen {
		return &StoreStats{}
	}

	indexStats := s.index.Stats()
	return &StoreStats{
		Objects:  indexStats.Objects,
		Blocks:   indexStats.Blocks,
		Events:   indexStats.Events,
		Segments: len(s.segments),
		DataSize: s.writer.Size(),
	}
}

// Close flushes the active segment and releases every file handle
func (s *EventStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil
	}
	s.isOpen = false

	err := s.closeAll()
	s.index.Clear()
	s.logger.Info("event store closed", zap.String("data_dir", s.config.DataDir))
	return err
}

// closeAll closes the writer first so buffered blocks reach the file
func (s *EventStore) closeAll() error {
	var firstErr error
	if s.writer != nil {
		firstErr = s.writer.Close()
		s.writer = nil
	}
	for id, reader := range s.readers {
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.readers, id)
	}
	return firstErr
}

// rotate closes the active segment and starts a new one
func (s *EventStore) rotate() error {
	if err := s.writer.Close(); err != nil {
		return err
	}

	id := nextSegmentID(s.active)
	writer, err := s.openWriter(id)
	if err != nil {
		return err
	}
	reader, err := NewLogReader(LogReaderConfig{FilePath: s.segmentPath(id)})
	if err != nil {
		_ = writer.Close()
		return err
	}

	s.writer = writer
	s.readers[id] = reader
	s.segments = append(s.segments, id)
	s.active = id

	s.config.Metrics.RecordSegmentCreated()
	s.logger.Debug("segment rotated", zap.String("segment", id.String()), zap.Int("segments", len(s.segments)))
	return nil
}

// nextSegmentID returns a KSUID that sorts after last. KSUIDs only order by
// the second, so ids minted within the same second fall back to last.Next().
func nextSegmentID(last ksuid.KSUID) ksuid.KSUID {
	id := ksuid.New()
	if ksuid.Compare(id, last) <= 0 {
		return last.Next()
	}
	return id
}

func (s *EventStore) openWriter(id ksuid.KSUID) (*LogWriter, error) {
	return NewLogWriter(LogWriterConfig{
		FilePath:      s.segmentPath(id),
		FsyncInterval: s.config.FsyncInterval,
		BufferSize:    s.config.BufferSize,
	})
}

func (s *EventStore) segmentPath(id ksuid.KSUID) string {
	return filepath.Join(s.config.DataDir, id.String()+segmentExt)
}

// listSegments returns the segment ids in the data directory in creation order
func (s *EventStore) listSegments() ([]ksuid.KSUID, error) {
	entries, err := os.ReadDir(s.config.DataDir)
	if err != nil {
		return nil, err
	}

	var ids []ksuid.KSUID
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, segmentExt) {
			continue
		}
		id, err := ksuid.Parse(strings.TrimSuffix(name, segmentExt))
		if err != nil {
			s.logger.Warn("skipping file with invalid segment name", zap.String("file", name))
			continue
		}
		ids = append(ids, id)
	}

	ksuid.Sort(ids)
	return ids, nil
}

// validateSegment reads a segment until the first damaged block and truncates
// the file there
func (s *EventStore) validateSegment(id ksuid.KSUID, result *RecoveryResult) error {
	path := s.segmentPath(id)

	fileInfo, err := os.Stat(path)
	if err != nil {
		return err
	}
	fileSizeBefore := fileInfo.Size()
	result.FileSizeBefore += fileSizeBefore

	reader, err := NewLogReader(LogReaderConfig{FilePath: path})
	if err != nil {
		return err
	}
	defer reader.Close()

	var lastValidOffset int64
	var corruption error
	for {
		block, err := reader.ReadNext()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				corruption = err
			}
			break
		}
		// Records inside the block must decode too
		if _, err := block.Events(); err != nil {
			corruption = err
			break
		}
		result.BlocksValidated++
		lastValidOffset = reader.Offset()
	}

	if corruption == nil {
		result.FileSizeAfter += fileSizeBefore
		return nil
	}

	if err := os.Truncate(path, lastValidOffset); err != nil {
		return err
	}
	result.FileSizeAfter += lastValidOffset
	result.BlocksTruncated++
	s.config.Metrics.RecordRecoveryTruncation()

	s.logger.Warn("truncated corrupted segment tail",
		zap.String("segment", id.String()),
		zap.Int64("offset", lastValidOffset),
		zap.Int64("bytes_removed", fileSizeBefore-lastValidOffset),
		zap.Error(corruption),
	)
	return nil
}
