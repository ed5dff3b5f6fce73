package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// LogReader provides sequential and random access to blocks in a segment file
type LogReader struct {
	file   *os.File
	reader *bufio.Reader
	offset int64
	config LogReaderConfig
}

// NewLogReader creates a new log reader for the specified file
func NewLogReader(config LogReaderConfig) (*LogReader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	// Seek to start offset if specified
	if config.StartOffset > 0 {
		if _, err := file.Seek(config.StartOffset, io.SeekStart); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return &LogReader{
		file:   file,
		reader: bufio.NewReader(file),
		offset: config.StartOffset,
		config: config,
	}, nil
}

// ReadNext reads the block at the current offset. It returns io.EOF at a
// clean end of file and ErrCorruption for a partial or damaged block.
func (r *LogReader) ReadNext() (*Block, error) {
	block, n, err := readBlock(r.reader)
	if err != nil {
		return nil, err
	}
	r.offset += int64(n)
	return block, nil
}

// ReadAt reads the block at a specific offset without moving the sequential cursor
func (r *LogReader) ReadAt(offset int64) (*Block, error) {
	// Read through a section so concurrent appends beyond it are harmless
	section := io.NewSectionReader(r.file, offset, 1<<62)
	block, _, err := readBlock(section)
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: no block at offset %d", ErrCorruption, offset)
	}
	return block, err
}

// readBlock reads one header and its data from src and validates the CRC
func readBlock(src io.Reader) (*Block, int, error) {
	header := make([]byte, BlockHeaderSize)
	if _, err := io.ReadFull(src, header); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, 0, fmt.Errorf("%w: partial block header", ErrCorruption)
		}
		return nil, 0, err
	}

	h, err := DecodeBlockHeader(header)
	if err != nil {
		return nil, 0, err
	}

	if h.Size > maxBlockSize {
		return nil, 0, fmt.Errorf("%w: block size %d exceeds %d", ErrCorruption, h.Size, maxBlockSize)
	}

	data := make([]byte, h.Size)
	if _, err := io.ReadFull(src, data); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, 0, fmt.Errorf("%w: partial block data", ErrCorruption)
		}
		return nil, 0, err
	}

	block := &Block{BlockHeader: h, Data: data}
	if err := block.Validate(); err != nil {
		return nil, 0, err
	}

	return block, BlockHeaderSize + len(data), nil
}

// Seek sets the read offset
func (r *LogReader) Seek(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	r.reader = bufio.NewReader(r.file) // Recreate reader to clear buffer
	r.offset = offset
	return nil
}

// Offset returns the current read offset
func (r *LogReader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator over the remaining blocks
func (r *LogReader) Iterator() BlockIterator {
	return &logBlockIterator{reader: r}
}

// Close closes the log reader
func (r *LogReader) Close() error {
	return r.file.Close()
}

// logBlockIterator implements BlockIterator for streaming access
type logBlockIterator struct {
	reader *LogReader
	block  *Block
	offset int64
	err    error
}

func (it *logBlockIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.offset = it.reader.Offset()
	it.block, it.err = it.reader.ReadNext()
	return it.err == nil
}

func (it *logBlockIterator) Block() *Block {
	return it.block
}

// Offset returns the offset of the current block
func (it *logBlockIterator) Offset() int64 {
	return it.offset
}

// Err returns the error that stopped iteration, or nil at a clean end of file
func (it *logBlockIterator) Err() error {
	if errors.Is(it.err, io.EOF) {
		return nil
	}
	return it.err
}

func (it *logBlockIterator) Close() error {
	// Don't close the underlying reader as it's owned by the caller
	return nil
}
