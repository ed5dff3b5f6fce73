package store

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogWriter appends encoded blocks to one segment file. Writes go through a
// buffer; with a zero FsyncInterval every Append is flushed and synced before
// it returns, otherwise a timer syncs FsyncInterval after the latest append.
type LogWriter struct {
	file   *os.File
	buf    *bufio.Writer
	timer  *time.Timer
	config LogWriterConfig
	mutex  sync.Mutex
	size   int64 // bytes in the file plus bytes still buffered
}

// NewLogWriter opens or creates the segment at config.FilePath for appending
func NewLogWriter(config LogWriterConfig) (*LogWriter, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	if config.BufferSize <= 0 {
		config.BufferSize = defaultBufferSize
	}

	w := &LogWriter{
		file:   file,
		buf:    bufio.NewWriterSize(file, config.BufferSize),
		config: config,
		size:   end,
	}
	if config.FsyncInterval > 0 {
		w.timer = time.AfterFunc(config.FsyncInterval, w.timedSync)
	}
	return w, nil
}

func (w *LogWriter) timedSync() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	// No caller to report to; the next Sync or Close surfaces a broken file
	_ = w.flushAndSync()
}

// Append writes block and returns the offset it starts at
func (w *LogWriter) Append(block *Block) (int64, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	offset := w.size
	n, err := w.buf.Write(block.Encode())
	w.size += int64(n)
	if err != nil {
		return 0, err
	}

	if w.timer == nil {
		if err := w.flushAndSync(); err != nil {
			return 0, err
		}
		return offset, nil
	}
	w.timer.Reset(w.config.FsyncInterval)
	return offset, nil
}

// Flush hands buffered blocks to the operating system without an fsync so
// readers of the file can see them
func (w *LogWriter) Flush() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.buf.Flush()
}

// Sync flushes and fsyncs the segment
func (w *LogWriter) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.flushAndSync()
}

func (w *LogWriter) flushAndSync() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close stops the sync timer, syncs outstanding blocks and closes the file
func (w *LogWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}

	syncErr := w.flushAndSync()
	closeErr := w.file.Close()
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// Size returns the segment size including buffered blocks
func (w *LogWriter) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.size
}

// Path returns the segment file path
func (w *LogWriter) Path() string {
	return w.config.FilePath
}
