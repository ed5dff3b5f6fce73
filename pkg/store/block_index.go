package store

import (
	"sort"
	"sync"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/skydb/pkg/event"
)

// BlockIndex maps each object to the blocks holding its events, in append order
type BlockIndex struct {
	entries map[event.ObjectID][]IndexEntry
	blocks  int
	events  int64
	mutex   sync.RWMutex
}

// NewBlockIndex creates an empty block index
func NewBlockIndex() *BlockIndex {
	return &BlockIndex{
		entries: make(map[event.ObjectID][]IndexEntry),
	}
}

// Add records the location of a block for an object
func (idx *BlockIndex) Add(objectID event.ObjectID, entry IndexEntry) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries[objectID] = append(idx.entries[objectID], entry)
	idx.blocks++
	idx.events += int64(entry.Count)
}

// Get returns the block locations for an object, oldest first
func (idx *BlockIndex) Get(objectID event.ObjectID) ([]IndexEntry, bool) {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	entries, exists := idx.entries[objectID]
	if !exists {
		return nil, false
	}
	out := make([]IndexEntry, len(entries))
	copy(out, entries)
	return out, true
}

// Delete removes an object from the index
func (idx *BlockIndex) Delete(objectID event.ObjectID) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	for _, entry := range idx.entries[objectID] {
		idx.blocks--
		idx.events -= int64(entry.Count)
	}
	delete(idx.entries, objectID)
}

// Size returns the number of objects in the index
func (idx *BlockIndex) Size() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return len(idx.entries)
}

// Clear removes all entries from the index
func (idx *BlockIndex) Clear() {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries = make(map[event.ObjectID][]IndexEntry)
	idx.blocks = 0
	idx.events = 0
}

// ObjectIDs returns every indexed object id in ascending order
func (idx *BlockIndex) ObjectIDs() []event.ObjectID {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	ids := make([]event.ObjectID, 0, len(idx.entries))
	for id := range idx.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BuildFromLog scans a segment and adds every block it holds to the index
func (idx *BlockIndex) BuildFromLog(segmentID ksuid.KSUID, reader *LogReader) error {
	// Reset reader to beginning
	if err := reader.Seek(0); err != nil {
		return err
	}

	iterator := reader.Iterator()
	defer iterator.Close()

	for iterator.Next() {
		block := iterator.Block()
		idx.Add(block.ObjectID, IndexEntry{
			SegmentID: segmentID,
			Offset:    iterator.Offset(),
			Size:      uint32(block.EncodedSize()),
			Count:     block.Count,
		})
	}

	return iterator.Err()
}

// Stats returns index statistics
func (idx *BlockIndex) Stats() *IndexStats {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return &IndexStats{
		Objects: len(idx.entries),
		Blocks:  idx.blocks,
		Events:  idx.events,
	}
}

// IndexStats holds statistics about the index
type IndexStats struct {
	Objects int
	Blocks  int
	Events  int64
}
