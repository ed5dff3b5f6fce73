package store

import (
	"sync"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/skydb/pkg/event"
)

func TestBlockIndex_AddGet(t *testing.T) {
	idx := NewBlockIndex()
	segment := ksuid.New()

	idx.Add(1, IndexEntry{SegmentID: segment, Offset: 0, Size: 40, Count: 2})
	idx.Add(1, IndexEntry{SegmentID: segment, Offset: 40, Size: 30, Count: 1})
	idx.Add(2, IndexEntry{SegmentID: segment, Offset: 70, Size: 30, Count: 1})

	entries, ok := idx.Get(1)
	require.True(t, ok)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(0), entries[0].Offset)
	assert.Equal(t, int64(40), entries[1].Offset)

	_, ok = idx.Get(3)
	assert.False(t, ok)

	stats := idx.Stats()
	assert.Equal(t, 2, stats.Objects)
	assert.Equal(t, 3, stats.Blocks)
	assert.Equal(t, int64(4), stats.Events)
}

func TestBlockIndex_GetReturnsCopy(t *testing.T) {
	idx := NewBlockIndex()
	idx.Add(1, IndexEntry{Offset: 10})

	entries, _ := idx.Get(1)
	entries[0].Offset = 99

	entries, _ = idx.Get(1)
	assert.Equal(t, int64(10), entries[0].Offset)
}

func TestBlockIndex_DeleteClear(t *testing.T) {
	idx := NewBlockIndex()
	idx.Add(1, IndexEntry{Count: 2})
	idx.Add(2, IndexEntry{Count: 3})

	idx.Delete(1)
	assert.Equal(t, 1, idx.Size())
	assert.Equal(t, int64(3), idx.Stats().Events)

	idx.Delete(42) // absent
	assert.Equal(t, 1, idx.Size())

	idx.Clear()
	assert.Equal(t, 0, idx.Size())
	assert.Equal(t, &IndexStats{}, idx.Stats())
}

func TestBlockIndex_ObjectIDsSorted(t *testing.T) {
	idx := NewBlockIndex()
	for _, id := range []event.ObjectID{30, 1, 20, 10} {
		idx.Add(id, IndexEntry{})
	}
	assert.Equal(t, []event.ObjectID{1, 10, 20, 30}, idx.ObjectIDs())
}

func TestBlockIndex_BuildFromLog(t *testing.T) {
	first := testBlock(t, 5, 2)
	second := testBlock(t, 6, 1)
	third := testBlock(t, 5, 3)
	filePath := writeSegment(t, first, second, third)

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	segment := ksuid.New()
	idx := NewBlockIndex()
	require.NoError(t, idx.BuildFromLog(segment, reader))

	entries, ok := idx.Get(5)
	require.True(t, ok)
	require.Len(t, entries, 2)
	assert.Equal(t, IndexEntry{
		SegmentID: segment,
		Offset:    int64(first.EncodedSize() + second.EncodedSize()),
		Size:      uint32(third.EncodedSize()),
		Count:     3,
	}, entries[1])

	assert.Equal(t, int64(6), idx.Stats().Events)
}

func TestBlockIndex_Concurrent(t *testing.T) {
	idx := NewBlockIndex()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				idx.Add(event.ObjectID(id), IndexEntry{Offset: int64(j), Count: 1})
				idx.Get(event.ObjectID(id))
				idx.ObjectIDs()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, idx.Size())
	assert.Equal(t, int64(1000), idx.Stats().Events)
}
