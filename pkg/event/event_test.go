package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	e := New(1325376000000, 10, 200)

	assert.Equal(t, Timestamp(1325376000000), e.Timestamp)
	assert.Equal(t, ObjectID(10), e.ObjectID)
	assert.Equal(t, ActionID(200), e.ActionID)
	assert.Equal(t, 0, e.DataCount())
	assert.False(t, e.HasData())
	assert.True(t, e.HasAction())
}

func TestEvent_SetData(t *testing.T) {
	e := New(0, 0, 0)
	e.SetData(10, "foo")
	e.SetData(20, "bar")
	e.SetData(10, "baz")

	assert.Equal(t, 2, e.DataCount())

	entry, ok := e.GetData(10)
	require.True(t, ok)
	assert.Equal(t, "baz", entry.Value)
	assert.Equal(t, Key(10), entry.Key)

	entry, ok = e.GetData(20)
	require.True(t, ok)
	assert.Equal(t, "bar", entry.Value)

	_, ok = e.GetData(30)
	assert.False(t, ok)
}

func TestEvent_SetDataEmptyValue(t *testing.T) {
	e := New(0, 0, 0)
	e.SetData(1, "")

	entry, ok := e.GetData(1)
	require.True(t, ok)
	assert.Equal(t, "", entry.Value)
	assert.Equal(t, 1, e.DataCount())
	assert.True(t, e.HasData())
}

func TestEvent_SetDataBytesCopies(t *testing.T) {
	e := New(0, 0, 0)
	buf := []byte("foo")
	e.SetDataBytes(1, buf)

	// Reuse the caller's buffer
	copy(buf, "xyz")

	entry, ok := e.GetData(1)
	require.True(t, ok)
	assert.Equal(t, "foo", entry.Value)
}

func TestEvent_UnsetData(t *testing.T) {
	e := New(0, 0, 0)
	e.SetData(10, "foo")
	e.SetData(20, "bar")
	require.Equal(t, 2, e.DataCount())

	e.UnsetData(10)
	assert.Equal(t, 1, e.DataCount())

	_, ok := e.GetData(10)
	assert.False(t, ok)

	entry, ok := e.GetData(20)
	require.True(t, ok)
	assert.Equal(t, "bar", entry.Value)
}

func TestEvent_MissingKeys(t *testing.T) {
	e := New(0, 0, 0)

	t.Run("get on empty event", func(t *testing.T) {
		_, ok := e.GetData(5)
		assert.False(t, ok)
	})

	t.Run("unset on empty event", func(t *testing.T) {
		e.UnsetData(5)
		assert.Equal(t, 0, e.DataCount())
	})

	t.Run("unset absent key leaves others intact", func(t *testing.T) {
		e.SetData(1, "foo")
		e.SetData(2, "bar")
		e.UnsetData(3)

		assert.Equal(t, 2, e.DataCount())
		assert.Equal(t, []Entry{{1, "foo"}, {2, "bar"}}, e.Entries())
	})
}

func TestEvent_KeysAreSorted(t *testing.T) {
	e := New(0, 0, 0)
	for _, k := range []Key{30, 2, 65535, 0, 7} {
		e.SetData(k, "v")
	}

	assert.Equal(t, []Key{0, 2, 7, 30, 65535}, e.Keys())
}

func TestEvent_Free(t *testing.T) {
	e := New(1325376000000, 3, 4)
	e.SetData(1, "foo")

	e.Free()

	assert.Equal(t, Timestamp(0), e.Timestamp)
	assert.Equal(t, ObjectID(0), e.ObjectID)
	assert.Equal(t, NoAction, e.ActionID)
	assert.Equal(t, 0, e.DataCount())

	// A freed event is reusable
	e.SetData(2, "bar")
	assert.Equal(t, 1, e.DataCount())
}

func TestEvent_CloneAndEqual(t *testing.T) {
	e := New(100, 1, 2)
	e.SetData(1, "foo")
	e.SetData(2, "bar")

	c := e.Clone()
	assert.True(t, e.Equal(c))

	c.SetData(1, "baz")
	assert.False(t, e.Equal(c))

	entry, _ := e.GetData(1)
	assert.Equal(t, "foo", entry.Value, "clone must not share the dictionary")

	testCases := []struct {
		name  string
		other *Event
	}{
		{"different timestamp", New(101, 1, 2)},
		{"different object", New(100, 2, 2)},
		{"different action", New(100, 1, 3)},
		{"missing data", New(100, 1, 2)},
		{"nil", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, e.Equal(tc.other))
		})
	}
}

func TestEvent_EqualIgnoresInsertionOrder(t *testing.T) {
	a := New(1, 1, 1)
	a.SetData(1, "foo")
	a.SetData(2, "bar")

	b := New(1, 1, 1)
	b.SetData(2, "bar")
	b.SetData(1, "foo")

	assert.True(t, a.Equal(b))
}

func TestEvent_Time(t *testing.T) {
	ts := time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New(FromTime(ts), 0, 0)

	assert.Equal(t, Timestamp(1325376000000), e.Timestamp)
	assert.True(t, ts.Equal(e.Time()))
}

func TestEvent_String(t *testing.T) {
	e := New(5, 6, 7)
	assert.Equal(t, "ts=5 object=6 action=7", e.String())

	e.SetData(2, "bar")
	e.SetData(1, "foo")
	assert.Equal(t, `ts=5 object=6 action=7 data={1:"foo", 2:"bar"}`, e.String())
}
