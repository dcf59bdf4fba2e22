package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_PushAndDrainPreservesOrder(t *testing.T) {
	b := New(3)
	b.Push([]byte("a"))
	b.Push([]byte("b"))
	b.Push([]byte("c"))

	require.Equal(t, 3, b.Len())
	frames := b.Drain()
	require.Len(t, frames, 3)
	assert.Equal(t, []byte("a"), frames[0])
	assert.Equal(t, []byte("b"), frames[1])
	assert.Equal(t, []byte("c"), frames[2])
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_EvictsOldestPastCapacity(t *testing.T) {
	b := New(2)
	b.Push([]byte("a"))
	b.Push([]byte("b"))
	b.Push([]byte("c"))

	frames := b.Drain()
	require.Len(t, frames, 2)
	assert.Equal(t, []byte("b"), frames[0])
	assert.Equal(t, []byte("c"), frames[1])
}

func TestBuffer_DefaultCapacityUsedForNonPositive(t *testing.T) {
	b := New(0)
	assert.Equal(t, DefaultCapacity, b.Capacity())
}

func TestBuffer_DrainOnEmptyReturnsEmpty(t *testing.T) {
	b := New(4)
	assert.Empty(t, b.Drain())
}
