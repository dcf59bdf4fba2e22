package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AppendAndSnapshot(t *testing.T) {
	h := New(10)
	h.Append(Message{Role: RoleUser, Content: "hi"})
	h.Append(Message{Role: RoleAssistant, Content: "hello"})

	snap := h.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "hi", snap[0].Content)
	assert.Equal(t, "hello", snap[1].Content)
}

func TestHistory_TrimsOldestNonSystemPastMaxSize(t *testing.T) {
	h := New(2)
	h.Append(Message{Role: RoleSystem, Content: "sys"})
	h.Append(Message{Role: RoleUser, Content: "one"})
	h.Append(Message{Role: RoleAssistant, Content: "two"})
	h.Append(Message{Role: RoleUser, Content: "three"})

	snap := h.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, RoleSystem, snap[0].Role)
	assert.Equal(t, "three", snap[1].Content)
}

func TestHistory_SnapshotDropsDanglingToolMessage(t *testing.T) {
	h := New(10)
	h.Append(Message{Role: RoleUser, Content: "what's the weather"})
	h.Append(Message{Role: RoleTool, Content: "sunny", ToolCallID: "call-1"})
	h.Append(Message{Role: RoleAssistant, Content: "it's sunny"})
	h.Append(Message{Role: RoleTool, Content: "orphaned"})

	snap := h.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, RoleUser, snap[0].Role)
	assert.Equal(t, RoleAssistant, snap[1].Role)
}

func TestHistory_Clear(t *testing.T) {
	h := New(10)
	h.Append(Message{Role: RoleUser, Content: "hi"})
	h.Clear()
	assert.Empty(t, h.Snapshot())
}

func TestHistory_DefaultMaxSizeUsedForNonPositive(t *testing.T) {
	h := New(0)
	assert.Equal(t, 40, h.maxSize)
}
