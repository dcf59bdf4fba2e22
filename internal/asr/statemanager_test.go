package asr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateManager_FirstAccumulateReturnsText(t *testing.T) {
	sm := NewStateManager()
	assert.Equal(t, "hello", sm.Accumulate("hello"))
}

func TestStateManager_AppendsDistinctFinals(t *testing.T) {
	sm := NewStateManager()
	sm.Accumulate("turn off the lights")
	got := sm.Accumulate("and lock the door")
	assert.Equal(t, "turn off the lightsand lock the door", got)
}

func TestStateManager_PrefixExtensionReplacesCumulative(t *testing.T) {
	sm := NewStateManager()
	sm.Accumulate("turn off")
	got := sm.Accumulate("turn off the lights")
	assert.Equal(t, "turn off the lights", got)
}

func TestStateManager_NearDuplicateKeepsLongerVariant(t *testing.T) {
	sm := NewStateManager()
	sm.Accumulate("turn off the lights please")
	got := sm.Accumulate("turn off the light please")
	assert.Equal(t, "turn off the lights please", got)
}

func TestStateManager_EmptyTextReturnsCurrentCumulative(t *testing.T) {
	sm := NewStateManager()
	sm.Accumulate("hello")
	assert.Equal(t, "hello", sm.Accumulate("   "))
}

func TestStateManager_ResetClearsCumulative(t *testing.T) {
	sm := NewStateManager()
	sm.Accumulate("hello")
	sm.Reset()
	assert.Equal(t, "world", sm.Accumulate("world"))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 1, levenshtein("abc", "abd"))
	assert.Equal(t, 3, levenshtein("", "abc"))
}
