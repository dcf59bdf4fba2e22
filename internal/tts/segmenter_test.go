package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkdown(t *testing.T) {
	cases := map[string]string{
		"**bold** and _italic_":       "bold and italic",
		"# Heading\nbody":             "Heading\nbody",
		"[link text](https://x.com)":  "link text",
		"`code` span":                 "code span",
		"```\nblock\n```\nafter":      "\nafter",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripMarkdown(in))
	}
}

func TestSegmenter_PushYieldsSentenceOnPunctuation(t *testing.T) {
	s := newSegmenter()
	out := s.Push("Hello there.")
	assert.Equal(t, []string{"Hello there."}, out)
}

func TestSegmenter_PushAccumulatesAcrossChunks(t *testing.T) {
	s := newSegmenter()
	assert.Empty(t, s.Push("Hello"))
	out := s.Push(" there!")
	assert.Equal(t, []string{"Hello there!"}, out)
}

func TestSegmenter_PushYieldsMultipleSentencesInOneChunk(t *testing.T) {
	s := newSegmenter()
	out := s.Push("Hi. Bye.")
	assert.Equal(t, []string{"Hi.", "Bye."}, out)
}

func TestSegmenter_PushYieldsSentenceOnColon(t *testing.T) {
	s := newSegmenter()
	out := s.Push("Note:")
	assert.Equal(t, []string{"Note:"}, out)
}

func TestSegmenter_PushYieldsSentenceOnChineseColon(t *testing.T) {
	s := newSegmenter()
	out := s.Push("注意：")
	assert.Equal(t, []string{"注意："}, out)
}

func TestSegmenter_PushYieldsSentenceOnNewline(t *testing.T) {
	s := newSegmenter()
	out := s.Push("line one\nline two")
	assert.Equal(t, []string{"line one"}, out)
	assert.Equal(t, "line two", s.Flush())
}

func TestSegmenter_PushSplitsOnMaxLengthWithoutPunctuation(t *testing.T) {
	s := newSegmenter()
	long := ""
	for i := 0; i < 50; i++ {
		long += "a"
	}
	out := s.Push(long)
	require := assert.New(t)
	require.Len(out, 1)
	require.Len(out[0], 40)
}

func TestSegmenter_FlushReturnsRemainingBuffer(t *testing.T) {
	s := newSegmenter()
	s.Push("no ending punctuation")
	assert.Equal(t, "no ending punctuation", s.Flush())
	assert.Equal(t, "", s.Flush())
}

func TestSegmenter_FlushTrimsWhitespace(t *testing.T) {
	s := newSegmenter()
	s.Push("  padded  ")
	assert.Equal(t, "padded", s.Flush())
}
