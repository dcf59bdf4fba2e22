package tts

import (
	"regexp"
	"strings"
)

// segmenter buffers incoming assistant text and yields complete sentences
// as soon as a sentence-ending punctuation mark or a max-length bound is
// hit, generalizing pkg/hardwarefinal/stream/segmenter.go's
// TextSegmenter (there driven by a goroutine + delay timer; here driven
// synchronously by the caller's PushTextChunk, since vendors already run
// their own goroutines).
type segmenter struct {
	buffer   strings.Builder
	minChars int
	maxChars int
}

func newSegmenter() *segmenter {
	return &segmenter{minChars: 8, maxChars: 40}
}

var (
	markdownCodeFence = regexp.MustCompile("```[\\s\\S]*?```")
	markdownInlineFmt = regexp.MustCompile(`[*_~` + "`" + `]+`)
	markdownHeading   = regexp.MustCompile(`(?m)^#+\s*`)
	markdownLink      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)

	sentenceEndings = []rune{'。', '！', '？', '.', '!', '?', ';', '；', ':', '：', '\n'}
	softBreaks      = []rune{'，', ',', '、'}
)

// stripMarkdown removes Markdown formatting before any sentence splitting
// happens (spec.md Open Question (c): "Markdown stripped before sentence
// splitting, not after").
func stripMarkdown(text string) string {
	text = markdownCodeFence.ReplaceAllString(text, "")
	text = markdownLink.ReplaceAllString(text, "$1")
	text = markdownHeading.ReplaceAllString(text, "")
	text = markdownInlineFmt.ReplaceAllString(text, "")
	return text
}

// Push feeds one text chunk (already Markdown-stripped by the caller) into
// the buffer and returns zero or more complete sentences ready to
// synthesize.
func (s *segmenter) Push(chunk string) []string {
	s.buffer.WriteString(chunk)
	var out []string
	for {
		sentence, ok := s.extractOne()
		if !ok {
			break
		}
		out = append(out, sentence)
	}
	return out
}

// Flush returns any remaining buffered text as a final sentence, used at
// end-of-utterance.
func (s *segmenter) Flush() string {
	rest := s.buffer.String()
	s.buffer.Reset()
	return strings.TrimSpace(rest)
}

func (s *segmenter) extractOne() (string, bool) {
	buf := []rune(s.buffer.String())
	for i, r := range buf {
		if containsRune(sentenceEndings, r) {
			sentence := strings.TrimSpace(string(buf[:i+1]))
			s.buffer.Reset()
			s.buffer.WriteString(string(buf[i+1:]))
			if sentence != "" {
				return sentence, true
			}
			return s.extractOne()
		}
	}
	if len(buf) > s.maxChars {
		sentence := strings.TrimSpace(string(buf[:s.maxChars]))
		s.buffer.Reset()
		s.buffer.WriteString(string(buf[s.maxChars:]))
		return sentence, sentence != ""
	}
	return "", false
}

func containsRune(set []rune, r rune) bool {
	for _, c := range set {
		if c == r {
			return true
		}
	}
	return false
}
