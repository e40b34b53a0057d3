package chunker

import (
	"strings"
	"unicode/utf8"
)

// EstimateTokens gives a rough token count without a tokenizer. It takes the
// larger of ~1.33 tokens per word and ~4 characters per token, which keeps
// number-dense tables from being undercounted.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	byWords := int(float64(len(strings.Fields(text))) * 1.33)
	byChars := (utf8.RuneCountInString(text) + 3) / 4
	if byChars > byWords {
		return byChars
	}
	return byWords
}
