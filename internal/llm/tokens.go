package llm

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens counts the tokens of text with the cl100k_base encoding.
// When the encoding cannot be loaded it falls back to one token per four
// characters.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	encodingOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoding = enc
		}
	})
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return max(utf8.RuneCountInString(text)/4, 1)
}
