// Package tokenizer splits plain text into terms for frequency counting.
// Latin mode emits maximal runs of word characters; CJK mode strips
// punctuation and segments the remainder with a dictionary segmenter.
// Neither mode folds case or strips accents.
package tokenizer

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mode selects the tokenisation strategy.
type Mode string

const (
	ModeLatin Mode = "latin"
	ModeCJK   Mode = "cjk"
)

// ParseMode converts a user-supplied mode name into a Mode. An empty string
// selects ModeLatin.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLatin:
		return ModeLatin, nil
	case ModeCJK:
		return ModeCJK, nil
	default:
		return "", fmt.Errorf("unknown tokenizer mode %q", s)
	}
}

func (m Mode) String() string {
	return string(m)
}

// Tokenizer produces the terms of a text in left-to-right order. The returned
// sequence is lazy and is meant to be ranged over once.
type Tokenizer interface {
	Tokenize(text string) iter.Seq[string]
}

// New returns the Tokenizer for mode. CJK tokenizers share one dictionary
// that is loaded on first use.
func New(mode Mode) (Tokenizer, error) {
	switch mode {
	case ModeLatin, "":
		return Latin{}, nil
	case ModeCJK:
		return NewCJK()
	default:
		return nil, fmt.Errorf("unknown tokenizer mode %q", mode)
	}
}

// Latin splits text on non-word boundaries.
type Latin struct{}

// Tokenize yields every maximal run of word characters in text.
func (Latin) Tokenize(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := -1
		for i, r := range text {
			if isWordRune(r) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if !yield(text[start:i]) {
					return
				}
				start = -1
			}
		}
		if start >= 0 {
			yield(text[start:])
		}
	}
}

// isWordRune reports whether r belongs to a word: letters, numbers and the
// underscore. Combining marks are separators, so decomposed accents split a
// word; precomposed ones do not.
func isWordRune(r rune) bool {
	if r == '_' {
		return true
	}
	if r == utf8.RuneError {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}
