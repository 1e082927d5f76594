package tokenizer

import (
	"fmt"
	"iter"
	"strings"
	"sync"
	"unicode"

	"github.com/go-ego/gse"
)

// loadSegmenter reads the embedded Chinese dictionary exactly once. The
// segmenter is read-only afterwards and safe for concurrent Segment calls.
// Letter and digit runs stay whole (AlphaNum is left false).
var loadSegmenter = sync.OnceValues(func() (*gse.Segmenter, error) {
	seg := new(gse.Segmenter)
	if err := seg.LoadDictEmbed("zh"); err != nil {
		return nil, fmt.Errorf("loading embedded zh dictionary: %w", err)
	}
	return seg, nil
})

// CJK segments Chinese, Japanese and Korean text into dictionary words.
type CJK struct {
	seg *gse.Segmenter
}

// NewCJK returns a CJK tokenizer backed by the shared dictionary.
func NewCJK() (*CJK, error) {
	seg, err := loadSegmenter()
	if err != nil {
		return nil, err
	}
	return &CJK{seg: seg}, nil
}

// Tokenize strips punctuation from text, segments it, and yields every
// segment that is not pure whitespace. Terms keep the case they have in
// text. Segmentation runs when iteration starts.
func (c *CJK) Tokenize(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		cleaned := StripPunctuation(text)
		if strings.TrimSpace(cleaned) == "" {
			return
		}
		for _, segment := range c.seg.Segment([]byte(cleaned)) {
			term := strings.TrimSpace(originalText(cleaned, &segment))
			if term == "" {
				continue
			}
			if !yield(term) {
				return
			}
		}
	}
}

// StripPunctuation replaces every Latin or CJK punctuation or symbol rune in
// text with a space so that neighbouring words are not glued together.
func StripPunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.In(r, unicode.Sm, unicode.Sc, unicode.Sk) {
			return ' '
		}
		return r
	}, text)
}

// originalText returns the bytes of text covered by segment. The segmenter
// lowercases Latin runs and derives offsets from the lowercased form, so the
// slice is used only when it still folds to the token text; otherwise the
// lowercased token is returned as is.
func originalText(text string, segment *gse.Segment) string {
	token := segment.Token().Text()
	start, end := segment.Start(), segment.End()
	if start < 0 || end > len(text) || start > end {
		return token
	}
	if orig := text[start:end]; strings.EqualFold(orig, token) {
		return orig
	}
	return token
}
